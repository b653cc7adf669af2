package diskcache

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// A Namer derives the on-disk record name for a logical cache key. It
// must be a pure function: equal keys yield equal names, forever, across
// process restarts. Names never contain path separators or characters
// illegal in filenames, so arbitrary keys (URLs included) are safe.
type Namer func(key string) string

const maxExtLen = 5

// SHA256Namer names records by the hex SHA-256 of the key, suffixed with
// a sanitized extension hint when the key carries one. This is the
// default codec.
func SHA256Namer(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + extHint(key)
}

// XXHashNamer names records by the hex xxhash64 of the key. Cheaper than
// SHA256Namer with weaker collision resistance; suitable for bounded
// working sets.
func XXHashNamer(key string) string {
	var b [8]byte
	sum := xxhash.Sum64String(key)
	for i := 0; i < 8; i++ {
		b[i] = byte(sum >> (8 * (7 - i)))
	}
	return hex.EncodeToString(b[:]) + extHint(key)
}

// extHint extracts a short alphanumeric extension from the key, if any.
// Query strings and fragments are stripped first so URL keys like
// "https://host/img.png?w=2" hint ".png".
func extHint(key string) string {
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	ext := path.Ext(key)
	if len(ext) < 2 || len(ext) > maxExtLen+1 {
		return ""
	}
	for _, r := range ext[1:] {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum {
			return ""
		}
	}
	return ext
}
