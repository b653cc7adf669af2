package diskcache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamer_Deterministic(t *testing.T) {
	for _, namer := range []struct {
		name string
		fn   Namer
	}{
		{"SHA256", SHA256Namer},
		{"XXHash", XXHashNamer},
	} {
		t.Run(namer.name, func(t *testing.T) {
			key := "https://example.com/images/photo.png?width=200"

			first := namer.fn(key)
			second := namer.fn(key)
			require.Equal(t, first, second)

			// Idempotent under repetition, distinct across keys.
			require.NotEqual(t, first, namer.fn(key+"x"))
		})
	}
}

func TestNamer_FilesystemSafe(t *testing.T) {
	keys := []string{
		"../../etc/passwd",
		"https://example.com/a/b/c.jpg",
		"key with spaces and ünïcode",
		"trailing-dots...",
		strings.Repeat("k", 4096),
		"",
	}
	for _, key := range keys {
		for _, fn := range []Namer{SHA256Namer, XXHashNamer} {
			name := fn(key)
			require.NotContains(t, name, "/")
			require.NotContains(t, name, "\\")
			require.NotContains(t, name, "..")
			require.NotEmpty(t, name)
		}
	}
}

func TestNamer_ExtensionHint(t *testing.T) {
	require.True(t, strings.HasSuffix(SHA256Namer("photo.png"), ".png"))
	require.True(t, strings.HasSuffix(SHA256Namer("https://h/img.jpeg?w=2#frag"), ".jpeg"))

	// No hint for missing, oversized or non-alphanumeric extensions.
	require.NotContains(t, SHA256Namer("no-extension"), ".")
	require.NotContains(t, SHA256Namer("weird.png$gif"), ".")
	require.NotContains(t, SHA256Namer("file.toolongext"), ".")
}

func TestSHA256Namer_KnownLength(t *testing.T) {
	// 64 hex chars for the digest, extension aside.
	require.Len(t, SHA256Namer("key"), 64)
	require.Len(t, XXHashNamer("key"), 16)
}
