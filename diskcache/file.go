package diskcache

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/segmentio/ksuid"
)

// CompressionZstd enables transparent zstd compression of records.
// Compression is fully reversed on read: Get returns exactly the bytes
// passed to Put.
const CompressionZstd = "zstd"

// cachedirTag is the standard marker recognized by backup and sync tools
// (https://bford.info/cachedir/). Writing it is how the tier honors the
// exclude-from-backup flag.
const cachedirTag = "CACHEDIR.TAG"

const cachedirTagBody = "Signature: 8a477f597d28d172789f06886806bc55\n" +
	"# This directory contains cached image data.\n"

const tmpSuffix = ".tmp"

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// FileOptions configures a File cache.
type FileOptions struct {
	// Dir is the directory where records are stored.
	Dir string

	// Namer derives record filenames from keys (default SHA256Namer).
	Namer Namer

	ReadMode  ReadMode
	WriteMode WriteMode

	// Compression is "" or CompressionZstd.
	Compression string

	// ExcludeFromBackup writes a CACHEDIR.TAG marker so backup tools
	// skip the directory.
	ExcludeFromBackup bool
}

// File is a persistent tier storing one file per record. It keeps no
// index: the record's filename is its identity and the file's mtime its
// only freshness metadata, so the directory is fully self-describing
// across process restarts.
type File struct {
	mu        sync.RWMutex
	dir       string
	namer     Namer
	readMode  ReadMode
	writeMode WriteMode

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	hits   atomic.Int64
	misses atomic.Int64
}

// NewFile creates a file-backed cache rooted at opts.Dir, creating the
// directory if needed.
func NewFile(opts FileOptions) (*File, error) {
	if opts.Dir == "" {
		return nil, errors.New("diskcache: cache directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, err
	}

	namer := opts.Namer
	if namer == nil {
		namer = SHA256Namer
	}

	c := &File{
		dir:       opts.Dir,
		namer:     namer,
		readMode:  opts.ReadMode,
		writeMode: opts.WriteMode,
	}

	if opts.Compression == CompressionZstd {
		var err error
		c.encoder, err = zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		c.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
	}

	if opts.ExcludeFromBackup {
		tagPath := filepath.Join(opts.Dir, cachedirTag)
		if _, err := os.Stat(tagPath); errors.Is(err, fs.ErrNotExist) {
			if err := os.WriteFile(tagPath, []byte(cachedirTagBody), 0644); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

func (c *File) path(key string) string {
	return filepath.Join(c.dir, c.namer(key))
}

func (c *File) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		data []byte
		err  error
	)
	switch c.readMode {
	case ReadMmap:
		data, err = readMmap(c.path(key))
	default:
		data, err = os.ReadFile(c.path(key))
	}
	if err != nil {
		// Read failures surface as misses: the caller's fallback is
		// the same whether the record is absent or unreadable.
		c.misses.Add(1)
		return nil, false
	}

	if c.decoder != nil && hasZstdFrame(data) {
		decoded, derr := c.decoder.DecodeAll(data, nil)
		if derr != nil {
			c.misses.Add(1)
			return nil, false
		}
		data = decoded
	}

	c.hits.Add(1)
	return data, true
}

// Put durably writes the record for key. The record lands under a
// temporary name and is renamed into place, so a concurrent Get observes
// either the whole record or none of it, never a torn write.
func (c *File) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.namer(key)
	final := filepath.Join(c.dir, name)

	if c.writeMode == WriteNoOverwrite {
		if _, err := os.Stat(final); err == nil {
			return ErrExists
		}
	}

	if c.encoder != nil {
		data = c.encoder.EncodeAll(data, nil)
	}

	tmp := filepath.Join(c.dir, name+"."+ksuid.New().String()+tmpSuffix)
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (c *File) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *File) RemoveAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == cachedirTag {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *File) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, err := os.Stat(c.path(key))
	return err == nil
}

func (c *File) TotalSize() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	size, _ := c.scan()
	return size
}

func (c *File) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, count := c.scan()
	return count
}

func (c *File) scan() (int64, int) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, 0
	}
	var size int64
	var count int
	for _, entry := range entries {
		if !isRecord(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		size += info.Size()
		count++
	}
	return size, count
}

type record struct {
	path    string
	size    int64
	modTime time.Time
}

// Prune holds the write lock for the whole pass so it works from a
// consistent snapshot and never deletes a record mid-Put.
func (c *File) Prune(opts PruneOptions) PruneStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats PruneStats

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return stats
	}

	records := make([]record, 0, len(entries))
	var total int64
	for _, entry := range entries {
		if !isRecord(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, record{
			path:    filepath.Join(c.dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	stats.Examined = len(records)

	// Expired records go first, unconditionally.
	if opts.MaxAge > 0 {
		cutoff := time.Now().Add(-opts.MaxAge)
		kept := records[:0]
		for _, rec := range records {
			if rec.modTime.Before(cutoff) {
				if err := os.Remove(rec.path); err != nil {
					stats.Failed++
					kept = append(kept, rec)
					continue
				}
				stats.Removed++
				stats.RemovedBytes += rec.size
				total -= rec.size
				continue
			}
			kept = append(kept, rec)
		}
		records = kept
	}

	if opts.MaxSize > 0 && total > opts.MaxSize {
		target := opts.sizeTarget()
		sort.Slice(records, func(i, j int) bool {
			return records[i].modTime.Before(records[j].modTime)
		})
		for _, rec := range records {
			if total <= target {
				break
			}
			if err := os.Remove(rec.path); err != nil {
				stats.Failed++
				continue
			}
			stats.Removed++
			stats.RemovedBytes += rec.size
			total -= rec.size
		}
	}

	if stats.Removed > 0 || stats.Failed > 0 {
		slog.Debug("diskcache: prune pass finished",
			"removed", stats.Removed,
			"failed", stats.Failed,
			"freed", humanize.Bytes(uint64(stats.RemovedBytes)),
			"remaining", humanize.Bytes(uint64(total)))
	}
	return stats
}

func (c *File) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	size, count := c.scan()
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Size:       size,
		EntryCount: count,
	}
}

func (c *File) Close() error {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
	return nil
}

// Dir returns the cache directory.
func (c *File) Dir() string {
	return c.dir
}

func isRecord(entry fs.DirEntry) bool {
	if entry.IsDir() {
		return false
	}
	name := entry.Name()
	return name != cachedirTag && !strings.HasSuffix(name, tmpSuffix)
}

func hasZstdFrame(data []byte) bool {
	if len(data) < len(zstdMagic) {
		return false
	}
	for i, b := range zstdMagic {
		if data[i] != b {
			return false
		}
	}
	return true
}
