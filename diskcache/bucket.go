package diskcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// BucketOptions configures a Bucket cache.
type BucketOptions struct {
	// URL is a gocloud bucket URL ("file:///...", "mem://", "s3://...").
	// Ignored when Bucket is set.
	URL string

	// Bucket, when non-nil, is used directly and its lifecycle stays
	// with the caller.
	Bucket *blob.Bucket

	// Prefix namespaces all records inside the bucket.
	Prefix string

	// Namer derives record names from keys (default SHA256Namer).
	Namer Namer

	WriteMode WriteMode
}

// Bucket is a persistent tier backed by a gocloud.dev blob bucket,
// letting several processes share one cache through object storage.
// Object modification time is the freshness metadata, matching the
// file tier's mtime semantics.
type Bucket struct {
	bucket *blob.Bucket
	prefix string
	namer  Namer
	mode   WriteMode
	owns   bool

	hits   atomic.Int64
	misses atomic.Int64
}

func NewBucket(ctx context.Context, opts BucketOptions) (*Bucket, error) {
	bkt := opts.Bucket
	owns := false
	if bkt == nil {
		if opts.URL == "" {
			return nil, errors.New("diskcache: bucket URL or bucket is required")
		}
		var err error
		bkt, err = blob.OpenBucket(ctx, opts.URL)
		if err != nil {
			return nil, fmt.Errorf("open bucket %q: %w", opts.URL, err)
		}
		owns = true
	}

	namer := opts.Namer
	if namer == nil {
		namer = SHA256Namer
	}

	return &Bucket{
		bucket: bkt,
		prefix: strings.TrimSuffix(opts.Prefix, "/"),
		namer:  namer,
		mode:   opts.WriteMode,
		owns:   owns,
	}, nil
}

// NewFileBucket creates a bucket cache backed by the local filesystem.
func NewFileBucket(ctx context.Context, dir, prefix string) (*Bucket, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path %s: %w", dir, err)
	}
	return NewBucket(ctx, BucketOptions{URL: "file://" + absDir, Prefix: prefix})
}

// NewMemBucket creates an in-memory bucket cache. Intended for tests.
func NewMemBucket(ctx context.Context, prefix string) (*Bucket, error) {
	return NewBucket(ctx, BucketOptions{URL: "mem://", Prefix: prefix})
}

func (c *Bucket) objectKey(key string) string {
	name := c.namer(key)
	if c.prefix == "" {
		return name
	}
	return c.prefix + "/" + name
}

func (c *Bucket) Get(key string) ([]byte, bool) {
	data, err := c.bucket.ReadAll(context.Background(), c.objectKey(key))
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

func (c *Bucket) Put(key string, data []byte) error {
	ctx := context.Background()
	obj := c.objectKey(key)

	if c.mode == WriteNoOverwrite {
		exists, err := c.bucket.Exists(ctx, obj)
		if err != nil {
			return err
		}
		if exists {
			return ErrExists
		}
	}
	return c.bucket.WriteAll(ctx, obj, data, nil)
}

func (c *Bucket) Remove(key string) error {
	err := c.bucket.Delete(context.Background(), c.objectKey(key))
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (c *Bucket) RemoveAll() error {
	var firstErr error
	for _, obj := range c.list() {
		if err := c.bucket.Delete(context.Background(), obj.Key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Bucket) Contains(key string) bool {
	exists, err := c.bucket.Exists(context.Background(), c.objectKey(key))
	return err == nil && exists
}

func (c *Bucket) list() []*blob.ListObject {
	prefix := ""
	if c.prefix != "" {
		prefix = c.prefix + "/"
	}

	var objects []*blob.ListObject
	it := c.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := it.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if obj.IsDir {
			continue
		}
		objects = append(objects, obj)
	}
	return objects
}

func (c *Bucket) TotalSize() int64 {
	var size int64
	for _, obj := range c.list() {
		size += obj.Size
	}
	return size
}

func (c *Bucket) Count() int {
	return len(c.list())
}

func (c *Bucket) Prune(opts PruneOptions) PruneStats {
	var stats PruneStats

	objects := c.list()
	stats.Examined = len(objects)

	var total int64
	for _, obj := range objects {
		total += obj.Size
	}

	remove := func(obj *blob.ListObject) {
		if err := c.bucket.Delete(context.Background(), obj.Key); err != nil {
			stats.Failed++
			return
		}
		stats.Removed++
		stats.RemovedBytes += obj.Size
		total -= obj.Size
	}

	if opts.MaxAge > 0 {
		cutoff := time.Now().Add(-opts.MaxAge)
		kept := objects[:0]
		for _, obj := range objects {
			if obj.ModTime.Before(cutoff) {
				remove(obj)
				continue
			}
			kept = append(kept, obj)
		}
		objects = kept
	}

	if opts.MaxSize > 0 && total > opts.MaxSize {
		target := opts.sizeTarget()
		sort.Slice(objects, func(i, j int) bool {
			return objects[i].ModTime.Before(objects[j].ModTime)
		})
		for _, obj := range objects {
			if total <= target {
				break
			}
			remove(obj)
		}
	}

	return stats
}

func (c *Bucket) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Size:       c.TotalSize(),
		EntryCount: c.Count(),
	}
}

func (c *Bucket) Close() error {
	if c.owns && c.bucket != nil {
		return c.bucket.Close()
	}
	return nil
}
