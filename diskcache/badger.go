package diskcache

import (
	"encoding/binary"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerOptions configures a Badger cache.
type BadgerOptions struct {
	// Dir is the badger database directory.
	Dir string

	// MaxAge, when non-zero, is applied as a native badger TTL on every
	// record in addition to being honored by Prune.
	MaxAge time.Duration

	WriteMode WriteMode

	// InMemory runs badger without a directory. Intended for tests.
	InMemory bool
}

// Badger is a persistent tier backed by an embedded badger KV store.
// Unlike File it needs no filename derivation: keys are stored verbatim.
// Each value carries an 8-byte write-timestamp header, stripped on read,
// standing in for the mtime that a file record gets for free.
type Badger struct {
	db     *badger.DB
	maxAge time.Duration
	mode   WriteMode

	hits   atomic.Int64
	misses atomic.Int64
}

const badgerHeaderLen = 8

func NewBadger(opts BadgerOptions) (*Badger, error) {
	if opts.Dir == "" && !opts.InMemory {
		return nil, errors.New("diskcache: badger directory is required")
	}

	bopts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}

	return &Badger{
		db:     db,
		maxAge: opts.MaxAge,
		mode:   opts.WriteMode,
	}, nil
}

func (c *Badger) Get(key string) ([]byte, bool) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(val) < badgerHeaderLen {
			return badger.ErrKeyNotFound
		}
		data = val[badgerHeaderLen:]
		return nil
	})
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

func (c *Badger) Put(key string, data []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		if c.mode == WriteNoOverwrite {
			if _, err := txn.Get([]byte(key)); err == nil {
				return ErrExists
			}
		}

		val := make([]byte, badgerHeaderLen+len(data))
		binary.BigEndian.PutUint64(val, uint64(time.Now().UnixNano()))
		copy(val[badgerHeaderLen:], data)

		entry := badger.NewEntry([]byte(key), val)
		if c.maxAge > 0 {
			entry = entry.WithTTL(c.maxAge)
		}
		return txn.SetEntry(entry)
	})
}

func (c *Badger) Remove(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (c *Badger) RemoveAll() error {
	return c.db.DropAll()
}

func (c *Badger) Contains(key string) bool {
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	return err == nil
}

type badgerRecord struct {
	key     []byte
	size    int64
	written time.Time
}

func (c *Badger) snapshot() []badgerRecord {
	var records []badgerRecord
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var written time.Time
			err := item.Value(func(val []byte) error {
				if len(val) >= badgerHeaderLen {
					written = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
				}
				return nil
			})
			if err != nil {
				continue
			}
			size := item.ValueSize() - badgerHeaderLen
			if size < 0 {
				size = 0
			}
			records = append(records, badgerRecord{
				key:     item.KeyCopy(nil),
				size:    size,
				written: written,
			})
		}
		return nil
	})
	return records
}

func (c *Badger) TotalSize() int64 {
	var size int64
	for _, rec := range c.snapshot() {
		size += rec.size
	}
	return size
}

func (c *Badger) Count() int {
	return len(c.snapshot())
}

func (c *Badger) Prune(opts PruneOptions) PruneStats {
	var stats PruneStats

	records := c.snapshot()
	stats.Examined = len(records)

	var total int64
	for _, rec := range records {
		total += rec.size
	}

	remove := func(rec badgerRecord) {
		err := c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(rec.key)
		})
		if err != nil {
			stats.Failed++
			return
		}
		stats.Removed++
		stats.RemovedBytes += rec.size
		total -= rec.size
	}

	if opts.MaxAge > 0 {
		cutoff := time.Now().Add(-opts.MaxAge)
		kept := records[:0]
		for _, rec := range records {
			if rec.written.Before(cutoff) {
				remove(rec)
				continue
			}
			kept = append(kept, rec)
		}
		records = kept
	}

	if opts.MaxSize > 0 && total > opts.MaxSize {
		target := opts.sizeTarget()
		sort.Slice(records, func(i, j int) bool {
			return records[i].written.Before(records[j].written)
		})
		for _, rec := range records {
			if total <= target {
				break
			}
			remove(rec)
		}
	}

	// Reclaim vlog space freed by the deletes. ErrNoRewrite just means
	// there was nothing worth rewriting.
	for {
		if err := c.db.RunValueLogGC(0.5); err != nil {
			break
		}
	}

	return stats
}

func (c *Badger) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Size:       c.TotalSize(),
		EntryCount: c.Count(),
	}
}

func (c *Badger) Close() error {
	return c.db.Close()
}
