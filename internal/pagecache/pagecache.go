// Package pagecache provides a bounded, fixed-size-record LRU cache used by
// the non-mmap cdb reader backend. It knows nothing about the cdb format; it
// only caches fixed-size byte slices keyed by an aligned page number.
package pagecache

import (
	"io"

	lru "github.com/opencoff/golang-lru"
)

// Cache caches fixed-size pages read from an io.ReaderAt, keyed by page
// number. It is safe for concurrent use by multiple goroutines, the same
// guarantee the underlying LRU cache and io.ReaderAt both provide.
type Cache struct {
	pageSize uint32
	lru      *lru.Cache
}

// New creates a page cache that holds up to size pages of pageSize bytes
// each.
func New(size int, pageSize uint32) (*Cache, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{pageSize: pageSize, lru: c}, nil
}

// Get returns the page containing fileSize-bounded offset off, reading it
// from r on a cache miss. The returned slice must not be modified by the
// caller: it is shared with the cache.
func (c *Cache) Get(r io.ReaderAt, off uint32, fileSize uint32) ([]byte, uint32, error) {
	page := off / c.pageSize
	base := page * c.pageSize

	if v, ok := c.lru.Get(page); ok {
		return v.([]byte), base, nil
	}

	end := base + c.pageSize
	if end > fileSize {
		end = fileSize
	}
	buf := make([]byte, end-base)
	if _, err := r.ReadAt(buf, int64(base)); err != nil && err != io.EOF {
		return nil, 0, err
	}
	c.lru.Add(page, buf)
	return buf, base, nil
}

// PageSize returns the fixed page size this cache was created with.
func (c *Cache) PageSize() uint32 {
	return c.pageSize
}
