package cdb

import (
	"fmt"
	"os"

	"golang.org/x/exp/mmap"

	"github.com/coredb/cdb/internal/pagecache"
)

// defaultPageSize is the page-cache backend's cache granularity. It has no
// bearing on the cdb format itself; it only bounds how much of a file is
// resident in memory at once when mmap isn't used.
const defaultPageSize = 4096

// randomReaderAt is the internal seam between the reader's lookup/iteration
// logic and however bytes actually get off disk. Every implementation must
// return ErrBadFormat-flavored errors (or at least: never panic) when asked
// to read past Size().
type randomReaderAt interface {
	ReadAt(buf []byte, off uint32) error
	Size() uint32
	Close() error
}

// mmapBackend serves reads from a memory-mapped file.
type mmapBackend struct {
	r    *mmap.ReaderAt
	size uint32
}

func newMmapBackend(path string) (*mmapBackend, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if r.Len() < 0 || r.Len() > int(^uint32(0)) {
		r.Close()
		return nil, ErrBadFormat
	}
	return &mmapBackend{r: r, size: uint32(r.Len())}, nil
}

func (b *mmapBackend) Size() uint32 { return b.size }

func (b *mmapBackend) ReadAt(buf []byte, off uint32) error {
	if uint64(off)+uint64(len(buf)) > uint64(b.size) {
		return ErrBadFormat
	}
	_, err := b.r.ReadAt(buf, int64(off))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (b *mmapBackend) Close() error {
	return b.r.Close()
}

// cachedBackend serves reads from a plain *os.File through a bounded LRU
// page cache, for callers who don't want (or can't use) mmap.
type cachedBackend struct {
	f     *os.File
	size  uint32
	cache *pagecache.Cache
}

func newCachedBackend(path string, cacheSize int) (*cachedBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if st.Size() < 0 || st.Size() > int64(^uint32(0)) {
		f.Close()
		return nil, ErrBadFormat
	}
	cache, err := pagecache.New(cacheSize, defaultPageSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &cachedBackend{f: f, size: uint32(st.Size()), cache: cache}, nil
}

func (b *cachedBackend) Size() uint32 { return b.size }

func (b *cachedBackend) ReadAt(buf []byte, off uint32) error {
	if uint64(off)+uint64(len(buf)) > uint64(b.size) {
		return ErrBadFormat
	}
	want := buf
	pos := off
	for len(want) > 0 {
		page, base, err := b.cache.Get(b.f, pos, b.size)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		skip := pos - base
		if skip >= uint32(len(page)) {
			return ErrBadFormat
		}
		n := copy(want, page[skip:])
		if n == 0 {
			return ErrBadFormat
		}
		want = want[n:]
		pos += uint32(n)
	}
	return nil
}

func (b *cachedBackend) Close() error {
	return b.f.Close()
}

// readerAtBackend adapts an arbitrary io.ReaderAt of known size, used by
// NewReader for in-memory or otherwise externally managed sources (tests,
// embedded data, etc).
type readerAtBackend struct {
	r    ioReaderAt
	size uint32
}

// ioReaderAt is the subset of io.ReaderAt this package needs; declared
// locally so reader_backend.go doesn't have to import io just for this.
type ioReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

func (b *readerAtBackend) Size() uint32 { return b.size }

func (b *readerAtBackend) ReadAt(buf []byte, off uint32) error {
	if uint64(off)+uint64(len(buf)) > uint64(b.size) {
		return ErrBadFormat
	}
	_, err := b.r.ReadAt(buf, int64(off))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

func (b *readerAtBackend) Close() error { return nil }
