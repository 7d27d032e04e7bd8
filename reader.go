package cdb

import (
	"bytes"
	"fmt"
)

const headerSize = uint32(256 * 8)

// matchWindow bounds the per-comparison buffer used while checking a
// candidate key against the probed record, so matching a key never
// allocates proportional to the key's own length beyond the caller's slice.
const matchWindow = 32

// Reader is an open, read-only cdb file. It is immutable and safe for
// concurrent use by multiple goroutines, except that a single *ValueIter or
// *KeyValueIter must not be driven from more than one goroutine at a time.
type Reader struct {
	back randomReaderAt
}

// Open opens the named file read-only and memory-maps it.
func Open(path string) (*Reader, error) {
	b, err := newMmapBackend(path)
	if err != nil {
		return nil, fmt.Errorf("cdb: open %s: %w", path, err)
	}
	if b.Size() < 2048 {
		b.Close()
		return nil, fmt.Errorf("cdb: open %s: %w", path, ErrBadFormat)
	}
	return &Reader{back: b}, nil
}

// OpenCached opens the named file read-only without mapping it, instead
// serving reads through a bounded LRU page cache holding up to cacheSize
// pages. Use this when mmap is unavailable or undesirable.
func OpenCached(path string, cacheSize int) (*Reader, error) {
	b, err := newCachedBackend(path, cacheSize)
	if err != nil {
		return nil, fmt.Errorf("cdb: open %s: %w", path, err)
	}
	if b.Size() < 2048 {
		b.Close()
		return nil, fmt.Errorf("cdb: open %s: %w", path, ErrBadFormat)
	}
	return &Reader{back: b}, nil
}

// NewReader builds a Reader over an already-open random-access source of
// known size, e.g. a bytes.Reader in tests. The caller retains ownership of
// r; Close on the returned Reader is a no-op.
func NewReader(r ioReaderAt, size uint32) *Reader {
	return &Reader{back: &readerAtBackend{r: r, size: size}}
}

// Close releases the reader's backing mapping or file handle.
func (r *Reader) Close() error {
	return r.back.Close()
}

func (r *Reader) readNums(pos uint32) (uint32, uint32, error) {
	var buf [8]byte
	if err := r.back.ReadAt(buf[:], pos); err != nil {
		return 0, 0, err
	}
	a, b := UnpackPair(buf[:])
	return a, b, nil
}

func (r *Reader) hashTable(h uint32) (hpos, hslots uint32, err error) {
	hpos, hslots, err = r.readNums((h & 0xff) << 3)
	return
}

// match reports whether the klen bytes at pos equal key.
func (r *Reader) match(key []byte, pos uint32) (bool, error) {
	var buf [matchWindow]byte
	remaining := key
	for len(remaining) > 0 {
		n := len(remaining)
		if n > matchWindow {
			n = matchWindow
		}
		if err := r.back.ReadAt(buf[:n], pos); err != nil {
			return false, err
		}
		if !bytes.Equal(buf[:n], remaining[:n]) {
			return false, nil
		}
		pos += uint32(n)
		remaining = remaining[n:]
	}
	return true, nil
}

// Get returns the first value stored for key, if any.
func (r *Reader) Get(key []byte) ([]byte, bool, error) {
	return r.Find(key).Next()
}

// Exists reports whether at least one value is stored for key.
func (r *Reader) Exists(key []byte) (bool, error) {
	_, ok, err := r.Find(key).Next()
	return ok, err
}

// Find returns an iterator over every value stored for key, in the order
// the open-addressing probe visits them (which matches insertion order only
// when no collision in that key's subtable reorders it).
func (r *Reader) Find(key []byte) *ValueIter {
	it := &ValueIter{r: r, key: key}
	it.khash = Hash(key)
	it.hpos, it.hslots, it.err = r.hashTable(it.khash)
	if it.err != nil {
		return it
	}
	if it.hslots == 0 {
		it.done = true
		return it
	}
	slot0 := (it.khash >> 8) % it.hslots
	it.kpos = it.hpos + (slot0 << 3)
	return it
}

// ValueIter iterates over the values stored for one key. It carries all
// probe state itself; advancing one iterator never affects another.
type ValueIter struct {
	r    *Reader
	key  []byte
	done bool
	err  error

	khash  uint32
	kloop  uint32
	kpos   uint32
	hpos   uint32
	hslots uint32
}

// Next returns the next value for this iterator's key, or ok == false when
// exhausted. Once an error has been returned, subsequent calls keep
// returning ok == false, err == nil.
func (it *ValueIter) Next() ([]byte, bool, error) {
	if it.done {
		return nil, false, nil
	}
	if it.err != nil {
		err := it.err
		it.err = nil
		it.done = true
		return nil, false, err
	}
	for it.kloop < it.hslots {
		slotHash, recPos, err := it.r.readNums(it.kpos)
		if err != nil {
			it.done = true
			return nil, false, err
		}
		if recPos == 0 {
			it.done = true
			return nil, false, nil
		}
		it.kloop++
		it.kpos += 8
		if it.kpos == it.hpos+(it.hslots<<3) {
			it.kpos = it.hpos
		}
		if slotHash != it.khash {
			continue
		}
		klen, vlen, err := it.r.readNums(recPos)
		if err != nil {
			it.done = true
			return nil, false, err
		}
		if klen != uint32(len(it.key)) {
			continue
		}
		ok, err := it.r.match(it.key, recPos+8)
		if err != nil {
			it.done = true
			return nil, false, err
		}
		if !ok {
			continue
		}
		value := make([]byte, vlen)
		if err := it.r.back.ReadAt(value, recPos+8+klen); err != nil {
			it.done = true
			return nil, false, err
		}
		return value, true, nil
	}
	it.done = true
	return nil, false, nil
}

// Iter returns an iterator over every (key, value) pair in the database, in
// insertion order.
func (r *Reader) Iter() *KeyValueIter {
	dataEnd, _, err := r.readNums(0)
	if err != nil {
		return &KeyValueIter{r: r, done: true, err: err}
	}
	if dataEnd > r.back.Size() {
		dataEnd = r.back.Size()
	}
	return &KeyValueIter{r: r, pos: headerSize, dataEnd: dataEnd}
}

// KeyValueIter iterates over every record in a cdb, in insertion order.
type KeyValueIter struct {
	r       *Reader
	pos     uint32
	dataEnd uint32
	done    bool
	err     error
}

// Next returns the next (key, value) pair, or ok == false when exhausted.
func (it *KeyValueIter) Next() ([]byte, []byte, bool, error) {
	if it.done {
		return nil, nil, false, nil
	}
	if it.err != nil {
		err := it.err
		it.err = nil
		it.done = true
		return nil, nil, false, err
	}
	if it.pos+8 >= it.dataEnd {
		it.done = true
		return nil, nil, false, nil
	}
	klen, vlen, err := it.r.readNums(it.pos)
	if err != nil {
		it.done = true
		return nil, nil, false, err
	}
	end := saturatingAdd3(it.pos, 8, klen, vlen)
	if end > it.dataEnd {
		it.done = true
		return nil, nil, false, ErrBadFormat
	}
	key := make([]byte, klen)
	if err := it.r.back.ReadAt(key, it.pos+8); err != nil {
		it.done = true
		return nil, nil, false, err
	}
	value := make([]byte, vlen)
	if err := it.r.back.ReadAt(value, it.pos+8+klen); err != nil {
		it.done = true
		return nil, nil, false, err
	}
	it.pos = end
	return key, value, true, nil
}

func saturatingAdd3(a, b, c, d uint32) uint32 {
	sum := uint64(a) + uint64(b) + uint64(c) + uint64(d)
	if sum > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sum)
}
