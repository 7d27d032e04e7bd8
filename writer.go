package cdb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxUint32 = uint32(0xffffffff)

// hashPos is a writer-only, in-memory record of one key's hash and the
// record offset it was written at, accumulated per bucket (hash & 0xff)
// until Finish lays out the on-disk subtables.
type hashPos struct {
	hash uint32
	pos  uint32
}

// Maker builds a cdb file's bytes into an already-open, writable file. It
// does not handle atomic publishing; see Writer for that.
type Maker struct {
	w       *bufio.Writer
	f       *os.File
	entries [256][]hashPos
	pos     uint32
}

// NewMaker writes a 2048-byte header placeholder into f (seeking to 0
// first) and returns a Maker ready to accept records via Add.
func NewMaker(f *os.File) (*Maker, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(make([]byte, headerSize)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return &Maker{w: w, f: f, pos: headerSize}, nil
}

func (m *Maker) posPlus(n uint32) error {
	if m.pos+n < m.pos {
		return ErrTooBig
	}
	m.pos += n
	return nil
}

// Add appends a record to the database. Records are written in the order
// Add is called, which is also the order Iter later yields them in.
func (m *Maker) Add(key, value []byte) error {
	if uint64(len(key)) >= uint64(maxUint32) || uint64(len(value)) >= uint64(maxUint32) {
		return ErrTooBig
	}
	klen, vlen := uint32(len(key)), uint32(len(value))

	var hdr [8]byte
	PackPair(hdr[:], klen, vlen)
	if _, err := m.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := m.w.Write(key); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := m.w.Write(value); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	h := Hash(key)
	recPos := m.pos
	if err := m.posPlus(8); err != nil {
		return err
	}
	if err := m.posPlus(klen); err != nil {
		return err
	}
	if err := m.posPlus(vlen); err != nil {
		return err
	}
	m.entries[h&0xff] = append(m.entries[h&0xff], hashPos{hash: h, pos: recPos})
	return nil
}

// Finish lays out the 256 subtables after the data section, then rewrites
// the header to point at them, and flushes everything to f.
func (m *Maker) Finish() error {
	maxSlots := uint32(1)
	total := uint64(0)
	for _, e := range m.entries {
		if n := uint32(len(e)) * 2; n > maxSlots {
			maxSlots = n
		}
		total += uint64(len(e))
	}
	if uint64(maxSlots)+total > (uint64(maxUint32)+1)/8 {
		return ErrTooBig
	}

	scratch := make([]hashPos, maxSlots)
	var header [2048]byte
	var buf [8]byte

	for i := 0; i < 256; i++ {
		entries := m.entries[i]
		slots := uint32(len(entries)) * 2
		PackPair(header[i*8:i*8+8], m.pos, slots)
		if slots == 0 {
			continue
		}

		table := scratch[:slots]
		for _, e := range entries {
			w := (e.hash >> 8) % slots
			for table[w].pos != 0 {
				w++
				if w == slots {
					w = 0
				}
			}
			table[w] = e
		}

		for j := range table {
			PackPair(buf[:], table[j].hash, table[j].pos)
			if _, err := m.w.Write(buf[:]); err != nil {
				return fmt.Errorf("%w: %v", ErrIO, err)
			}
			if err := m.posPlus(8); err != nil {
				return err
			}
			table[j] = hashPos{}
		}
	}

	if err := m.w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := m.f.Seek(0, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := m.f.Write(header[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := m.f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// SetPermissions changes the mode of the underlying file, before Finish.
func (m *Maker) SetPermissions(mode os.FileMode) error {
	if err := m.f.Chmod(mode); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// Writer builds a cdb file safely: records are streamed into a sibling
// temp file, and Finish publishes it atomically by renaming it over the
// destination. If Close is called without a successful Finish, the temp
// file is removed; the destination is never touched before Finish's rename.
// A process that exits without calling Close leaves the temp file behind.
type Writer struct {
	dst     string
	tmp     string
	f       *os.File
	maker   *Maker
	done    bool
	aborted bool
}

// Create opens dst for safe writing, using the default ".tmp" suffix for
// the sibling temp file.
func Create(dst string) (*Writer, error) {
	return CreateWithSuffix(dst, ".tmp")
}

// CreateWithSuffix opens dst for safe writing. The temp file name is
// derived by appending suffix to dst's existing extension (foo.cdb ->
// foo.cdb.tmp); if dst has no extension, suffix becomes the new extension
// with its leading dot stripped (foo -> foo.tmp, not foo..tmp).
func CreateWithSuffix(dst, suffix string) (*Writer, error) {
	ext := filepath.Ext(dst)
	var tmp string
	if ext == "" {
		tmp = dst + "." + strings.TrimPrefix(suffix, ".")
	} else {
		tmp = dst + suffix
	}
	return CreateWithNames(dst, tmp)
}

// CreateWithNames opens dst for safe writing using an explicit temp file
// name. tmp must be on the same filesystem as dst, or Finish's rename will
// fail.
func CreateWithNames(dst, tmp string) (*Writer, error) {
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	m, err := NewMaker(f)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}
	return &Writer{dst: dst, tmp: tmp, f: f, maker: m}, nil
}

// Add appends a record to the database under construction.
func (w *Writer) Add(key, value []byte) error {
	return w.maker.Add(key, value)
}

// SetPermissions changes the mode of the temp file. Must be called before
// Finish.
func (w *Writer) SetPermissions(mode os.FileMode) error {
	return w.maker.SetPermissions(mode)
}

// Finish finalizes the database and atomically renames the temp file over
// dst. After Finish returns successfully, Close is a no-op.
func (w *Writer) Finish() error {
	if err := w.maker.Finish(); err != nil {
		return err
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := os.Rename(w.tmp, w.dst); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	w.done = true
	return nil
}

// Close abandons the write if Finish was never called, deleting the temp
// file on a best-effort basis. It is safe to call unconditionally (e.g. via
// defer) after a successful Finish.
func (w *Writer) Close() error {
	if w.done || w.aborted {
		return nil
	}
	w.aborted = true
	w.f.Close()
	os.Remove(w.tmp)
	return nil
}
