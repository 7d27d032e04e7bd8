// Package cdb reads and writes cdb ("constant database") files.
//
// A cdb is an immutable, on-disk associative array mapping byte-string keys
// to byte-string values. Keys may repeat; all values for a key are
// recoverable via Find, in the order the subtable probe visits them, which
// is insertion order only when no collision reorders them. Iter yields every
// record in insertion order. Lookups and sequential iteration
// are both bounds-checked against the underlying file, so a truncated or
// corrupt file yields errors rather than panics.
//
// See the original cdb specification and C implementation by D. J. Bernstein
// at http://cr.yp.to/cdb.html.
//
// Building a database:
//
//	w, err := cdb.Create("temporary.cdb")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := w.Add([]byte("one"), []byte("Hello, ")); err != nil {
//		log.Fatal(err)
//	}
//	if err := w.Finish(); err != nil {
//		log.Fatal(err)
//	}
//
// Reading one back:
//
//	r, err := cdb.Open("temporary.cdb")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//	v, ok, err := r.Get([]byte("one"))
package cdb
