// Command cdbdump writes the contents of a cdb file to stdout in the
// classic cdbmake-compatible text format: "+klen,vlen:key->value\n" per
// record, followed by a trailing blank line.
//
// It is a trivial consumer of the cdb package: it only calls Open (or
// OpenCached, with --cached) and Iter.
// All format knowledge lives in the library, not here.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/coredb/cdb"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: cdbdump <file.cdb>\n")
		pflag.PrintDefaults()
	}
	cached := pflag.Bool("cached", false, "use the page-cache backend instead of mmap")
	cacheSize := pflag.Int("cache-size", 256, "number of pages to cache, if --cached is set")
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	if err := run(pflag.Arg(0), *cached, *cacheSize, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "cdbdump: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, cached bool, cacheSize int, out *os.File) error {
	var r *cdb.Reader
	var err error
	if cached {
		r, err = cdb.OpenCached(path, cacheSize)
	} else {
		r, err = cdb.Open(path)
	}
	if err != nil {
		return err
	}
	defer r.Close()

	w := bufio.NewWriter(out)
	defer w.Flush()

	it := r.Iter()
	for {
		key, value, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if _, err := fmt.Fprintf(w, "+%d,%d:", len(key), len(value)); err != nil {
			return err
		}
		if _, err := w.Write(key); err != nil {
			return err
		}
		if _, err := w.WriteString("->"); err != nil {
			return err
		}
		if _, err := w.Write(value); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	_, err = w.WriteString("\n")
	return err
}
