// Command cdbshell is an interactive REPL for looking up keys in a cdb
// file. It is a thin consumer of the cdb package: `get`/`find` delegate
// directly to Reader.Get/Find, and `count` drives Reader.Iter.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"github.com/coredb/cdb"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: cdbshell <file.cdb>\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	r, err := cdb.Open(pflag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "cdbshell: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	if err := repl(r, os.Stdout); err != nil && err != io.EOF {
		fmt.Fprintf(os.Stderr, "cdbshell: %v\n", err)
		os.Exit(1)
	}
}

func repl(r *cdb.Reader, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("cdb> ")
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fields := strings.SplitN(input, " ", 2)
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "count":
			n, err := count(r)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "%d records\n", n)
		case "get":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: get <key>")
				continue
			}
			v, ok, err := r.Get([]byte(fields[1]))
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else if !ok {
				fmt.Fprintln(out, "(not found)")
			} else {
				fmt.Fprintf(out, "%s\n", v)
			}
		case "find":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: find <key>")
				continue
			}
			it := r.Find([]byte(fields[1]))
			n := 0
			for {
				v, ok, err := it.Next()
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					break
				}
				if !ok {
					break
				}
				fmt.Fprintf(out, "%s\n", v)
				n++
			}
			if n == 0 {
				fmt.Fprintln(out, "(not found)")
			}
		default:
			fmt.Fprintf(out, "unknown command %q (try get, find, count, quit)\n", fields[0])
		}
	}
}

func count(r *cdb.Reader) (int, error) {
	n := 0
	it := r.Iter()
	for {
		_, _, ok, err := it.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}
