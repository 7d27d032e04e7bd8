// Command cdbmake builds a cdb file from either the classic cdbmake text
// format read from stdin ("+klen,vlen:key->value\n" per record, terminated
// by a blank line — the same format cdbdump emits) or a YAML manifest of
// key/value pairs.
//
// Like cdbdump, this is a thin consumer of the cdb package: argument
// handling and input parsing live here, all format and atomicity logic
// lives in cdb.Writer.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/coredb/cdb"
)

// manifest is the YAML shape accepted by --manifest.
type manifest struct {
	Records []struct {
		Key   string `yaml:"key"`
		Value string `yaml:"value"`
	} `yaml:"records"`
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: cdbmake [--manifest file.yaml] <file.cdb>\n")
		pflag.PrintDefaults()
	}
	manifestPath := pflag.String("manifest", "", "load records from a YAML manifest instead of stdin")
	suffix := pflag.String("tmp-suffix", ".tmp", "suffix for the sibling temp file used during atomic publish")
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	var err error
	if *manifestPath != "" {
		err = runManifest(pflag.Arg(0), *manifestPath, *suffix)
	} else {
		err = runStdin(pflag.Arg(0), os.Stdin, *suffix)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cdbmake: %v\n", err)
		os.Exit(1)
	}
}

func runManifest(dst, manifestPath, suffix string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing %s: %w", manifestPath, err)
	}

	w, err := cdb.CreateWithSuffix(dst, suffix)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, rec := range m.Records {
		if err := w.Add([]byte(rec.Key), []byte(rec.Value)); err != nil {
			return err
		}
	}
	return w.Finish()
}

func runStdin(dst string, in io.Reader, suffix string) error {
	w, err := cdb.CreateWithSuffix(dst, suffix)
	if err != nil {
		return err
	}
	defer w.Close()

	r := bufio.NewReader(in)
	for {
		key, value, done, err := readRecord(r)
		if err != nil {
			return err
		}
		if done {
			break
		}
		if err := w.Add(key, value); err != nil {
			return err
		}
	}
	return w.Finish()
}

// readRecord parses one "+klen,vlen:key->value\n" line, or the blank line
// that terminates the stream (done == true).
func readRecord(r *bufio.Reader) (key, value []byte, done bool, err error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, nil, false, err
	}
	line = strings.TrimSuffix(line, "\n")
	if line == "" {
		return nil, nil, true, nil
	}
	if !strings.HasPrefix(line, "+") {
		return nil, nil, false, fmt.Errorf("malformed record: %q", line)
	}
	rest := line[1:]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return nil, nil, false, fmt.Errorf("malformed record: %q", line)
	}
	lens := strings.SplitN(rest[:colon], ",", 2)
	if len(lens) != 2 {
		return nil, nil, false, fmt.Errorf("malformed record: %q", line)
	}
	klen, err := strconv.Atoi(lens[0])
	if err != nil || klen < 0 {
		return nil, nil, false, fmt.Errorf("malformed record: %q", line)
	}
	vlen, err := strconv.Atoi(lens[1])
	if err != nil || vlen < 0 {
		return nil, nil, false, fmt.Errorf("malformed record: %q", line)
	}

	body := rest[colon+1:]
	if len(body) < klen+2 || body[klen:klen+2] != "->" || len(body) != klen+2+vlen {
		return nil, nil, false, fmt.Errorf("malformed record body: %q", line)
	}
	return []byte(body[:klen]), []byte(body[klen+2:]), false, nil
}
