package cdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFile(t *testing.T, path string, records [][2]string) {
	t.Helper()
	w, err := Create(path)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Add([]byte(r[0]), []byte(r[1])))
	}
	require.NoError(t, w.Finish())
}

// A single key with two values is returned in insertion order, and a
// missing key reports no match.
func TestWriterSingleKeyMultipleValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.cdb")
	buildFile(t, path, [][2]string{
		{"one", "Hello"},
		{"one", ", World!"},
	})

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	it := r.Find([]byte("one"))
	v1, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hello", string(v1))

	v2, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ", World!", string(v2))

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := r.Get([]byte("one"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hello", string(v))

	_, ok, err = r.Find([]byte("two")).Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

// A key longer than the 32-byte match window is still matched correctly.
func TestWriterLongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.cdb")
	longKey := "this key will be split across two reads"
	buildFile(t, path, [][2]string{
		{longKey, "Got it."},
		{"short", "value"},
	})

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	v, ok, err := r.Find([]byte(longKey)).Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Got it.", string(v))
}

// An empty database iterates and looks up cleanly with no matches.
func TestWriterEmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.cdb")
	buildFile(t, path, nil)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	count := 0
	it := r.Iter()
	for {
		_, _, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 0, count)

	_, ok, err := r.Find([]byte("anything")).Next()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = r.Get([]byte("anything"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// Iteration yields records in insertion order, including a duplicate key.
func TestWriterInsertionOrderIteration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.cdb")
	records := [][2]string{
		{"a", "1"},
		{"b", "2"},
		{"a", "3"},
		{"c", "4"},
	}
	buildFile(t, path, records)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	it := r.Iter()
	var got [][2]string
	for {
		k, v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, [2]string{string(k), string(v)})
	}
	assert.Equal(t, records, got)
}

// Closing a Writer without calling Finish leaves neither the destination
// nor the temp file behind.
func TestWriterAbandonment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.cdb")

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Add([]byte("k"), []byte("v")))
	require.NoError(t, w.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

// A pre-existing destination with sentinel contents is fully replaced,
// and no sentinel bytes survive.
func TestWriterAtomicReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.cdb")
	require.NoError(t, os.WriteFile(path, []byte("sentinel-not-a-cdb-file"), 0o644))

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Add([]byte("k"), []byte("v")))
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	v, ok, err := r.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriterCloseAfterFinishIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.cdb")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Add([]byte("k"), []byte("v")))
	require.NoError(t, w.Finish())
	assert.NoError(t, w.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriterTempPathSuffixPolicy(t *testing.T) {
	dir := t.TempDir()

	withExt := filepath.Join(dir, "foo.cdb")
	w1, err := Create(withExt)
	require.NoError(t, err)
	assert.Equal(t, withExt+".tmp", w1.tmp)
	require.NoError(t, w1.Close())

	noExt := filepath.Join(dir, "foo")
	w2, err := Create(noExt)
	require.NoError(t, err)
	assert.Equal(t, noExt+".tmp", w2.tmp)
	assert.NotEqual(t, noExt+"..tmp", w2.tmp)
	require.NoError(t, w2.Close())
}

func TestMakerRejectsPositionOverflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.cdb")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := NewMaker(f)
	require.NoError(t, err)

	m.pos = maxUint32 - 4
	err = m.Add([]byte("k"), []byte("v"))
	assert.ErrorIs(t, err, ErrTooBig)
}

// Stability - rebuilding a file from another file's own iteration order
// reproduces it byte for byte, since both the data section and the
// subtable layout are fully determined by insertion order and count.
func TestWriterRebuildIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "original.cdb")
	records := [][2]string{
		{"alpha", "1"},
		{"beta", "22"},
		{"alpha", "333"},
		{"gamma", "4444"},
		{"delta", ""},
	}
	buildFile(t, original, records)

	r, err := Open(original)
	require.NoError(t, err)

	var replayed [][2]string
	it := r.Iter()
	for {
		k, v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		replayed = append(replayed, [2]string{string(k), string(v)})
	}
	require.NoError(t, r.Close())

	rebuilt := filepath.Join(dir, "rebuilt.cdb")
	buildFile(t, rebuilt, replayed)

	originalBytes, err := os.ReadFile(original)
	require.NoError(t, err)
	rebuiltBytes, err := os.ReadFile(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, originalBytes, rebuiltBytes)
}

func TestWriterLookupCompletenessMultiValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.cdb")
	records := [][2]string{
		{"two", "2"},
		{"two", "22"},
		{"three", "3"},
		{"three", "33"},
		{"three", "333"},
	}
	buildFile(t, path, records)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	want := map[string][]string{}
	for _, rec := range records {
		want[rec[0]] = append(want[rec[0]], rec[1])
	}
	for key, values := range want {
		it := r.Find([]byte(key))
		var got []string
		for {
			v, ok, err := it.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			got = append(got, string(v))
		}
		assert.ElementsMatch(t, values, got)
	}
}
