package sink

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixer_Write(t *testing.T) {
	out := bytes.NewBuffer(nil)
	prefixer := NewPrefixer(out, "job-42")

	n, err := prefixer.Write([]byte("first line of the output\n"))
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = prefixer.Write([]byte("second line\nthird line\n"))
	require.NoError(t, err)
	assert.Equal(t, 23, n)

	assert.Equal(t, "{job-42} first line of the output\n{job-42} second line\n{job-42} third line\n", out.String())
}

func TestPrefixer_WritePartialLines(t *testing.T) {
	out := bytes.NewBuffer(nil)
	prefixer := NewPrefixer(out, "job-42")

	_, err := prefixer.Write([]byte("compiling"))
	require.NoError(t, err)
	assert.Empty(t, out.String(), "incomplete line kept")
	_, err = prefixer.Write([]byte("... done\nlinking"))
	require.NoError(t, err)
	assert.Equal(t, "{job-42} compiling... done\n", out.String())
	_, err = prefixer.Write([]byte("\n"))
	require.NoError(t, err)

	assert.Equal(t, "{job-42} compiling... done\n{job-42} linking\n", out.String())

	n, err := prefixer.Write(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPrefixer_Flush(t *testing.T) {
	out := bytes.NewBuffer(nil)
	prefixer := NewPrefixer(out, "job-42")
	require.NoError(t, prefixer.Flush(), "nothing to flush")
	assert.Empty(t, out.String())

	_, err := prefixer.Write([]byte("line\nno newline"))
	require.NoError(t, err)
	require.NoError(t, prefixer.Flush())
	require.NoError(t, prefixer.Flush())
	assert.Equal(t, "{job-42} line\n{job-42} no newline\n", out.String())
}

func TestPrefixer_ConcurrentJobsInterleaveByLines(t *testing.T) {
	out := NewWriter(bytes.NewBuffer(nil))
	buf := out.out.(*bytes.Buffer)
	a, b := NewPrefixer(out, "a"), NewPrefixer(out, "b")

	for _, w := range []struct {
		p    *Prefixer
		data string
	}{{a, "ab"}, {b, "xy"}, {a, "c\n"}, {b, "z\nq"}} {
		_, err := w.p.Write([]byte(w.data))
		require.NoError(t, err)
	}
	require.NoError(t, b.Flush())
	assert.Equal(t, "{a} abc\n{b} xyz\n{b} q\n", buf.String())
}

func TestPrefixer_WriteError(t *testing.T) {
	prefixer := NewPrefixer(failingWriter{}, "job-42")
	_, err := prefixer.Write([]byte("line\n"))
	assert.EqualError(t, err, "disk full")
}

func Test_prefixForID(t *testing.T) {
	assert.Equal(t, []byte("{42} "), prefixForID("42"))
	assert.Equal(t, []byte("{job-42} "), prefixForID("job-42"))
	assert.Equal(t, []byte("{0123456789abcdef...} "), prefixForID("0123456789abcdef0123"))
}
