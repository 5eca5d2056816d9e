package framer

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

func TestLineReader(t *testing.T) {
	lr := NewLineReader(strings.NewReader("/1\nhello\r\n\nlast"), 0)
	assert.Equal(t, DefaultMaxLineBytes, lr.MaxLineBytes())

	for _, want := range []string{"/1", "hello", "", "last"} {
		line, err := lr.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}

	_, err := lr.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	_, err = lr.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReaderEmptyStream(t *testing.T) {
	lr := NewLineReader(strings.NewReader(""), 32)
	_, err := lr.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReaderTooLong(t *testing.T) {
	lr := NewLineReader(strings.NewReader(strings.Repeat("a", 64)+"\n"), 32)
	_, err := lr.ReadLine()
	assert.ErrorIs(t, err, merr.ErrProtocolLineTooLong)
	assert.True(t, merr.IsProtocolErr(err))
}

func TestLineReaderMinimum(t *testing.T) {
	lr := NewLineReader(strings.NewReader("abc\n"), 1)
	assert.Equal(t, MinLineBytes, lr.MaxLineBytes())
	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "abc", line)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("mock read failure") }

func TestLineReaderTransportError(t *testing.T) {
	lr := NewLineReader(failingReader{}, 0)
	_, err := lr.ReadLine()
	assert.EqualError(t, err, "mock read failure")
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, "16"))
	require.NoError(t, WriteLine(&buf, "hi\n"))
	require.NoError(t, WriteLine(&buf, ""))
	assert.Equal(t, "16\nhi\n\n", buf.String())
}
