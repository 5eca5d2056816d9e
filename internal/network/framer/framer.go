package framer

import (
	"bufio"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

// LineReader 按 '\n' 切分字节流，每次返回一行（不含行尾的 "\n" 或 "\r\n"）。
//
// 约定：
//   - 单行（含换行符）长度超过 MaxLineBytes 时返回 merr.ErrProtocolLineTooLong。
//   - 对端关闭前留下的不完整末行照常返回，下一次调用返回 io.EOF。
type LineReader struct {
	r   *bufio.Reader
	max int
}

const (
	// DefaultMaxLineBytes 为未配置时的单行上限。
	DefaultMaxLineBytes = 64 * 1024
	// MinLineBytes 与 bufio 的最小缓冲区一致。
	MinLineBytes = 16
)

// NewLineReader 创建行读取器，maxLineBytes <= 0 时使用默认值。
func NewLineReader(r io.Reader, maxLineBytes int) *LineReader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	if maxLineBytes < MinLineBytes {
		maxLineBytes = MinLineBytes
	}
	return &LineReader{
		r:   bufio.NewReaderSize(r, maxLineBytes),
		max: maxLineBytes,
	}
}

// ReadLine 读取下一行。
func (lr *LineReader) ReadLine() (string, error) {
	raw, err := lr.r.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		return "", merr.WrapErrProtocolLineTooLong(lr.max)
	case errors.Is(err, io.EOF):
		if len(raw) == 0 {
			return "", io.EOF
		}
	default:
		return "", err
	}
	return trimEOL(string(raw)), nil
}

// MaxLineBytes 返回单行上限。
func (lr *LineReader) MaxLineBytes() int {
	return lr.max
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// WriteLine 将 line 以 '\n' 结尾写入 w，line 已带换行时不重复追加。
func WriteLine(w io.Writer, line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	_, err := io.WriteString(w, line)
	return err
}
