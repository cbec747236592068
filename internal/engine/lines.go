package engine

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// lineReader yields newline-delimited lines. Lines longer than max are
// reported as too long and their bytes are discarded while reading, so
// memory stays bounded by max.
type lineReader struct {
	r   *bufio.Reader
	max int
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, min(64*1024, max+2)), max: max}
}

// next returns the next line without its "\n" or "\r\n" terminator and
// whether it exceeded max. It returns io.EOF after the last line.
func (lr *lineReader) next() (string, bool, error) {
	var (
		buf     []byte
		read    bool
		tooLong bool
	)
	for {
		frag, err := lr.r.ReadSlice('\n')
		read = read || len(frag) > 0
		if !tooLong {
			buf = append(buf, frag...)
			// Two bytes of slack for the terminator.
			if len(buf) > lr.max+2 {
				tooLong, buf = true, nil
			}
		}

		switch {
		case err == nil:
			return lr.finish(buf, tooLong)
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if !read {
				return "", false, io.EOF
			}
			return lr.finish(buf, tooLong)
		default:
			return "", false, err
		}
	}
}

func (lr *lineReader) finish(buf []byte, tooLong bool) (string, bool, error) {
	line := strings.TrimSuffix(strings.TrimSuffix(string(buf), "\n"), "\r")
	if tooLong || len(line) > lr.max {
		return "", true, nil
	}
	return line, false, nil
}
