package chunked

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is wrapped by every framing error of a chunked body.
var ErrMalformed = errors.New("malformed chunked encoding")

// NewReader decodes a chunked body read from r. Chunk extensions and the
// trailer are skipped.
func NewReader(r io.Reader) io.Reader {
	var br *bufio.Reader
	if v, ok := r.(*bufio.Reader); ok {
		br = v
	} else {
		br = bufio.NewReader(r)
	}
	return &chunkedReader{Reader: br}
}

type chunkedReader struct {
	*bufio.Reader
	currentChunk                   io.Reader
	currentCount, currentChunkSize int64
	eof                            bool
}

func (c *chunkedReader) readChunkHeader() (len uint64, err error) {
	cnt := 0
	isPref := true
	ext := false
	for isPref {
		var line []byte
		line, isPref, err = c.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		for _, b := range line {
			if ext || b == ';' { // chunk extensions are ignored
				ext = true
				continue
			}
			cnt++
			switch {
			case '0' <= b && b <= '9':
				b = b - '0'
			case 'a' <= b && b <= 'f':
				b = b - 'a' + 10
			case 'A' <= b && b <= 'F':
				b = b - 'A' + 10
			default:
				return 0, fmt.Errorf("%w: invalid byte in chunk length", ErrMalformed)
			}
			len <<= 4
			len |= uint64(b)
		}
		if cnt >= 16 {
			return 0, fmt.Errorf("%w: chunk length too large", ErrMalformed)
		}
	}
	if cnt == 0 {
		return 0, fmt.Errorf("%w: empty chunk length", ErrMalformed)
	}
	return
}

// skipTrailer consumes the trailer section up to the final empty line.
func (c *chunkedReader) skipTrailer() error {
	for {
		line, _, err := c.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
}

func (c *chunkedReader) Read(p []byte) (n int, err error) {
	if c.eof {
		return 0, io.EOF
	}
	if c.currentChunk == nil {
		l, err := c.readChunkHeader()
		if err != nil {
			return n, err
		}
		if l == 0 {
			if err := c.skipTrailer(); err != nil {
				return 0, err
			}
			c.eof = true
			return 0, io.EOF
		}
		c.currentChunk = io.LimitReader(c.Reader, int64(l))
		c.currentChunkSize = int64(l)
	}
	n, err = c.currentChunk.Read(p)
	c.currentCount += int64(n)
	if err == nil && c.currentCount == c.currentChunkSize {
		err = io.EOF
	}
	if err == io.EOF {
		if c.currentCount != c.currentChunkSize {
			return n, io.ErrUnexpectedEOF
		}
		err = nil
		dr, _ := c.Reader.ReadByte()
		dn, err := c.Reader.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return n, err
		}
		if dr != '\r' || dn != '\n' {
			return n, fmt.Errorf("%w: missing CRLF after chunk data", ErrMalformed)
		}
		c.currentChunk = nil
		c.currentCount = 0
	}
	return
}
