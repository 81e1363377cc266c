package chunked

import (
	"io"
	"net/http"
	"strconv"
)

// Writer frames everything written to it as chunks of a chunked body.
// Close must be called to write the terminating chunk.
type Writer struct {
	wire io.Writer
	head []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{wire: w, head: make([]byte, 0, 18)}
}

// Write sends p as a single chunk. An empty p is not sent, it would read
// as the end of the body.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.head = strconv.AppendUint(w.head[:0], uint64(len(p)), 16)
	w.head = append(w.head, '\r', '\n')
	if _, err := w.wire.Write(w.head); err != nil {
		return 0, err
	}
	n, err := w.wire.Write(p)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, err
	}
	if _, err := io.WriteString(w.wire, "\r\n"); err != nil {
		return n, err
	}
	return n, nil
}

// Close writes the last chunk followed by trailer, which may be nil. The
// underlying writer is not closed.
func (w *Writer) Close(trailer http.Header) error {
	if _, err := io.WriteString(w.wire, "0\r\n"); err != nil {
		return err
	}
	if err := trailer.Write(w.wire); err != nil {
		return err
	}
	_, err := io.WriteString(w.wire, "\r\n")
	return err
}
