package stream

import (
	"errors"
	"io"
)

const readBufferSize = 4 * 1024

// ErrStopped is returned by a handler to end reading early without error.
var ErrStopped = errors.New("stream stopped")

// Handler receives events in arrival order.
type Handler func(ev Event) error

// ReadAll pumps r through a fresh Parser until the terminator, EOF or an
// error. Every event derived from one read is handled before the next read
// is issued. It returns true when the terminator was reached.
func ReadAll(r io.Reader, handle Handler) (bool, error) {
	p := NewParser()
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range p.Feed(buf[:n]) {
				if herr := handle(ev); herr != nil {
					if errors.Is(herr, ErrStopped) {
						return p.Done(), nil
					}
					return p.Done(), herr
				}
			}
			if p.Done() {
				return true, nil
			}
		}
		if err == io.EOF {
			for _, ev := range p.Flush() {
				if herr := handle(ev); herr != nil && !errors.Is(herr, ErrStopped) {
					return p.Done(), herr
				}
			}
			return p.Done(), nil
		}
		if err != nil {
			return p.Done(), err
		}
	}
}
