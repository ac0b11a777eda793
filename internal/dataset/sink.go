package dataset

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/park285/position-analyzer/internal/domain"
)

// Sink appends one JSON document per line. Safe for concurrent use.
type Sink struct {
	mu  sync.Mutex
	w   io.Writer
	buf bytes.Buffer
	enc *json.Encoder
}

func NewSink(w io.Writer) *Sink {
	s := &Sink{w: w}
	s.enc = json.NewEncoder(&s.buf)
	s.enc.SetEscapeHTML(false)
	return s
}

// Write emits ex as a single line; a failed write drops the whole line.
func (s *Sink) Write(ex domain.TrainingExample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	if err := s.enc.Encode(ex); err != nil {
		return err
	}
	_, err := s.w.Write(s.buf.Bytes())
	return err
}
