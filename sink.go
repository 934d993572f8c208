package rowparse

import "sync"

// Sink receives decoded rows in input order. Ownership of a row passes to
// the sink when Emit is called.
type Sink interface {
	Emit(row Row) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(row Row) error

// Emit implements Sink.
func (f SinkFunc) Emit(row Row) error {
	return f(row)
}

// SliceSink collects rows in memory. It is safe for concurrent use, though
// rows from different goroutines interleave in arrival order.
type SliceSink struct {
	mu   sync.Mutex
	rows []Row
}

// Emit implements Sink.
func (s *SliceSink) Emit(row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

// Rows returns the collected rows.
func (s *SliceSink) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}
