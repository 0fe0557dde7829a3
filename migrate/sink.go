package migrate

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"catmigrate/internal"
)

// LogSink receives human-readable status lines. Implementations must be safe
// for concurrent use; lines from one goroutine keep their order.
type LogSink interface {
	Append(line string)
}

// SinkFunc adapts a function to LogSink. The function must be safe for
// concurrent use.
type SinkFunc func(line string)

func (f SinkFunc) Append(line string) { f(line) }

// WriterSink writes one line per Append to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, strings.TrimRight(line, "\n"))
}

// MemorySink keeps every line in memory.
type MemorySink struct {
	mu    sync.Mutex
	lines []string
}

func (s *MemorySink) Append(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

// Lines returns a copy of the lines appended so far.
func (s *MemorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// SlogSink forwards lines to internal.Logger at info level.
type SlogSink struct{}

func (SlogSink) Append(line string) {
	internal.Logger.Info(line)
}

// MultiSink fans every line out to each sink in order.
type MultiSink []LogSink

func (m MultiSink) Append(line string) {
	for _, s := range m {
		s.Append(line)
	}
}

type discardSink struct{}

func (discardSink) Append(string) {}
