package internal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a single status line while a blocking step such as a
// connection check runs.
type Spinner struct {
	interval time.Duration
	message  string
	writer   io.Writer

	mu      sync.Mutex
	active  bool
	done    chan struct{}
	stopped chan struct{}
}

func NewSpinner(message string) *Spinner {
	return NewSpinnerTo(os.Stdout, message)
}

func NewSpinnerTo(w io.Writer, message string) *Spinner {
	return &Spinner{
		interval: 100 * time.Millisecond,
		message:  message,
		writer:   w,
	}
}

func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.spin(s.done, s.stopped)
}

func (s *Spinner) spin(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		s.mu.Lock()
		fmt.Fprintf(s.writer, "\r%s %s", spinnerFrames[frame%len(spinnerFrames)], s.message)
		s.mu.Unlock()

		select {
		case <-done:
			s.mu.Lock()
			fmt.Fprint(s.writer, "\r\033[K")
			s.mu.Unlock()
			return
		case <-ticker.C:
		}
	}
}

// Stop halts the animation and clears the line. It returns once the line is
// cleared.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.done)
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped
}

func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "\r✅ %s\n", message)
}

func (s *Spinner) Error(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "\r❌ %s\n", message)
}

func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs operation behind a spinner on stdout. In verbose mode the
// spinner is skipped so log records are not overwritten.
func WithSpinner(message string, operation func() error) error {
	return WithSpinnerTo(os.Stdout, message, operation, !VerboseMode)
}

func WithSpinnerTo(w io.Writer, message string, operation func() error, showSpinner bool) error {
	if !showSpinner {
		return operation()
	}

	spinner := NewSpinnerTo(w, message)
	spinner.Start()

	if err := operation(); err != nil {
		spinner.Error(fmt.Sprintf("Failed: %s", message))
		return err
	}

	spinner.Success(message)
	return nil
}
