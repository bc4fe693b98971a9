package formatter

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerFrames are the braille dots cycled by Spinner.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner animates a message on a single terminal line of w.
type Spinner struct {
	w       io.Writer
	mu      sync.Mutex
	message string
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins drawing frames until Stop is called.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		s.draw(0)
		for i := 1; ; i++ {
			select {
			case <-s.stop:
				fmt.Fprint(s.w, "\r\033[K")
				return
			case <-ticker.C:
				s.draw(i)
			}
		}
	}()
}

func (s *Spinner) draw(i int) {
	frame := SpinnerFrames[i%len(SpinnerFrames)]
	s.mu.Lock()
	msg := s.message
	s.mu.Unlock()
	fmt.Fprintf(s.w, "\r  %s %s", StylePurple.Render(frame), Dim(msg))
}

// SetMessage changes the text shown next to the spinner.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// Stop ends the animation and clears the line. It is safe to call twice.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stop:
		s.mu.Unlock()
		return
	default:
		close(s.stop)
	}
	s.mu.Unlock()
	<-s.done
}

// StartSpinner creates and starts a spinner on w and returns its Stop func.
func StartSpinner(w io.Writer, message string) func() {
	s := NewSpinner(w, message)
	s.Start()
	return s.Stop
}
