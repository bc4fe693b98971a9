// Package teatest drives bubbletea models synchronously in tests.
//
// A Driver calls Update directly and processes returned commands through a
// FIFO queue instead of running a tea.Program. Commands that do not return
// within a short timeout (timers, cursor blinks, spinner ticks) are dropped.
package teatest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// MaxSteps bounds how many messages one Send may process.
const MaxSteps = 200

// cmdTimeout separates immediate commands from timer-driven ones.
const cmdTimeout = 10 * time.Millisecond

// Driver is a synchronous harness for a tea.Model.
type Driver struct {
	T     *testing.T
	Model tea.Model

	// Quitting is set once a tea.QuitMsg has been produced.
	Quitting bool

	// Seen records every message delivered to Update, in order.
	Seen []tea.Msg
}

// Option configures a Driver.
type Option func(*Driver)

// WithSize delivers a WindowSizeMsg before anything else.
func WithSize(w, h int) Option {
	return func(d *Driver) {
		d.deliver(tea.WindowSizeMsg{Width: w, Height: h})
	}
}

func New(t *testing.T, model tea.Model, opts ...Option) *Driver {
	t.Helper()
	d := &Driver{T: t, Model: model}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DrainInit runs the model's Init command and everything it leads to.
func (d *Driver) DrainInit() {
	d.T.Helper()
	d.run([]tea.Cmd{d.Model.Init()})
}

// Send delivers msg and processes the resulting commands.
func (d *Driver) Send(msg tea.Msg) {
	d.T.Helper()
	if d.Quitting {
		return
	}
	d.run([]tea.Cmd{d.deliver(msg)})
}

func (d *Driver) deliver(msg tea.Msg) tea.Cmd {
	d.Seen = append(d.Seen, msg)
	updated, cmd := d.Model.Update(msg)
	d.Model = updated
	return cmd
}

func (d *Driver) run(queue []tea.Cmd) {
	d.T.Helper()
	for steps := 0; len(queue) > 0; steps++ {
		if steps >= MaxSteps {
			d.T.Logf("teatest: stopped after %d steps", MaxSteps)
			return
		}
		cmd := queue[0]
		queue = queue[1:]
		if cmd == nil {
			continue
		}

		msg := callWithTimeout(cmd)
		switch m := msg.(type) {
		case nil:
			continue
		case tea.BatchMsg:
			queue = append(queue, m...)
			continue
		case tea.QuitMsg:
			d.Quitting = true
			d.deliver(m)
			return
		}
		if isCursorBlink(msg) {
			continue
		}
		queue = append(queue, d.deliver(msg))
	}
}

// SendKey delivers a key event.
func (d *Driver) SendKey(msg tea.KeyMsg) {
	d.T.Helper()
	d.Send(msg)
}

// PressKey sends a single rune key.
func (d *Driver) PressKey(r rune) {
	d.T.Helper()
	d.SendKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

// PressEnter sends Enter.
func (d *Driver) PressEnter() {
	d.T.Helper()
	d.SendKey(tea.KeyMsg{Type: tea.KeyEnter})
}

func (d *Driver) PressEsc() {
	d.T.Helper()
	d.SendKey(tea.KeyMsg{Type: tea.KeyEsc})
}

func (d *Driver) PressCtrlC() {
	d.T.Helper()
	d.SendKey(tea.KeyMsg{Type: tea.KeyCtrlC})
}

func (d *Driver) PressUp() {
	d.T.Helper()
	d.SendKey(tea.KeyMsg{Type: tea.KeyUp})
}

func (d *Driver) PressDown() {
	d.T.Helper()
	d.SendKey(tea.KeyMsg{Type: tea.KeyDown})
}

// PressCtrl sends a control key such as tea.KeyCtrlS or tea.KeyCtrlR.
func (d *Driver) PressCtrl(k tea.KeyType) {
	d.T.Helper()
	d.SendKey(tea.KeyMsg{Type: k})
}

// Type sends s one rune at a time.
func (d *Driver) Type(s string) {
	d.T.Helper()
	for _, r := range s {
		d.PressKey(r)
	}
}

func (d *Driver) View() string {
	return d.Model.View()
}

// ViewContains reports whether the rendered view contains every part.
func (d *Driver) ViewContains(parts ...string) bool {
	view := d.View()
	for _, p := range parts {
		if !strings.Contains(view, p) {
			return false
		}
	}
	return true
}

// SeenType reports whether a message of the same dynamic type as sample
// has been delivered.
func (d *Driver) SeenType(sample tea.Msg) bool {
	want := fmt.Sprintf("%T", sample)
	for _, m := range d.Seen {
		if fmt.Sprintf("%T", m) == want {
			return true
		}
	}
	return false
}

func callWithTimeout(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(cmdTimeout):
		return nil
	}
}

// isCursorBlink matches the unexported blink messages of bubbles/cursor.
func isCursorBlink(msg tea.Msg) bool {
	return strings.Contains(strings.ToLower(fmt.Sprintf("%T", msg)), "blink")
}
