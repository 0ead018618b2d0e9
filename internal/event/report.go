package event

import (
	"io"
	"os"
	"strings"
	"sync"
)

// Kind classifies a dispatch failure.
type Kind uint8

const (
	// KindSubscriberError is a handler failure during the subscriber pass.
	KindSubscriberError Kind = iota

	// KindWaiterResumeError is a coroutine failure during the waiter pass.
	KindWaiterResumeError

	// KindWaiterCapacity is a waiter skipped because it cannot accept the
	// forwarded arguments.
	KindWaiterCapacity
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSubscriberError:
		return "subscriber_error"
	case KindWaiterResumeError:
		return "waiter_resume_error"
	case KindWaiterCapacity:
		return "waiter_capacity"
	default:
		return "unknown"
	}
}

// Record is a structured dispatch failure. Fire never returns these; it
// hands them to the event's Reporter and keeps dispatching.
type Record struct {
	Kind      Kind
	EventID   string
	EventName string

	// Err is a *SubscriberError, *ResumeError or *CapacityError.
	Err error

	// Traceback is the stack of the failing handler or coroutine.
	Traceback string

	// Origin is the subscribe site, for subscriber failures.
	Origin string

	// FirePoint is the stack of the Fire call, for waiter failures.
	FirePoint string

	// Closed is true when the waiter's coroutine was forcibly closed.
	Closed bool

	// CloseErr is a *TerminationError when closing the coroutine failed.
	CloseErr error
}

// Reporter receives dispatch failures.
type Reporter interface {
	Report(r Record)
}

// ReporterFunc is a function adapter for Reporter.
type ReporterFunc func(r Record)

// Report implements the Reporter interface.
func (f ReporterFunc) Report(r Record) {
	f(r)
}

// TextReporter writes records as sectioned plain text.
type TextReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextReporter creates a reporter writing to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// DefaultReporter returns a text reporter writing to standard error.
func DefaultReporter() Reporter {
	return NewTextReporter(os.Stderr)
}

// Report implements the Reporter interface.
func (t *TextReporter) Report(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, FormatRecord(r))
}

// FormatRecord renders r in the sectioned text layout.
func FormatRecord(r Record) string {
	var b strings.Builder
	switch r.Kind {
	case KindSubscriberError:
		b.WriteString("| Error message (Connection):\n")
		b.WriteString(message(r.Err))
		b.WriteString("\n| Traceback:\n")
		b.WriteString(r.Traceback)
		b.WriteString("\n| Connection Point:\n")
		b.WriteString(r.Origin)
		b.WriteString("\n| End\n")
	case KindWaiterResumeError:
		b.WriteString("| Error message (Wait Resume):\n")
		b.WriteString(message(r.Err))
		b.WriteString("\n| Traceback:\n")
		b.WriteString(r.Traceback)
		b.WriteString("\n| Fire Point:\n")
		b.WriteString(r.FirePoint)
		if r.CloseErr != nil {
			b.WriteString("\n| Error closing task:\n")
			b.WriteString(message(r.CloseErr))
		}
		b.WriteString("\n| End\n")
	case KindWaiterCapacity:
		b.WriteString("| Too many arguments to resume task (Wait Resume)\n")
	}
	return b.String()
}

// message returns the text of err without the dispatch wrapper prefix.
func message(err error) string {
	for {
		switch e := err.(type) {
		case nil:
			return "(no error)"
		case *SubscriberError:
			err = e.Err
		case *ResumeError:
			err = e.Err
		case *TerminationError:
			err = e.Err
		default:
			return err.Error()
		}
	}
}
