package app

import (
	"strings"

	"github.com/dshills/eventsys/internal/event"
)

// LogReporter writes dispatch failures through a Logger, one error line per
// record with the stacks attached at debug level.
type LogReporter struct {
	logger *Logger
}

// NewLogReporter creates a reporter that logs to logger.
func NewLogReporter(logger *Logger) *LogReporter {
	return &LogReporter{logger: logger.WithComponent("event")}
}

// Report implements event.Reporter.
func (r *LogReporter) Report(rec event.Record) {
	fields := map[string]any{
		"kind":  rec.Kind.String(),
		"event": rec.EventID,
	}
	if rec.EventName != "" {
		fields["name"] = rec.EventName
	}
	if rec.Kind == event.KindWaiterResumeError {
		fields["closed"] = rec.Closed
	}
	l := r.logger.WithFields(fields)

	if rec.Err != nil {
		l.Error("%v", rec.Err)
	} else {
		l.Error("dispatch failure")
	}
	if rec.CloseErr != nil {
		l.Error("close task: %v", rec.CloseErr)
	}

	if tb := strings.TrimSpace(rec.Traceback); tb != "" {
		l.Debug("traceback:\n%s", tb)
	}
	if rec.Origin != "" {
		l.Debug("connected at:\n%s", strings.TrimSpace(rec.Origin))
	}
	if rec.FirePoint != "" {
		l.Debug("fired at:\n%s", strings.TrimSpace(rec.FirePoint))
	}
}

var _ event.Reporter = (*LogReporter)(nil)
