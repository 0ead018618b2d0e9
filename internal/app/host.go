package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/plugin/lua"
	"github.com/dshills/eventsys/internal/task"
)

// HostTableName is the Lua global holding the host events.
const HostTableName = "host"

// Host holds the Go-owned events scripts can use:
//
//	host.changed:connect(function(change) print(change.path, change.op) end)
//	host.shutdown:connect(function() flush() end)
//	host.log:fire("warn", "low disk")
type Host struct {
	// Changed fires with a Change table when a watched script is modified.
	Changed *event.Event
	// Shutdown fires once before the application stops.
	Shutdown *event.Event
	// Log writes its arguments through the application logger.
	Log *event.Event

	module *lua.Module
	logger *Logger

	changes *task.Task
	seen    int
}

// Change describes a modified script.
type Change struct {
	Path string    `json:"path"`
	Op   string    `json:"op"`
	Time time.Time `json:"-"`
}

// newHost creates the host events and installs them into the state as the
// global "host" table.
func newHost(state *lua.State, logger *Logger) (*Host, error) {
	m := state.Module()
	h := &Host{
		Changed:  m.NewEvent(event.WithName("host.changed")),
		Shutdown: m.NewEvent(event.WithName("host.shutdown")),
		Log:      m.NewEvent(event.WithName("host.log")),
		module:   m,
		logger:   logger.WithComponent("script"),
	}

	if _, err := h.Log.SubscribeFunc(h.log); err != nil {
		return nil, fmt.Errorf("subscribe host.log: %w", err)
	}

	L := state.LuaState()
	tbl := L.NewTable()
	L.SetField(tbl, "changed", m.WrapEvent(h.Changed))
	L.SetField(tbl, "shutdown", m.WrapEvent(h.Shutdown))
	L.SetField(tbl, "log", m.WrapEvent(h.Log))
	L.SetGlobal(HostTableName, tbl)
	return h, nil
}

// log handles host.log fires. The first argument is the level.
func (h *Host) log(args ...any) error {
	values := h.module.GoValues(args)
	if len(values) == 0 {
		return nil
	}

	level, _ := values[0].(string)
	parts := make([]string, 0, len(values)-1)
	for _, v := range values[1:] {
		parts = append(parts, fmt.Sprint(v))
	}
	msg := strings.Join(parts, " ")

	switch strings.ToLower(level) {
	case "debug":
		h.logger.Debug("%s", msg)
	case "warn", "warning":
		h.logger.Warn("%s", msg)
	case "error":
		h.logger.Error("%s", msg)
	default:
		h.logger.Info("%s", msg)
	}
	return nil
}

// trackChanges starts a Go task that waits on Changed and logs every change
// it is resumed with. Must run on the goroutine that fires Changed. The task
// survives across runs until close.
func (h *Host) trackChanges(maxArgs int) error {
	if h.changes != nil {
		return nil
	}
	h.changes = task.New(func(t *task.Task, _ ...any) error {
		for {
			args, err := h.Changed.Wait(t)
			if err != nil {
				return err
			}
			h.seen++
			if len(args) > 0 {
				if c, ok := args[0].(Change); ok {
					h.logger.Debug("script %s: %s", c.Op, c.Path)
				}
			}
		}
	}, task.WithName("host.changes"), task.WithMaxArgs(maxArgs))

	_, err := h.changes.Resume()
	return err
}

// ChangesSeen returns how many changes the tracking task has observed.
func (h *Host) ChangesSeen() int {
	return h.seen
}

// stop fires Shutdown.
func (h *Host) stop() error {
	return h.Shutdown.Fire()
}

// close terminates the change tracking task.
func (h *Host) close() error {
	if h.changes == nil {
		return nil
	}
	return h.changes.Close()
}
