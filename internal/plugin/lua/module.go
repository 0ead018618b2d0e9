package lua

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/task"
)

// Names under which the event module and its userdata types are registered.
const (
	ModuleName         = "event"
	EventTypeName      = "Event"
	ConnectionTypeName = "Connection"
)

// DefaultMaxResumeArgs is the default number of values a Lua waiter accepts.
const DefaultMaxResumeArgs = task.DefaultMaxArgs

// Module exposes events to Lua:
//
//	local ev = event.new()
//	local conn = ev:connect(function(...) print(...) end)
//	coroutine.wrap(function()
//	    local a, b = ev:wait()
//	end)()
//	ev:fire(1, 2)
//	conn:disconnect()
//
// Every function is also available in plain form, e.g. event.fire(ev, 1, 2).
type Module struct {
	L      *lua.LState
	bridge *Bridge

	eventOpts     []event.Option
	maxResumeArgs int

	// resume is coroutine.resume captured at install time.
	resume lua.LValue

	// callbacks counts handlers executing on each thread.
	callbacks map[*lua.LState]int

	eventMT *lua.LTable
	connMT  *lua.LTable
	table   *lua.LTable
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithEventOptions sets the options applied to events created from Lua.
func WithEventOptions(opts ...event.Option) ModuleOption {
	return func(m *Module) {
		m.eventOpts = append(m.eventOpts, opts...)
	}
}

// WithMaxResumeArgs bounds the values a Lua waiter can be resumed with.
func WithMaxResumeArgs(n int) ModuleOption {
	return func(m *Module) {
		if n >= 0 {
			m.maxResumeArgs = n
		}
	}
}

// NewModule installs the event module into L as the global "event" and as a
// preloaded module. The coroutine library must already be open.
func NewModule(L *lua.LState, opts ...ModuleOption) (*Module, error) {
	m := &Module{
		L:             L,
		bridge:        NewBridge(L),
		maxResumeArgs: DefaultMaxResumeArgs,
		callbacks:     make(map[*lua.LState]int),
	}
	for _, opt := range opts {
		opt(m)
	}

	co, ok := L.GetGlobal(lua.CoroutineLibName).(*lua.LTable)
	if !ok {
		return nil, errors.New("coroutine library is not open")
	}
	m.resume = L.GetField(co, "resume")
	if m.resume.Type() != lua.LTFunction {
		return nil, errors.New("coroutine.resume is not a function")
	}

	m.eventMT = m.newMetatable(EventTypeName, map[string]lua.LGFunction{
		"connect": m.connect,
		"wait":    m.wait,
		"fire":    m.fire,
	}, func(L *lua.LState) int {
		L.Push(lua.LString(m.checkEvent(L, 1).String()))
		return 1
	})
	m.connMT = m.newMetatable(ConnectionTypeName, map[string]lua.LGFunction{
		"disconnect":  m.disconnect,
		"reconnect":   m.reconnect,
		"isConnected": m.isConnected,
	}, func(L *lua.LState) int {
		L.Push(lua.LString(fmt.Sprintf("%s: %p", ConnectionTypeName, m.checkConnection(L, 1))))
		return 1
	})

	m.table = L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"new":         m.newEvent,
		"connect":     m.connect,
		"disconnect":  m.disconnect,
		"reconnect":   m.reconnect,
		"isConnected": m.isConnected,
		"wait":        m.wait,
		"fire":        m.fire,
	})

	L.PreloadModule(ModuleName, func(L *lua.LState) int {
		L.Push(m.table)
		return 1
	})
	L.SetGlobal(ModuleName, m.table)
	return m, nil
}

// newMetatable registers a locked metatable for a userdata type.
func (m *Module) newMetatable(name string, methods map[string]lua.LGFunction, tostring lua.LGFunction) *lua.LTable {
	mt := m.L.NewTypeMetatable(name)
	m.L.SetField(mt, "__metatable", lua.LString("locked"))
	m.L.SetField(mt, "__name", lua.LString(name))
	m.L.SetField(mt, "__tostring", m.L.NewFunction(tostring))
	m.L.SetField(mt, "__index", m.L.SetFuncs(m.L.NewTable(), methods))
	return mt
}

// WrapEvent returns a Lua value for e so Go-owned events can be handed to
// scripts.
func (m *Module) WrapEvent(e *event.Event) lua.LValue {
	ud := m.L.NewUserData()
	ud.Value = e
	ud.Metatable = m.eventMT
	return ud
}

// NewEvent creates an event with the module's event options.
func (m *Module) NewEvent(opts ...event.Option) *event.Event {
	all := make([]event.Option, 0, len(m.eventOpts)+len(opts))
	all = append(all, m.eventOpts...)
	all = append(all, opts...)
	return event.NewEvent(all...)
}

// GoValues converts event arguments fired from Lua into plain Go values.
func (m *Module) GoValues(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if lv, ok := a.(lua.LValue); ok {
			out[i] = m.bridge.ToGoValue(lv)
		} else {
			out[i] = a
		}
	}
	return out
}

// values converts event arguments into Lua values.
func (m *Module) values(args []any) []lua.LValue {
	out := make([]lua.LValue, len(args))
	for i, a := range args {
		if e, ok := a.(*event.Event); ok {
			out[i] = m.WrapEvent(e)
			continue
		}
		out[i] = m.bridge.ToLuaValue(a)
	}
	return out
}

// current returns the Lua thread that is executing.
func (m *Module) current() *lua.LState {
	if th := m.L.G.CurrentThread; th != nil {
		return th
	}
	return m.L.G.MainThread
}

func (m *Module) checkEvent(L *lua.LState, n int) *event.Event {
	if ud, ok := L.Get(n).(*lua.LUserData); ok && ud.Metatable == m.eventMT {
		if e, ok := ud.Value.(*event.Event); ok {
			return e
		}
	}
	L.ArgError(n, fmt.Sprintf("%s expected, got %s", EventTypeName, typeName(L.Get(n))))
	return nil
}

func (m *Module) checkConnection(L *lua.LState, n int) *event.Subscriber {
	if ud, ok := L.Get(n).(*lua.LUserData); ok && ud.Metatable == m.connMT {
		if s, ok := ud.Value.(*event.Subscriber); ok {
			return s
		}
	}
	L.ArgError(n, fmt.Sprintf("%s expected, got %s", ConnectionTypeName, typeName(L.Get(n))))
	return nil
}

// typeName returns the __name of lv's metatable, or its Lua type.
func typeName(lv lua.LValue) string {
	if ud, ok := lv.(*lua.LUserData); ok {
		if mt, ok := ud.Metatable.(*lua.LTable); ok {
			if name, ok := mt.RawGetString("__name").(lua.LString); ok {
				return string(name)
			}
		}
	}
	return lv.Type().String()
}

// event.new() -> Event
func (m *Module) newEvent(L *lua.LState) int {
	L.Push(m.WrapEvent(m.NewEvent()))
	return 1
}

// event.connect(ev, fn) -> Connection
func (m *Module) connect(L *lua.LState) int {
	e := m.checkEvent(L, 1)
	fn := L.CheckFunction(2)

	sub, err := e.Subscribe(&luaHandler{m: m, fn: fn, origin: traceback(L, 1)})
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	ud := L.NewUserData()
	ud.Value = sub
	ud.Metatable = m.connMT
	L.Push(ud)
	return 1
}

// event.disconnect(conn)
func (m *Module) disconnect(L *lua.LState) int {
	if err := m.checkConnection(L, 1).Disconnect(); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// event.reconnect(conn)
func (m *Module) reconnect(L *lua.LState) int {
	if err := m.checkConnection(L, 1).Reconnect(); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// event.isConnected(conn) -> boolean
func (m *Module) isConnected(L *lua.LState) int {
	L.Push(lua.LBool(m.checkConnection(L, 1).IsActive()))
	return 1
}

// event.wait(ev [, closeOnError]) -> ... suspends the running coroutine
// until the next fire and returns the fired values.
func (m *Module) wait(L *lua.LState) int {
	e := m.checkEvent(L, 1)

	closeOnError := false
	switch v := L.Get(2); v.Type() {
	case lua.LTNil:
	case lua.LTBool:
		closeOnError = lua.LVAsBool(v)
	default:
		L.ArgError(2, "boolean, nil, or none expected")
		return 0
	}

	if L.Parent == nil {
		L.RaiseError("attempt to wait outside of a coroutine")
		return 0
	}
	if m.callbacks[L] > 0 {
		L.RaiseError("attempt to wait inside an event callback")
		return 0
	}

	if _, err := e.Register(&luaCoroutine{m: m, th: L}, closeOnError); err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	return L.Yield()
}

// event.fire(ev, ...)
func (m *Module) fire(L *lua.LState) int {
	e := m.checkEvent(L, 1)

	top := L.GetTop()
	args := make([]any, 0, top-1)
	for i := 2; i <= top; i++ {
		args = append(args, L.Get(i))
	}

	site := func() string { return traceback(L, 1) }
	if err := e.FireTraced(site, args...); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}
