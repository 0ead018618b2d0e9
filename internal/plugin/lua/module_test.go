package lua

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/eventsys/internal/event"
)

type records struct {
	list []event.Record
}

func (r *records) Report(rec event.Record) {
	r.list = append(r.list, rec)
}

func newModuleState(t *testing.T, opts ...ModuleOption) (*State, *records) {
	t.Helper()
	rec := &records{}
	opts = append([]ModuleOption{WithEventOptions(event.WithReporter(rec))}, opts...)
	return newTestState(t, WithModuleOptions(opts...)), rec
}

func TestModuleConnectFire(t *testing.T) {
	state, rec := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		got = {}
		local conn = ev:connect(function(a, b) got[#got + 1] = a .. b end)

		ev:fire("x", "y")
		connected = conn:isConnected()

		conn:disconnect()
		ev:fire("z", "w")
		disconnected = not conn:isConnected()

		conn:reconnect()
		event.fire(ev, "p", "q")
		count = #got
	`)
	require.NoError(t, err)
	assert.Empty(t, rec.list)

	assert.Equal(t, glua.LTrue, state.GetGlobal("connected"))
	assert.Equal(t, glua.LTrue, state.GetGlobal("disconnected"))
	assert.Equal(t, glua.LNumber(2), state.GetGlobal("count"))

	got, ok := state.Module().GoValues([]any{state.GetGlobal("got")})[0].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"xy", "pq"}, got)
}

func TestModuleConnectOrdering(t *testing.T) {
	state, _ := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		order = ""
		ev:connect(function() order = order .. "a" end)
		ev:connect(function() order = order .. "b" end)
		ev:connect(function() order = order .. "c" end)
		ev:fire()
	`)
	require.NoError(t, err)
	assert.Equal(t, glua.LString("cba"), state.GetGlobal("order"))
}

func TestModuleReentrantFire(t *testing.T) {
	state, rec := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		calls = 0
		local conn
		conn = ev:connect(function(depth)
			calls = calls + 1
			if depth == 1 then
				conn:disconnect()
				stillConnected = conn:isConnected()
			end
			if depth < 3 then
				ev:fire(depth + 1)
			end
		end)
		ev:fire(1)
		afterFire = conn:isConnected()
	`)
	require.NoError(t, err)
	assert.Empty(t, rec.list)

	// A pending disconnect already hides the handler from nested fires.
	assert.Equal(t, glua.LFalse, state.GetGlobal("stillConnected"))
	assert.Equal(t, glua.LFalse, state.GetGlobal("afterFire"))
	assert.Equal(t, glua.LNumber(1), state.GetGlobal("calls"))
}

func TestModuleWaitCoroutine(t *testing.T) {
	state, rec := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		local co = coroutine.create(function()
			local a, b = ev:wait()
			sum = a + b
		end)
		coroutine.resume(co)
		before = coroutine.status(co)
		ev:fire(1, 2)
		after = coroutine.status(co)
	`)
	require.NoError(t, err)
	assert.Empty(t, rec.list)

	assert.Equal(t, glua.LString("suspended"), state.GetGlobal("before"))
	assert.Equal(t, glua.LString("dead"), state.GetGlobal("after"))
	assert.Equal(t, glua.LNumber(3), state.GetGlobal("sum"))
}

func TestModuleWaitWrap(t *testing.T) {
	state, rec := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		seen = {}
		coroutine.wrap(function()
			while true do
				seen[#seen + 1] = ev:wait()
			end
		end)()
		ev:fire("one")
		ev:fire("two")
	`)
	require.NoError(t, err)
	assert.Empty(t, rec.list)

	seen, ok := state.Module().GoValues([]any{state.GetGlobal("seen")})[0].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"one", "two"}, seen)
}

func TestModuleWaitAtMostOnce(t *testing.T) {
	state, _ := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		wakes = 0
		coroutine.wrap(function()
			ev:wait()
			wakes = wakes + 1
		end)()
		ev:fire()
		ev:fire()
	`)
	require.NoError(t, err)
	assert.Equal(t, glua.LNumber(1), state.GetGlobal("wakes"))
}

func TestModuleSubscribersBeforeWaiters(t *testing.T) {
	state, _ := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		order = ""
		coroutine.wrap(function()
			ev:wait()
			order = order .. "w"
		end)()
		ev:connect(function() order = order .. "s" end)
		ev:fire()
	`)
	require.NoError(t, err)
	assert.Equal(t, glua.LString("sw"), state.GetGlobal("order"))
}

func TestModuleWaitErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "outside coroutine",
			code: `event.new():wait()`,
			want: "attempt to wait outside of a coroutine",
		},
		{
			name: "bad closeOnError",
			code: `
				local ev = event.new()
				coroutine.wrap(function() ev:wait(1) end)()
			`,
			want: "boolean, nil, or none expected",
		},
		{
			name: "not an event",
			code: `event.wait(42)`,
			want: "Event expected, got number",
		},
		{
			name: "connection is not an event",
			code: `
				local ev = event.new()
				local conn = ev:connect(function() end)
				event.fire(conn)
			`,
			want: "Event expected, got Connection",
		},
		{
			name: "connect needs a function",
			code: `event.new():connect("nope")`,
			want: "function expected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, _ := newModuleState(t)
			err := state.DoString(tt.code)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestModuleWaitInsideCallback(t *testing.T) {
	state, rec := newModuleState(t)

	err := state.DoString(`
		local ev, other = event.new(), event.new()
		ev:connect(function() other:wait() end)
		coroutine.wrap(function() ev:fire() end)()
	`)
	require.NoError(t, err)
	require.Len(t, rec.list, 1)
	assert.Equal(t, event.KindSubscriberError, rec.list[0].Kind)
	assert.Contains(t, rec.list[0].Err.Error(), "attempt to wait inside an event callback")
}

func TestModuleHandlerErrorRecord(t *testing.T) {
	state, rec := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		local function subscribe()
			ev:connect(function() error("boom") end)
		end
		subscribe()
		ev:connect(function() reached = true end)
		ev:fire()
	`)
	require.NoError(t, err)
	assert.Equal(t, glua.LTrue, state.GetGlobal("reached"))

	require.Len(t, rec.list, 1)
	r := rec.list[0]
	assert.Equal(t, event.KindSubscriberError, r.Kind)
	assert.Contains(t, r.Err.Error(), "boom")
	assert.True(t, strings.HasPrefix(r.Traceback, "stack traceback:"))
	assert.True(t, strings.HasPrefix(r.Origin, "stack traceback:"))
	assert.Contains(t, r.Origin, "subscribe")

	var serr *ScriptError
	require.True(t, errors.As(r.Err, &serr))
	assert.Contains(t, serr.Message, "boom")
}

func TestModuleWaiterErrorRecord(t *testing.T) {
	state, rec := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		co = coroutine.create(function()
			ev:wait(true)
			error("resumed badly")
		end)
		coroutine.resume(co)
		ev:fire()
		status = coroutine.status(co)
	`)
	require.NoError(t, err)
	assert.Equal(t, glua.LString("dead"), state.GetGlobal("status"))

	require.Len(t, rec.list, 1)
	r := rec.list[0]
	assert.Equal(t, event.KindWaiterResumeError, r.Kind)
	assert.Contains(t, r.Err.Error(), "resumed badly")
	assert.True(t, r.Closed)
	assert.NoError(t, r.CloseErr)
	assert.True(t, strings.HasPrefix(r.FirePoint, "stack traceback:"))
	assert.Contains(t, r.FirePoint, "<string>:8:")
	assert.NotContains(t, r.FirePoint, "module.go")
}

func TestModuleWrappedWaiterError(t *testing.T) {
	state, rec := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		coroutine.wrap(function()
			ev:wait()
			error("wrapped failure")
		end)()
		ev:fire()
		ev:connect(function() later = true end)
		ev:fire()
	`)
	require.NoError(t, err)
	assert.Equal(t, glua.LTrue, state.GetGlobal("later"))

	require.Len(t, rec.list, 1)
	assert.Equal(t, event.KindWaiterResumeError, rec.list[0].Kind)
	assert.Contains(t, rec.list[0].Err.Error(), "wrapped failure")
}

func TestModuleWaiterCapacity(t *testing.T) {
	state, rec := newModuleState(t, WithMaxResumeArgs(1))

	err := state.DoString(`
		local ev = event.new()
		coroutine.wrap(function()
			ev:wait()
			woke = true
		end)()
		ev:fire(1, 2)
	`)
	require.NoError(t, err)
	assert.Equal(t, glua.LNil, state.GetGlobal("woke"))

	require.Len(t, rec.list, 1)
	assert.Equal(t, event.KindWaiterCapacity, rec.list[0].Kind)

	var cerr *event.CapacityError
	require.True(t, errors.As(rec.list[0].Err, &cerr))
	assert.Equal(t, 1, cerr.Limit)
	assert.Equal(t, 2, cerr.Args)
}

func TestModuleMetatables(t *testing.T) {
	state, _ := newModuleState(t)

	err := state.DoString(`
		local ev = event.new()
		local conn = ev:connect(function() end)
		evMeta = getmetatable(ev)
		connMeta = getmetatable(conn)
		evString = tostring(ev)
		connString = tostring(conn)
		ok = pcall(setmetatable, ev, {})
	`)
	require.NoError(t, err)

	assert.Equal(t, glua.LString("locked"), state.GetGlobal("evMeta"))
	assert.Equal(t, glua.LString("locked"), state.GetGlobal("connMeta"))
	assert.True(t, strings.HasPrefix(state.GetGlobal("evString").String(), "Event: "))
	assert.True(t, strings.HasPrefix(state.GetGlobal("connString").String(), "Connection: "))
	assert.Equal(t, glua.LFalse, state.GetGlobal("ok"))
}

func TestModuleWrapEvent(t *testing.T) {
	state, rec := newModuleState(t)
	m := state.Module()

	changed := m.NewEvent(event.WithName("changed"))
	state.SetGlobal("changed", m.WrapEvent(changed))

	err := state.DoString(`
		changed:connect(function(info)
			path = info.path
			size = info.size
		end)
		name = tostring(changed)
	`)
	require.NoError(t, err)

	require.NoError(t, changed.Fire(map[string]any{"path": "main.lua", "size": 12}))
	assert.Empty(t, rec.list)
	assert.Equal(t, glua.LString("main.lua"), state.GetGlobal("path"))
	assert.Equal(t, glua.LNumber(12), state.GetGlobal("size"))
	assert.Equal(t, glua.LString("Event: changed"), state.GetGlobal("name"))
}

func TestModuleGoSubscriberSeesLuaValues(t *testing.T) {
	state, _ := newModuleState(t)
	m := state.Module()

	logged := m.NewEvent()
	var got []any
	_, err := logged.Subscribe(event.HandlerFunc(func(args ...any) error {
		got = m.GoValues(args)
		return nil
	}))
	require.NoError(t, err)

	state.SetGlobal("logged", m.WrapEvent(logged))
	require.NoError(t, state.DoString(`logged:fire("info", 3, {a = 1})`))

	assert.Equal(t, []any{"info", int64(3), map[string]any{"a": int64(1)}}, got)
}

func TestModuleGoTaskWaitsOnLuaEvent(t *testing.T) {
	state, _ := newModuleState(t)

	require.NoError(t, state.DoString(`shared = event.new()`))

	ud, ok := state.GetGlobal("shared").(*glua.LUserData)
	require.True(t, ok)
	shared, ok := ud.Value.(*event.Event)
	require.True(t, ok)

	sub, err := shared.Subscribe(event.HandlerFunc(func(args ...any) error {
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, sub.IsActive())

	require.NoError(t, state.DoString(`shared:fire()`))
	assert.Equal(t, uint64(1), shared.Stats().Fires)
}
