// Package lua hosts scripts on gopher-lua and exposes events to them.
//
// # State
//
// State wraps a sandboxed LState with the base, package, table, string, math
// and coroutine libraries open, and the event module installed:
//
//	state, err := lua.NewState()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer state.Close()
//
//	if err := state.DoFile("script.lua"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Event module
//
// Scripts reach the module through the global "event" or require("event"):
//
//	local ev = event.new()
//	local conn = ev:connect(function(name) print("hello", name) end)
//
//	coroutine.wrap(function()
//	    local name = ev:wait()
//	    print("woken by", name)
//	end)()
//
//	ev:fire("world")
//	conn:disconnect()
//
// Events and connections are userdata with locked metatables named Event and
// Connection. Handler errors carry the Lua traceback and the traceback of the
// connect call. Waiting outside a coroutine, or inside a handler, is an error.
//
// Go code shares events with scripts through Module.WrapEvent.
//
// # Sandbox
//
// The Sandbox removes dofile, loadfile, load and loadstring, clears the
// package search paths and limits require to whitelisted and preloaded
// modules. CapabilityUnsafe opens io, os and debug.
//
// # Executor
//
// Executor runs operations on the goroutine that owns the LState, so events
// originating in other goroutines can be fired into Lua safely.
package lua
