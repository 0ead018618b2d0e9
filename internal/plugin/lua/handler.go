package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// luaHandler adapts a Lua function to event.Handler. It runs on whichever
// Lua thread is executing when the event fires.
type luaHandler struct {
	m      *Module
	fn     *lua.LFunction
	origin string
}

// Origin returns the Lua traceback of the connect call.
func (h *luaHandler) Origin() string {
	return h.origin
}

// Handle calls the Lua function in protected mode.
func (h *luaHandler) Handle(args ...any) error {
	L := h.m.current()

	h.m.callbacks[L]++
	defer func() {
		if h.m.callbacks[L]--; h.m.callbacks[L] == 0 {
			delete(h.m.callbacks, L)
		}
	}()

	err := L.CallByParam(lua.P{
		Fn:      h.fn,
		NRet:    0,
		Protect: true,
	}, h.m.values(args)...)
	if err != nil {
		return newScriptError(err)
	}
	return nil
}
