package lua

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutorClosed is returned when attempting to use a closed executor.
	ErrExecutorClosed = errors.New("lua executor is closed")

	// ErrQueueFull is returned when an asynchronous call cannot be queued.
	ErrQueueFull = errors.New("lua executor queue full")
)

// ScriptError is a failure raised by Lua code, with the Lua traceback at the
// point of failure.
type ScriptError struct {
	// Message is the rendered Lua error value.
	Message string

	// Trace is the Lua stack traceback, if one could be captured.
	Trace string
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return e.Message
}

// Traceback returns the Lua stack traceback.
func (e *ScriptError) Traceback() string {
	return e.Trace
}

// newScriptError converts an error returned by a protected call.
func newScriptError(err error) *ScriptError {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		return &ScriptError{Message: errorMessage(apiErr.Object), Trace: apiErr.StackTrace}
	}
	return &ScriptError{Message: err.Error()}
}

// errorMessage renders a Lua error value. Values that are not strings,
// numbers, booleans or nil are shown by type name and address.
func errorMessage(lv lua.LValue) string {
	switch v := lv.(type) {
	case nil:
		return "nil"
	case lua.LString, lua.LNumber, lua.LBool, *lua.LNilType:
		return v.String()
	case *lua.LUserData:
		if mt, ok := v.Metatable.(*lua.LTable); ok {
			if name, ok := mt.RawGetString("__name").(lua.LString); ok {
				return fmt.Sprintf("%s: %p", string(name), v)
			}
		}
	case *lua.LTable:
		if mt, ok := v.Metatable.(*lua.LTable); ok {
			if name, ok := mt.RawGetString("__name").(lua.LString); ok {
				return fmt.Sprintf("%s: %p", string(name), v)
			}
		}
	}
	return lv.String()
}
