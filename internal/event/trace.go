package event

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// maxTraceDepth bounds the frames captured for origin and fire traces.
const maxTraceDepth = 32

// captureTrace returns the current stack starting skip frames above the
// caller of captureTrace. Runtime frames are omitted.
func captureTrace(skip int) string {
	pcs := make([]uintptr, maxTraceDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("stack traceback:")
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&b, "\n\t%s:%d: in %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return b.String()
}

// handlerFrame is the function every subscriber handler runs under.
var handlerFrame = runtime.FuncForPC(reflect.ValueOf(invoke).Pointer()).Name()

// inHandler reports whether the calling goroutine is executing a subscriber
// handler, at any depth.
func inHandler() bool {
	pcs := make([]uintptr, 64)
	for {
		n := runtime.Callers(2, pcs)
		if n < len(pcs) {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, 2*len(pcs))
	}

	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.Function == handlerFrame {
			return true
		}
		if !more {
			return false
		}
	}
}
