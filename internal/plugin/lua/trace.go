package lua

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// maxTraceDepth bounds the frames rendered by traceback.
const maxTraceDepth = 32

// traceback renders the call stack of L starting at level, where level 0 is
// the running function. It works on dead threads whose frames are still
// present and renders what it can when they are not.
func traceback(L *lua.LState, level int) (tb string) {
	var b strings.Builder
	b.WriteString("stack traceback:")
	defer func() {
		if recover() != nil {
			tb = b.String()
		}
	}()

	for i := level; i < level+maxTraceDepth; i++ {
		dbg, ok := L.GetStack(i)
		if !ok {
			break
		}
		if _, err := L.GetInfo("Sln", dbg, lua.LNil); err != nil {
			break
		}

		switch {
		case dbg.What == "G":
			b.WriteString("\n\t[G]: in ")
		default:
			fmt.Fprintf(&b, "\n\t%s:%d: in ", dbg.Source, dbg.CurrentLine)
		}
		switch {
		case dbg.What == "main":
			b.WriteString("main chunk")
		case dbg.Name != "":
			fmt.Fprintf(&b, "function '%s'", dbg.Name)
		case dbg.What == "G":
			b.WriteString("?")
		default:
			fmt.Fprintf(&b, "function <%s:%d>", dbg.Source, dbg.LineDefined)
		}
	}
	return b.String()
}
