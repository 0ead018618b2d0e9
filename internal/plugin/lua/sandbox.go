package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L *lua.LState

	capabilities map[Capability]bool

	// modules lists preloaded modules require may load.
	modules map[string]bool
}

// Capability represents a permission that can be granted to scripts.
type Capability string

// Available capabilities.
const (
	CapabilityFileRead Capability = "filesystem.read"
	CapabilityShell    Capability = "shell"
	CapabilityUnsafe   Capability = "unsafe" // Full Lua stdlib access
)

// safeModules are built-in modules require may always load.
var safeModules = map[string]bool{
	"string":    true,
	"table":     true,
	"math":      true,
	"coroutine": true,
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{
		L:            L,
		capabilities: make(map[Capability]bool),
		modules:      make(map[string]bool),
	}
}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() {
	// Remove functions that load code from outside the script
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installSafeRequire()
}

// AllowModule lets require load a module registered with PreloadModule.
func (s *Sandbox) AllowModule(name string) {
	s.modules[name] = true
}

// installSafeRequire replaces require with a version that only allows
// whitelisted and preloaded modules.
//
// SECURITY: package.path/cpath are cleared so nothing is loaded from disk.
func (s *Sandbox) installSafeRequire() {
	if pkgTable, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkgTable, "path", lua.LString(""))
		s.L.SetField(pkgTable, "cpath", lua.LString(""))
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)

		allowed := safeModules[modName] || s.modules[modName]
		switch modName {
		case "io":
			allowed = s.capabilities[CapabilityFileRead] || s.capabilities[CapabilityUnsafe]
			if !allowed {
				L.RaiseError("module 'io' requires filesystem capability")
			}
		case "os":
			allowed = s.capabilities[CapabilityShell] || s.capabilities[CapabilityUnsafe]
			if !allowed {
				L.RaiseError("module 'os' requires shell capability")
			}
		case "debug":
			allowed = s.capabilities[CapabilityUnsafe]
			if !allowed {
				L.RaiseError("module 'debug' requires unsafe capability")
			}
		}
		if !allowed {
			L.RaiseError("module %q is not available", modName)
			return 0
		}

		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}

// Grant enables a capability.
func (s *Sandbox) Grant(cap Capability) {
	s.capabilities[cap] = true

	switch cap {
	case CapabilityFileRead:
		s.open(lua.IoLibName, lua.OpenIo)
	case CapabilityShell:
		s.open(lua.OsLibName, lua.OpenOs)
	case CapabilityUnsafe:
		s.open(lua.IoLibName, lua.OpenIo)
		s.open(lua.OsLibName, lua.OpenOs)
		s.open(lua.DebugLibName, lua.OpenDebug)
	}
}

// open loads a standard library into the state.
func (s *Sandbox) open(name string, fn lua.LGFunction) {
	s.L.Push(s.L.NewFunction(fn))
	s.L.Push(lua.LString(name))
	s.L.Call(1, 0)
}

// HasCapability returns true if the capability is granted.
func (s *Sandbox) HasCapability(cap Capability) bool {
	return s.capabilities[cap]
}
