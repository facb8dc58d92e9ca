package config

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxLuaVM removes every Lua facility that could execute commands,
// touch the filesystem, or load external code. Pin files are declarative;
// string, table, and math stay available for composing them.
func sandboxLuaVM(L *lua.LState) {
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)

	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)

	// debug can rebuild most of the above.
	L.SetGlobal("debug", lua.LNil)
}

// newSandboxedVM is the only way a pin-file Lua state gets created.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
