package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable creates a read-only platform table and injects it into
// the Lua state as the global "platform". Pin files use it for conditional
// declarations, e.g. asset overrides that only apply on one OS.
// This must be called before loading any user configuration code.
func InjectPlatformTable(L *lua.LState, p Platform) error {
	platformTable := L.NewTable()

	L.SetField(platformTable, "os", lua.LString(p.OS))
	L.SetField(platformTable, "arch", lua.LString(p.Arch))
	L.SetField(platformTable, "key", lua.LString(p.Key()))

	L.SetField(platformTable, "is_linux", lua.LBool(p.IsLinux()))
	L.SetField(platformTable, "is_macos", lua.LBool(p.IsMacOS()))
	L.SetField(platformTable, "is_windows", lua.LBool(p.IsWindows()))

	L.SetField(platformTable, "is_x86_64", lua.LBool(p.Arch == ArchX8664))
	L.SetField(platformTable, "is_aarch64", lua.LBool(p.Arch == ArchAarch64))

	// Helper: when(condition, value) returns value if condition holds,
	// nil otherwise. Lets pin files write platform conditionals inline.
	whenFunc := L.NewFunction(func(L *lua.LState) int {
		cond := L.CheckBool(1)
		value := L.Get(2)
		if cond {
			L.Push(value)
		} else {
			L.Push(lua.LNil)
		}
		return 1
	})
	L.SetField(platformTable, "when", whenFunc)

	L.SetGlobal("platform", makeReadOnly(L, platformTable))
	return nil
}

// makeReadOnly wraps a table in a proxy whose metatable forwards reads to
// the original table and rejects all writes.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	proxy := L.NewTable()
	mt := L.NewTable()

	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	L.SetMetatable(proxy, mt)
	return proxy
}
