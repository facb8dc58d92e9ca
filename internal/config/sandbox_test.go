package config

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestSandboxRemovesDangerousGlobals(t *testing.T) {
	L := newSandboxedVM()
	defer L.Close()

	for _, name := range []string{"os", "io", "require", "dofile", "loadfile", "load", "loadstring", "debug"} {
		if L.GetGlobal(name) != lua.LNil {
			t.Errorf("global %q survived sandboxing", name)
		}
	}
}

func TestSandboxRejectsEscapes(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"os.execute", `os.execute("id")`},
		{"io.open", `io.open("/etc/passwd")`},
		{"require", `require("socket")`},
		{"loadstring", `loadstring("return 1")()`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newSandboxedVM()
			defer L.Close()
			if err := L.DoString(tt.code); err == nil {
				t.Error("expected sandboxed code to fail")
			}
		})
	}
}

func TestSandboxKeepsSafeLibraries(t *testing.T) {
	L := newSandboxedVM()
	defer L.Close()

	code := `
result = string.upper("fd") .. "-" .. tostring(math.max(1, 2)) .. "-" .. table.concat({"a", "b"}, ",")
`
	if err := L.DoString(code); err != nil {
		t.Fatalf("safe libraries unavailable: %v", err)
	}
	got := L.GetGlobal("result").String()
	if !strings.HasPrefix(got, "FD-2-") {
		t.Errorf("result = %q", got)
	}
}
