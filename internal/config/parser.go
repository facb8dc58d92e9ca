package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	lua "github.com/yuin/gopher-lua"

	"github.com/RosalindThackerByrne/grel/internal/platform"
)

// Lua schema field names and globals.
const (
	luaGlobalGrel   = "grel"
	luaFieldPins    = "pins"
	luaFieldOptions = "options"
	luaFieldName    = "name"
	luaFieldRepo    = "repo"
	luaFieldVersion = "version"
	luaFieldAsset   = "asset"
	luaFieldVerify  = "verify"
	luaFieldKey     = "key"
	luaFieldRetries = "retries"
	luaFieldTimeout = "timeout"
	luaFieldCache   = "cache_dir"
)

// Parser executes pin files in a sandboxed Lua VM. When a detector is
// supplied, the detected platform is injected as a read-only `platform`
// table so pins can be conditional on the host.
type Parser struct {
	detector platform.Detector
}

// NewParser returns a Parser using detector for the platform table. A nil
// detector skips injection.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile parses the pin file at path. A missing file is not an error:
// it parses as an empty config, since pins are optional.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, errors.Wrapf(err, "read pin file %s", path)
	}
	cfg, err := p.ParseString(ctx, string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse pin file %s", path)
	}
	return cfg, nil
}

// ParseString parses a pin file held in memory.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	if p.detector != nil {
		host, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "detect platform")
		}
		if err := platform.InjectPlatformTable(L, host); err != nil {
			return nil, errors.Wrap(err, "inject platform table")
		}
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, errors.Wrapf(ErrLuaSyntax, "%s", trimTraceback(err.Error()))
	}

	return extractConfig(L)
}

// ErrLuaSyntax marks a pin file the Lua VM rejected.
var ErrLuaSyntax = errors.New("pin file syntax error")

// extractConfig reads the global `grel` table out of an executed state.
func extractConfig(L *lua.LState) (*Config, error) {
	root := L.GetGlobal(luaGlobalGrel)
	if root.Type() != lua.LTTable {
		return nil, errors.Newf("missing or invalid %q table: expected table, got %s", luaGlobalGrel, root.Type())
	}

	cfg := &Config{}
	table := root.(*lua.LTable)

	if pinsVal := table.RawGetString(luaFieldPins); pinsVal.Type() == lua.LTTable {
		cfg.Pins = extractPins(pinsVal.(*lua.LTable))
	}
	if optsVal := table.RawGetString(luaFieldOptions); optsVal.Type() == lua.LTTable {
		cfg.Options = extractOptions(optsVal.(*lua.LTable))
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate pin file")
	}
	return cfg, nil
}

// extractPins walks the pins array. Nil entries from platform conditionals
// like `platform.is_linux and {...} or nil` are skipped.
func extractPins(table *lua.LTable) []Pin {
	var pins []Pin

	table.ForEach(func(_, value lua.LValue) {
		if value.Type() != lua.LTTable {
			return
		}
		pinTable := value.(*lua.LTable)

		pin := Pin{
			Name:    stringField(pinTable, luaFieldName),
			Repo:    stringField(pinTable, luaFieldRepo),
			Version: stringField(pinTable, luaFieldVersion),
			Asset:   stringField(pinTable, luaFieldAsset),
			Verify:  stringField(pinTable, luaFieldVerify),
			Key:     stringField(pinTable, luaFieldKey),
		}

		// A pin inherits its repo's trailing segment as its name.
		if pin.Name == "" && pin.Repo != "" {
			if i := strings.LastIndex(pin.Repo, "/"); i >= 0 {
				pin.Name = pin.Repo[i+1:]
			}
		}

		pins = append(pins, pin)
	})

	return pins
}

func extractOptions(table *lua.LTable) Options {
	opts := Options{}

	if v := table.RawGetString(luaFieldRetries); v.Type() == lua.LTNumber {
		opts.Retries = int(lua.LVAsNumber(v))
	}
	if v := table.RawGetString(luaFieldTimeout); v.Type() == lua.LTNumber {
		opts.Timeout = time.Duration(lua.LVAsNumber(v)) * time.Second
	}
	if v := table.RawGetString(luaFieldCache); v.Type() == lua.LTString {
		opts.CacheDir = v.String()
	}

	return opts
}

func stringField(table *lua.LTable, field string) string {
	if v := table.RawGetString(field); v.Type() == lua.LTString {
		return v.String()
	}
	return ""
}

// trimTraceback drops the Lua stack traceback from an error message; the
// first line carries everything a pin-file author needs.
func trimTraceback(msg string) string {
	if idx := strings.Index(msg, "stack traceback"); idx > 0 {
		return strings.TrimSpace(msg[:idx])
	}
	return msg
}
