package bench

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	lua "github.com/yuin/gopher-lua"
)

// Engine selects the embedded interpreter.
type Engine string

const (
	EngineLua   Engine = "lua"
	EngineYaegi Engine = "yaegi"
)

// Default entry points of the embedded scripts.
const (
	DefaultLuaFunc   = "foo"
	DefaultYaegiFunc = "Sum"
)

var (
	//go:embed scripts/sum.lua
	defaultLuaScript string
	//go:embed scripts/sum.yaegi
	defaultYaegiScript string
)

var (
	// ErrScriptFunction is returned when the script does not define the requested function.
	ErrScriptFunction = errors.New("script function not found")
	// ErrScriptResult is returned when the script function does not return a number.
	ErrScriptResult = errors.New("script function did not return a number")
)

// NormalizeEngine maps user input to an Engine.
func NormalizeEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lua":
		return EngineLua, nil
	case "yaegi", "go":
		return EngineYaegi, nil
	default:
		return "", fmt.Errorf("unknown interpreter engine %q", name)
	}
}

// NewInterpreter loads script (the embedded default when empty) into engine and
// resolves fn (the engine default when empty).
func NewInterpreter(engine Engine, script, fn string) (Backend, error) {
	switch engine {
	case EngineLua:
		if fn == "" {
			fn = DefaultLuaFunc
		}
		return NewLua(script, fn)
	case EngineYaegi:
		if fn == "" {
			fn = DefaultYaegiFunc
		}
		return NewYaegi(script, fn)
	default:
		return nil, fmt.Errorf("unknown interpreter engine %q", engine)
	}
}

type luaBackend struct {
	state *lua.LState
	fn    lua.LValue
}

// NewLua loads a Lua script from path (or the embedded default) and looks up the
// global function fn.
func NewLua(path, fn string) (Backend, error) {
	L := lua.NewState()

	var err error
	if path == "" {
		err = L.DoString(defaultLuaScript)
		path = "<embedded sum.lua>"
	} else {
		err = L.DoFile(path)
	}
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("couldn't load script %s: %w", path, err)
	}

	f := L.GetGlobal(fn)
	if f.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("%w: %s in %s", ErrScriptFunction, fn, path)
	}

	return &luaBackend{state: L, fn: f}, nil
}

func (b *luaBackend) Name() Kind { return KindInterp }

// Bind marshals x into a Lua table once per size; every call reuses it.
func (b *luaBackend) Bind(x []float64) (Call, error) {
	table := b.state.CreateTable(len(x), 0)
	for i, v := range x {
		table.RawSetInt(i+1, lua.LNumber(v))
	}
	return &luaCall{b: b, table: table, n: lua.LNumber(len(x))}, nil
}

func (b *luaBackend) Close() error {
	b.state.Close()
	return nil
}

type luaCall struct {
	b     *luaBackend
	table *lua.LTable
	n     lua.LNumber
}

func (c *luaCall) Execute() (float64, error) {
	L := c.b.state
	if err := L.CallByParam(lua.P{Fn: c.b.fn, NRet: 1, Protect: true}, c.table, c.n); err != nil {
		return 0, fmt.Errorf("lua call: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	num, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("%w: got %s", ErrScriptResult, ret.Type())
	}
	return float64(num), nil
}

func (c *luaCall) Release() error {
	c.table = nil
	return nil
}

type yaegiBackend struct {
	fn func([]float64, int) float64
}

// NewYaegi evaluates a Go script (package main) from path, or the embedded default,
// and resolves main.<fn> with signature func([]float64, int) float64.
func NewYaegi(path, fn string) (Backend, error) {
	src := defaultYaegiScript
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't load script %s: %w", path, err)
		}
		src = string(data)
	} else {
		path = "<embedded sum.yaegi>"
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("yaegi stdlib: %w", err)
	}
	if _, err := i.Eval(src); err != nil {
		return nil, fmt.Errorf("couldn't load script %s: %w", path, err)
	}

	v, err := i.Eval("main." + fn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %v", ErrScriptFunction, fn, path, err)
	}
	f, ok := v.Interface().(func([]float64, int) float64)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %s, want func([]float64, int) float64", ErrScriptFunction, fn, v.Type())
	}

	return &yaegiBackend{fn: f}, nil
}

func (b *yaegiBackend) Name() Kind { return KindInterp }

// Bind needs no marshaling: the interpreter shares Go's slice representation.
func (b *yaegiBackend) Bind(x []float64) (Call, error) {
	return &yaegiCall{fn: b.fn, x: x}, nil
}

func (b *yaegiBackend) Close() error { return nil }

type yaegiCall struct {
	fn func([]float64, int) float64
	x  []float64
}

func (c *yaegiCall) Execute() (float64, error) {
	return c.fn(c.x, len(c.x)), nil
}

func (c *yaegiCall) Release() error {
	c.x = nil
	return nil
}
