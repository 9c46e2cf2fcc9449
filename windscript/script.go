// Package windscript evaluates user-supplied Lua wind profiles.
//
// A script defines a global function wind(t) that maps elapsed seconds to a
// wind force:
//
//	function wind(t)
//	  if t < 2 then return 0 end
//	  return 2 * math.min(1, (t - 2) / 8)
//	end
package windscript

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// FuncName is the global the script must define.
const FuncName = "wind"

// ErrScript is returned when a script cannot be loaded.
var ErrScript = errors.New("windscript: invalid script")

// Script is a loaded Lua wind profile. It implements chime.WindModel.
//
// Evaluation errors and non-numeric results yield NaN; the engine reports
// those as a computation error. The most recent evaluation error is kept for
// Err.
type Script struct {
	mu    sync.Mutex
	state *lua.LState
	fn    *lua.LFunction
	name  string
	err   error
}

// Load compiles src and resolves its wind function.
func Load(src string) (*Script, error) {
	return load("<string>", func(L *lua.LState) error { return L.DoString(src) })
}

// LoadFile compiles the script at path.
func LoadFile(path string) (*Script, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	return load(path, func(L *lua.LState) error { return L.DoFile(path) })
}

func load(name string, run func(*lua.LState) error) (*Script, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	if err := openLibs(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrScript, name, err)
	}
	if err := run(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrScript, name, err)
	}
	fn, ok := L.GetGlobal(FuncName).(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("%w: %s does not define function %s(t)", ErrScript, name, FuncName)
	}
	return &Script{state: L, fn: fn, name: name}, nil
}

// unsafeGlobals are base library functions that read files.
var unsafeGlobals = []string{"dofile", "loadfile"}

// openLibs loads the sandbox: base, table, string and math. No io, os or
// file loading.
func openLibs(L *lua.LState) error {
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
		if err != nil {
			return err
		}
	}
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return nil
}

// Name returns the file the script was loaded from, or "<string>".
func (s *Script) Name() string {
	return s.name
}

// Force evaluates wind(t). It is safe for concurrent use.
func (s *Script) Force(t float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		s.err = fmt.Errorf("windscript: %s is closed", s.name)
		return math.NaN()
	}
	L := s.state
	if err := L.CallByParam(lua.P{Fn: s.fn, NRet: 1, Protect: true}, lua.LNumber(t)); err != nil {
		s.err = fmt.Errorf("windscript: %s: wind(%g): %w", s.name, t, err)
		return math.NaN()
	}
	ret := L.Get(-1)
	L.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		s.err = fmt.Errorf("windscript: %s: wind(%g) returned %s, want number", s.name, t, ret.Type())
		return math.NaN()
	}
	return float64(n)
}

// Err returns the most recent evaluation error, if any.
func (s *Script) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the Lua state. Force returns NaN afterwards.
func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil {
		s.state.Close()
		s.state = nil
	}
}
