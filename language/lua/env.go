package lua

import (
	"fmt"
	"strings"

	glua "github.com/yuin/gopher-lua"
)

// allowedGlobals is every global a script can see. The base library is
// opened in full and then cut down to this list; table, string and math
// are kept whole apart from a size cap on string.rep.
var allowedGlobals = map[string]bool{
	"_G":               true,
	"_VERSION":         true,
	"assert":           true,
	"error":            true,
	"getmetatable":     true,
	"ipairs":           true,
	"next":             true,
	"pairs":            true,
	"pcall":            true,
	"print":            true,
	"rawequal":         true,
	"rawget":           true,
	"rawset":           true,
	"select":           true,
	"setmetatable":     true,
	"tonumber":         true,
	"tostring":         true,
	"type":             true,
	"unpack":           true,
	"xpcall":           true,
	glua.TabLibName:    true,
	glua.StringLibName: true,
	glua.MathLibName:   true,
}

var libraries = []struct {
	name string
	open glua.LGFunction
}{
	{glua.BaseLibName, glua.OpenBase},
	{glua.TabLibName, glua.OpenTable},
	{glua.StringLibName, glua.OpenString},
	{glua.MathLibName, glua.OpenMath},
}

// buildEnvironment opens the allowed libraries on a state created with
// SkipOpenLibs, removes every global not on the allowlist and routes print
// to out.
func buildEnvironment(L *glua.LState, out *printBuffer) error {
	for _, lib := range libraries {
		err := L.CallByParam(glua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, glua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("open %s library: %w", lib.name, err)
		}
	}

	globals := L.G.Global
	var denied []glua.LValue
	for k, _ := globals.Next(glua.LNil); k != glua.LNil; k, _ = globals.Next(k) {
		if name, ok := k.(glua.LString); !ok || !allowedGlobals[string(name)] {
			denied = append(denied, k)
		}
	}
	for _, k := range denied {
		globals.RawSet(k, glua.LNil)
	}

	globals.RawSetString("print", L.NewFunction(out.print))
	// Strings share this table as their __index, so ("x"):rep(n) is
	// covered too.
	if strlib, ok := globals.RawGetString(glua.StringLibName).(*glua.LTable); ok {
		strlib.RawSetString("rep", L.NewFunction(strRep))
	}
	return nil
}

// MaxRepBytes caps the result of string.rep. One call is one step, so the
// quota alone does not bound it.
const MaxRepBytes = 16 << 20

func strRep(L *glua.LState) int {
	s := L.CheckString(1)
	n := L.CheckInt(2)
	if n <= 0 || s == "" {
		L.Push(glua.LString(""))
		return 1
	}
	if len(s) > MaxRepBytes/n {
		L.RaiseError("string.rep result exceeds %d bytes", MaxRepBytes)
		return 0
	}
	L.Push(glua.LString(strings.Repeat(s, n)))
	return 1
}

// printBuffer collects print output up to limit bytes and drops the rest.
type printBuffer struct {
	b         strings.Builder
	limit     int
	truncated bool
}

func (p *printBuffer) write(s string) {
	room := p.limit - p.b.Len()
	if room <= 0 {
		p.truncated = p.truncated || s != ""
		return
	}
	if len(s) > room {
		s = s[:room]
		p.truncated = true
	}
	p.b.WriteString(s)
}

// print mirrors the base library's print: arguments converted with
// tostring, separated by tabs, followed by a newline.
func (p *printBuffer) print(L *glua.LState) int {
	top := L.GetTop()
	for i := 1; i <= top; i++ {
		if i > 1 {
			p.write("\t")
		}
		p.write(L.ToStringMeta(L.Get(i)).String())
	}
	p.write("\n")
	return 0
}

func (p *printBuffer) String() string { return p.b.String() }
