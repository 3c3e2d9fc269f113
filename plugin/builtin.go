package plugin

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/ezrec/avrsim/avr"
)

// register resolves a register argument: a name, or a data address.
func (p *Plugin) register(L *lua.LState, n int) (off avr.Offset) {
	mcu := p.dev.Mcu

	switch arg := L.CheckAny(n).(type) {
	case lua.LString:
		reg, ok := mcu.LookupIoReg(string(arg))
		if !ok {
			L.ArgError(n, f("no register %q", string(arg)))
			return
		}
		off = reg.Offset
	case lua.LNumber:
		if arg < avr.IO_START || int(arg) >= int(mcu.RamStart) {
			L.ArgError(n, f("address %v is not an I/O register", arg))
			return
		}
		off = avr.Offset(arg)
	default:
		L.ArgError(n, f("register name or address expected"))
	}
	return
}

func (p *Plugin) luaRead(L *lua.LState) int {
	off := p.register(L, 1)
	L.Push(lua.LNumber(p.dev.Mcu.IoGet(off)))
	return 1
}

func (p *Plugin) luaWrite(L *lua.LState) int {
	off := p.register(L, 1)
	value := L.CheckInt(2)
	if value < 0 || value > 0xff {
		L.ArgError(2, f("value %d is not a byte", value))
		return 0
	}
	p.dev.Mcu.IoSet(off, byte(value))
	return 0
}

func (p *Plugin) luaIrq(L *lua.LState) int {
	name := L.CheckString(1)
	v, ok := p.dev.Mcu.Irq.Lookup(name)
	if !ok {
		L.ArgError(1, f("no vector %q", name))
		return 0
	}
	p.dev.Mcu.RaiseIRQ(v)
	return 0
}

func (p *Plugin) luaPin(L *lua.LState) int {
	name := L.CheckString(1)
	bit := L.CheckInt(2)

	port, ok := p.dev.Port(name)
	if !ok {
		L.ArgError(1, f("no port %q", name))
		return 0
	}
	if bit < 0 || bit > 7 {
		L.ArgError(2, f("bit %d out of range", bit))
		return 0
	}

	mask := byte(1) << bit
	if L.Get(3) == lua.LNil {
		port.Release(mask)
		return 0
	}
	if lua.LVAsBool(L.Get(3)) {
		port.SetInput(mask, mask)
	} else {
		port.SetInput(mask, 0)
	}
	return 0
}

func (p *Plugin) luaCycles(L *lua.LState) int {
	L.Push(lua.LNumber(p.dev.Mcu.Cycles()))
	return 1
}

func (p *Plugin) luaFreq(L *lua.LState) int {
	L.Push(lua.LNumber(p.dev.Mcu.Freq()))
	return 1
}

func (p *Plugin) luaLog(L *lua.LState) int {
	message := L.CheckString(1)
	p.dev.Mcu.Logger().WithField("plugin", p.Name).Info(message)
	return 0
}

func (p *Plugin) luaFail(L *lua.LState) int {
	message := L.CheckString(1)
	p.dev.Mcu.Fault(avr.STATE_TEST_FAIL, &ErrScript{Name: p.Name, Err: errors.New(message)})
	return 0
}
