// Package plugin runs external hardware models written in Lua.
//
// A plugin script is run once when loaded. If it defines a global function
// 'tick', that function is called with the cycle count every 'period'
// cycles (a global number, default 1). Scripts reach the device through the
// 'avr' table:
//
//	avr.read(reg)            -- register value, by name or data address
//	avr.write(reg, value)    -- set a register, bypassing CPU side effects
//	avr.irq(name)            -- raise an interrupt vector
//	avr.pin(port, bit, high) -- drive an input pin; nil releases it
//	avr.cycles()             -- elapsed cycles
//	avr.freq()               -- CPU frequency, 0 if unknown
//	avr.log(message)         -- log at info level
//	avr.fail(message)        -- end the run as a failed test
package plugin

import (
	"os"

	lua "github.com/yuin/gopher-lua"

	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/model"
)

// Plugin is one loaded Lua script.
type Plugin struct {
	Name   string
	Period uint64 // Cycles between calls of 'tick'.

	dev   *model.Device
	state *lua.LState
	tick  *lua.LFunction
	count uint64
	err   error
}

var _ avr.Ticker = (*Plugin)(nil)

// New creates a plugin with an empty script.
func New(name string, dev *model.Device) (p *Plugin) {
	p = &Plugin{
		Name:   name,
		Period: 1,
		dev:    dev,
		state:  lua.NewState(),
	}

	module := p.state.NewTable()
	p.state.SetFuncs(module, map[string]lua.LGFunction{
		"read":   p.luaRead,
		"write":  p.luaWrite,
		"irq":    p.luaIrq,
		"pin":    p.luaPin,
		"cycles": p.luaCycles,
		"freq":   p.luaFreq,
		"log":    p.luaLog,
		"fail":   p.luaFail,
	})
	p.state.SetGlobal("avr", module)

	return
}

// Load creates a plugin from a script file.
func Load(path string, dev *model.Device) (p *Plugin, err error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return
	}

	p = New(path, dev)
	err = p.Run(string(src))
	if err != nil {
		p.Close()
		p = nil
	}
	return
}

// Run runs script source in the plugin, then looks up 'tick' and 'period'.
func (p *Plugin) Run(src string) (err error) {
	L := p.state

	err = L.DoString(src)
	if err != nil {
		err = &ErrScript{Name: p.Name, Err: err}
		return
	}

	p.tick = nil
	if fn, ok := L.GetGlobal("tick").(*lua.LFunction); ok {
		p.tick = fn
	}

	switch period := L.GetGlobal("period").(type) {
	case lua.LNumber:
		if period < 1 {
			err = &ErrScript{Name: p.Name, Err: ErrPeriod}
			return
		}
		p.Period = uint64(period)
	case *lua.LNilType:
	default:
		err = &ErrScript{Name: p.Name, Err: ErrPeriod}
		return
	}

	return
}

// Err returns the error that stopped the plugin, if any.
func (p *Plugin) Err() error {
	return p.err
}

// Close releases the Lua state.
func (p *Plugin) Close() {
	if p.state != nil {
		p.state.Close()
		p.state = nil
	}
}

// Tick calls the script's 'tick' function every Period cycles. A failing
// script is logged and stopped.
func (p *Plugin) Tick(mcu *avr.Mcu) {
	if p.tick == nil || p.err != nil || p.state == nil {
		return
	}

	p.count++
	if p.count < p.Period {
		return
	}
	p.count = 0

	err := p.state.CallByParam(lua.P{
		Fn:      p.tick,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(mcu.Cycles()))
	if err != nil {
		p.err = &ErrScript{Name: p.Name, Err: err}
		mcu.Logger().WithField("plugin", p.Name).WithError(err).Warn(f("plugin stopped"))
	}
}
