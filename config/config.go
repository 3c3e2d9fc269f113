// Package config loads simulation settings from a Starlark file.
//
// The file is a Starlark program. Its global variables name the settings:
//
//	mcu = "atmega328p"
//	freq = 16 * MHZ
//	firmware = "blink.hex"
//	fuses = {0: 0xff, 1: 0xde}
//	trace = ["PORTB", "PORTB.5"]
//
// Relative paths are resolved against the directory of the file.
package config

import (
	"maps"
	"path/filepath"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/internal"
	"github.com/ezrec/avrsim/model"
)

// Config is a simulation's settings.
type Config struct {
	Mcu       string       // Device model name.
	Freq      avr.Freq     // External clock or crystal frequency.
	Firmware  string       // Intel HEX file.
	Fuses     map[int]byte // Fuse bytes to program, by index.
	Lock      byte         // Lock bits, if HasLock.
	HasLock   bool         // Lock bits are set.
	Trace     []string     // Registers to trace.
	Vcd       string       // VCD output file.
	TrapAtIsr bool         // Stop on interrupt entry.
	MaxCycles uint64       // Stop after this many cycles, 0 to run forever.
	Plugins   []string     // Lua peripheral scripts.
	IpcSocket string       // Status socket path.
	Console   bool         // Bridge USART0 to the terminal.
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Mcu:   "atmega328p",
		Freq:  avr.FREQ_UNKNOWN,
		Fuses: map[int]byte{},
	}
}

var _constants = map[string]starlark.Value{
	"KHZ": starlark.MakeUint64(uint64(avr.KHZ)),
	"MHZ": starlark.MakeUint64(uint64(avr.MHZ)),
}

var _builtins = map[string]starlark.Value{
	"bit": starlark.NewBuiltin("bit", builtinBit),
}

// builtinBit returns the mask of bit 'n'.
func builtinBit(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (value starlark.Value, err error) {
	var n int
	err = starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &n)
	if err != nil {
		return
	}
	if n < 0 || n > 7 {
		err = &ErrValue{Name: "bit", Value: n}
		return
	}
	value = starlark.MakeInt(1 << n)
	return
}

// predeclared returns the names visible to a configuration file.
func predeclared() starlark.StringDict {
	names := maps.Collect(internal.IterSeq2Concat(
		maps.All(_constants),
		maps.All(_builtins),
	))

	mcus := []starlark.Value{}
	for _, name := range model.Names() {
		mcus = append(mcus, starlark.String(name))
	}
	names["MCUS"] = starlark.Tuple(mcus)

	return starlark.StringDict(names)
}

// Load runs a configuration file. If 'src' is nil the file is read from
// 'filename'; otherwise 'src' is its content, as for starlark.ExecFile.
func Load(filename string, src any) (cfg *Config, err error) {
	thread := starlark.Thread{Name: filename}
	opts := syntax.FileOptions{}

	globals, err := starlark.ExecFileOptions(&opts, &thread, filename, src, predeclared())
	if err != nil {
		err = &ErrLoad{Filename: filename, Err: err}
		return
	}

	cfg = Default()
	err = cfg.apply(globals, filepath.Dir(filename))
	if err != nil {
		cfg = nil
		err = &ErrLoad{Filename: filename, Err: err}
		return
	}

	return
}

func (cfg *Config) apply(globals starlark.StringDict, dir string) (err error) {
	var freq uint64
	var lock int
	var fuses map[int]byte

	steps := []func() error{
		func() error { return getString(globals, "mcu", &cfg.Mcu) },
		func() error { return getUint64(globals, "freq", &freq) },
		func() error { return getString(globals, "firmware", &cfg.Firmware) },
		func() error { return getFuses(globals, "fuses", &fuses) },
		func() error { return getStrings(globals, "trace", &cfg.Trace) },
		func() error { return getString(globals, "vcd", &cfg.Vcd) },
		func() error { return getBool(globals, "trap_at_isr", &cfg.TrapAtIsr) },
		func() error { return getUint64(globals, "max_cycles", &cfg.MaxCycles) },
		func() error { return getStrings(globals, "plugins", &cfg.Plugins) },
		func() error { return getString(globals, "ipc_socket", &cfg.IpcSocket) },
		func() error { return getBool(globals, "console", &cfg.Console) },
	}
	for _, step := range steps {
		err = step()
		if err != nil {
			return
		}
	}

	if _, ok := globals["lock"]; ok {
		err = getInt(globals, "lock", &lock)
		if err != nil {
			return
		}
		if lock < 0 || lock > 0xff {
			err = &ErrValue{Name: "lock", Value: lock}
			return
		}
		cfg.Lock = byte(lock)
		cfg.HasLock = true
	}

	if fuses != nil {
		cfg.Fuses = fuses
	}
	if freq != 0 {
		cfg.Freq = avr.Freq(freq)
	}

	_, err = model.Lookup(cfg.Mcu)
	if err != nil {
		return
	}

	cfg.Firmware = resolve(dir, cfg.Firmware)
	cfg.Vcd = resolve(dir, cfg.Vcd)
	for n, plugin := range cfg.Plugins {
		cfg.Plugins[n] = resolve(dir, plugin)
	}

	return
}

// resolve makes a relative path relative to 'dir'.
func resolve(dir string, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
