// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/config"
	"github.com/ezrec/avrsim/emulator"
	"github.com/ezrec/avrsim/io"
	"github.com/ezrec/avrsim/ipc"
	"github.com/ezrec/avrsim/model"
	"github.com/ezrec/avrsim/plugin"
	"github.com/ezrec/avrsim/trace"
)

// CONSOLE_ESCAPE (Ctrl-]) stops the simulation from the console.
const CONSOLE_ESCAPE = 0x1d

// listFlag is a repeatable string flag.
type listFlag []string

func (lf *listFlag) String() string {
	return strings.Join(*lf, ",")
}

func (lf *listFlag) Set(value string) error {
	*lf = append(*lf, value)
	return nil
}

// options are the command line flags.
type options struct {
	config    string
	mcu       string
	freq      uint64
	firmware  string
	trace     string
	vcd       string
	maxCycles uint64
	console   bool
	socket    string
	plugins   listFlag
	verbose   bool
}

func main() {
	opts := &options{}

	flag.StringVar(&opts.config, "c", "", "Starlark simulation file")
	flag.StringVar(&opts.mcu, "m", "", fmt.Sprintf("Device model (%v)", strings.Join(model.Names(), ", ")))
	flag.Uint64Var(&opts.freq, "f", 0, "External clock frequency, in Hz")
	flag.StringVar(&opts.firmware, "x", "", "Intel HEX firmware")
	flag.StringVar(&opts.trace, "t", "", "Registers to trace, comma separated (PORTB,PORTB.5)")
	flag.StringVar(&opts.vcd, "o", "", "Write the trace to a VCD file")
	flag.Uint64Var(&opts.maxCycles, "n", 0, "Halt after this many cycles")
	flag.BoolVar(&opts.console, "i", false, "Bridge USART0 to the terminal")
	flag.StringVar(&opts.socket, "s", "", "Publish status to a unix socket")
	flag.Var(&opts.plugins, "l", "Lua peripheral script (repeatable)")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		logrus.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if opts.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := settings(opts)
	if err != nil {
		logrus.Fatal(err)
	}

	os.Exit(run(cfg, opts.verbose))
}

// settings loads the simulation file, if any, then applies the flags that
// were given on the command line.
func settings(opts *options) (cfg *config.Config, err error) {
	cfg = config.Default()
	if len(opts.config) != 0 {
		cfg, err = config.Load(opts.config, nil)
		if err != nil {
			return
		}
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "m":
			cfg.Mcu = opts.mcu
		case "f":
			cfg.Freq = avr.Freq(opts.freq)
		case "x":
			cfg.Firmware = opts.firmware
		case "t":
			cfg.Trace = strings.Split(opts.trace, ",")
		case "o":
			cfg.Vcd = opts.vcd
		case "n":
			cfg.MaxCycles = opts.maxCycles
		case "i":
			cfg.Console = opts.console
		case "s":
			cfg.IpcSocket = opts.socket
		case "l":
			cfg.Plugins = append(cfg.Plugins, opts.plugins...)
		}
	})

	_, err = model.Lookup(cfg.Mcu)
	return
}

// run builds and runs the simulation, returning the exit status.
func run(cfg *config.Config, verbose bool) (status int) {
	log := logrus.WithField("mcu", cfg.Mcu)

	emuOpts := []emulator.Option{
		emulator.WithMaxCycles(cfg.MaxCycles),
		emulator.WithVerbose(verbose),
	}

	if len(cfg.IpcSocket) != 0 {
		pub, err := ipc.Dial(cfg.IpcSocket)
		if err != nil {
			log.Error(err)
			return 1
		}
		emuOpts = append(emuOpts, emulator.WithPublisher(pub))
	}

	emu, err := emulator.New(cfg.Mcu, emuOpts...)
	if err != nil {
		log.Error(err)
		return 1
	}
	defer emu.Close()

	mcu := emu.Mcu
	mcu.Irq.TrapAtIsr = cfg.TrapAtIsr

	if cfg.Freq.Known() {
		emu.SetCrystal(cfg.Freq)
	}
	for index, value := range cfg.Fuses {
		err = mcu.SetFuse(index, value)
		if err != nil {
			log.WithField("fuse", index).Error(err)
			return 1
		}
	}
	if cfg.HasLock {
		err = mcu.SetLock(cfg.Lock)
		if err != nil {
			log.Error(err)
			return 1
		}
	}

	if len(cfg.Firmware) != 0 {
		inf, err := os.Open(cfg.Firmware)
		if err != nil {
			log.Error(err)
			return 1
		}
		image, err := emu.LoadHex(inf)
		inf.Close()
		if err != nil {
			log.Errorf("%v: %v", cfg.Firmware, err)
			return 1
		}
		log.WithFields(logrus.Fields{
			"firmware": cfg.Firmware,
			"low":      image.Low,
			"high":     image.High,
		}).Info("firmware loaded")
	}

	emu.Reset()

	if len(cfg.Trace) != 0 {
		flush, err := startTrace(emu, cfg)
		if err != nil {
			log.Error(err)
			return 1
		}
		defer flush()
	}

	for _, path := range cfg.Plugins {
		p, err := plugin.Load(path, emu.Device)
		if err != nil {
			log.Error(err)
			return 1
		}
		defer p.Close()
		emu.AddTicker(p)
	}

	if cfg.Console {
		restore, err := startConsole(emu)
		if err != nil {
			log.Error(err)
			return 1
		}
		defer restore()
	} else {
		emu.SetConsole(0, os.Stdout)
	}

	start := time.Now()
	err = emu.Run()

	fields := logrus.Fields{
		"state":   mcu.State(),
		"cycles":  emu.Cycles(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}
	if speed := emu.Speed(); speed.Known() {
		fields["speed"] = uint64(speed)
	}
	log.WithFields(fields).Info("simulation ended")

	if err != nil {
		var ef *emulator.ErrTestFail
		if !errors.As(err, &ef) {
			log.Error(err)
		} else {
			log.Error(ef.Message)
		}
		status = 1
	}

	return
}

// startTrace adds a register trace to the emulator, logged or written as
// a VCD file.
func startTrace(emu *emulator.Emulator, cfg *config.Config) (flush func(), err error) {
	mcu := emu.Mcu
	log := mcu.Logger()

	rec, err := trace.NewRecorder(mcu, &trace.Log{Log: log}, cfg.Trace...)
	if err != nil {
		return
	}
	flush = func() {}

	if len(cfg.Vcd) != 0 {
		var ouf *os.File
		ouf, err = os.Create(cfg.Vcd)
		if err != nil {
			return
		}

		var vw *trace.VcdWriter
		vw, err = trace.NewVcdWriter(ouf, mcu, rec.Probes())
		if err != nil {
			ouf.Close()
			return
		}
		rec.Sink = vw

		flush = func() {
			err := vw.Flush()
			if err == nil {
				err = ouf.Close()
			}
			if err != nil {
				log.WithField("vcd", cfg.Vcd).Error(err)
			}
		}
	}

	emu.AddTicker(rec)
	return
}

// crlf expands newlines for a terminal in raw mode.
type crlf struct {
	output *os.File
}

func (cr *crlf) Write(data []byte) (n int, err error) {
	_, err = cr.output.Write([]byte(strings.ReplaceAll(string(data), "\n", "\r\n")))
	if err == nil {
		n = len(data)
	}
	return
}

// startConsole connects the terminal to USART0: keys are received by the
// device, transmitted bytes are printed. Ctrl-] stops the simulation.
func startConsole(emu *emulator.Emulator) (restore func(), err error) {
	if len(emu.Usarts) == 0 {
		err = fmt.Errorf("%v: no USART for the console", emu.Mcu.Name)
		return
	}
	usart := emu.Usarts[0]
	restore = func() {}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		var state *term.State
		state, err = term.MakeRaw(fd)
		if err != nil {
			return
		}
		restore = func() {
			term.Restore(fd, state)
		}
		emu.SetConsole(0, &crlf{output: os.Stdout})
	} else {
		emu.SetConsole(0, os.Stdout)
	}

	go func() {
		defer usart.Close()

		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			if buf[0] == CONSOLE_ESCAPE {
				emu.Mcu.SetState(avr.STATE_STOPPED)
				return
			}
			for {
				err = usart.Receive(buf[0])
				if !errors.Is(err, io.ErrInputFull) {
					break
				}
				time.Sleep(time.Millisecond)
			}
			if err != nil {
				return
			}
		}
	}()

	return
}
