// Package trace records changes of I/O registers as a simulation runs.
//
// A Recorder is a per-cycle tick hook. It watches named registers, or single
// register bits written as "PORTB.5", and hands every change to a Sink.
package trace

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ezrec/avrsim/avr"
)

// Change is one observed change of a probe.
type Change struct {
	Name  string
	Old   byte
	New   byte
	Cycle uint64
}

// Sink receives changes.
type Sink interface {
	Record(change Change) error
}

// Probe is a watched register, or a single bit of it.
type Probe struct {
	Name   string
	Offset avr.Offset
	Bit    int // -1 for the whole register.

	last byte
}

// Width is the probe width in bits.
func (pr *Probe) Width() int {
	if pr.Bit < 0 {
		return 8
	}
	return 1
}

// value samples the probe.
func (pr *Probe) value(mcu *avr.Mcu) byte {
	value := mcu.IoGet(pr.Offset)
	if pr.Bit < 0 {
		return value
	}
	return (value >> pr.Bit) & 1
}

// ParseProbe resolves a register name, with an optional ".bit" suffix.
func ParseProbe(mcu *avr.Mcu, name string) (probe Probe, err error) {
	regName, bitName, hasBit := strings.Cut(name, ".")

	reg, ok := mcu.LookupIoReg(regName)
	if !ok {
		err = &ErrProbe{Name: name, Err: ErrRegister}
		return
	}

	probe = Probe{
		Name:   name,
		Offset: reg.Offset,
		Bit:    -1,
	}

	if hasBit {
		var bit int
		bit, err = strconv.Atoi(bitName)
		if err != nil || bit < 0 || bit > 7 {
			err = &ErrProbe{Name: name, Err: ErrBit}
			return
		}
		probe.Bit = bit
	}

	return
}

// Recorder watches probes every cycle.
type Recorder struct {
	Sink Sink

	probes  []Probe
	started bool
	err     error
}

var _ avr.Ticker = (*Recorder)(nil)

// NewRecorder creates a recorder of the named probes.
func NewRecorder(mcu *avr.Mcu, sink Sink, names ...string) (rec *Recorder, err error) {
	rec = &Recorder{Sink: sink}
	for _, name := range names {
		var probe Probe
		probe, err = ParseProbe(mcu, name)
		if err != nil {
			rec = nil
			return
		}
		rec.probes = append(rec.probes, probe)
	}
	return
}

// Probes returns the recorder's probes.
func (rec *Recorder) Probes() []Probe {
	return rec.probes
}

// Err returns the first error returned by the sink. Recording stops after
// an error.
func (rec *Recorder) Err() error {
	return rec.err
}

// Tick samples every probe. The first tick takes the baseline.
func (rec *Recorder) Tick(mcu *avr.Mcu) {
	if rec.err != nil {
		return
	}

	for n := range rec.probes {
		probe := &rec.probes[n]
		value := probe.value(mcu)
		if rec.started && value == probe.last {
			continue
		}

		old := probe.last
		probe.last = value
		if !rec.started {
			continue
		}

		err := rec.Sink.Record(Change{
			Name:  probe.Name,
			Old:   old,
			New:   value,
			Cycle: mcu.Cycles(),
		})
		if err != nil {
			rec.err = err
			mcu.Logger().WithError(err).Warn(f("trace stopped"))
			return
		}
	}

	rec.started = true
}

// Log is a Sink that logs every change.
type Log struct {
	Log logrus.FieldLogger
}

var _ Sink = (*Log)(nil)

// Record logs a change at info level.
func (lg *Log) Record(change Change) (err error) {
	lg.Log.WithFields(logrus.Fields{
		"probe": change.Name,
		"cycle": change.Cycle,
	}).Infof("0x%02x -> 0x%02x", change.Old, change.New)
	return
}

// List is a Sink that keeps every change.
type List struct {
	Changes []Change
}

var _ Sink = (*List)(nil)

// Record appends a change.
func (ls *List) Record(change Change) (err error) {
	ls.Changes = append(ls.Changes, change)
	return
}
