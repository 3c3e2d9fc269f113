package trace

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ezrec/avrsim/avr"
)

// VCD_ID_FIRST and VCD_ID_RANGE are the printable characters of VCD
// identifier codes.
const (
	VCD_ID_FIRST = '!'
	VCD_ID_RANGE = '~' - '!' + 1
)

// VCD_NS is the dump time units per second.
const VCD_NS = 1_000_000_000

// VcdWriter is a Sink writing a value change dump.
//
// Time is in nanoseconds when the CPU frequency is known. Otherwise one
// cycle is written as one nanosecond.
type VcdWriter struct {
	freq   avr.Freq
	ids    map[string]string
	widths map[string]int
	output *bufio.Writer
	now    uint64
	timed  bool
}

var _ Sink = (*VcdWriter)(nil)

// vcdId returns the identifier code of the n'th variable.
func vcdId(n int) (id string) {
	for {
		id += string(rune(VCD_ID_FIRST + n%VCD_ID_RANGE))
		n /= VCD_ID_RANGE
		if n == 0 {
			return
		}
		n--
	}
}

// NewVcdWriter writes the dump header and the current value of every probe.
func NewVcdWriter(output io.Writer, mcu *avr.Mcu, probes []Probe) (vw *VcdWriter, err error) {
	vw = &VcdWriter{
		freq:   mcu.Freq(),
		ids:    map[string]string{},
		widths: map[string]int{},
		output: bufio.NewWriter(output),
	}

	w := vw.output
	fmt.Fprintf(w, "$comment %v $end\n", mcu.Name)
	fmt.Fprintf(w, "$timescale 1 ns $end\n")
	fmt.Fprintf(w, "$scope module %v $end\n", mcu.Name)
	for n := range probes {
		probe := &probes[n]
		id := vcdId(n)
		vw.ids[probe.Name] = id
		vw.widths[probe.Name] = probe.Width()
		fmt.Fprintf(w, "$var wire %d %v %v $end\n", probe.Width(), id, probe.Name)
	}
	fmt.Fprintf(w, "$upscope $end\n")
	fmt.Fprintf(w, "$enddefinitions $end\n")

	fmt.Fprintf(w, "#0\n$dumpvars\n")
	for n := range probes {
		probe := &probes[n]
		vw.value(probe.Name, probe.value(mcu))
	}
	fmt.Fprintf(w, "$end\n")

	err = w.Flush()
	if err != nil {
		vw = nil
	}
	return
}

// Time converts a cycle count to dump time.
func (vw *VcdWriter) Time(cycle uint64) uint64 {
	if !vw.freq.Known() {
		return cycle
	}
	freq := uint64(vw.freq)
	return cycle/freq*VCD_NS + cycle%freq*VCD_NS/freq
}

func (vw *VcdWriter) value(name string, value byte) {
	id := vw.ids[name]
	if vw.widths[name] == 1 {
		fmt.Fprintf(vw.output, "%d%v\n", value&1, id)
		return
	}
	fmt.Fprintf(vw.output, "b%08b %v\n", value, id)
}

// Record writes a change.
func (vw *VcdWriter) Record(change Change) (err error) {
	if _, ok := vw.ids[change.Name]; !ok {
		err = &ErrProbe{Name: change.Name, Err: ErrRegister}
		return
	}

	now := vw.Time(change.Cycle)
	if !vw.timed || now != vw.now {
		vw.now = now
		vw.timed = true
		fmt.Fprintf(vw.output, "#%d\n", now)
	}
	vw.value(change.Name, change.New)

	return
}

// Flush writes out buffered changes.
func (vw *VcdWriter) Flush() error {
	return vw.output.Flush()
}
