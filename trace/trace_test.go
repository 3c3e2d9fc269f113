package trace

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/avrsim/avr"
	"github.com/ezrec/avrsim/model"
)

func newTestMcu(t *testing.T) *avr.Mcu {
	dev, err := model.New("atmega328p", make([]byte, 32*1024), make([]byte, 0x900))
	require.NoError(t, err)
	return dev.Mcu
}

func TestParseProbe(t *testing.T) {
	assert := assert.New(t)

	mcu := newTestMcu(t)

	probe, err := ParseProbe(mcu, "PORTB")
	assert.NoError(err)
	assert.Equal(avr.Offset(0x25), probe.Offset)
	assert.Equal(-1, probe.Bit)
	assert.Equal(8, probe.Width())

	probe, err = ParseProbe(mcu, "TIFR0.1")
	assert.NoError(err)
	assert.Equal(avr.Offset(0x35), probe.Offset)
	assert.Equal(1, probe.Bit)
	assert.Equal(1, probe.Width())

	_, err = ParseProbe(mcu, "NOPE")
	assert.ErrorIs(err, ErrRegister)
	_, err = ParseProbe(mcu, "PORTB.9")
	assert.ErrorIs(err, ErrBit)
	_, err = ParseProbe(mcu, "PORTB.x")
	assert.ErrorIs(err, ErrBit)

	_, err = NewRecorder(mcu, &List{}, "PORTB", "NOPE")
	var ep *ErrProbe
	assert.True(errors.As(err, &ep))
	assert.Equal("NOPE", ep.Name)
}

func TestRecorder(t *testing.T) {
	assert := assert.New(t)

	mcu := newTestMcu(t)
	list := &List{}
	rec, err := NewRecorder(mcu, list, "PORTB", "PORTB.5")
	require.NoError(t, err)
	mcu.AddTicker(rec)

	mcu.Tick()
	assert.Empty(list.Changes)

	mcu.IoSet(0x25, 0x20)
	mcu.Tick()
	mcu.IoSet(0x25, 0x21)
	mcu.Tick()
	mcu.Tick()

	assert.Equal([]Change{
		{Name: "PORTB", Old: 0x00, New: 0x20, Cycle: 2},
		{Name: "PORTB.5", Old: 0, New: 1, Cycle: 2},
		{Name: "PORTB", Old: 0x20, New: 0x21, Cycle: 3},
	}, list.Changes)
}

type failSink struct {
	calls int
}

func (fs *failSink) Record(change Change) error {
	fs.calls++
	return errors.New("full")
}

func TestRecorder_SinkError(t *testing.T) {
	assert := assert.New(t)

	mcu := newTestMcu(t)
	log, hook := test.NewNullLogger()
	mcu.Log = log.WithField("mcu", "test")

	sink := &failSink{}
	rec, err := NewRecorder(mcu, sink, "PORTB", "PORTC")
	require.NoError(t, err)
	mcu.AddTicker(rec)

	mcu.Tick()
	mcu.IoSet(0x25, 0x01)
	mcu.IoSet(0x28, 0x01)
	mcu.Tick()
	mcu.IoSet(0x25, 0x02)
	mcu.Tick()

	assert.Equal(1, sink.calls)
	assert.Error(rec.Err())
	assert.Len(hook.AllEntries(), 1)
	assert.Equal(logrus.WarnLevel, hook.LastEntry().Level)
}

func TestVcdWriter(t *testing.T) {
	assert := assert.New(t)

	mcu := newTestMcu(t)
	assert.Equal(avr.MHZ, mcu.Freq())

	rec, err := NewRecorder(mcu, nil, "PORTB", "PORTB.5")
	require.NoError(t, err)

	var out bytes.Buffer
	vw, err := NewVcdWriter(&out, mcu, rec.Probes())
	require.NoError(t, err)
	rec.Sink = vw
	mcu.AddTicker(rec)

	mcu.Tick()
	mcu.IoSet(0x25, 0x20)
	mcu.Tick()
	require.NoError(t, vw.Flush())

	assert.Equal(`$comment atmega328p $end
$timescale 1 ns $end
$scope module atmega328p $end
$var wire 8 ! PORTB $end
$var wire 1 " PORTB.5 $end
$upscope $end
$enddefinitions $end
#0
$dumpvars
b00000000 !
0"
$end
#2000
b00100000 !
1"
`, out.String())

	assert.ErrorIs(vw.Record(Change{Name: "PORTC"}), ErrRegister)
}

func TestVcdWriter_Time(t *testing.T) {
	assert := assert.New(t)

	vw := &VcdWriter{freq: 16 * avr.MHZ}
	assert.Equal(uint64(62), vw.Time(1))
	assert.Equal(uint64(1_000_000_000), vw.Time(16_000_000))
	// Past the point where cycles * 1e9 no longer fits in 64 bits.
	assert.Equal(uint64(68_719_476_736_000), vw.Time(1<<40))
	assert.Equal(uint64(1_000_000_000_000_000_000), vw.Time(16_000_000_000_000_000))

	vw = &VcdWriter{}
	assert.Equal(uint64(1<<40), vw.Time(1<<40))
}

func TestVcdId(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("!", vcdId(0))
	assert.Equal("~", vcdId(93))
	assert.Equal("!!", vcdId(94))
	assert.Equal("\"!", vcdId(95))
}

func TestLog(t *testing.T) {
	assert := assert.New(t)

	log, hook := test.NewNullLogger()
	sink := &Log{Log: log}

	assert.NoError(sink.Record(Change{Name: "PORTB", Old: 1, New: 2, Cycle: 7}))
	entry := hook.LastEntry()
	assert.Equal("0x01 -> 0x02", entry.Message)
	assert.Equal("PORTB", entry.Data["probe"])
	assert.Equal(uint64(7), entry.Data["cycle"])
}
