package emulator

import (
	"encoding/json"
	"errors"

	"github.com/ezrec/avrsim/io"
	"github.com/ezrec/avrsim/ipc"
	"github.com/ezrec/avrsim/queue"
)

// startPump creates the event queue and its consumer, and subscribes to
// port changes.
func (emu *Emulator) startPump() (err error) {
	emu.events, err = queue.New(EVENT_SLOTS, EVENT_SIZE)
	if err != nil {
		return
	}

	emu.pumpDone = make(chan struct{})
	go emu.pump()

	emu.OnPortChange(func(change io.PortChange) {
		emu.publish(ipc.Message{
			Kind:  ipc.KIND_PORT,
			Cycle: change.Cycle,
			Port:  change.Name,
			Out:   change.Port,
			Ddr:   change.Ddr,
			Pin:   change.Pin,
		})
	})

	return
}

// stopPump drains the queue and waits for the consumer to exit.
func (emu *Emulator) stopPump() {
	emu.OnPortChange(nil)

	// An empty event ends the pump.
	err := emu.events.Put(nil)
	if err == nil {
		<-emu.pumpDone
	}
	emu.events.Destroy()
}

// publish queues a status event, filling in the device fields.
func (emu *Emulator) publish(msg ipc.Message) {
	if emu.events == nil {
		return
	}

	mcu := emu.Mcu
	msg.Mcu = mcu.Name
	if msg.Kind != ipc.KIND_PORT {
		msg.Cycle = mcu.Cycles()
		msg.Freq = uint64(mcu.Freq())
	}

	data, err := json.Marshal(&msg)
	if err == nil {
		err = emu.events.Put(data)
	}
	if err != nil {
		mcu.Logger().WithError(err).Warn(f("status event dropped"))
	}
}

// pump forwards queued events to the publisher.
func (emu *Emulator) pump() {
	defer close(emu.pumpDone)

	failed := false
	for {
		data, err := emu.events.Get()
		if err != nil || len(data) == 0 {
			return
		}

		var msg ipc.Message
		err = json.Unmarshal(data, &msg)
		if err == nil && !failed {
			err = emu.publisher.Publish(msg)
		}
		if err != nil && !failed {
			failed = true
			if !errors.Is(err, ipc.ErrClosed) {
				emu.Mcu.Logger().WithError(err).Warn(f("status publisher failed"))
			}
		}
	}
}
