// Package ipc publishes simulation status to other processes.
package ipc

import (
	"sync"
)

// Kind is the kind of a status message.
type Kind string

const (
	KIND_START = Kind("start") // Simulation started.
	KIND_END   = Kind("end")   // Simulation ended.
	KIND_PORT  = Kind("port")  // A GPIO port changed.
)

// Message is one status message.
type Message struct {
	Kind  Kind   `json:"kind"`
	Mcu   string `json:"mcu"`
	Cycle uint64 `json:"cycle"`

	// KIND_START and KIND_END.
	Freq    uint64 `json:"freq,omitempty"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`

	// KIND_PORT.
	Port string `json:"port,omitempty"`
	Out  byte   `json:"out"`
	Ddr  byte   `json:"ddr"`
	Pin  byte   `json:"pin"`
}

// Publisher receives status messages.
type Publisher interface {
	Publish(msg Message) error
	Close() error
}

// Recorder is a Publisher that keeps its messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
}

var _ Publisher = (*Recorder)(nil)

// Publish appends a message.
func (rec *Recorder) Publish(msg Message) (err error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.closed {
		err = ErrClosed
		return
	}
	rec.messages = append(rec.messages, msg)
	return
}

// Close stops accepting messages.
func (rec *Recorder) Close() (err error) {
	rec.mu.Lock()
	rec.closed = true
	rec.mu.Unlock()
	return
}

// Messages returns a copy of the published messages.
func (rec *Recorder) Messages() (list []Message) {
	rec.mu.Lock()
	list = append(list, rec.messages...)
	rec.mu.Unlock()
	return
}
