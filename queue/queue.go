// Package queue provides a bounded, blocking queue for handing simulation
// events from the simulation goroutine to a consumer goroutine.
//
// The queue has a fixed number of slots, each holding at most a fixed number
// of bytes. Producers block while the queue is full, consumers block while it
// is empty. Destroying the queue wakes every blocked caller with
// ErrNotInitialized.
package queue

import (
	"errors"
	"sync"

	"github.com/ezrec/avrsim/translate"
)

var f = translate.From

var (
	ErrNotInitialized = errors.New(f("queue not initialized"))
	ErrTooLarge       = errors.New(f("queue element too large"))
	ErrSize           = errors.New(f("queue size invalid"))
)

// Queue is a fixed capacity FIFO of byte slices.
type Queue struct {
	mu       sync.Mutex
	notFull  sync.Cond
	notEmpty sync.Cond

	slots    [][]byte
	lengths  []int
	elemSize int
	head     int
	count    int
	alive    bool
}

// New creates a queue with 'slots' entries of up to 'elemSize' bytes each.
func New(slots int, elemSize int) (q *Queue, err error) {
	if slots <= 0 || elemSize <= 0 {
		err = ErrSize
		return
	}

	q = &Queue{
		slots:    make([][]byte, slots),
		lengths:  make([]int, slots),
		elemSize: elemSize,
		alive:    true,
	}
	for n := range q.slots {
		q.slots[n] = make([]byte, elemSize)
	}
	q.notFull.L = &q.mu
	q.notEmpty.L = &q.mu

	return
}

// Cap returns the number of slots.
func (q *Queue) Cap() int {
	return len(q.slots)
}

// Len returns the number of queued elements.
func (q *Queue) Len() (count int) {
	q.mu.Lock()
	count = q.count
	q.mu.Unlock()
	return
}

// ElemSize returns the maximum element size in bytes.
func (q *Queue) ElemSize() int {
	return q.elemSize
}

// Put copies data into the queue, blocking while the queue is full.
func (q *Queue) Put(data []byte) (err error) {
	if len(data) > q.elemSize {
		err = ErrTooLarge
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.alive && q.count == len(q.slots) {
		q.notFull.Wait()
	}
	if !q.alive {
		err = ErrNotInitialized
		return
	}

	tail := (q.head + q.count) % len(q.slots)
	q.lengths[tail] = copy(q.slots[tail], data)
	q.count++
	q.notEmpty.Signal()

	return
}

// TryPut is Put that returns ok == false instead of blocking on a full queue.
func (q *Queue) TryPut(data []byte) (ok bool, err error) {
	if len(data) > q.elemSize {
		err = ErrTooLarge
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.alive {
		err = ErrNotInitialized
		return
	}
	if q.count == len(q.slots) {
		return
	}

	tail := (q.head + q.count) % len(q.slots)
	q.lengths[tail] = copy(q.slots[tail], data)
	q.count++
	q.notEmpty.Signal()
	ok = true

	return
}

// Get removes the oldest element, blocking while the queue is empty.
// The returned slice is a copy owned by the caller.
func (q *Queue) Get() (data []byte, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.alive && q.count == 0 {
		q.notEmpty.Wait()
	}
	if !q.alive {
		err = ErrNotInitialized
		return
	}

	data = make([]byte, q.lengths[q.head])
	copy(data, q.slots[q.head])
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	q.notFull.Signal()

	return
}

// Destroy tears the queue down and wakes every blocked Put and Get.
// Destroying an already destroyed queue returns ErrNotInitialized.
func (q *Queue) Destroy() (err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.alive {
		err = ErrNotInitialized
		return
	}

	q.alive = false
	q.count = 0
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()

	return
}
