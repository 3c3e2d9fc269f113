package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blockWait = 50 * time.Millisecond

func TestQueue_New(t *testing.T) {
	assert := assert.New(t)

	_, err := New(0, 16)
	assert.ErrorIs(err, ErrSize)

	_, err = New(4, 0)
	assert.ErrorIs(err, ErrSize)

	q, err := New(4, 16)
	assert.NoError(err)
	assert.Equal(4, q.Cap())
	assert.Equal(16, q.ElemSize())
	assert.Equal(0, q.Len())
}

func TestQueue_Order(t *testing.T) {
	assert := assert.New(t)

	q, err := New(3, 8)
	require.NoError(t, err)

	for round := range 3 {
		for n := range 3 {
			assert.NoError(q.Put([]byte{byte(round), byte(n)}))
		}
		for n := range 3 {
			data, err := q.Get()
			assert.NoError(err)
			assert.Equal([]byte{byte(round), byte(n)}, data)
		}
	}
}

func TestQueue_TooLarge(t *testing.T) {
	assert := assert.New(t)

	q, err := New(2, 4)
	require.NoError(t, err)

	assert.ErrorIs(q.Put([]byte{1, 2, 3, 4, 5}), ErrTooLarge)
	_, err = q.TryPut(make([]byte, 5))
	assert.ErrorIs(err, ErrTooLarge)
	assert.Equal(0, q.Len())
}

func TestQueue_TryPut(t *testing.T) {
	assert := assert.New(t)

	q, err := New(1, 4)
	require.NoError(t, err)

	ok, err := q.TryPut([]byte{1})
	assert.NoError(err)
	assert.True(ok)

	ok, err = q.TryPut([]byte{2})
	assert.NoError(err)
	assert.False(ok)
}

func TestQueue_ProducerBlocks(t *testing.T) {
	assert := assert.New(t)

	q, err := New(2, 4)
	require.NoError(t, err)

	assert.NoError(q.Put([]byte{1}))
	assert.NoError(q.Put([]byte{2}))

	done := make(chan error)
	go func() {
		done <- q.Put([]byte{3})
	}()

	select {
	case <-done:
		t.Fatal("Put on a full queue did not block")
	case <-time.After(blockWait):
	}

	data, err := q.Get()
	assert.NoError(err)
	assert.Equal([]byte{1}, data)

	assert.NoError(<-done)
	assert.Equal(2, q.Len())
}

func TestQueue_ConsumerBlocks(t *testing.T) {
	assert := assert.New(t)

	q, err := New(2, 4)
	require.NoError(t, err)

	done := make(chan []byte)
	go func() {
		data, _ := q.Get()
		done <- data
	}()

	select {
	case <-done:
		t.Fatal("Get on an empty queue did not block")
	case <-time.After(blockWait):
	}

	assert.NoError(q.Put([]byte{9}))
	assert.Equal([]byte{9}, <-done)
}

func TestQueue_DestroyWakesProducer(t *testing.T) {
	assert := assert.New(t)

	q, err := New(1, 4)
	require.NoError(t, err)
	assert.NoError(q.Put([]byte{1}))

	done := make(chan error)
	go func() {
		done <- q.Put([]byte{2})
	}()

	time.Sleep(blockWait)
	assert.NoError(q.Destroy())
	assert.ErrorIs(<-done, ErrNotInitialized)
}

func TestQueue_DestroyWakesConsumer(t *testing.T) {
	assert := assert.New(t)

	q, err := New(1, 4)
	require.NoError(t, err)

	done := make(chan error)
	go func() {
		_, err := q.Get()
		done <- err
	}()

	time.Sleep(blockWait)
	assert.NoError(q.Destroy())
	assert.ErrorIs(<-done, ErrNotInitialized)
}

func TestQueue_DestroyTwice(t *testing.T) {
	assert := assert.New(t)

	q, err := New(1, 4)
	require.NoError(t, err)

	assert.NoError(q.Destroy())
	assert.ErrorIs(q.Destroy(), ErrNotInitialized)
	assert.ErrorIs(q.Put([]byte{1}), ErrNotInitialized)
	_, err = q.Get()
	assert.ErrorIs(err, ErrNotInitialized)
}
