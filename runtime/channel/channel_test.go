package channel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seq-lang/seq/runtime/arena"
)

func scalarMsg(v int64) Message {
	return Message{Scalar: v}
}

func TestSendReceive_FIFOOrder(t *testing.T) {
	c := New()
	srcA, dstA := arena.New(1), arena.New(2)

	c.Send(srcA, dstA, scalarMsg(1))
	c.Send(srcA, dstA, scalarMsg(2))

	m1, err := c.Receive()
	require.NoError(t, err)
	require.Equal(t, int64(1), m1.Scalar)

	m2, err := c.Receive()
	require.NoError(t, err)
	require.Equal(t, int64(2), m2.Scalar)
}

func TestReceive_BlocksUntilSend(t *testing.T) {
	c := New()
	srcA, dstA := arena.New(1), arena.New(2)

	result := make(chan Message, 1)
	go func() {
		m, err := c.Receive()
		require.NoError(t, err)
		result <- m
	}()

	time.Sleep(10 * time.Millisecond)
	c.Send(srcA, dstA, scalarMsg(42))

	select {
	case m := <-result:
		require.Equal(t, int64(42), m.Scalar)
	case <-time.After(time.Second):
		t.Fatal("receive never unblocked")
	}
}

func TestReceiveSafe_ReturnsNotOkWhenEmpty(t *testing.T) {
	c := New()
	_, ok, closed := c.ReceiveSafe()
	require.False(t, ok)
	require.False(t, closed)
}

func TestReceiveSafe_ReturnsQueuedMessage(t *testing.T) {
	c := New()
	srcA, dstA := arena.New(1), arena.New(2)
	c.Send(srcA, dstA, scalarMsg(7))

	m, ok, closed := c.ReceiveSafe()
	require.True(t, ok)
	require.False(t, closed)
	require.Equal(t, int64(7), m.Scalar)
}

func TestClose_DrainsThenReturnsErrClosed(t *testing.T) {
	c := New()
	srcA, dstA := arena.New(1), arena.New(2)
	c.Send(srcA, dstA, scalarMsg(1))
	c.Close()

	m, err := c.Receive()
	require.NoError(t, err)
	require.Equal(t, int64(1), m.Scalar)

	_, err = c.Receive()
	require.ErrorIs(t, err, ErrClosed)
}

func TestClose_WakesBlockedReceivers(t *testing.T) {
	c := New()
	errs := make(chan error, 1)
	go func() {
		_, err := c.Receive()
		errs <- err
	}()
	time.Sleep(10 * time.Millisecond)
	c.Close()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("close never woke blocked receiver")
	}
}

func TestSend_PanicsOnClosedChannel(t *testing.T) {
	c := New()
	srcA, dstA := arena.New(1), arena.New(2)
	c.Close()
	require.Panics(t, func() { c.Send(srcA, dstA, scalarMsg(1)) })
}

func TestSend_DeepCopiesArenaPayloadIntoReceiverArena(t *testing.T) {
	c := New()
	src := arena.New(1)
	dst := arena.New(2)

	ref := src.NewString("payload")
	c.Send(src, dst, Message{IsArenaRef: true, ArenaKind: arena.KindString, ArenaRef: ref})

	m, err := c.Receive()
	require.NoError(t, err)
	require.Equal(t, uint64(2), m.ArenaRef.ThreadID)

	v := dst.Get(m.ArenaRef).(*arena.StringValue)
	require.Equal(t, "payload", string(v.Bytes))
}

func TestSendReceive_ConcurrentProducersConsumersDeliverAll(t *testing.T) {
	c := New()
	srcA, dstA := arena.New(1), arena.New(2)

	const n = 500
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			c.Send(srcA, dstA, scalarMsg(v))
		}(int64(i))
	}

	received := make([]int64, 0, n)
	var mu sync.Mutex
	var rwg sync.WaitGroup
	for i := 0; i < n; i++ {
		rwg.Add(1)
		go func() {
			defer rwg.Done()
			m, err := c.Receive()
			require.NoError(t, err)
			mu.Lock()
			received = append(received, m.Scalar.(int64))
			mu.Unlock()
		}()
	}
	wg.Wait()
	rwg.Wait()
	require.Len(t, received, n)
}
