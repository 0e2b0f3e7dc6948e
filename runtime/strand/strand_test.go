package strand

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_SpawnRunsEntryAndReturnsResult(t *testing.T) {
	p := NewPool(2)
	p.Start()
	defer p.Close()

	s := p.Spawn(func(s *Strand) error { return nil })
	require.NoError(t, s.Wait())
	require.Equal(t, StateDone, s.State())
}

func TestPool_SpawnPropagatesEntryError(t *testing.T) {
	p := NewPool(2)
	p.Start()
	defer p.Close()

	want := errors.New("boom")
	s := p.Spawn(func(s *Strand) error { return want })
	require.ErrorIs(t, s.Wait(), want)
}

func TestPool_ManyStrandsAllComplete(t *testing.T) {
	p := NewPool(4)
	p.Start()
	defer p.Close()

	const n = 200
	var counter atomic.Int64
	strands := make([]*Strand, n)
	for i := 0; i < n; i++ {
		strands[i] = p.Spawn(func(s *Strand) error {
			counter.Add(1)
			return nil
		})
	}
	for _, s := range strands {
		require.NoError(t, s.Wait())
	}
	require.Equal(t, int64(n), counter.Load())
}

func TestPool_EachStrandGetsDistinctArena(t *testing.T) {
	p := NewPool(2)
	p.Start()
	defer p.Close()

	var a, b *Strand
	done := make(chan struct{}, 2)
	a = p.Spawn(func(s *Strand) error { done <- struct{}{}; return nil })
	b = p.Spawn(func(s *Strand) error { done <- struct{}{}; return nil })
	<-done
	<-done
	require.NotEqual(t, a.Arena, b.Arena)
	require.NotEqual(t, a.ID, b.ID)
}

func TestPool_RequeuePutsBlockedStrandBackOnReadyQueue(t *testing.T) {
	p := NewPool(1)

	var runs atomic.Int64
	release := make(chan struct{})
	finished := make(chan struct{})

	s := newStrand(func(s *Strand) error {
		runs.Add(1)
		return nil
	})
	s.setState(StateBlocked)

	go func() {
		<-release
		p.Requeue(s)
	}()

	p.Start()
	defer p.Close()
	go func() {
		require.NoError(t, s.Wait())
		close(finished)
	}()

	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("requeued strand never ran")
	}
	require.Equal(t, int64(1), runs.Load())
	require.Equal(t, StateDone, s.State())
}

func TestPool_CloseWaitsForInFlightWorkersToStop(t *testing.T) {
	p := NewPool(2)
	p.Start()

	s := p.Spawn(func(s *Strand) error { return nil })
	require.NoError(t, s.Wait())
	p.Close()
}

func TestPool_SetCapacityBlocksSpawnUntilAStrandCompletes(t *testing.T) {
	p := NewPool(2)
	p.SetCapacity(1)
	p.Start()
	defer p.Close()

	release := make(chan struct{})
	first := p.Spawn(func(s *Strand) error {
		<-release
		return nil
	})

	spawned := make(chan *Strand, 1)
	go func() {
		spawned <- p.Spawn(func(s *Strand) error { return nil })
	}()

	select {
	case <-spawned:
		t.Fatal("second Spawn should have blocked at capacity 1")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, first.Wait())

	second := <-spawned
	require.NoError(t, second.Wait())
}

func TestPool_SnapshotReportsCurrentWordAndState(t *testing.T) {
	p := NewPool(1)
	p.Start()
	defer p.Close()

	release := make(chan struct{})
	entered := make(chan struct{})
	s := p.Spawn(func(s *Strand) error {
		s.SetCurrentWord("chan.receive")
		close(entered)
		<-release
		return nil
	})
	<-entered

	snaps := p.Snapshot()
	require.Len(t, snaps, 1)
	require.Equal(t, s.ID, snaps[0].ID)
	require.Equal(t, "chan.receive", snaps[0].CurrentWord)
	require.Equal(t, "running", snaps[0].State)

	close(release)
	require.NoError(t, s.Wait())
	require.Empty(t, p.Snapshot())
}

func TestYieldInterval_DefaultsToZeroAndIsSettable(t *testing.T) {
	SetYieldInterval(0)
	require.Equal(t, uint64(0), YieldInterval())
	SetYieldInterval(1000)
	require.Equal(t, uint64(1000), YieldInterval())
	SetYieldInterval(0)
}
