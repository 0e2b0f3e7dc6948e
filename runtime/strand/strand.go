// Package strand implements the M:N cooperative scheduler running
// every Seq program: a fixed-size pool of OS-thread workers pulling
// ready strands (green threads) off a run queue, each strand carrying
// its own operand stack and arena, yielding only at well-defined
// points (channel operations, explicit yield, or — when
// SEQ_YIELD_INTERVAL is set — after a bounded number of tail calls).
//
// The acquire/release worker-pool bookkeeping here is grounded on the
// teacher's shellWorkerPool: a mutex-guarded map of live workers, a
// keyed acquire-or-create path, and release-back-to-idle instead of
// tear-down-per-task. What differs is the key: the teacher pools
// workers per (transport, shell) pair; a strand pool needs no key at
// all, since every worker is interchangeable and only the ready queue
// decides which strand runs where.
package strand

import (
	"log/slog"
	stdruntime "runtime"
	"sync"
	"sync/atomic"

	"github.com/seq-lang/seq/internal/invariant"
	"github.com/seq-lang/seq/internal/seqlog"
	"github.com/seq-lang/seq/runtime/arena"
	"github.com/seq-lang/seq/runtime/diagnostics"
)

var logger = seqlog.New("strand")

// State is a strand's scheduling state.
type State int

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateDone
)

var strandSequence atomic.Uint64

// Strand is one green thread: its own arena, its own entry point, and
// the scheduling bookkeeping the Pool needs to run it.
type Strand struct {
	ID    uint64
	Arena *arena.Arena

	mu          sync.Mutex
	state       State
	err         error
	currentWord string

	entry func(s *Strand) error

	done chan struct{}
}

// SetCurrentWord records the word a strand is executing. Codegen emits a
// call to this around every word invocation so a SIGQUIT dump or a
// watchdog report can name what a stuck strand was last doing; it costs
// one mutex-guarded string write per call, the same bookkeeping price
// the teacher's executor pays to track step names for its own dumps.
func (s *Strand) SetCurrentWord(name string) {
	s.mu.Lock()
	s.currentWord = name
	s.mu.Unlock()
}

// newStrand allocates a strand with a fresh arena and the given entry
// function. entry receives the strand itself so it can call Yield.
func newStrand(entry func(s *Strand) error) *Strand {
	id := strandSequence.Add(1)
	return &Strand{
		ID:    id,
		Arena: arena.New(id),
		state: StateReady,
		entry: entry,
		done:  make(chan struct{}),
	}
}

// Wait blocks until the strand has finished running and returns its
// terminal error, if any.
func (s *Strand) Wait() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Strand) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Strand) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pool is the M:N scheduler: a fixed number of OS-thread workers
// draining a shared ready queue. Spawn enqueues a new strand; workers
// started by Start() run until Close() drains the queue and stops them.
type Pool struct {
	width    int
	capacity int // 0 = unbounded; see SetCapacity

	mu       sync.Mutex
	ready    []*Strand
	cond     *sync.Cond
	closed   bool
	wg       sync.WaitGroup
	running  int
	live     int              // ready + running + blocked, i.e. not yet Completed
	registry map[uint64]*Strand // every live strand, for Snapshot
}

// NewPool creates a scheduler with width OS-thread workers. A width of
// 0 defaults to stdruntime.NumCPU(), mirroring how most of this
// module's concurrency primitives size themselves off the host rather
// than a hardcoded constant.
func NewPool(width int) *Pool {
	if width <= 0 {
		width = stdruntime.NumCPU()
	}
	p := &Pool{width: width, registry: map[uint64]*Strand{}}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Snapshot implements diagnostics.Snapshotter, letting a SIGQUIT dump or
// the watchdog see every strand the pool currently knows about.
func (p *Pool) Snapshot() []diagnostics.StrandSnapshot {
	p.mu.Lock()
	strands := make([]*Strand, 0, len(p.registry))
	for _, s := range p.registry {
		strands = append(strands, s)
	}
	p.mu.Unlock()

	out := make([]diagnostics.StrandSnapshot, 0, len(strands))
	for _, s := range strands {
		s.mu.Lock()
		out = append(out, diagnostics.StrandSnapshot{
			ID:          s.ID,
			State:       stateName(s.state),
			CurrentWord: s.currentWord,
			Blocked:     s.state == StateBlocked,
		})
		s.mu.Unlock()
	}
	return out
}

func stateName(st State) string {
	switch st {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// SetCapacity bounds how many strands may be simultaneously live
// (Ready, Running, or Blocked) before Spawn blocks the calling strand
// until one completes, mirroring SEQ_POOL_CAPACITY (runtime/config).
// 0, the default, means unbounded.
func (p *Pool) SetCapacity(n int) {
	p.mu.Lock()
	p.capacity = n
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Start launches the pool's fixed worker goroutines. Each is pinned to
// an OS thread via LockOSThread, since Seq strands are meant to behave
// like real green threads multiplexed over kernel threads, not
// arbitrary goroutines the Go runtime is free to migrate at will.
func (p *Pool) Start() {
	for i := 0; i < p.width; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	stdruntime.LockOSThread()
	defer stdruntime.UnlockOSThread()

	for {
		s := p.dequeue()
		if s == nil {
			return
		}
		p.run(s)
	}
}

func (p *Pool) dequeue() *Strand {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.ready) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.ready) == 0 {
		return nil
	}
	s := p.ready[0]
	p.ready = p.ready[1:]
	p.running++
	return s
}

func (p *Pool) run(s *Strand) {
	s.setState(StateRunning)
	err := s.entry(s)
	s.mu.Lock()
	s.err = err
	s.state = StateDone
	s.mu.Unlock()

	p.mu.Lock()
	p.running--
	p.live--
	delete(p.registry, s.ID)
	p.cond.Broadcast()
	p.mu.Unlock()
	close(s.done)

	if err != nil {
		logger.Debug("strand completed with error", slog.Uint64("strand_id", s.ID), slog.String("err", err.Error()))
	} else {
		logger.Debug("strand completed", slog.Uint64("strand_id", s.ID))
	}
}

// Spawn creates a new strand running entry and enqueues it as ready.
func (p *Pool) Spawn(entry func(s *Strand) error) *Strand {
	s := newStrand(entry)

	p.mu.Lock()
	invariant.Precondition(!p.closed, "strand.Pool: Spawn called after Close")
	for p.capacity > 0 && p.live >= p.capacity && !p.closed {
		p.cond.Wait()
	}
	invariant.Precondition(!p.closed, "strand.Pool: Spawn called after Close")
	p.live++
	live := p.live
	p.registry[s.ID] = s
	p.ready = append(p.ready, s)
	p.cond.Signal()
	p.mu.Unlock()

	logger.Debug("strand spawned", slog.Uint64("strand_id", s.ID), slog.Int("live", live))
	return s
}

// Requeue puts a previously-blocked strand back on the ready queue. A
// channel's wake-queue calls this once a blocked receiver's or
// sender's counterpart arrives.
func (p *Pool) Requeue(s *Strand) {
	s.setState(StateReady)

	p.mu.Lock()
	p.ready = append(p.ready, s)
	p.cond.Signal()
	p.mu.Unlock()
}

// Close stops accepting new strands and shuts workers down once the
// ready queue drains. It does not cancel strands already running or
// blocked — callers wait on those strands' own Wait() calls.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// yieldInterval, when non-zero, bounds how many consecutive word calls
// a strand runs before voluntarily yielding even absent a blocking
// channel operation — set via SEQ_YIELD_INTERVAL so long tight loops in
// one strand cannot starve the others sharing a worker.
var yieldInterval uint64

// SetYieldInterval configures the bounded-yield policy; 0 disables it
// (strands yield only at channel operations and explicit yield calls).
func SetYieldInterval(n uint64) {
	atomic.StoreUint64(&yieldInterval, n)
}

// YieldInterval reports the current policy.
func YieldInterval() uint64 {
	return atomic.LoadUint64(&yieldInterval)
}

// Yield cooperatively suspends the calling strand's worker goroutine,
// letting the Go scheduler run other ready goroutines on this OS
// thread before resuming. Codegen emits a call to this at every
// configured yield point; it is intentionally a thin wrapper over
// stdruntime.Gosched so the strand package owns the one place that
// policy can change (e.g. to a real blocking handoff) without
// touching generated code.
func Yield() {
	stdruntime.Gosched()
}
