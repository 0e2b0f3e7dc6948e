// Package diagnostics implements the runtime's out-of-band observability
// surface: a SIGQUIT handler that dumps every strand's state without
// terminating the process, a watchdog that flags strands stuck past a
// deadline, and an at-exit KPI report controlled by SEQ_REPORT.
//
// The signal-to-context plumbing here generalizes the teacher's
// newCancellableContext (SIGINT/SIGTERM -> cancel) to SIGQUIT -> dump:
// same dedicated-goroutine-plus-channel shape, different terminal
// action, since a diagnostic dump must never cancel the program it is
// inspecting. KPIReport's StartWord/End span pattern is grounded on the
// teacher's Span/NoOpSpan telemetry stub, adapted from a tracing
// interface into a concrete accumulator since this runtime needs real
// numbers at exit, not a hook for a future tracer.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/seq-lang/seq/runtime/config"
)

// StrandSnapshot is one strand's state at the moment a dump is taken.
type StrandSnapshot struct {
	ID         uint64
	State      string
	CurrentWord string
	Blocked    bool
}

// Snapshotter is implemented by the scheduler: diagnostics never reaches
// into strand.Pool directly, so the runtime package has no import-cycle
// dependency on the scheduler package.
type Snapshotter interface {
	Snapshot() []StrandSnapshot
}

// QuitHandler owns the dedicated goroutine that watches for SIGQUIT and
// writes a strand dump to w each time it fires, without exiting the
// process — repeated SIGQUIT produces repeated dumps.
type QuitHandler struct {
	w    io.Writer
	snap Snapshotter

	sigCh chan os.Signal
	done  chan struct{}
}

// NewQuitHandler starts listening for SIGQUIT immediately; call Stop to
// release the signal registration.
func NewQuitHandler(w io.Writer, snap Snapshotter) *QuitHandler {
	h := &QuitHandler{
		w:     w,
		snap:  snap,
		sigCh: make(chan os.Signal, 1),
		done:  make(chan struct{}),
	}
	signal.Notify(h.sigCh, syscall.SIGQUIT)
	go h.loop()
	return h
}

func (h *QuitHandler) loop() {
	for {
		select {
		case <-h.sigCh:
			h.dump()
		case <-h.done:
			return
		}
	}
}

func (h *QuitHandler) dump() {
	snaps := h.snap.Snapshot()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })

	var b strings.Builder
	fmt.Fprintf(&b, "=== seq strand dump (%d strands) ===\n", len(snaps))
	for _, s := range snaps {
		fmt.Fprintf(&b, "strand %d: state=%s word=%s blocked=%v\n", s.ID, s.State, s.CurrentWord, s.Blocked)
	}
	_, _ = io.WriteString(h.w, b.String())
}

// Stop unregisters the signal and halts the handler's goroutine.
func (h *QuitHandler) Stop() {
	signal.Stop(h.sigCh)
	close(h.done)
}

// Watchdog periodically checks every strand's time-in-state against a
// deadline and reports any strand that has been blocked longer than
// that deadline — a strand parked on a channel receive nobody will ever
// satisfy, most often.
type Watchdog struct {
	interval time.Duration
	deadline time.Duration
	snap     Snapshotter
	onStuck  func(StrandSnapshot)

	stop chan struct{}
	wg   sync.WaitGroup

	mu         sync.Mutex
	blockedSince map[uint64]time.Time
}

// NewWatchdog creates a watchdog that polls every interval and reports
// (via onStuck) any strand that has remained blocked for at least
// deadline.
func NewWatchdog(interval, deadline time.Duration, snap Snapshotter, onStuck func(StrandSnapshot)) *Watchdog {
	return &Watchdog{
		interval:     interval,
		deadline:     deadline,
		snap:         snap,
		onStuck:      onStuck,
		stop:         make(chan struct{}),
		blockedSince: map[uint64]time.Time{},
	}
}

// Start begins polling in a background goroutine.
func (w *Watchdog) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.poll()
			case <-w.stop:
				return
			}
		}
	}()
}

func (w *Watchdog) poll() {
	now := timeNow()
	seen := map[uint64]bool{}

	w.mu.Lock()
	for _, s := range w.snap.Snapshot() {
		seen[s.ID] = true
		if !s.Blocked {
			delete(w.blockedSince, s.ID)
			continue
		}
		since, ok := w.blockedSince[s.ID]
		if !ok {
			w.blockedSince[s.ID] = now
			continue
		}
		if now.Sub(since) >= w.deadline {
			w.mu.Unlock()
			w.onStuck(s)
			w.mu.Lock()
		}
	}
	for id := range w.blockedSince {
		if !seen[id] {
			delete(w.blockedSince, id)
		}
	}
	w.mu.Unlock()
}

// timeNow is indirected so tests can exercise poll() deterministically
// without sleeping for real deadlines.
var timeNow = time.Now

// Stop halts the watchdog's polling goroutine.
func (w *Watchdog) Stop() {
	close(w.stop)
	w.wg.Wait()
}

// NewOnStuckHandler builds the Watchdog callback SEQ_WATCHDOG_ACTION
// selects between: warn always logs the stuck strand to w and keeps
// running; exit logs the same line, then terminates the process with
// exit code 2 (spec.md §7 tier 3: a fatal process error), since a
// strand stuck past the deadline is the watchdog's only terminal
// action — it never unwinds or cancels the strand itself.
func NewOnStuckHandler(action config.WatchdogAction, w io.Writer) func(StrandSnapshot) {
	return func(s StrandSnapshot) {
		fmt.Fprintf(w, "seq watchdog: strand %d stuck in state=%s word=%s\n", s.ID, s.State, s.CurrentWord)
		if action == config.WatchdogExit {
			os.Exit(2)
		}
	}
}

// KPIReport accumulates the counters SEQ_REPORT renders at process
// exit: per-word call counts and total wall time, structured so a
// future tracer could hang child spans off the same Span interface
// shape the teacher stubs out, without this runtime needing one yet.
type KPIReport struct {
	mu      sync.Mutex
	started time.Time
	calls   map[string]uint64
	elapsed map[string]time.Duration
}

// NewKPIReport starts a report whose wall-clock baseline is now.
func NewKPIReport() *KPIReport {
	return &KPIReport{
		started: timeNow(),
		calls:   map[string]uint64{},
		elapsed: map[string]time.Duration{},
	}
}

// Span is one measured call. End must be invoked exactly once.
type Span interface {
	End()
}

type wordSpan struct {
	r     *KPIReport
	word  string
	start time.Time
}

func (s *wordSpan) End() {
	d := timeNow().Sub(s.start)
	s.r.mu.Lock()
	s.r.calls[s.word]++
	s.r.elapsed[s.word] += d
	s.r.mu.Unlock()
}

// NoOpSpan is returned when reporting is disabled, so call sites never
// need a nil check.
type NoOpSpan struct{}

// End does nothing.
func (NoOpSpan) End() {}

// StartWord begins measuring one call to word. Pass a nil *KPIReport
// (a typed nil receiver is fine here) to get a NoOpSpan cheaply when
// SEQ_REPORT is unset, so instrumented call sites cost nothing in the
// common case.
func (r *KPIReport) StartWord(word string) Span {
	if r == nil {
		return NoOpSpan{}
	}
	return &wordSpan{r: r, word: word, start: timeNow()}
}

// Format is the SEQ_REPORT rendering mode.
type Format int

const (
	FormatHuman Format = iota
	FormatJSON
)

// wordStat is one row of the rendered report.
type wordStat struct {
	Word   string        `json:"word"`
	Calls  uint64        `json:"calls"`
	Total  time.Duration `json:"total_ns"`
}

// Write renders the accumulated report to w in the requested format.
func (r *KPIReport) Write(w io.Writer, format Format) error {
	r.mu.Lock()
	stats := make([]wordStat, 0, len(r.calls))
	for word, n := range r.calls {
		stats = append(stats, wordStat{Word: word, Calls: n, Total: r.elapsed[word]})
	}
	total := timeNow().Sub(r.started)
	r.mu.Unlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].Word < stats[j].Word })

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		return enc.Encode(struct {
			TotalNS time.Duration `json:"total_ns"`
			Words   []wordStat    `json:"words"`
		}{TotalNS: total, Words: stats})
	default:
		fmt.Fprintf(w, "seq run report: %s total\n", total)
		for _, s := range stats {
			fmt.Fprintf(w, "  %-30s calls=%-8d total=%s\n", s.Word, s.Calls, s.Total)
		}
		return nil
	}
}

// ParseReportEnv interprets the SEQ_REPORT environment variable's
// accepted forms: "human", "json", "json:<path>", or "words" (an alias
// for "human" restricted to the word table, handled identically here
// since Write already omits anything but the word table). An empty
// value means reporting is disabled.
func ParseReportEnv(value string) (enabled bool, format Format, path string) {
	if value == "" {
		return false, FormatHuman, ""
	}
	if value == "words" || value == "human" {
		return true, FormatHuman, ""
	}
	if value == "json" {
		return true, FormatJSON, ""
	}
	if strings.HasPrefix(value, "json:") {
		return true, FormatJSON, strings.TrimPrefix(value, "json:")
	}
	return true, FormatHuman, ""
}
