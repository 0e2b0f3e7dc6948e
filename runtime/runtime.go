// Package runtime wires the scheduler, the watchdog, the SIGQUIT dump
// handler, and the at-exit KPI report into the single object a compiled
// Seq program's entry trampoline constructs once at process start and
// tears down once at exit.
//
// The shape mirrors the teacher's own process wiring in cli/main.go:
// one constructor that reads a Config, builds every subsystem off it,
// and returns a handle whose shutdown method is the only thing the
// entry point still has to call directly.
package runtime

import (
	"io"
	"os"

	"github.com/seq-lang/seq/runtime/config"
	"github.com/seq-lang/seq/runtime/diagnostics"
	"github.com/seq-lang/seq/runtime/strand"
)

// Runtime is the live set of process-wide subsystems a compiled program
// runs with: its strand pool, its watchdog, its SIGQUIT handler, and
// (when SEQ_REPORT requests one) its KPI accumulator.
type Runtime struct {
	Pool   *strand.Pool
	Report *diagnostics.KPIReport

	cfg          config.Config
	watchdog     *diagnostics.Watchdog
	quit         *diagnostics.QuitHandler
	reportOn     bool
	reportFormat diagnostics.Format
	reportPath   string
}

// Bootstrap builds a Runtime from cfg: a strand pool sized and capped
// per SEQ_POOL_CAPACITY, the tail-call yield policy from
// SEQ_YIELD_INTERVAL, a watchdog polling at SEQ_WATCHDOG_INTERVAL that
// reports strands stuck past SEQ_WATCHDOG_SECS per SEQ_WATCHDOG_ACTION,
// a SIGQUIT dump handler, and (if SEQ_REPORT requests it) a KPI report
// collector. width is the OS-thread worker count; 0 defaults to
// stdruntime.NumCPU() the same as strand.NewPool.
func Bootstrap(cfg config.Config, width int) *Runtime {
	pool := strand.NewPool(width)
	pool.SetCapacity(cfg.PoolCapacity)
	strand.SetYieldInterval(cfg.YieldInterval)

	reportOn, reportFormat, reportPath := diagnostics.ParseReportEnv(cfg.ReportEnv)

	r := &Runtime{
		Pool:         pool,
		cfg:          cfg,
		reportOn:     reportOn,
		reportFormat: reportFormat,
		reportPath:   reportPath,
	}
	if reportOn {
		r.Report = diagnostics.NewKPIReport()
	}

	onStuck := diagnostics.NewOnStuckHandler(cfg.WatchdogAction, os.Stderr)
	r.watchdog = diagnostics.NewWatchdog(cfg.WatchdogInterval, cfg.WatchdogSecs, pool, onStuck)
	r.quit = diagnostics.NewQuitHandler(os.Stderr, pool)

	pool.Start()
	r.watchdog.Start()
	return r
}

// Shutdown drains the strand pool, stops the watchdog and SIGQUIT
// handler, and — if SEQ_REPORT requested one — writes the KPI report to
// w (falling back to stdout, or to the path SEQ_REPORT named, when w is
// nil). It is the single call a compiled program's exit path makes.
func (r *Runtime) Shutdown(w io.Writer) error {
	r.Pool.Close()
	r.watchdog.Stop()
	r.quit.Stop()

	if !r.reportOn || r.Report == nil {
		return nil
	}
	if w == nil {
		if r.reportPath != "" {
			f, err := os.Create(r.reportPath)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		} else {
			w = os.Stdout
		}
	}
	return r.Report.Write(w, r.reportFormat)
}
