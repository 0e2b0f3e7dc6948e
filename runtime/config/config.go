// Package config centralizes the environment-variable-driven runtime
// configuration every compiled Seq program reads once at process
// start, the way the teacher centralizes CLI flags into a single
// Config struct (planner.Config, executor.Config) passed down through
// the pipeline instead of scattering os.Getenv calls across packages.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// WatchdogAction is what the watchdog does when a strand has been
// blocked past SEQ_WATCHDOG_SECS.
type WatchdogAction int

const (
	WatchdogWarn WatchdogAction = iota
	WatchdogExit
)

// Defaults, per spec.md §6.
const (
	DefaultStackSize        = 128 * 1024 // 128 KiB
	DefaultPoolCapacity     = 10000
	DefaultYieldInterval    = 0 // off
	DefaultWatchdogSecs     = 30 * time.Second
	DefaultWatchdogInterval = 5 * time.Second
)

// Config is the parsed form of every SEQ_* environment variable a
// compiled program's runtime consults at startup. Zero-value Config is
// not meaningful; always obtain one via Load.
type Config struct {
	// StackSize is each strand's coroutine stack size, in bytes
	// (SEQ_STACK_SIZE). The Go-goroutine-backed strand scheduler does
	// not apply it (Go's own goroutine stacks grow as needed); the
	// value is parsed and shown by String.
	StackSize int

	// PoolCapacity bounds how many strands may be live (Runnable,
	// Blocked, or Running) at once before strand.spawn blocks the
	// spawning strand (SEQ_POOL_CAPACITY).
	PoolCapacity int

	// YieldInterval is the number of tail calls a strand executes
	// before voluntarily yielding even absent a blocking operation; 0
	// disables the policy (SEQ_YIELD_INTERVAL).
	YieldInterval uint64

	// WatchdogSecs is how long a strand may remain Blocked before the
	// watchdog reports it (SEQ_WATCHDOG_SECS).
	WatchdogSecs time.Duration

	// WatchdogInterval is the watchdog's polling period
	// (SEQ_WATCHDOG_INTERVAL).
	WatchdogInterval time.Duration

	// WatchdogAction selects what happens when the watchdog fires
	// (SEQ_WATCHDOG_ACTION): log and continue, or log and exit(2).
	WatchdogAction WatchdogAction

	// ReportEnv is the raw SEQ_REPORT value, handed to
	// diagnostics.ParseReportEnv by the entry point that wires up the
	// at-exit report (kept raw here rather than pre-parsed so this
	// package has no import-cycle dependency on runtime/diagnostics).
	ReportEnv string

	// StdlibPath overrides the default stdlib search root
	// (SEQ_STDLIB_PATH); empty means the caller's own default (the
	// CLI's --stdlib flag) applies.
	StdlibPath string
}

// Load reads every SEQ_* environment variable, applying spec.md §6's
// documented defaults for anything unset or malformed. Load never
// fails: an invalid numeric value falls back to its default rather
// than aborting a compiled program's startup, since the runtime has no
// diagnostics channel open yet at this point.
func Load() Config {
	return Config{
		StackSize:        envInt("SEQ_STACK_SIZE", DefaultStackSize),
		PoolCapacity:     envInt("SEQ_POOL_CAPACITY", DefaultPoolCapacity),
		YieldInterval:    envUint64("SEQ_YIELD_INTERVAL", DefaultYieldInterval),
		WatchdogSecs:     envSeconds("SEQ_WATCHDOG_SECS", DefaultWatchdogSecs),
		WatchdogInterval: envSeconds("SEQ_WATCHDOG_INTERVAL", DefaultWatchdogInterval),
		WatchdogAction:   envWatchdogAction("SEQ_WATCHDOG_ACTION"),
		ReportEnv:        os.Getenv("SEQ_REPORT"),
		StdlibPath:       os.Getenv("SEQ_STDLIB_PATH"),
	}
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envUint64(name string, def uint64) uint64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func envWatchdogAction(name string) WatchdogAction {
	switch os.Getenv(name) {
	case "exit":
		return WatchdogExit
	default:
		return WatchdogWarn
	}
}

// String renders the configuration as a single line of key=value
// pairs, for quick eyeballing in diagnostics output.
func (c Config) String() string {
	return fmt.Sprintf(
		"stack_size=%d pool_capacity=%d yield_interval=%d watchdog_secs=%s watchdog_interval=%s stdlib_path=%q",
		c.StackSize, c.PoolCapacity, c.YieldInterval, c.WatchdogSecs, c.WatchdogInterval, c.StdlibPath,
	)
}
