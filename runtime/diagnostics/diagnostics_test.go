package diagnostics

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seq-lang/seq/runtime/config"
)

type fakeSnapshotter struct {
	snaps []StrandSnapshot
}

func (f *fakeSnapshotter) Snapshot() []StrandSnapshot { return f.snaps }

func TestKPIReport_StartWordAccumulatesCallsAndElapsed(t *testing.T) {
	r := NewKPIReport()
	s1 := r.StartWord("dup")
	s1.End()
	s2 := r.StartWord("dup")
	s2.End()
	s3 := r.StartWord("swap")
	s3.End()

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatHuman))
	out := buf.String()
	require.Contains(t, out, "dup")
	require.Contains(t, out, "calls=2")
	require.Contains(t, out, "swap")
	require.Contains(t, out, "calls=1")
}

func TestKPIReport_WriteJSON(t *testing.T) {
	r := NewKPIReport()
	r.StartWord("dup").End()

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, FormatJSON))

	var decoded struct {
		Words []struct {
			Word  string `json:"word"`
			Calls uint64 `json:"calls"`
		} `json:"words"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Words, 1)
	require.Equal(t, "dup", decoded.Words[0].Word)
	require.Equal(t, uint64(1), decoded.Words[0].Calls)
}

func TestNilKPIReport_StartWordReturnsNoOpSpan(t *testing.T) {
	var r *KPIReport
	span := r.StartWord("dup")
	_, ok := span.(NoOpSpan)
	require.True(t, ok)
	span.End() // must not panic
}

func TestParseReportEnv(t *testing.T) {
	cases := []struct {
		value        string
		wantEnabled  bool
		wantFormat   Format
		wantPath     string
	}{
		{"", false, FormatHuman, ""},
		{"human", true, FormatHuman, ""},
		{"words", true, FormatHuman, ""},
		{"json", true, FormatJSON, ""},
		{"json:/tmp/report.json", true, FormatJSON, "/tmp/report.json"},
	}
	for _, c := range cases {
		enabled, format, path := ParseReportEnv(c.value)
		require.Equal(t, c.wantEnabled, enabled, "value=%q", c.value)
		require.Equal(t, c.wantFormat, format, "value=%q", c.value)
		require.Equal(t, c.wantPath, path, "value=%q", c.value)
	}
}

func TestWatchdog_ReportsStrandBlockedPastDeadline(t *testing.T) {
	restore := fakeTime(t)
	defer restore()

	snap := &fakeSnapshotter{snaps: []StrandSnapshot{
		{ID: 1, State: "blocked", Blocked: true},
	}}

	var reported []StrandSnapshot
	var mu sync.Mutex
	wd := NewWatchdog(5*time.Millisecond, 20*time.Millisecond, snap, func(s StrandSnapshot) {
		mu.Lock()
		reported = append(reported, s)
		mu.Unlock()
	})

	wd.poll() // first sighting: records blockedSince, does not report yet
	require.Empty(t, reported)

	advanceFakeTime(30 * time.Millisecond)
	wd.poll()
	require.Len(t, reported, 1)
	require.Equal(t, uint64(1), reported[0].ID)
}

func TestWatchdog_ClearsBlockedSinceWhenStrandUnblocks(t *testing.T) {
	restore := fakeTime(t)
	defer restore()

	snap := &fakeSnapshotter{snaps: []StrandSnapshot{{ID: 1, Blocked: true}}}
	var reportCount int
	wd := NewWatchdog(5*time.Millisecond, 20*time.Millisecond, snap, func(s StrandSnapshot) {
		reportCount++
	})

	wd.poll()
	snap.snaps = []StrandSnapshot{{ID: 1, Blocked: false}}
	advanceFakeTime(30 * time.Millisecond)
	wd.poll()

	require.Equal(t, 0, reportCount)
}

func TestQuitHandler_DumpWritesSnapshotLines(t *testing.T) {
	snap := &fakeSnapshotter{snaps: []StrandSnapshot{
		{ID: 2, State: "running", CurrentWord: "loop", Blocked: false},
		{ID: 1, State: "blocked", CurrentWord: "chan.receive", Blocked: true},
	}}
	var buf bytes.Buffer
	h := &QuitHandler{w: &buf, snap: snap}
	h.dump()

	out := buf.String()
	require.True(t, strings.Contains(out, "strand 1"))
	require.True(t, strings.Contains(out, "strand 2"))
	// snapshot must be sorted by ID regardless of Snapshot()'s own order
	require.Less(t, strings.Index(out, "strand 1"), strings.Index(out, "strand 2"))
}

func TestNewOnStuckHandler_WarnLogsWithoutExiting(t *testing.T) {
	var buf bytes.Buffer
	h := NewOnStuckHandler(config.WatchdogWarn, &buf)
	h(StrandSnapshot{ID: 3, State: "blocked", CurrentWord: "chan.receive"})

	out := buf.String()
	require.Contains(t, out, "strand 3")
	require.Contains(t, out, "chan.receive")
}

// --- test-only fake clock plumbing ---

var fakeNow time.Time

func fakeTime(t *testing.T) func() {
	t.Helper()
	original := timeNow
	fakeNow = time.Now()
	timeNow = func() time.Time { return fakeNow }
	return func() { timeNow = original }
}

func advanceFakeTime(d time.Duration) {
	fakeNow = fakeNow.Add(d)
}
