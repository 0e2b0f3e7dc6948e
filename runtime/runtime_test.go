package runtime

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seq-lang/seq/runtime/config"
	"github.com/seq-lang/seq/runtime/strand"
)

func TestBootstrap_RunsStrandsAndShutsDownCleanly(t *testing.T) {
	cfg := config.Load()
	cfg.PoolCapacity = 4
	cfg.ReportEnv = ""
	r := Bootstrap(cfg, 2)

	s := r.Pool.Spawn(func(s *strand.Strand) error { return nil })
	require.NoError(t, s.Wait())

	require.NoError(t, r.Shutdown(nil))
}

func TestBootstrap_WritesKPIReportWhenRequested(t *testing.T) {
	cfg := config.Load()
	cfg.ReportEnv = "json"
	r := Bootstrap(cfg, 1)

	span := r.Report.StartWord("dup")
	time.Sleep(time.Millisecond)
	span.End()

	var buf bytes.Buffer
	require.NoError(t, r.Shutdown(&buf))
	require.Contains(t, buf.String(), "dup")
}

func TestBootstrap_SkipsReportWhenUnset(t *testing.T) {
	cfg := config.Load()
	cfg.ReportEnv = ""
	r := Bootstrap(cfg, 1)
	require.Nil(t, r.Report)
	require.NoError(t, r.Shutdown(nil))
}
