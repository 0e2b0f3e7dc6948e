package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSeqFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const validSource = `: double ( Int -- Int ) dup i.+ ;`

const lintableSource = `: f ( Int Int -- Int ) swap drop ;`

func TestRun_BuildEmitsLLVMIRToStdoutByDefault(t *testing.T) {
	dir := t.TempDir()
	src := writeSeqFile(t, dir, "m.seq", validSource)

	stdout, restore := captureStdout(t)
	defer restore()

	code := run([]string{"build", src})
	require.Equal(t, 0, code)

	out := stdout()
	require.Contains(t, out, "define")
	require.Contains(t, out, "tailcc")
}

func TestRun_BuildWritesToOutFile(t *testing.T) {
	dir := t.TempDir()
	src := writeSeqFile(t, dir, "m.seq", validSource)
	outPath := filepath.Join(dir, "out.ll")

	code := run([]string{"build", src, "-o", outPath})
	require.Equal(t, 0, code)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "define")
}

func TestRun_BuildPrintHashIsDeterministicAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	src := writeSeqFile(t, dir, "m.seq", validSource)

	stdout1, restore1 := captureStdout(t)
	code := run([]string{"build", "--print-hash", src})
	require.Equal(t, 0, code)
	h1 := stdout1()
	restore1()

	stdout2, restore2 := captureStdout(t)
	code = run([]string{"build", "--print-hash", src})
	require.Equal(t, 0, code)
	h2 := stdout2()
	restore2()

	require.Equal(t, h1, h2)
	require.NotContains(t, h1, "define")
}

func TestRun_BuildFailsOnTypeError(t *testing.T) {
	dir := t.TempDir()
	src := writeSeqFile(t, dir, "m.seq", `: f ( Int -- Int ) bool.not ;`)

	code := run([]string{"build", src})
	require.Equal(t, 1, code)
}

func TestRun_LintReportsFindingAndExitsZeroWithoutDenyWarnings(t *testing.T) {
	dir := t.TempDir()
	src := writeSeqFile(t, dir, "m.seq", lintableSource)

	stdout, restore := captureStdout(t)
	defer restore()

	code := run([]string{"lint", src})
	require.Equal(t, 0, code)
	require.Contains(t, stdout(), "prefer-nip")
}

func TestRun_LintFormatJSONEmitsMachineReadableFindings(t *testing.T) {
	dir := t.TempDir()
	src := writeSeqFile(t, dir, "m.seq", lintableSource)

	stdout, restore := captureStdout(t)
	defer restore()

	code := run([]string{"lint", "--format=json", src})
	require.Equal(t, 0, code)

	var findings []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout()), &findings))
	require.Len(t, findings, 1)
	require.Equal(t, "prefer-nip", findings[0]["id"])
}

func TestRun_LintRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	src := writeSeqFile(t, dir, "m.seq", validSource)

	code := run([]string{"lint", "--format=xml", src})
	require.Equal(t, 1, code)
}

func TestRun_LintDenyWarningsExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	src := writeSeqFile(t, dir, "m.seq", lintableSource)

	code := run([]string{"lint", "--deny-warnings", src})
	require.Equal(t, 2, code)
}

func TestRun_TestCommandReportsPassAndFail(t *testing.T) {
	dir := t.TempDir()
	writeSeqFile(t, dir, "good.seq", validSource)
	writeSeqFile(t, dir, "bad.seq", `: f ( Int -- Int ) bool.not ;`)

	stdout, restore := captureStdout(t)
	defer restore()

	code := run([]string{"test", dir})
	require.Equal(t, 1, code)

	out := stdout()
	require.Contains(t, out, "PASS")
	require.Contains(t, out, "FAIL")
}

func TestRun_TestCommandAllPassExitsZero(t *testing.T) {
	dir := t.TempDir()
	writeSeqFile(t, dir, "good.seq", validSource)

	code := run([]string{"test", dir})
	require.Equal(t, 0, code)
}

func TestRun_TestCommandNoFilesFoundFails(t *testing.T) {
	dir := t.TempDir()
	code := run([]string{"test", dir})
	require.Equal(t, 1, code)
}

// captureStdout redirects os.Stdout for the duration of the test and
// returns a function to read everything written so far. The pipe is
// drained concurrently so writers never block on a full pipe buffer.
func captureStdout(t *testing.T) (read func() string, restore func()) {
	t.Helper()
	original := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	var buf bytes.Buffer
	copyDone := make(chan struct{})
	go func() {
		io.Copy(&buf, r)
		close(copyDone)
	}()

	return func() string {
			w.Close()
			<-copyDone
			return buf.String()
		}, func() {
			os.Stdout = original
		}
}
