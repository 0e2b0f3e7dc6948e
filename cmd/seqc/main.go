// Command seqc is Seq's compiler driver: build emits LLVM IR for a
// module, lint runs the style/safety rules standalone, and test type-
// checks and lints every module under a directory as a quick smoke
// pass. Subcommand wiring, SilenceErrors, and exit-code-via-return
// (never a mid-function os.Exit, so deferred cleanup always runs)
// follow the teacher's root command in cli/main.go.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/seq-lang/seq/internal/ast"
	"github.com/seq-lang/seq/internal/codegen"
	"github.com/seq-lang/seq/internal/diagnostics"
	"github.com/seq-lang/seq/internal/ffi"
	"github.com/seq-lang/seq/internal/fingerprint"
	"github.com/seq-lang/seq/internal/lint"
	"github.com/seq-lang/seq/internal/parser"
	"github.com/seq-lang/seq/internal/resolve"
	"github.com/seq-lang/seq/internal/types"
	"github.com/seq-lang/seq/internal/unionelab"
	"github.com/seq-lang/seq/runtime/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if ue, ok := err.(*usageError); ok {
			return ue.code
		}
		return 1
	}
	return 0
}

// usageError lets a subcommand hand back a specific exit code (the
// spec distinguishes "compile failed" from "bad invocation") without
// calling os.Exit itself.
type usageError struct {
	code int
	err  error
}

func (e *usageError) Error() string { return e.err.Error() }

func newRootCmd() *cobra.Command {
	var stdlibPath, ffiPath string

	// SEQ_STDLIB_PATH, if set, overrides the --stdlib flag's own
	// default; an explicit --stdlib on the command line still wins,
	// matching the usual env-default/flag-override precedence the
	// teacher's Config-from-flags wiring follows in cli/main.go.
	defaultStdlib := "std"
	if p := config.Load().StdlibPath; p != "" {
		defaultStdlib = p
	}

	root := &cobra.Command{
		Use:           "seqc",
		Short:         "Compiler and tooling for the Seq language",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&stdlibPath, "stdlib", defaultStdlib, "path to the standard library search root (default from SEQ_STDLIB_PATH if set)")
	root.PersistentFlags().StringVar(&ffiPath, "ffi-path", "ffi", "path to the FFI manifest search root")

	root.AddCommand(newBuildCmd(&stdlibPath, &ffiPath))
	root.AddCommand(newLintCmd(&stdlibPath, &ffiPath))
	root.AddCommand(newTestCmd(&stdlibPath, &ffiPath))
	return root
}

func newBuildCmd(stdlibPath, ffiPath *string) *cobra.Command {
	var outPath string
	var manifestPath string
	var printHash bool

	cmd := &cobra.Command{
		Use:   "build <source>",
		Short: "Compile a Seq module to LLVM IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]

			if manifestPath != "" {
				if err := validateManifest(manifestPath); err != nil {
					return &usageError{code: 1, err: err}
				}
			}

			items, unions, err := compileModule(source, *stdlibPath, *ffiPath)
			if err != nil {
				return &usageError{code: 1, err: err}
			}

			// --print-hash reports the reproducible-build fingerprint
			// instead of emitting IR: two builds of semantically
			// identical source (same resolved includes, same inferred
			// effects) always print the same hash regardless of
			// formatting.
			if printHash {
				hash, err := fingerprint.Hash(items, unions)
				if err != nil {
					return &usageError{code: 1, err: err}
				}
				_, err = fmt.Fprintln(os.Stdout, hash)
				return err
			}

			ir := codegen.Emit(items, unions)

			if outPath == "" {
				_, err = fmt.Fprint(os.Stdout, ir)
				return err
			}
			return os.WriteFile(outPath, []byte(ir), 0o644)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write LLVM IR to this path instead of stdout")
	cmd.Flags().StringVar(&manifestPath, "ffi-manifest", "", "validate an FFI manifest file before building")
	cmd.Flags().BoolVar(&printHash, "print-hash", false, "print the reproducible-build fingerprint instead of emitting IR")
	return cmd
}

func newLintCmd(stdlibPath, ffiPath *string) *cobra.Command {
	var denyWarnings bool
	var format string

	cmd := &cobra.Command{
		Use:   "lint <path...>",
		Short: "Run style and safety lints over one or more modules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return &usageError{code: 1, err: fmt.Errorf("--format must be \"text\" or \"json\", got %q", format)}
			}

			var allFindings []*lint.Finding
			for _, path := range args {
				items, _, err := compileModule(path, *stdlibPath, *ffiPath)
				if err != nil {
					return &usageError{code: 1, err: err}
				}
				allFindings = append(allFindings, lint.Lint(items, denyWarnings)...)
			}

			hadErrorSeverity := false
			for _, f := range allFindings {
				if f.Severity == lint.Error {
					hadErrorSeverity = true
				}
			}

			if format == "json" {
				if err := writeLintFindingsJSON(os.Stdout, allFindings); err != nil {
					return &usageError{code: 1, err: err}
				}
			} else {
				for _, f := range allFindings {
					fmt.Fprintln(os.Stdout, f.String())
				}
			}

			if hadErrorSeverity {
				return &usageError{code: 2, err: fmt.Errorf("lint found error-severity findings")}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&denyWarnings, "deny-warnings", false, "escalate every warning finding to an error")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

// lintFindingJSON is the --format=json rendering of a lint.Finding;
// lint.Finding itself stays free of json tags since its text String()
// form is the primary, human-facing representation.
type lintFindingJSON struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

func writeLintFindingsJSON(w io.Writer, findings []*lint.Finding) error {
	out := make([]lintFindingJSON, 0, len(findings))
	for _, f := range findings {
		out = append(out, lintFindingJSON{
			ID:       f.ID,
			Severity: f.Severity.String(),
			Message:  f.Message,
			Line:     f.Pos.Line,
			Column:   f.Pos.Column,
		})
	}
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func newTestCmd(stdlibPath, ffiPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <dir>",
		Short: "Type-check and lint every module under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			files, err := seqFilesUnder(dir)
			if err != nil {
				return &usageError{code: 1, err: err}
			}
			if len(files) == 0 {
				return &usageError{code: 1, err: fmt.Errorf("no .seq files found under %s", dir)}
			}

			failures := 0
			for _, path := range files {
				items, _, err := compileModule(path, *stdlibPath, *ffiPath)
				if err != nil {
					fmt.Fprintf(os.Stdout, "FAIL %s\n%v\n", path, err)
					failures++
					continue
				}
				findings := lint.Lint(items, false)
				errCount := 0
				for _, f := range findings {
					if f.Severity == lint.Error {
						errCount++
					}
				}
				if errCount > 0 {
					fmt.Fprintf(os.Stdout, "FAIL %s (%d lint error(s))\n", path, errCount)
					failures++
					continue
				}
				fmt.Fprintf(os.Stdout, "PASS %s\n", path)
			}

			if failures > 0 {
				return &usageError{code: 1, err: fmt.Errorf("%d of %d modules failed", failures, len(files))}
			}
			return nil
		},
	}
	return cmd
}

// compileModule runs the full front end: parse, flatten includes,
// elaborate unions, and type check. It returns the flattened item list
// and the union table codegen needs.
func compileModule(path, stdlibPath, ffiPath string) ([]ast.Item, *unionelab.Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}

	mod, bag := parser.Parse(path, string(src))
	if bag.HasErrors() {
		return nil, nil, formatStageError("parse", bag)
	}

	loader := resolve.NewFSLoader(stdlibPath, ffiPath)
	resolved, rbag := resolve.Resolve(path, mod, loader)
	if rbag.HasErrors() {
		return nil, nil, formatStageError("resolve", rbag)
	}

	unions, ubag := unionelab.Elaborate(resolved.Items)
	if ubag.HasErrors() {
		return nil, nil, formatStageError("union elaboration", ubag)
	}

	_, cbag := types.Check(resolved.Items, unions)
	if cbag.HasErrors() {
		return nil, nil, formatStageError("type check", cbag)
	}

	return resolved.Items, unions, nil
}

func formatStageError(stage string, bag *diagnostics.Bag) error {
	return fmt.Errorf("%s failed:\n%s", stage, bag.FormatAll())
}

// validateManifest checks an FFI manifest against the schema. TOML
// parsing is out of scope here (the manifest format's own concern, not
// this compiler's); --ffi-manifest therefore accepts the manifest
// already converted to JSON, the generic-value form ffi.Validator
// expects from any front end.
func validateManifest(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading ffi manifest %s: %w", path, err)
	}
	v, err := ffi.NewValidator()
	if err != nil {
		return fmt.Errorf("building ffi manifest validator: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing ffi manifest %s as JSON: %w", path, err)
	}
	if err := v.Validate(doc); err != nil {
		return fmt.Errorf("ffi manifest %s: %w", path, err)
	}
	return nil
}

func seqFilesUnder(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".seq" {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}
