package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/carbonspin/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // glob on scenario file names
	Update bool   // rewrite golden files
}

// TestResult is the outcome of one scenario.
type TestResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "mismatch", "updated" or "" without a golden file
	Errors []string `json:"errors,omitempty"`
}

// TestSummary is the outcome of a scenario directory.
type TestSummary struct {
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Total   int          `json:"total"`
	Results []TestResult `json:"results"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run every YAML scenario in a directory and check its assertions.

A scenario with a golden file at golden/<name>.golden next to it is also
compared against its recorded trace and final pools. Use --update to
rewrite the golden files from the current run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files")
	return cmd
}

func runTest(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		msg := fmt.Sprintf("scenarios directory not found: %s", dir)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	paths, err := harness.FindScenarios(dir)
	if err != nil {
		_ = formatter.Error(ErrCodeScanError, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scan scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	if len(paths) == 0 {
		msg := fmt.Sprintf("no scenario files found in %s", dir)
		_ = formatter.Error(ErrCodeNoFiles, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = newLogger(opts.RootOptions, formatter.GetErrWriter())
	}

	ctx := commandContext(cmd)
	summary := TestSummary{}
	for _, path := range paths {
		res := runScenario(ctx, path, opts.Update, logger)
		summary.Total++
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, res)
		formatter.VerboseLog("%s: pass=%t", res.Name, res.Pass)
	}

	if formatter.IsJSON() {
		if summary.Failed > 0 {
			if err := formatter.Failure(ErrCodeGeneric, fmt.Sprintf("%d scenario(s) failed", summary.Failed), summary); err != nil {
				return err
			}
		} else if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		printTestSummary(formatter.Writer, summary)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

func runScenario(ctx context.Context, path string, update bool, logger *slog.Logger) TestResult {
	res := TestResult{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), Path: path}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		res.Errors = []string{err.Error()}
		return res
	}
	res.Name = scenario.Name

	result, err := harness.Run(ctx, scenario, harness.WithLogger(logger))
	if err != nil {
		res.Errors = []string{err.Error()}
		return res
	}
	res.Errors = append(res.Errors, result.Errors...)

	goldenPath := goldenPathFor(path)
	status, err := checkGolden(goldenPath, scenario.Name, result, update)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	res.Golden = status

	res.Pass = len(res.Errors) == 0
	return res
}

// goldenPathFor returns golden/<basename>.golden next to the scenario.
func goldenPathFor(scenarioPath string) string {
	base := strings.TrimSuffix(filepath.Base(scenarioPath), filepath.Ext(scenarioPath))
	return filepath.Join(filepath.Dir(scenarioPath), "golden", base+".golden")
}

// checkGolden compares a result with its golden file, or rewrites the file
// when update is set. A scenario without a golden file is not compared.
func checkGolden(path, name string, result *harness.Result, update bool) (string, error) {
	got, err := harness.MarshalSnapshot(harness.Snapshot(name, result))
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, got, 0o644); err != nil {
			return "", fmt.Errorf("write golden file: %w", err)
		}
		return "updated", nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(want, got) {
		return "mismatch", fmt.Errorf("golden mismatch: %s differs from the current run (rerun with --update to accept)", path)
	}
	return "match", nil
}

func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		ok, err := filepath.Match(pattern, filepath.Base(p))
		if err != nil {
			return nil, fmt.Errorf("bad filter %q: %w", pattern, err)
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func printTestSummary(w io.Writer, summary TestSummary) {
	for _, r := range summary.Results {
		if r.Pass {
			fmt.Fprintf(w, "✓ %s\n", r.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
}
