package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/spy/internal/harness"
)

// Golden file states reported per scenario.
const (
	goldenNone    = "none"
	goldenMatched = "matched"
	goldenStale   = "stale"
	goldenUpdated = "updated"
)

type testOptions struct {
	*RootOptions
	update bool
	filter string
}

// ScenarioReport is the verdict for one scenario file.
type ScenarioReport struct {
	Name    string   `json:"name"`
	File    string   `json:"file"`
	Backend string   `json:"backend,omitempty"`
	Outcome string   `json:"outcome,omitempty"`
	Golden  string   `json:"golden,omitempty"`
	Pass    bool     `json:"pass"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *ScenarioReport) fail(format string, args ...any) {
	r.Pass = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// SuiteReport aggregates a scenario directory.
type SuiteReport struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (s *SuiteReport) add(r ScenarioReport) {
	s.Scenarios = append(s.Scenarios, r)
	s.Total++
	if r.Pass {
		s.Passed++
	} else {
		s.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &testOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run replay scenarios",
		Long: `Run YAML replay scenarios through the engine.

Each scenario is a small trace log plus assertions about the outcome,
counters, census and stall diagnosis. When a golden file exists at
<scenarios-dir>/golden/<name>.golden the run snapshot must also match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  spy test ./scenarios
  spy test ./scenarios --filter "stall*"
  spy test ./scenarios --update
  spy test ./scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.update, "update", false, "rewrite golden files from the current snapshots")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "only run scenarios whose file name matches this glob")

	return cmd
}

func (o *testOptions) run(cmd *cobra.Command, dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := findScenarioFiles(dir, o.filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot list scenarios", err)
	}
	o.logger().Debug("scenarios found", "dir", dir, "count", len(files))

	out := o.formatter(cmd)
	suite := SuiteReport{Scenarios: []ScenarioReport{}}
	if len(files) == 0 && o.Format != "json" {
		fmt.Fprintln(out.Writer, "No scenarios found.")
		return nil
	}

	for _, file := range files {
		r := o.runScenario(file)
		suite.add(r)
		if o.Format != "json" {
			writeScenarioText(out, r)
		}
	}

	if o.Format == "json" {
		return writeSuiteJSON(out, suite)
	}
	return writeSuiteText(out, suite)
}

// findScenarioFiles lists the .yaml and .yml files under dir in lexical
// order. Golden directories are skipped.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != dir && d.Name() == "golden":
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			// Pattern validity was checked above.
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func (o *testOptions) runScenario(file string) ScenarioReport {
	r := ScenarioReport{Name: filepath.Base(file), File: file}

	sc, err := harness.LoadScenario(file)
	if err != nil {
		r.fail("failed to load scenario: %v", err)
		return r
	}
	r.Name = sc.Name
	r.Backend = sc.Backend

	res, err := harness.Run(sc)
	if err != nil {
		r.fail("execution failed: %v", err)
		return r
	}
	r.Outcome = res.Outcome
	r.Pass = res.Pass
	r.Errors = append(r.Errors, res.Errors...)

	snap, err := harness.Snapshot(sc.Name, res)
	if err != nil {
		r.fail("failed to snapshot result: %v", err)
		return r
	}

	path := goldenFilePath(file)
	if o.update {
		if err := writeGolden(path, snap); err != nil {
			r.fail("failed to update golden file: %v", err)
			return r
		}
		r.Golden = goldenUpdated
		return r
	}

	want, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.Golden = goldenNone
	case err != nil:
		r.fail("failed to read golden file: %v", err)
	case bytes.Equal(want, snap):
		r.Golden = goldenMatched
	default:
		r.Golden = goldenStale
		r.fail("snapshot does not match golden file (run with --update to regenerate)")
	}
	return r
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(filepath.Dir(file), "golden", name+".golden")
}

func writeGolden(path string, snap []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return os.WriteFile(path, snap, 0644)
}

func writeScenarioText(out *OutputFormatter, r ScenarioReport) {
	w := out.Writer
	if !r.Pass {
		fmt.Fprintf(w, "%s %s\n", failMark(), r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
		}
		return
	}
	if r.Golden == goldenUpdated {
		fmt.Fprintf(w, "%s %s (golden updated)\n", passMark(), r.Name)
		return
	}
	fmt.Fprintf(w, "%s %s\n", passMark(), r.Name)
}

func writeSuiteJSON(out *OutputFormatter, suite SuiteReport) error {
	resp := CLIResponse{Status: "ok", Data: suite}
	if suite.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    CodeTestFailed,
			Message: fmt.Sprintf("%d of %d scenario(s) failed", suite.Failed, suite.Total),
		}
	}
	if err := out.JSON(resp); err != nil {
		return err
	}
	return suiteExit(suite)
}

func writeSuiteText(out *OutputFormatter, suite SuiteReport) error {
	w := out.Writer
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
	if err := suiteExit(suite); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s All scenarios passed\n", passMark())
	return nil
}

func suiteExit(suite SuiteReport) error {
	if suite.Failed == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
}
