package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/spy/internal/compiler"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Rules    string
	Database string
}

// RuleResult is the verdict of one rule.
type RuleResult struct {
	Rule        string `json:"rule"`
	Description string `json:"description,omitempty"`
	Pass        bool   `json:"pass"`
	Message     string `json:"message,omitempty"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Report *Report      `json:"report"`
	Rules  []RuleResult `json:"rules"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <log>",
		Short: "Replay a trace log and check it against CUE rules",
		Long: `Replay a trace log, then evaluate every rule of a CUE rule file against
the run summary.

The summary has the fields outcome, lines, applied, unparsed, malformed,
deferred_initially, passes, per_kind (applied records per kind) and counts
(reconstructed entities). A stalled replay is not an error here: it has
outcome "stall" and rules decide whether that is acceptable.

Rule file format:

  rule: clean: {
      description: "every line parses"
      check: { unparsed: 0, malformed: 0 }
  }
  rule: converges: check: { outcome: "ok", passes: <=3 }

Exit codes:
  0 - Every rule holds
  1 - One or more rules are violated, or replay failed
  2 - Command error (unreadable log, invalid rule file)

Examples:
  spy check trace.log --rules rules.cue
  spy check trace.log --rules rules.cue --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "path to CUE rule file (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default SPY_DB, or in-memory)")
	_ = cmd.MarkFlagRequired("rules")

	return cmd
}

func runCheck(opts *CheckOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	rules, err := loadRuleFile(opts.Rules)
	if err != nil {
		return err
	}

	var in io.Reader
	if path == "-" {
		in = cmd.InOrStdin()
	}
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.DBPath
	}

	report, err := replayLog(cmd.Context(), in, replayOptions{
		Path:         path,
		DBPath:       dbPath,
		MaxLineBytes: opts.Config.MaxLineBytes,
		Logger:       opts.logger(),
	})
	if err != nil {
		return err
	}

	violations, err := rules.Check(summaryDocument(report))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to evaluate rules", err)
	}

	result := CheckResult{Report: report, Rules: make([]RuleResult, 0, len(rules.Rules))}
	failed := make(map[string]compiler.Violation, len(violations))
	for _, v := range violations {
		failed[v.Rule] = v
	}
	for _, rule := range rules.Rules {
		rr := RuleResult{Rule: rule.Name, Description: rule.Description, Pass: true}
		if v, ok := failed[rule.Name]; ok {
			rr.Pass = false
			rr.Message = v.Message
			result.Failed++
		} else {
			result.Passed++
		}
		result.Rules = append(result.Rules, rr)
	}

	if opts.Format == "json" {
		return outputCheckJSON(out, result)
	}
	return outputCheckText(out, result)
}

// loadRuleFile reads, compiles and validates a rule file. Any problem is a
// command error: the rules never ran.
func loadRuleFile(path string) (*compiler.RuleSet, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot read rule file", err)
	}
	rules, err := compiler.LoadRules(path, src)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid rule file", err)
	}
	if errs := compiler.Validate(rules.Rules); len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "invalid rule file", errs[0])
	}
	return rules, nil
}

// summaryDocument is the JSON object rules are evaluated against.
func summaryDocument(report *Report) map[string]any {
	s := report.Summary
	perKind := make(map[string]int, len(s.PerKind))
	for k, n := range s.PerKind {
		perKind[k.String()] = n
	}
	counts := report.Counts
	if counts == nil {
		counts = map[string]int{}
	}
	return map[string]any{
		"outcome":            report.Outcome,
		"lines":              s.Lines,
		"applied":            s.Applied,
		"unparsed":           s.Unparsed,
		"malformed":          s.Malformed,
		"deferred_initially": s.DeferredInitially,
		"passes":             s.Passes,
		"per_kind":           perKind,
		"counts":             counts,
	}
}

func outputCheckJSON(out *OutputFormatter, result CheckResult) error {
	resp := CLIResponse{Status: "ok", Data: result, RunID: result.Report.RunID}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    CodeViolations,
			Message: fmt.Sprintf("%d rule(s) violated", result.Failed),
		}
	}
	if err := out.JSON(resp); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d rule(s) violated", result.Failed))
	}
	return nil
}

func outputCheckText(out *OutputFormatter, result CheckResult) error {
	w := out.Writer
	for _, rr := range result.Rules {
		if rr.Pass {
			fmt.Fprintf(w, "%s %s\n", passMark(), rr.Rule)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", failMark(), rr.Rule)
		if rr.Description != "" {
			fmt.Fprintf(w, "  %s\n", rr.Description)
		}
		fmt.Fprintf(w, "  %s\n", rr.Message)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Check Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, len(result.Rules))

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d rule(s) violated", result.Failed))
	}
	return nil
}
