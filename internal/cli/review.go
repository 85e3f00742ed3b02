package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revgate/internal/diff"
	"github.com/sprite-ai/revgate/internal/engine"
	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/report"
	"github.com/sprite-ai/revgate/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review [commit-range | -]",
	Short: "Review a change and report a verdict",
	Long: `Run every analyzer that applies to the change, merge their findings and
print a report. By default, reviews the last commit (HEAD~1..HEAD).
Optionally specify a commit range, or "-" to read a diff from stdin.

Examples:
  revgate review                          # last commit
  revgate review main...HEAD              # branch vs main
  revgate review --files app/db.py        # working tree changes to one file
  git diff | revgate review - -f json     # pipe any diff
  revgate review --analyzers security,docs

Exit codes:
  0 pass
  1 warn
  2 block
  3 internal error, or no analyzer completed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringSlice("analyzers", nil, "only run these analyzers (comma separated ids)")
	reviewCmd.Flags().StringP("format", "f", "", "output format: "+strings.Join(formatNames(), ", "))
	reviewCmd.Flags().Int64("max-parallel", 0, "maximum parallel analyzer slots")
	reviewCmd.Flags().Duration("timeout", 0, "session deadline, e.g. 90s")
	reviewCmd.Flags().Duration("grace", 0, "how long a cancelled analyzer may take to stop")
	reviewCmd.Flags().String("cache", "", "result cache: none, memory, sqlite, redis")
	reviewCmd.Flags().StringSlice("files", nil, "review working tree changes to these paths only")
	reviewCmd.Flags().IntP("context", "C", 3, "lines of context around changes")
	reviewCmd.Flags().BoolP("interactive", "i", false, "browse the report in a terminal UI")
	reviewCmd.Flags().Bool("stat", false, "print diff stats and exit without reviewing")
	reviewCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
}

func formatNames() []string {
	names := make([]string, 0, len(report.Formats))
	for _, f := range report.Formats {
		names = append(names, string(f))
	}
	return names
}

func runReview(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.lggr.Sync() //nolint:errcheck
	if err := applyReviewFlags(cmd, e); err != nil {
		return err
	}

	format, err := report.ParseFormat(e.cfg.Format)
	if err != nil {
		return err
	}

	contextLines, _ := cmd.Flags().GetInt("context")
	files, _ := cmd.Flags().GetStringSlice("files")
	raw, err := getDiff(cmd, args, e.repoDir, contextLines, files)
	if err != nil {
		return err
	}

	ds, err := diff.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing diff: %w", err)
	}

	interactive, _ := cmd.Flags().GetBool("interactive")
	if stat, _ := cmd.Flags().GetBool("stat"); stat || interactive {
		if len(ds.Files) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No changes to review.")
			return nil
		}
		if stat {
			printStat(cmd.OutOrStdout(), ds)
			return nil
		}
	}

	eng, c, err := e.newEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	analyzers, _ := cmd.Flags().GetStringSlice("analyzers")
	s, rep, err := eng.Review(cmd.Context(), ds.Changeset(), engine.Options{
		Analyzers: analyzers,
		OnOutcome: func(o model.AnalyzerOutcome) {
			e.lggr.Infow("analyzer finished", "analyzer", o.Analyzer, "status", o.Status,
				"findings", len(o.Findings), "cached", o.Cached)
		},
	})
	if err != nil {
		return err
	}

	if interactive {
		fmt.Fprintln(cmd.ErrOrStderr(), rep.Summary)
		if err := tui.Run(ds, &rep); err != nil {
			return err
		}
	} else if err := writeReport(cmd, rep, format); err != nil {
		return err
	}

	if s.Inconclusive() {
		return &ExitError{Code: ExitInternal, Err: fmt.Errorf("no analyzer completed: %s", rep.Summary)}
	}
	if code := rep.Verdict.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// applyReviewFlags lets explicitly set flags override the config file and
// environment.
func applyReviewFlags(cmd *cobra.Command, e *env) error {
	fl := cmd.Flags()
	if fl.Changed("format") {
		e.cfg.Format, _ = fl.GetString("format")
	}
	if fl.Changed("max-parallel") {
		e.cfg.MaxParallel, _ = fl.GetInt64("max-parallel")
	}
	if fl.Changed("timeout") {
		e.cfg.Timeout, _ = fl.GetDuration("timeout")
	}
	if fl.Changed("grace") {
		e.cfg.Grace, _ = fl.GetDuration("grace")
	}
	if fl.Changed("cache") {
		e.cfg.Cache.Backend, _ = fl.GetString("cache")
	}
	return e.cfg.Validate()
}

func writeReport(cmd *cobra.Command, rep report.Report, format report.Format) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return report.Encode(cmd.OutOrStdout(), rep, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := report.Encode(f, rep, format); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", path)
	return nil
}

func getDiff(cmd *cobra.Command, args []string, repoDir string, contextLines int, files []string) (string, error) {
	// Read from stdin if "-" is passed
	if len(args) == 1 && args[0] == "-" {
		if len(files) > 0 {
			return "", errors.New("--files cannot be combined with a diff on stdin")
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	if repoDir == "" {
		return "", errors.New("not in a git repository (or git not installed)")
	}

	switch {
	case len(files) > 0 && len(args) == 1:
		gitArgs := []string{fmt.Sprintf("-U%d", contextLines), args[0], "--"}
		return diff.GitDiff(repoDir, append(gitArgs, files...)...)
	case len(files) > 0:
		return diff.GitDiffPaths(repoDir, contextLines, files...)
	case len(args) == 1:
		return diff.GitDiffRange(repoDir, args[0], contextLines)
	default:
		return diff.GitDiffHead(repoDir, contextLines)
	}
}

func printStat(w io.Writer, ds *diff.DiffSet) {
	files, added, deleted := ds.Stats()
	fmt.Fprintf(w, "%d file(s) changed, %d insertions(+), %d deletions(-)\n\n", files, added, deleted)
	for _, f := range ds.Files {
		status := "M"
		if f.IsNew {
			status = "A"
		} else if f.IsDeleted {
			status = "D"
		} else if f.IsRenamed {
			status = "R"
		}
		fmt.Fprintf(w, "  %s %-50s +%-4d -%d\n", status, f.Name(), f.AddedLines, f.DeletedLines)
	}
}
