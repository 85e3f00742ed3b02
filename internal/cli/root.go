// Package cli implements the revgate command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revgate/internal/cache"
	"github.com/sprite-ai/revgate/internal/config"
	"github.com/sprite-ai/revgate/internal/engine"
	"github.com/sprite-ai/revgate/internal/logging"
	"github.com/sprite-ai/revgate/internal/registry"
)

// Exit codes beyond the verdict codes 0 (pass), 1 (warn) and 2 (block).
const ExitInternal = 3

// defaultConfigName is looked up in the repository root when --config is
// not given.
const defaultConfigName = ".revgate.yaml"

var rootCmd = &cobra.Command{
	Use:   "revgate",
	Short: "Run a set of analyzers over a change and gate it",
	Long: `revgate reviews a diff by running the analyzers that apply to it in
parallel, merging overlapping findings, and deciding pass, warn or block.

Exit codes:
  0 pass
  1 warn
  2 block
  3 internal error (bad config, unknown analyzer, nothing to run)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default .revgate.yaml in the repository root)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(reviewCmd, analyzersCmd, serveCmd, versionCmd)
}

// ExitError carries a process exit code out of a command. A nil Err exits
// silently.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Execute runs the root command and returns the process exit code.
// An interrupt cancels the running review; analyzers still running are
// recorded as skipped or timed out.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return exitCode(rootCmd.ExecuteContext(ctx), rootCmd.ErrOrStderr())
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			fmt.Fprintln(stderr, "revgate:", ee.Err)
		}
		return ee.Code
	}
	fmt.Fprintln(stderr, "revgate:", err)
	return ExitInternal
}

// env is what every command needs before it can review anything.
type env struct {
	cfg     *config.Config
	lggr    logging.Logger
	repoDir string
}

// loadEnv reads the config file and environment, then applies the global
// flags.
func loadEnv(cmd *cobra.Command) (*env, error) {
	repoDir, _ := gitRepoRoot()

	path, _ := cmd.Flags().GetString("config")
	if path == "" && repoDir != "" {
		path = filepath.Join(repoDir, defaultConfigName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	lggr, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}

	return &env{cfg: cfg, lggr: lggr, repoDir: repoDir}, nil
}

// loadRegistry returns the configured registry, or the built-in catalog when no
// registry file is set.
func (e *env) loadRegistry() (*registry.Registry, error) {
	if e.cfg.RegistryFile == "" {
		return registry.Default(e.repoDir), nil
	}
	return registry.LoadFile(e.cfg.RegistryFile, registry.LoadOptions{
		RepoDir: e.repoDir,
		Grace:   e.cfg.Grace,
	})
}

// openCache opens the configured backend. Expired SQLite rows are pruned on
// open since nothing else ever removes them.
func (e *env) openCache(ctx context.Context) (cache.Cache, error) {
	c, err := cache.Open(e.cfg.Cache)
	if err != nil {
		return nil, err
	}
	if s, ok := c.(*cache.SQLite); ok && e.cfg.Cache.TTL > 0 {
		n, err := s.Prune(ctx, e.cfg.Cache.TTL)
		if err != nil {
			e.lggr.Warnw("pruning cache", "err", err)
		} else if n > 0 {
			e.lggr.Debugw("pruned cache", "rows", n)
		}
	}
	return c, nil
}

// newEngine builds an engine over the configured registry and cache. The
// returned cache must be closed by the caller.
func (e *env) newEngine(ctx context.Context) (*engine.Engine, cache.Cache, error) {
	reg, err := e.loadRegistry()
	if err != nil {
		return nil, nil, err
	}
	if reg.Len() == 0 {
		return nil, nil, errors.New("no analyzers registered")
	}

	policy, err := e.cfg.GatePolicy()
	if err != nil {
		return nil, nil, err
	}
	families, err := e.cfg.FamilyTable()
	if err != nil {
		return nil, nil, err
	}

	c, err := e.openCache(ctx)
	if err != nil {
		return nil, nil, err
	}

	dc := e.cfg.DispatchConfig()
	dc.Cache = c
	return &engine.Engine{
		Registry: reg,
		Policy:   policy,
		Families: families,
		Dispatch: dc,
		Logger:   e.lggr,
	}, c, nil
}

func gitRepoRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
