// Package dispatch runs selected analyzers concurrently.
//
// Every analyzer runs as an independent unit bounded by a weighted
// semaphore, its own timeout and the session deadline. Units never share
// state: each sends exactly one outcome into a buffered channel that a single
// collector drains. A unit that ignores cancellation is abandoned after the
// grace period and its late result is dropped.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sprite-ai/revgate/internal/analysis"
	"github.com/sprite-ai/revgate/internal/cache"
	"github.com/sprite-ai/revgate/internal/logging"
	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/registry"
)

const (
	DefaultMaxParallel = 4
	DefaultGrace       = 5 * time.Second
)

// ErrPanic wraps a panic recovered from an analyzer.
var ErrPanic = errors.New("analyzer panicked")

// Config controls a dispatch.
type Config struct {
	// MaxParallel caps the summed weight of running analyzers.
	MaxParallel int64

	// SessionDeadline bounds the whole dispatch. Zero means no deadline
	// beyond the caller's context.
	SessionDeadline time.Duration

	// Grace is how long a cancelled analyzer may take to return before it
	// is abandoned.
	Grace time.Duration

	// Cache, when set, serves per-file results for cacheable analyzers.
	Cache cache.Cache

	Logger logging.Logger

	// OnOutcome is called from the collector, once per outcome, in arrival
	// order. It must not block for long.
	OnOutcome func(model.AnalyzerOutcome)
}

// Dispatcher runs analyzers under a Config.
type Dispatcher struct {
	cfg  Config
	lggr logging.Logger
}

// New returns a Dispatcher, filling in defaults for unset fields.
func New(cfg Config) *Dispatcher {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Dispatcher{cfg: cfg, lggr: cfg.Logger.Named("dispatch")}
}

type indexed struct {
	idx     int
	outcome model.AnalyzerOutcome
}

// Dispatch runs the analyzers against cs and returns exactly one outcome per
// analyzer, in the order the analyzers were given. Analyzers are started in
// that order as slots free up.
//
// Dispatch never fails: invocation errors, panics and timeouts become
// outcome statuses. When the session deadline expires, running analyzers
// are cancelled and given the grace period to report; anything still
// unreported is then marked timeout and Dispatch returns.
func (d *Dispatcher) Dispatch(ctx context.Context, cs *model.Changeset, analyzers []registry.Descriptor) []model.AnalyzerOutcome {
	outcomes := make([]model.AnalyzerOutcome, len(analyzers))
	if len(analyzers) == 0 {
		return outcomes
	}

	sessionCtx, cancel := d.sessionContext(ctx)
	defer cancel()

	// Buffered so that abandoned units can always deliver and exit.
	results := make(chan indexed, len(analyzers))
	started := make([]atomic.Bool, len(analyzers))
	files := cs.Files()
	sem := semaphore.NewWeighted(d.cfg.MaxParallel)

	go func() {
		for i, desc := range analyzers {
			weight := desc.Weight
			if weight > d.cfg.MaxParallel {
				weight = d.cfg.MaxParallel
			}
			if weight < 1 {
				weight = 1
			}
			if err := sem.Acquire(sessionCtx, weight); err != nil {
				return
			}
			started[i].Store(true)
			go func(i int, desc registry.Descriptor) {
				defer sem.Release(weight)
				results <- indexed{idx: i, outcome: d.run(sessionCtx, cs.ID(), files, desc)}
			}(i, desc)
		}
	}()

	reported := make([]bool, len(analyzers))
	remaining := len(analyzers)
	record := func(r indexed) {
		if reported[r.idx] {
			return
		}
		reported[r.idx] = true
		remaining--
		outcomes[r.idx] = r.outcome
		d.lggr.Debugw("analyzer finished",
			"analyzer", r.outcome.Analyzer,
			"status", r.outcome.Status,
			"findings", len(r.outcome.Findings),
			"duration", r.outcome.Duration,
		)
		if d.cfg.OnOutcome != nil {
			d.cfg.OnOutcome(r.outcome)
		}
	}

collect:
	for remaining > 0 {
		select {
		case r := <-results:
			record(r)
		case <-sessionCtx.Done():
			break collect
		}
	}

	if remaining > 0 {
		// Units already running saw the cancellation; give them the grace
		// period to report before writing them off.
		grace := time.NewTimer(d.cfg.Grace)
	drain:
		for remaining > 0 && inFlight(started, reported) {
			select {
			case r := <-results:
				record(r)
			case <-grace.C:
				break drain
			}
		}
		grace.Stop()

		reason := "session deadline exceeded"
		if ctx.Err() != nil {
			reason = "review cancelled"
		}
		for i, desc := range analyzers {
			if reported[i] {
				continue
			}
			status := model.StatusTimeout
			if !started[i].Load() && ctx.Err() != nil {
				status = model.StatusSkipped
			}
			d.lggr.Warnw("analyzer did not report", "analyzer", desc.ID, "reason", reason)
			record(indexed{idx: i, outcome: model.AnalyzerOutcome{
				Analyzer:   desc.ID,
				Status:     status,
				Diagnostic: reason,
			}})
		}
	}

	return outcomes
}

func inFlight(started []atomic.Bool, reported []bool) bool {
	for i := range reported {
		if started[i].Load() && !reported[i] {
			return true
		}
	}
	return false
}

func (d *Dispatcher) sessionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.SessionDeadline > 0 {
		return context.WithTimeout(ctx, d.cfg.SessionDeadline)
	}
	return context.WithCancel(ctx)
}

// run executes one analyzer, consulting the cache for cacheable ones.
func (d *Dispatcher) run(ctx context.Context, changesetID string, all []model.FileChange, desc registry.Descriptor) model.AnalyzerOutcome {
	start := time.Now()
	lggr := d.lggr.With("analyzer", desc.ID)

	files := all
	if !desc.AlwaysRun {
		files = desc.Predicate.Filter(all)
	}

	var cached []model.Finding
	pending := files
	if desc.Cacheable {
		cached, pending = d.lookup(ctx, lggr, cacheName(desc), files)
		if len(pending) == 0 && len(files) > 0 {
			return model.AnalyzerOutcome{
				Analyzer: desc.ID,
				Status:   model.StatusOK,
				Findings: finalize(desc.ID, cached),
				Duration: time.Since(start),
				Cached:   true,
			}
		}
	}

	view := analysis.View{
		Analyzer:    desc.ID,
		ChangesetID: changesetID,
		Files:       pending,
		Config:      desc.Config,
	}
	findings, status, diag := d.invoke(ctx, desc, view)
	out := model.AnalyzerOutcome{
		Analyzer:   desc.ID,
		Status:     status,
		Duration:   time.Since(start),
		Diagnostic: diag,
	}
	if status != model.StatusOK {
		lggr.Warnw("analyzer failed", "status", status, "diagnostic", diag)
		return out
	}

	if desc.Cacheable {
		d.store(ctx, lggr, cacheName(desc), pending, findings)
	}
	out.Findings = finalize(desc.ID, append(cached, findings...))
	return out
}

// invoke calls the analyzer under its timeout. If the analyzer does not
// return within the timeout plus the grace period it is abandoned.
func (d *Dispatcher) invoke(ctx context.Context, desc registry.Descriptor, view analysis.View) ([]model.Finding, model.OutcomeStatus, string) {
	tctx, cancel := context.WithTimeout(ctx, desc.Timeout)
	defer cancel()

	type result struct {
		findings []model.Finding
		err      error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		findings, err := desc.Invoker.Invoke(tctx, view)
		done <- result{findings: findings, err: err}
	}()

	// Work that outlives its timeout is a timeout even if it returns
	// findings inside the grace period.
	var res result
	expired := false
	select {
	case res = <-done:
	case <-tctx.Done():
		expired = true
		grace := time.NewTimer(d.cfg.Grace)
		select {
		case res = <-done:
		case <-grace.C:
			res.err = tctx.Err()
		}
		grace.Stop()
	}

	switch {
	case expired, tctx.Err() != nil && res.err != nil:
		return nil, model.StatusTimeout, timeoutReason(ctx, desc.Timeout)
	case res.err != nil:
		return nil, model.StatusCrashed, res.err.Error()
	default:
		return res.findings, model.StatusOK, ""
	}
}

func timeoutReason(session context.Context, limit time.Duration) string {
	if errors.Is(session.Err(), context.DeadlineExceeded) {
		return "session deadline exceeded"
	}
	if session.Err() != nil {
		return "review cancelled"
	}
	return fmt.Sprintf("timed out after %s", limit)
}

// finalize attributes findings to the analyzer, orders them and numbers
// any that arrived without an id. Ordering first keeps ids identical
// between cold and warm cache runs.
func finalize(analyzer string, findings []model.Finding) []model.Finding {
	out := make([]model.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Lines.Start != b.Lines.Start {
			return a.Lines.Start < b.Lines.Start
		}
		if a.Lines.End != b.Lines.End {
			return a.Lines.End < b.Lines.End
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Message < b.Message
	})
	for i := range out {
		out[i].Analyzer = analyzer
		if out[i].ID == "" {
			out[i].ID = fmt.Sprintf("%s/%d", analyzer, i+1)
		}
	}
	return out
}
