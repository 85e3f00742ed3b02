// Package engine drives one review session through selection, dispatch,
// aggregation and gating.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sprite-ai/revgate/internal/aggregate"
	"github.com/sprite-ai/revgate/internal/dispatch"
	"github.com/sprite-ai/revgate/internal/gate"
	"github.com/sprite-ai/revgate/internal/logging"
	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/registry"
	"github.com/sprite-ai/revgate/internal/report"
	"github.com/sprite-ai/revgate/internal/selector"
)

// sessionNamespace scopes name-based session ids.
var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/sprite-ai/revgate/session"))

// Engine runs review sessions against a registry.
type Engine struct {
	Registry *registry.Registry
	Policy   gate.Policy
	Families aggregate.Families
	Dispatch dispatch.Config
	Logger   logging.Logger
}

// Options tune a single run.
type Options struct {
	// Analyzers restricts selection to these ids. Empty means every
	// applicable analyzer.
	Analyzers []string

	// OnSelected is called once with the selected analyzer ids, before
	// dispatch starts.
	OnSelected func(ids []string)

	// OnOutcome is called as each analyzer finishes.
	OnOutcome func(model.AnalyzerOutcome)
}

// SessionID returns the deterministic id of a session reviewing cs with the
// given analyzers.
func SessionID(cs *model.Changeset, selected []string) string {
	name := cs.ID() + "\n" + strings.Join(selected, ",")
	return uuid.NewSHA1(sessionNamespace, []byte(name)).String()
}

// Run reviews cs. The only error it returns is a selection error, such as an
// unknown analyzer id in opts.Analyzers; analyzer failures are recorded in
// the session and mark it degraded.
func (e *Engine) Run(ctx context.Context, cs *model.Changeset, opts Options) (*model.ReviewSession, error) {
	lggr := e.Logger
	if lggr == nil {
		lggr = logging.Nop()
	}
	lggr = lggr.Named("engine")

	s := &model.ReviewSession{Changeset: cs, State: model.StateNew}

	selected, err := selector.Select(cs, e.Registry, opts.Analyzers)
	if err != nil {
		return nil, fmt.Errorf("selecting analyzers: %w", err)
	}
	s.Selected = selector.IDs(selected)
	s.ID = SessionID(cs, s.Selected)
	lggr = lggr.With("session", s.ID)
	transition(lggr, s, model.StateSelected, "analyzers", s.Selected)
	if opts.OnSelected != nil {
		opts.OnSelected(append([]string{}, s.Selected...))
	}

	cfg := e.Dispatch
	cfg.Logger = lggr
	if hook := opts.OnOutcome; hook != nil {
		prev := cfg.OnOutcome
		cfg.OnOutcome = func(o model.AnalyzerOutcome) {
			if prev != nil {
				prev(o)
			}
			hook(o)
		}
	}
	start := time.Now()
	s.Outcomes = dispatch.New(cfg).Dispatch(ctx, cs, selected)
	s.Degraded = len(selected) == 0 || len(s.FailedOutcomes()) > 0
	transition(lggr, s, model.StateDispatched, "elapsed", time.Since(start), "degraded", s.Degraded)

	s.Findings, s.Diagnostics = aggregate.Aggregate(s.Outcomes, e.Families)
	transition(lggr, s, model.StateAggregated, "findings", len(s.Findings), "dropped", len(s.Diagnostics))

	policy := e.Policy
	if policy == nil {
		policy = gate.DefaultPolicy()
	}
	s.Gate = gate.Evaluate(s.Findings, policy)
	transition(lggr, s, model.StateGated, "verdict", s.Gate.Verdict)

	return s, nil
}

// Review runs a session and renders its report, leaving the session in its
// final reported state.
func (e *Engine) Review(ctx context.Context, cs *model.Changeset, opts Options) (*model.ReviewSession, report.Report, error) {
	s, err := e.Run(ctx, cs, opts)
	if err != nil {
		return nil, report.Report{}, err
	}
	r := report.Render(s, e.Policy)

	lggr := e.Logger
	if lggr == nil {
		lggr = logging.Nop()
	}
	transition(lggr.Named("engine").With("session", s.ID), s, model.StateReported, "verdict", r.Verdict)
	return s, r, nil
}

var order = map[model.SessionState]int{
	model.StateNew:        0,
	model.StateSelected:   1,
	model.StateDispatched: 2,
	model.StateAggregated: 3,
	model.StateGated:      4,
	model.StateReported:   5,
}

// transition advances s one state. Sessions never move backwards.
func transition(lggr logging.Logger, s *model.ReviewSession, to model.SessionState, kv ...any) {
	if order[to] != order[s.State]+1 {
		panic(fmt.Sprintf("session %s: illegal transition %s -> %s", s.ID, s.State, to))
	}
	s.State = to
	lggr.Debugw("session "+string(to), kv...)
}
