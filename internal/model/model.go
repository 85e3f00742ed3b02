// Package model defines the core data types shared across revgate.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Severity ranks how serious a finding is. Lower values are more severe so
// that sorting ascending puts critical issues first.
type Severity int

const (
	SeverityCritical Severity = iota
	SeverityHigh
	SeverityMedium
	SeverityLow
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	return s >= SeverityCritical && s <= SeverityLow
}

// MoreSevere reports whether s outranks other.
func (s Severity) MoreSevere(other Severity) bool {
	return s < other
}

// Max returns the more severe of s and other.
func (s Severity) Max(other Severity) Severity {
	if other.MoreSevere(s) {
		return other
	}
	return s
}

// ParseSeverity maps a case-insensitive name to a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "critical":
		return SeverityCritical, nil
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// LineRange identifies a range of lines in a file. A zero Start means the
// finding applies to the whole file.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Normalize returns r with End never before Start.
func (r LineRange) Normalize() LineRange {
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// FileLevel reports whether the range covers the whole file.
func (r LineRange) FileLevel() bool {
	return r.Start == 0
}

// Overlaps reports whether two ranges share at least one line. File-level
// ranges only overlap each other.
func (r LineRange) Overlaps(o LineRange) bool {
	r, o = r.Normalize(), o.Normalize()
	if r.FileLevel() || o.FileLevel() {
		return r.FileLevel() && o.FileLevel()
	}
	return r.Start <= o.End && o.Start <= r.End
}

func (r LineRange) String() string {
	r = r.Normalize()
	switch {
	case r.FileLevel():
		return ""
	case r.Start == r.End:
		return fmt.Sprintf("%d", r.Start)
	default:
		return fmt.Sprintf("%d-%d", r.Start, r.End)
	}
}

// Finding is one reported issue instance from a single analyzer.
type Finding struct {
	ID            string    `json:"id"`
	Analyzer      string    `json:"analyzer"`
	Category      string    `json:"category"`
	Severity      Severity  `json:"severity"`
	File          string    `json:"file"`
	Lines         LineRange `json:"lines"`
	Message       string    `json:"message"`
	Fix           string    `json:"fix,omitempty"`
	Authoritative bool      `json:"authoritative,omitempty"`
	DedupeKey     string    `json:"dedupe_key,omitempty"`
}

// Location renders file:line for display.
func (f Finding) Location() string {
	if l := f.Lines.String(); l != "" {
		return f.File + ":" + l
	}
	return f.File
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Analyzer, f.Location(), f.Message)
}

// MergedFinding is the deduplicated union of one or more findings that share
// a dedupe key. Its severity is the maximum over all contributors.
type MergedFinding struct {
	Finding
	Sources []string `json:"sources"`
}

// OutcomeStatus is the terminal state of one analyzer dispatch.
type OutcomeStatus string

const (
	StatusOK      OutcomeStatus = "ok"
	StatusTimeout OutcomeStatus = "timeout"
	StatusCrashed OutcomeStatus = "crashed"
	StatusSkipped OutcomeStatus = "skipped"
)

// AnalyzerOutcome is the result of dispatching one analyzer.
type AnalyzerOutcome struct {
	Analyzer   string        `json:"analyzer"`
	Status     OutcomeStatus `json:"status"`
	Findings   []Finding     `json:"findings,omitempty"`
	Duration   time.Duration `json:"duration"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Cached     bool          `json:"cached,omitempty"`
}

// Diagnostic records a finding that was dropped or a problem that did not
// fail the whole outcome.
type Diagnostic struct {
	Analyzer string `json:"analyzer"`
	Message  string `json:"message"`
}

// Tier is how a quality gate policy treats a severity.
type Tier string

const (
	TierBlocking Tier = "blocking"
	TierWarning  Tier = "warning"
	TierAdvisory Tier = "advisory"
)

// Verdict is the quality gate decision.
type Verdict string

const (
	VerdictPass  Verdict = "pass"
	VerdictWarn  Verdict = "warn"
	VerdictBlock Verdict = "block"
)

// ExitCode maps a verdict to the CLI exit code.
func (v Verdict) ExitCode() int {
	switch v {
	case VerdictWarn:
		return 1
	case VerdictBlock:
		return 2
	default:
		return 0
	}
}

// QualityGateResult is the outcome of evaluating merged findings against a
// policy.
type QualityGateResult struct {
	Verdict  Verdict         `json:"verdict"`
	Blocking []MergedFinding `json:"blocking_findings"`
	Warning  []MergedFinding `json:"warning_findings"`
}

// SessionState tracks where a review session is in the pipeline.
type SessionState string

const (
	StateNew        SessionState = "new"
	StateSelected   SessionState = "selected"
	StateDispatched SessionState = "dispatched"
	StateAggregated SessionState = "aggregated"
	StateGated      SessionState = "gated"
	StateReported   SessionState = "reported"
)

// ReviewSession is the top-level container for one review run. It is not
// modified after reaching StateReported.
type ReviewSession struct {
	ID          string
	Changeset   *Changeset
	Selected    []string
	Outcomes    []AnalyzerOutcome
	Findings    []MergedFinding
	Diagnostics []Diagnostic
	Degraded    bool
	Gate        QualityGateResult
	State       SessionState
}

// Inconclusive reports whether no analyzer completed, either because none
// was selected or because every one failed. Its verdict reflects nothing.
func (s *ReviewSession) Inconclusive() bool {
	for _, o := range s.Outcomes {
		if o.Status == StatusOK {
			return false
		}
	}
	return true
}

// FailedOutcomes returns every outcome whose status is not ok, ordered by
// analyzer id.
func (s *ReviewSession) FailedOutcomes() []AnalyzerOutcome {
	var failed []AnalyzerOutcome
	for _, o := range s.Outcomes {
		if o.Status != StatusOK {
			failed = append(failed, o)
		}
	}
	sort.SliceStable(failed, func(i, j int) bool {
		return failed[i].Analyzer < failed[j].Analyzer
	})
	return failed
}
