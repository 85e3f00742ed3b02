// Package report renders a finished review session.
//
// Render builds one Report value; every output format is a view over that
// value, so the JSON and human-readable outputs never disagree. Reports
// carry no timings or timestamps and are byte-identical for identical
// sessions.
package report

import (
	"fmt"
	"strings"

	"github.com/sprite-ai/revgate/internal/gate"
	"github.com/sprite-ai/revgate/internal/model"
)

// NoAnalyzersCaveat is reported when selection produced nothing to run.
const NoAnalyzersCaveat = "no analyzers selected"

// Report is the rendered result of one review session.
type Report struct {
	Session     string             `json:"session"`
	Changeset   string             `json:"changeset"`
	Verdict     model.Verdict      `json:"verdict"`
	Summary     string             `json:"summary"`
	Degraded    bool               `json:"degraded"`
	Stats       Stats              `json:"stats"`
	Counts      Counts             `json:"counts"`
	Analyzers   []string           `json:"analyzers"`
	Findings    []Finding          `json:"findings"`
	Caveats     []Caveat           `json:"caveats"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
}

// Stats summarizes the size of the changeset.
type Stats struct {
	Files   int `json:"files"`
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
}

// Counts holds the number of merged findings per severity. Every severity
// is always present in the output.
type Counts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Of returns the count for sev.
func (c Counts) Of(sev model.Severity) int {
	switch sev {
	case model.SeverityCritical:
		return c.Critical
	case model.SeverityHigh:
		return c.High
	case model.SeverityMedium:
		return c.Medium
	case model.SeverityLow:
		return c.Low
	}
	return 0
}

func (c *Counts) add(sev model.Severity) {
	switch sev {
	case model.SeverityCritical:
		c.Critical++
	case model.SeverityHigh:
		c.High++
	case model.SeverityMedium:
		c.Medium++
	case model.SeverityLow:
		c.Low++
	}
}

// Total returns the number of findings counted.
func (c Counts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// Finding is one merged finding as reported.
type Finding struct {
	ID       string          `json:"id"`
	Severity model.Severity  `json:"severity"`
	Tier     model.Tier      `json:"tier"`
	Category string          `json:"category"`
	File     string          `json:"file"`
	Lines    model.LineRange `json:"lines"`
	Location string          `json:"location"`
	Message  string          `json:"message"`
	Fix      string          `json:"fix,omitempty"`
	Sources  []string        `json:"sources"`
}

// Caveat explains why the report may be incomplete.
type Caveat struct {
	Analyzer string              `json:"analyzer,omitempty"`
	Status   model.OutcomeStatus `json:"status,omitempty"`
	Reason   string              `json:"reason"`
}

func (c Caveat) String() string {
	if c.Analyzer == "" {
		return c.Reason
	}
	return fmt.Sprintf("%s %s: %s", c.Analyzer, c.Status, c.Reason)
}

// Render builds the report for a session. The policy only labels each
// finding with its tier; the verdict comes from the session's gate result.
func Render(s *model.ReviewSession, policy gate.Policy) Report {
	if policy == nil {
		policy = gate.DefaultPolicy()
	}

	r := Report{
		Session:     s.ID,
		Verdict:     s.Gate.Verdict,
		Degraded:    s.Degraded,
		Analyzers:   append([]string{}, s.Selected...),
		Findings:    make([]Finding, 0, len(s.Findings)),
		Caveats:     []Caveat{},
		Diagnostics: append([]model.Diagnostic{}, s.Diagnostics...),
	}
	if r.Verdict == "" {
		r.Verdict = model.VerdictPass
	}
	if s.Changeset != nil {
		r.Changeset = s.Changeset.ID()
		r.Stats.Files, r.Stats.Added, r.Stats.Deleted = s.Changeset.Stats()
	}

	for _, f := range s.Findings {
		r.Counts.add(f.Severity)
		r.Findings = append(r.Findings, Finding{
			ID:       f.ID,
			Severity: f.Severity,
			Tier:     policy.Tier(f.Severity),
			Category: f.Category,
			File:     f.File,
			Lines:    f.Lines,
			Location: f.Location(),
			Message:  f.Message,
			Fix:      f.Fix,
			Sources:  append([]string{}, f.Sources...),
		})
	}

	if len(s.Selected) == 0 {
		r.Caveats = append(r.Caveats, Caveat{Reason: NoAnalyzersCaveat})
	}
	for _, o := range s.FailedOutcomes() {
		reason := o.Diagnostic
		if reason == "" {
			reason = string(o.Status)
		}
		r.Caveats = append(r.Caveats, Caveat{Analyzer: o.Analyzer, Status: o.Status, Reason: reason})
	}

	r.Summary = verdictLine(r, len(s.Gate.Blocking), len(s.Gate.Warning))
	return r
}

// verdictLine is the one-line summary shown at the top of every format.
func verdictLine(r Report, blocking, warning int) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(string(r.Verdict)))
	switch {
	case r.Counts.Total() == 0:
		b.WriteString(": no findings")
	default:
		fmt.Fprintf(&b, ": %d finding(s), %d blocking, %d warning", r.Counts.Total(), blocking, warning)
	}
	if r.Degraded {
		fmt.Fprintf(&b, " (degraded, %d caveat(s))", len(r.Caveats))
	}
	return b.String()
}
