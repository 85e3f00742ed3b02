package model

import (
	"encoding/json"
	"testing"
)

func TestSeverityString(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityCritical, "critical"},
		{SeverityHigh, "high"},
		{SeverityMedium, "medium"},
		{SeverityLow, "low"},
		{Severity(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.sev, got, tt.want)
		}
	}
}

func TestSeverityMax(t *testing.T) {
	if got := SeverityLow.Max(SeverityHigh); got != SeverityHigh {
		t.Errorf("low.Max(high) = %s", got)
	}
	if got := SeverityCritical.Max(SeverityMedium); got != SeverityCritical {
		t.Errorf("critical.Max(medium) = %s", got)
	}
}

func TestSeverityJSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		S Severity `json:"s"`
	}{SeverityHigh})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"s":"high"}` {
		t.Errorf("got %s", raw)
	}

	var back struct {
		S Severity `json:"s"`
	}
	if err := json.Unmarshal([]byte(`{"s":"CRITICAL"}`), &back); err != nil {
		t.Fatal(err)
	}
	if back.S != SeverityCritical {
		t.Errorf("got %s", back.S)
	}

	if err := json.Unmarshal([]byte(`{"s":"severe"}`), &back); err == nil {
		t.Error("expected error for unknown severity")
	}
}

func TestLineRangeOverlaps(t *testing.T) {
	tests := []struct {
		a, b LineRange
		want bool
	}{
		{LineRange{10, 20}, LineRange{15, 30}, true},
		{LineRange{10, 20}, LineRange{21, 30}, false},
		{LineRange{40, 40}, LineRange{40, 0}, true},
		{LineRange{0, 0}, LineRange{0, 0}, true},
		{LineRange{0, 0}, LineRange{1, 5}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Overlaps(tt.b); got != tt.want {
			t.Errorf("%v.Overlaps(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestChangesetIdentity(t *testing.T) {
	a := FileChange{Path: "a.go", ContentHash: "h1"}
	b := FileChange{Path: "b.go", ContentHash: "h2"}

	cs1 := NewChangeset(a, b)
	cs2 := NewChangeset(b, a)
	if cs1.ID() != cs2.ID() {
		t.Error("changeset id must not depend on input order")
	}

	cs3 := NewChangeset(a, FileChange{Path: "b.go", ContentHash: "h3"})
	if cs1.ID() == cs3.ID() {
		t.Error("changeset id must change when content changes")
	}

	files := cs1.Files()
	files[0].Path = "mutated"
	if cs1.Files()[0].Path != "a.go" {
		t.Error("Files must return a copy")
	}

	if _, ok := cs1.File("b.go"); !ok {
		t.Error("expected to find b.go")
	}
	if _, ok := cs1.File("c.go"); ok {
		t.Error("did not expect c.go")
	}
}

func TestChangesetHunksAreNotShared(t *testing.T) {
	in := FileChange{
		Path:        "app/db.py",
		ContentHash: "h1",
		Hunks: []Hunk{{
			NewStart: 1,
			NewLines: 1,
			Lines:    []HunkLine{{Op: OpAdd, Text: "query = 'SELECT 1'", NewNum: 1}},
		}},
	}
	cs := NewChangeset(in)

	in.Hunks[0].Lines[0].Text = "changed by caller"
	if got := cs.Files()[0].Hunks[0].Lines[0].Text; got != "query = 'SELECT 1'" {
		t.Errorf("input slices leaked into the changeset: %q", got)
	}

	out := cs.Files()
	out[0].Hunks[0].Lines[0].Text = "changed by reader"
	out[0].Hunks[0].NewStart = 99
	f, _ := cs.File("app/db.py")
	f.Hunks[0].Lines = append(f.Hunks[0].Lines[:0], HunkLine{Text: "also changed"})

	got := cs.Files()[0].Hunks[0]
	if got.Lines[0].Text != "query = 'SELECT 1'" || got.NewStart != 1 {
		t.Errorf("changeset content was modified through a copy: %+v", got)
	}
}

func TestVerdictExitCode(t *testing.T) {
	if VerdictPass.ExitCode() != 0 || VerdictWarn.ExitCode() != 1 || VerdictBlock.ExitCode() != 2 {
		t.Error("unexpected exit code mapping")
	}
}

func TestSessionInconclusive(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []AnalyzerOutcome
		want     bool
	}{
		{"nothing selected", nil, true},
		{"all failed", []AnalyzerOutcome{{Analyzer: "a", Status: StatusCrashed}, {Analyzer: "b", Status: StatusTimeout}}, true},
		{"one completed", []AnalyzerOutcome{{Analyzer: "a", Status: StatusCrashed}, {Analyzer: "b", Status: StatusOK}}, false},
	}
	for _, tt := range tests {
		s := &ReviewSession{Outcomes: tt.outcomes}
		if got := s.Inconclusive(); got != tt.want {
			t.Errorf("%s: Inconclusive() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
