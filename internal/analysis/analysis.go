// Package analysis defines the analyzer invocation contract and the
// built-in analyzers that ship with revgate.
//
// The orchestrator treats every analyzer as opaque: it hands over a View of
// the changeset and receives findings or an error. The built-in passes are
// regex heuristics over added and deleted lines; external analyzers run as
// subprocesses (Command) or remote backends (HTTP).
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sprite-ai/revgate/internal/model"
)

// ErrMalformedOutput is returned when an analyzer's output cannot be decoded
// into the finding schema.
var ErrMalformedOutput = errors.New("malformed analyzer output")

// ErrUnknownBuiltin is returned by Builtin for names it does not know.
var ErrUnknownBuiltin = errors.New("unknown builtin analyzer")

// View is the input an analyzer receives: the files it applies to, the
// identity of the whole changeset and its own configuration.
type View struct {
	Analyzer    string             `json:"analyzer"`
	ChangesetID string             `json:"changeset_id"`
	Files       []model.FileChange `json:"files"`
	Config      map[string]string  `json:"config,omitempty"`
}

// Invoker runs one analyzer. Implementations must honour ctx cancellation
// and must return an error rather than a partial result when they cannot
// make sense of their input.
type Invoker interface {
	Invoke(ctx context.Context, view View) ([]model.Finding, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, view View) ([]model.Finding, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, view View) ([]model.Finding, error) {
	return f(ctx, view)
}

// Pass analyzes one file and returns findings. Passes are pure functions of
// the file and the analyzer config.
type Pass func(f model.FileChange, cfg map[string]string) []model.Finding

// passInvoker runs a Pass over every file in the view, checking for
// cancellation between files.
type passInvoker struct {
	name string
	pass Pass
}

func (p passInvoker) Invoke(ctx context.Context, view View) ([]model.Finding, error) {
	var findings []model.Finding
	for _, f := range view.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, finding := range p.pass(f, view.Config) {
			finding.Analyzer = view.Analyzer
			findings = append(findings, finding)
		}
	}
	return findings, nil
}

// builtinPasses maps builtin names to their pass.
var builtinPasses = map[string]Pass{
	"security":        SecurityPass,
	"correctness":     CorrectnessPass,
	"complexity":      ComplexityPass,
	"maintainability": MaintainabilityPass,
	"deps":            NewDependencyPass,
	"schema":          SchemaChangePass,
	"docs":            DocumentationPass,
	"deleted":         DeletedCodePass,
	"blast_radius":    BlastRadiusPass,
	"hygiene":         HygienePass,
}

// Builtin returns the invoker for a named built-in analyzer.
func Builtin(name string) (Invoker, error) {
	pass, ok := builtinPasses[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuiltin, name)
	}
	return passInvoker{name: name, pass: pass}, nil
}

// BuiltinNames returns the sorted names of every built-in analyzer.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinPasses))
	for name := range builtinPasses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// addedLines walks the added lines of a file, skipping comment-only lines
// when skipComments is set.
func addedLines(f model.FileChange, skipComments bool) []model.HunkLine {
	var out []model.HunkLine
	for _, l := range f.AddedLines() {
		if skipComments && isCommentLine(l.Text) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func isCommentLine(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "--")
}

func lineAt(n int) model.LineRange {
	return model.LineRange{Start: n, End: n}
}

func configInt(cfg map[string]string, key string, def int) int {
	raw, ok := cfg[key]
	if !ok {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil || v <= 0 {
		return def
	}
	return v
}

func baseName(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx >= 0 {
		return path[idx+1:]
	}
	return path
}
