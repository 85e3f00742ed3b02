package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sprite-ai/revgate/internal/model"
	"gopkg.in/yaml.v3"
)

// Payload is the fixed output schema external analyzers emit, as JSON or
// YAML.
type Payload struct {
	Findings []PayloadFinding `json:"findings" yaml:"findings"`
}

// PayloadFinding is one finding on the wire.
type PayloadFinding struct {
	Category      string `json:"category" yaml:"category"`
	Severity      string `json:"severity" yaml:"severity"`
	File          string `json:"file" yaml:"file"`
	LineStart     int    `json:"line_start" yaml:"line_start"`
	LineEnd       int    `json:"line_end" yaml:"line_end"`
	Message       string `json:"message" yaml:"message"`
	Fix           string `json:"fix,omitempty" yaml:"fix,omitempty"`
	Authoritative bool   `json:"authoritative,omitempty" yaml:"authoritative,omitempty"`
}

// SeverityInvalid marks a decoded finding whose severity was not one of the
// shared enum values. The aggregator drops such findings with a diagnostic.
const SeverityInvalid model.Severity = -1

// DecodePayload parses analyzer output. JSON is tried first; anything else
// is parsed as YAML, optionally wrapped in "---" frontmatter fences. Both
// reject fields outside the schema. An empty body means no findings. Output that decodes into neither format
// returns ErrMalformedOutput.
func DecodePayload(analyzer string, raw []byte) ([]model.Finding, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, nil
	}

	var p Payload
	if body[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(stripFrontmatter(body)))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	}

	findings := make([]model.Finding, 0, len(p.Findings))
	for _, pf := range p.Findings {
		sev, err := model.ParseSeverity(pf.Severity)
		if err != nil {
			sev = SeverityInvalid
		}
		findings = append(findings, model.Finding{
			Analyzer:      analyzer,
			Category:      pf.Category,
			Severity:      sev,
			File:          pf.File,
			Lines:         model.LineRange{Start: pf.LineStart, End: pf.LineEnd},
			Message:       pf.Message,
			Fix:           pf.Fix,
			Authoritative: pf.Authoritative,
		})
	}
	return findings, nil
}

// EncodePayload renders findings in the wire schema.
func EncodePayload(findings []model.Finding) ([]byte, error) {
	p := Payload{Findings: make([]PayloadFinding, 0, len(findings))}
	for _, f := range findings {
		p.Findings = append(p.Findings, PayloadFinding{
			Category:      f.Category,
			Severity:      f.Severity.String(),
			File:          f.File,
			LineStart:     f.Lines.Start,
			LineEnd:       f.Lines.End,
			Message:       f.Message,
			Fix:           f.Fix,
			Authoritative: f.Authoritative,
		})
	}
	return json.Marshal(p)
}

// stripFrontmatter returns the YAML between leading "---" fences, or body
// unchanged when it is not fenced.
func stripFrontmatter(body []byte) []byte {
	fence := []byte("---")
	if !bytes.HasPrefix(body, fence) {
		return body
	}
	rest := bytes.TrimLeft(body[len(fence):], "\r\n")
	if end := bytes.Index(rest, []byte("\n---")); end >= 0 {
		return rest[:end]
	}
	return rest
}
