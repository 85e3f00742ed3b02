package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/sprite-ai/revgate/internal/model"
)

// Format is an output encoding for a Report.
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatMarkdown, FormatHTML}

// ParseFormat maps a name to a Format. "md" is accepted for markdown.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatJSON, FormatText, FormatMarkdown, FormatHTML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, markdown or html)", name)
	}
}

// Encode writes r to w in format f.
func Encode(w io.Writer, r Report, f Format) error {
	switch f {
	case FormatJSON:
		return EncodeJSON(w, r)
	case FormatMarkdown:
		return EncodeMarkdown(w, r)
	case FormatHTML:
		return EncodeHTML(w, r)
	case FormatText, "":
		return EncodeText(w, r)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// EncodeJSON writes r as indented JSON.
func EncodeJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

var (
	colorRed    = lipgloss.Color("#ff5555")
	colorGreen  = lipgloss.Color("#50fa7b")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorPurple = lipgloss.Color("#bd93f9")
	colorDim    = lipgloss.Color("#6272a4")
	colorOrange = lipgloss.Color("#ffb86c")
)

// textStyles are bound to the output's renderer, so colors only appear
// when writing to a terminal.
type textStyles struct {
	header   lipgloss.Style
	file     lipgloss.Style
	dim      lipgloss.Style
	severity map[model.Severity]lipgloss.Style
	verdict  map[model.Verdict]lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	re := lipgloss.NewRenderer(w)
	return textStyles{
		header: re.NewStyle().Foreground(colorPurple).Bold(true),
		file:   re.NewStyle().Foreground(colorBlue),
		dim:    re.NewStyle().Foreground(colorDim),
		severity: map[model.Severity]lipgloss.Style{
			model.SeverityCritical: re.NewStyle().Foreground(colorRed).Bold(true),
			model.SeverityHigh:     re.NewStyle().Foreground(colorOrange),
			model.SeverityMedium:   re.NewStyle().Foreground(colorYellow),
			model.SeverityLow:      re.NewStyle().Foreground(colorBlue),
		},
		verdict: map[model.Verdict]lipgloss.Style{
			model.VerdictPass:  re.NewStyle().Foreground(colorGreen).Bold(true),
			model.VerdictWarn:  re.NewStyle().Foreground(colorYellow).Bold(true),
			model.VerdictBlock: re.NewStyle().Foreground(colorRed).Bold(true),
		},
	}
}

func severityIcon(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "!!"
	case model.SeverityHigh:
		return "! "
	case model.SeverityMedium:
		return "* "
	default:
		return "- "
	}
}

// EncodeText writes the human-readable report, grouped by file.
func EncodeText(w io.Writer, r Report) error {
	st := newTextStyles(w)
	var b strings.Builder

	fmt.Fprintln(&b, st.verdict[r.Verdict].Render(r.Summary))
	fmt.Fprintf(&b, "%d file(s) changed, +%d -%d\n", r.Stats.Files, r.Stats.Added, r.Stats.Deleted)
	fmt.Fprintf(&b, "critical %d  high %d  medium %d  low %d\n",
		r.Counts.Critical, r.Counts.High, r.Counts.Medium, r.Counts.Low)
	if len(r.Analyzers) > 0 {
		fmt.Fprintln(&b, st.dim.Render("analyzers: "+strings.Join(r.Analyzers, ", ")))
	}

	if len(r.Caveats) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, st.header.Render("Caveats"))
		for _, c := range r.Caveats {
			fmt.Fprintf(&b, "  %s\n", c)
		}
	}

	fmt.Fprintln(&b)
	if len(r.Findings) == 0 {
		fmt.Fprintln(&b, "No issues found.")
	}
	for _, group := range byFile(r.Findings) {
		fmt.Fprintln(&b, st.file.Render(group[0].File))
		for _, f := range group {
			sev := st.severity[f.Severity].Render(severityIcon(f.Severity) + f.Severity.String())
			fmt.Fprintf(&b, "  %s %s: %s %s\n", sev, f.Location, f.Message, st.dim.Render("["+strings.Join(f.Sources, ",")+"]"))
			if f.Fix != "" {
				fmt.Fprintf(&b, "      fix: %s\n", f.Fix)
			}
		}
		fmt.Fprintln(&b)
	}

	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(&b, st.header.Render("Diagnostics"))
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "  %s: %s\n", d.Analyzer, d.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// byFile groups findings by file, files in first-seen order.
func byFile(findings []Finding) [][]Finding {
	idx := map[string]int{}
	var groups [][]Finding
	for _, f := range findings {
		i, ok := idx[f.File]
		if !ok {
			i = len(groups)
			idx[f.File] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], f)
	}
	return groups
}

// EncodeMarkdown writes the report as GitHub-flavored markdown.
func EncodeMarkdown(w io.Writer, r Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "## Review: %s\n\n", strings.ToUpper(string(r.Verdict)))
	fmt.Fprintf(&b, "%s\n\n", mdEscape(r.Summary))
	fmt.Fprintf(&b, "**%d file(s)** changed, **+%d** insertions, **-%d** deletions\n\n", r.Stats.Files, r.Stats.Added, r.Stats.Deleted)

	fmt.Fprintln(&b, "| Critical | High | Medium | Low |")
	fmt.Fprintln(&b, "|---------:|-----:|-------:|----:|")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", r.Counts.Critical, r.Counts.High, r.Counts.Medium, r.Counts.Low)

	if len(r.Caveats) > 0 {
		fmt.Fprintln(&b, "### Caveats")
		fmt.Fprintln(&b)
		for _, c := range r.Caveats {
			fmt.Fprintf(&b, "- %s\n", mdEscape(c.String()))
		}
		fmt.Fprintln(&b)
	}

	if len(r.Findings) == 0 {
		fmt.Fprintln(&b, "No issues found.")
	} else {
		fmt.Fprintln(&b, "### Findings")
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "| Severity | Location | Message | Fix | Sources |")
		fmt.Fprintln(&b, "|----------|----------|---------|-----|---------|")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "| %s | `%s` | %s | %s | %s |\n",
				f.Severity, f.Location, mdEscape(f.Message), mdEscape(f.Fix), strings.Join(f.Sources, ", "))
		}
	}

	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "### Diagnostics")
		fmt.Fprintln(&b)
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "- `%s`: %s\n", d.Analyzer, mdEscape(d.Message))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

var mdReplacer = strings.NewReplacer("|", `\|`, "\n", " ", "<", "&lt;", ">", "&gt;")

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>revgate review</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 960px; margin: 40px auto; padding: 0 20px; background: #282a36; color: #f8f8f2; }
  h2, h3 { color: #bd93f9; }
  table { width: 100%; border-collapse: collapse; }
  th { text-align: left; padding: 8px 12px; background: #44475a; }
  td { padding: 8px 12px; border-bottom: 1px solid #44475a; }
  code { background: #343746; padding: 2px 6px; border-radius: 4px; font-size: 0.9em; }
  footer { margin-top: 32px; color: #6272a4; font-size: 0.85em; }
</style>
</head>
<body>
`

const htmlFoot = `<footer>Generated by <strong>revgate</strong></footer>
</body>
</html>
`

// EncodeHTML renders the markdown report to a standalone HTML page.
func EncodeHTML(w io.Writer, r Report) error {
	var md bytes.Buffer
	if err := EncodeMarkdown(&md, r); err != nil {
		return err
	}

	var body bytes.Buffer
	conv := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := conv.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}

	if _, err := io.WriteString(w, htmlHead); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, htmlFoot)
	return err
}
