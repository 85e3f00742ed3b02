package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/revgate/internal/diff"
	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/report"
)

// renderedLine is a single line of diff output ready for display.
type renderedLine struct {
	OldNum  int // 0 means not applicable (add-only)
	NewNum  int // 0 means not applicable (delete-only)
	Op      gitdiff.LineOp
	Content string // raw text content (no trailing newline)
	IsHunk  bool   // true if this is a hunk header

	// Syntax highlighting tokens (nil = no highlighting)
	Tokens []diff.Token

	// Finding annotation
	IsFinding bool
	Severity  model.Severity
}

// renderFile produces renderedLines for a file's diff fragments, with an
// annotation after the line each finding starts on. File-level findings and
// findings on lines outside the diff are listed before the first hunk.
func renderFile(f *diff.File, findings []report.Finding) []renderedLine {
	var lines []renderedLine

	byLine := map[int][]report.Finding{}
	for _, fd := range findings {
		byLine[fd.Lines.Start] = append(byLine[fd.Lines.Start], fd)
	}
	placed := map[int]bool{}
	for _, frag := range f.Fragments {
		newLine := int(frag.NewPosition)
		oldLine := int(frag.OldPosition)
		for _, line := range frag.Lines {
			switch line.Op {
			case gitdiff.OpDelete:
				if f.IsDeleted {
					placed[oldLine] = true
				}
				oldLine++
			case gitdiff.OpAdd:
				placed[newLine] = true
				newLine++
			default:
				placed[newLine] = true
				oldLine++
				newLine++
			}
		}
	}
	for _, fd := range findings {
		if fd.Lines.FileLevel() || !placed[fd.Lines.Start] {
			lines = append(lines, annotation(fd))
		}
	}
	if len(lines) > 0 {
		lines = append(lines, renderedLine{Content: ""})
	}

	// Collect all content lines for syntax highlighting
	var contentLines []string
	for _, frag := range f.Fragments {
		for _, line := range frag.Lines {
			contentLines = append(contentLines, strings.TrimRight(line.Line, "\n\r"))
		}
	}

	highlighted := diff.HighlightLines(f.Name(), contentLines)
	hlIdx := 0

	for i, frag := range f.Fragments {
		lines = append(lines, renderedLine{
			IsHunk:  true,
			Content: formatHunkHeader(frag),
		})

		oldLine := int(frag.OldPosition)
		newLine := int(frag.NewPosition)

		for _, line := range frag.Lines {
			rl := renderedLine{
				Op:      line.Op,
				Content: strings.TrimRight(line.Line, "\n\r"),
			}

			if hlIdx < len(highlighted) {
				rl.Tokens = highlighted[hlIdx].Tokens
				hlIdx++
			}

			anchor := 0
			switch line.Op {
			case gitdiff.OpContext:
				rl.OldNum = oldLine
				rl.NewNum = newLine
				anchor = newLine
				oldLine++
				newLine++
			case gitdiff.OpDelete:
				rl.OldNum = oldLine
				if f.IsDeleted {
					anchor = oldLine
				}
				oldLine++
			case gitdiff.OpAdd:
				rl.NewNum = newLine
				anchor = newLine
				newLine++
			}

			lines = append(lines, rl)
			if anchor > 0 {
				for _, fd := range byLine[anchor] {
					lines = append(lines, annotation(fd))
				}
			}
		}

		if i < len(f.Fragments)-1 {
			lines = append(lines, renderedLine{Content: ""})
		}
	}

	return lines
}

func annotation(f report.Finding) renderedLine {
	text := fmt.Sprintf("  ▲ %s %s: %s [%s]", f.Severity, f.Category, f.Message, strings.Join(f.Sources, ","))
	if f.Lines.FileLevel() {
		text = fmt.Sprintf("  ● %s %s: %s [%s]", f.Severity, f.Category, f.Message, strings.Join(f.Sources, ","))
	}
	return renderedLine{Content: text, IsFinding: true, Severity: f.Severity}
}

func formatHunkHeader(frag *gitdiff.TextFragment) string {
	old := fmt.Sprintf("-%d", frag.OldPosition)
	if frag.OldLines != 1 {
		old += fmt.Sprintf(",%d", frag.OldLines)
	}
	new := fmt.Sprintf("+%d", frag.NewPosition)
	if frag.NewLines != 1 {
		new += fmt.Sprintf(",%d", frag.NewLines)
	}

	header := fmt.Sprintf("@@ %s %s @@", old, new)
	if frag.Comment != "" {
		header += " " + frag.Comment
	}
	return header
}

// renderHighlightedContent renders line content with syntax tokens and diff coloring.
func renderHighlightedContent(rl renderedLine, prefix string) string {
	if len(rl.Tokens) == 0 {
		return prefix + rl.Content
	}

	var b strings.Builder
	b.WriteString(prefix)

	for _, tok := range rl.Tokens {
		if tok.Color != "" && rl.Op == gitdiff.OpContext {
			// Apply syntax color only for context lines
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		} else {
			b.WriteString(tok.Text)
		}
	}

	return b.String()
}

// pulseColor interpolates between a dim and bright version of a color based on phase.
func pulseColor(dimRGB, brightRGB [3]int, phase float64) lipgloss.Color {
	t := (math.Sin(phase) + 1) / 2 // 0.0 to 1.0
	r := dimRGB[0] + int(t*float64(brightRGB[0]-dimRGB[0]))
	g := dimRGB[1] + int(t*float64(brightRGB[1]-dimRGB[1]))
	b := dimRGB[2] + int(t*float64(brightRGB[2]-dimRGB[2]))
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r, g, b))
}

// Finding color pairs: [dim, bright] per severity band.
var (
	findingCritDim    = [3]int{0x8a, 0x2e, 0x2e} // muted red
	findingCritBright = [3]int{0xff, 0x55, 0x55} // bright red
	findingHighDim    = [3]int{0x8a, 0x5c, 0x3a} // muted orange
	findingHighBright = [3]int{0xff, 0xb8, 0x6c} // bright orange
	findingMedDim     = [3]int{0x8a, 0x8a, 0x4c} // muted yellow
	findingMedBright  = [3]int{0xf1, 0xfa, 0x8c} // bright yellow
	findingLowDim     = [3]int{0x8a, 0x8a, 0x8a} // muted white
	findingLowBright  = [3]int{0xf8, 0xf8, 0xf2} // bright white
)

func findingStyle(sev model.Severity, phase float64) lipgloss.Style {
	var dim, bright [3]int
	bold := false
	switch sev {
	case model.SeverityCritical:
		dim, bright = findingCritDim, findingCritBright
		bold = true
	case model.SeverityHigh:
		dim, bright = findingHighDim, findingHighBright
		bold = true
	case model.SeverityMedium:
		dim, bright = findingMedDim, findingMedBright
	default:
		dim, bright = findingLowDim, findingLowBright
	}
	return lipgloss.NewStyle().Foreground(pulseColor(dim, bright, phase)).Bold(bold)
}

// styleLine applies styling to a rendered line for unified view.
func styleLine(rl renderedLine, width int, phase float64) string {
	if rl.IsFinding {
		return findingStyle(rl.Severity, phase).Render(truncate(rl.Content, width-2))
	}

	if rl.IsHunk {
		return hunkHeaderStyle.Width(width).Render(rl.Content)
	}

	var oldNum, newNum string
	if rl.OldNum > 0 {
		oldNum = fmt.Sprintf("%4d", rl.OldNum)
	} else {
		oldNum = "    "
	}
	if rl.NewNum > 0 {
		newNum = fmt.Sprintf("%4d", rl.NewNum)
	} else {
		newNum = "    "
	}

	lineNums := lineNumberStyle.Render(oldNum) + " " + lineNumberStyle.Render(newNum)

	var prefix string
	var style func(string) string

	switch rl.Op {
	case gitdiff.OpAdd:
		prefix = "+"
		style = func(s string) string { return addedLineStyle.Render(s) }
	case gitdiff.OpDelete:
		prefix = "-"
		style = func(s string) string { return deletedLineStyle.Render(s) }
	default:
		prefix = " "
		style = nil // context lines get syntax highlighting instead
	}

	var content string
	if style == nil {
		content = renderHighlightedContent(rl, prefix)
	} else {
		content = style(prefix + rl.Content)
	}

	maxContent := width - 12
	if maxContent > 0 && lipgloss.Width(content) > maxContent {
		content = truncate(prefix+rl.Content, maxContent)
		if style != nil {
			content = style(content)
		}
	}

	return lineNums + " " + content
}

// styleLineSplit renders a line for split (side-by-side) view.
func styleLineSplit(rl renderedLine, halfWidth int, phase float64) (left, right string) {
	if rl.IsFinding {
		return findingStyle(rl.Severity, phase).Render(truncate(rl.Content, halfWidth*2)), ""
	}

	if rl.IsHunk {
		half := hunkHeaderStyle.Width(halfWidth).Render(rl.Content)
		return half, ""
	}

	maxContent := halfWidth - 7

	switch rl.Op {
	case gitdiff.OpDelete:
		num := fmt.Sprintf("%4d", rl.OldNum)
		content := truncate(rl.Content, maxContent)
		left = lineNumberStyle.Render(num) + " " + deletedLineStyle.Render("-"+content)
		right = strings.Repeat(" ", halfWidth)
	case gitdiff.OpAdd:
		left = strings.Repeat(" ", halfWidth)
		num := fmt.Sprintf("%4d", rl.NewNum)
		content := truncate(rl.Content, maxContent)
		right = lineNumberStyle.Render(num) + " " + addedLineStyle.Render("+"+content)
	default:
		oldNum := "    "
		newNum := "    "
		if rl.OldNum > 0 {
			oldNum = fmt.Sprintf("%4d", rl.OldNum)
		}
		if rl.NewNum > 0 {
			newNum = fmt.Sprintf("%4d", rl.NewNum)
		}
		content := truncate(rl.Content, maxContent)
		left = lineNumberStyle.Render(oldNum) + " " + contextLineStyle.Render(" "+content)
		right = lineNumberStyle.Render(newNum) + " " + contextLineStyle.Render(" "+content)
	}

	return left, right
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
