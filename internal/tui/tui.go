// Package tui implements the Bubble Tea report browser.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/revgate/internal/diff"
	"github.com/sprite-ai/revgate/internal/model"
	"github.com/sprite-ai/revgate/internal/report"
)

const pulseInterval = 120 * time.Millisecond

type pulseMsg time.Time

// Model is the top-level Bubble Tea model for browsing a review.
type Model struct {
	diffSet *diff.DiffSet
	report  report.Report
	byFile  map[string][]report.Finding

	// UI state
	width  int
	height int

	// File list
	fileIndex int // currently selected file

	// Diff viewport
	scrollOffset int // scroll position within the current file's diff
	viewHeight   int // number of visible lines in the diff area

	// Rendered lines for the current file
	lines []renderedLine

	// View mode
	splitView bool

	// Help
	showHelp bool

	// Finding highlight animation
	phase float64
}

// New creates a browser over a parsed diff and its report. A nil report
// shows the diff without findings.
func New(ds *diff.DiffSet, r *report.Report) Model {
	m := Model{
		diffSet: ds,
		byFile:  map[string][]report.Finding{},
	}
	if r != nil {
		m.report = *r
		for _, f := range r.Findings {
			m.byFile[f.File] = append(m.byFile[f.File], f)
		}
	}
	m.updateLines()
	return m
}

func (m *Model) updateLines() {
	if len(m.diffSet.Files) == 0 {
		m.lines = nil
		return
	}
	f := m.diffSet.Files[m.fileIndex]
	m.lines = renderFile(f, m.byFile[f.Name()])
}

func pulse() tea.Cmd {
	return tea.Tick(pulseInterval, func(t time.Time) tea.Msg { return pulseMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if len(m.report.Findings) == 0 {
		return nil
	}
	return pulse()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewHeight = m.height - 4 // status bar + help bar + borders
		return m, nil

	case pulseMsg:
		m.phase += 0.35
		return m, pulse()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Down):
			if m.scrollOffset < len(m.lines)-1 {
				m.scrollOffset++
			}

		case key.Matches(msg, keys.Up):
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}

		case key.Matches(msg, keys.NextFile):
			if m.fileIndex < len(m.diffSet.Files)-1 {
				m.fileIndex++
				m.scrollOffset = 0
				m.updateLines()
			}

		case key.Matches(msg, keys.PrevFile):
			if m.fileIndex > 0 {
				m.fileIndex--
				m.scrollOffset = 0
				m.updateLines()
			}

		case key.Matches(msg, keys.NextHunk):
			m.jumpForward(func(rl renderedLine) bool { return rl.IsHunk })

		case key.Matches(msg, keys.PrevHunk):
			m.jumpBack(func(rl renderedLine) bool { return rl.IsHunk })

		case key.Matches(msg, keys.NextFinding):
			m.jumpForward(func(rl renderedLine) bool { return rl.IsFinding })

		case key.Matches(msg, keys.PrevFinding):
			m.jumpBack(func(rl renderedLine) bool { return rl.IsFinding })

		case key.Matches(msg, keys.Toggle):
			m.splitView = !m.splitView

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}
	}

	return m, nil
}

func (m *Model) jumpForward(match func(renderedLine) bool) {
	for i := m.scrollOffset + 1; i < len(m.lines); i++ {
		if match(m.lines[i]) {
			m.scrollOffset = i
			return
		}
	}
}

func (m *Model) jumpBack(match func(renderedLine) bool) {
	for i := m.scrollOffset - 1; i >= 0; i-- {
		if match(m.lines[i]) {
			m.scrollOffset = i
			return
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	banner := m.renderCaveats()
	bodyHeight := m.height - 2
	if banner != "" {
		bodyHeight -= lipgloss.Height(banner)
	}

	// Layout: file list on left, diff on right
	fileListWidth := m.fileListWidth()
	diffWidth := m.width - fileListWidth - 1 // -1 for gap

	fileList := m.renderFileList(fileListWidth, bodyHeight)
	diffView := m.renderDiffView(diffWidth, bodyHeight)

	main := lipgloss.JoinHorizontal(lipgloss.Top, fileList, " ", diffView)
	parts := []string{}
	if banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, main, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) fileListWidth() int {
	// Calculate based on longest filename, capped
	maxLen := 20
	for _, f := range m.diffSet.Files {
		name := f.Name()
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	w := maxLen + 14 // padding + stats + finding count
	if w > m.width/3 {
		w = m.width / 3
	}
	if w < 24 {
		w = 24
	}
	return w
}

// worst returns the most severe finding severity for a file.
func worst(findings []report.Finding) model.Severity {
	sev := model.SeverityLow
	for _, f := range findings {
		sev = sev.Max(f.Severity)
	}
	return sev
}

func (m Model) renderFileList(width, height int) string {
	var b strings.Builder

	for i, f := range m.diffSet.Files {
		name := f.Name()
		findings := m.byFile[name]

		maxName := width - 12
		if maxName > 0 && len(name) > maxName {
			name = "…" + name[len(name)-maxName+1:]
		}

		stats := fmt.Sprintf("+%d -%d", f.AddedLines, f.DeletedLines)
		line := fmt.Sprintf("%-*s %s", maxName, name, stats)

		var style lipgloss.Style
		switch {
		case i == m.fileIndex:
			style = fileItemSelectedStyle
		case f.IsNew:
			style = fileItemNewStyle
		case f.IsDeleted:
			style = fileItemDeletedStyle
		default:
			style = fileItemStyle
		}

		badge := ""
		if len(findings) > 0 {
			badge = " " + severityStyles[worst(findings)].Render(fmt.Sprintf("%d", len(findings)))
		}

		b.WriteString(style.Width(width - 4 - lipgloss.Width(badge)).Render(line))
		b.WriteString(badge)
		if i < len(m.diffSet.Files)-1 {
			b.WriteByte('\n')
		}
	}

	innerHeight := height - 2 // borders
	return fileListStyle.Width(width).Height(innerHeight).Render(b.String())
}

func (m Model) renderDiffView(width, height int) string {
	if len(m.diffSet.Files) == 0 {
		return diffViewStyle.Width(width).Height(height - 2).Render("No changes")
	}

	f := m.diffSet.Files[m.fileIndex]
	innerWidth := width - 4 // borders + padding
	innerHeight := height - 2

	header := fileHeaderStyle.Render(f.Name())

	visibleLines := innerHeight - 2 // header takes some space
	if visibleLines < 1 {
		visibleLines = 1
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')

	if m.splitView {
		m.renderSplitDiff(&b, innerWidth, visibleLines)
	} else {
		m.renderUnifiedDiff(&b, innerWidth, visibleLines)
	}

	return diffViewStyle.Width(width).Height(innerHeight).Render(b.String())
}

func (m Model) renderUnifiedDiff(b *strings.Builder, width, visibleLines int) {
	end := m.scrollOffset + visibleLines
	if end > len(m.lines) {
		end = len(m.lines)
	}

	for i := m.scrollOffset; i < end; i++ {
		b.WriteString(styleLine(m.lines[i], width, m.phase))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
}

func (m Model) renderSplitDiff(b *strings.Builder, width, visibleLines int) {
	halfWidth := (width - 3) / 2 // -3 for separator

	end := m.scrollOffset + visibleLines
	if end > len(m.lines) {
		end = len(m.lines)
	}

	for i := m.scrollOffset; i < end; i++ {
		left, right := styleLineSplit(m.lines[i], halfWidth, m.phase)
		b.WriteString(left)
		b.WriteString(" │ ")
		b.WriteString(right)
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
}

// renderCaveats shows why the review may be incomplete, or "" when it is
// not.
func (m Model) renderCaveats() string {
	if len(m.report.Caveats) == 0 {
		return ""
	}
	reasons := make([]string, 0, len(m.report.Caveats))
	for _, c := range m.report.Caveats {
		reasons = append(reasons, c.String())
	}
	return caveatBannerStyle.Width(m.width).Render("degraded: " + strings.Join(reasons, "; "))
}

func (m Model) renderStatusBar() string {
	nFiles, added, deleted := m.diffSet.Stats()

	left := fmt.Sprintf(" File %d/%d", m.fileIndex+1, nFiles)
	if len(m.lines) > 0 {
		left += fmt.Sprintf("  Line %d/%d", m.scrollOffset+1, len(m.lines))
	}

	mode := "unified"
	if m.splitView {
		mode = "split"
	}

	verdict := ""
	if m.report.Verdict != "" {
		verdict = verdictStyles[m.report.Verdict].Render(strings.ToUpper(string(m.report.Verdict))) + "  "
	}
	c := m.report.Counts
	right := fmt.Sprintf("%sC%d H%d M%d L%d  +%d -%d  %s  ? help ",
		verdict, c.Critical, c.High, c.Medium, c.Low, added, deleted, mode)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(fileHeaderStyle.Render("revgate: keyboard shortcuts"))
	b.WriteString("\n\n")

	helpItems := []struct{ key, desc string }{
		{"↑/k", "Scroll up"},
		{"↓/j", "Scroll down"},
		{"n/Tab", "Next file"},
		{"N/S-Tab", "Previous file"},
		{"]", "Next hunk"},
		{"[", "Previous hunk"},
		{"f", "Next finding"},
		{"F", "Previous finding"},
		{"v", "Toggle unified/split view"},
		{"?", "Toggle this help"},
		{"q", "Quit"},
	}

	for _, item := range helpItems {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			helpKeyStyle.Width(12).Render(item.key),
			item.desc,
		))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))

	return b.String()
}

// Run starts the browser and blocks until the user quits.
func Run(ds *diff.DiffSet, r *report.Report) error {
	p := tea.NewProgram(New(ds, r), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
