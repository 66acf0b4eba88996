package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cwygoda/reel/internal/view"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func badge(tone view.Tone, label string) string {
	switch tone {
	case view.ToneSuccess:
		return successStyle.Render(label)
	case view.ToneError:
		return errorStyle.Render(label)
	}
	return warningStyle.Render(label)
}

func (m Model) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 30
	}

	cur := ""
	if job, ok := m.deps.Store.Current(); ok {
		cur = job.ID
	}
	vm := view.Project(m.deps.Store.List(), cur, m.now())

	if m.mode == modeCode {
		return m.viewCode(width)
	}

	header := titleStyle.Render("reel") + "\n" +
		mutedStyle.Render("up/down: select | n: new prompt | c: view code | y: copy code | d: download | r: refresh | q: quit")

	prompt := m.renderPrompt(width)
	var body string
	if width < 90 {
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderList(vm, width, height), renderDetail(vm, width))
	} else {
		leftW := clampInt(width/2, 34, 60)
		rightW := width - leftW - 1
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(vm, leftW, height), renderDetail(vm, rightW))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, prompt, body, m.renderStatusLine())
}

func (m Model) renderPrompt(width int) string {
	label := "Prompt"
	if m.submitting {
		label = m.spinner.View() + " Generating..."
	}
	content := label + "\n" + m.input.View()
	if m.mode != modePrompt {
		content = mutedStyle.Render(label + ": press n to describe a new animation")
	}
	return panelStyle.Width(maxInt(width-2, 20)).Render(content)
}

func (m Model) renderList(vm view.Model, width, height int) string {
	if vm.Empty {
		return panelStyle.Width(width).Render(mutedStyle.Render("No videos yet. Press n to create your first animation."))
	}

	maxRows := clampInt(height-14, 3, 20)
	selected := 0
	for i, row := range vm.Rows {
		if row.Selected {
			selected = i
		}
	}
	start, end := listWindow(len(vm.Rows), selected, maxRows)

	lines := make([]string, 0, maxRows+2)
	if start > 0 {
		lines = append(lines, mutedStyle.Render("..."))
	}
	for _, row := range vm.Rows[start:end] {
		mark := " "
		if row.Busy {
			mark = m.spinner.View()
		}
		text := truncateRunes(fmt.Sprintf("%s %s", mark, row.Prompt), maxInt(width-20, 10))
		line := fmt.Sprintf("%s  %s", text, mutedStyle.Render(row.Created))
		if row.Selected {
			line = selStyle.Width(maxInt(width-4, 6)).Render(fmt.Sprintf("%s  %s", text, row.Created))
		}
		lines = append(lines, line)
	}
	if end < len(vm.Rows) {
		lines = append(lines, mutedStyle.Render("..."))
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func renderDetail(vm view.Model, width int) string {
	d := vm.Current
	if d == nil {
		return panelStyle.Width(width).Render(mutedStyle.Render("Select a video to see its details."))
	}
	lines := []string{
		badge(d.Tone, d.Label),
		"",
		kv("id", d.ID),
		kv("created", d.Created),
		"",
		truncateRunes(d.Prompt, maxInt(width*4, 40)),
		"",
	}
	if d.VideoAsset != "" {
		lines = append(lines, kv("video", d.VideoAsset))
	}
	if d.Poster != "" {
		lines = append(lines, kv("poster", d.Poster))
	}
	lines = append(lines, "", actionLine("c", "view code", d.CanViewCode)+"  "+actionLine("d", "download", d.CanDownload))
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) viewCode(width int) string {
	header := titleStyle.Render("Generated code "+shortID(m.codeID)) + "\n" +
		mutedStyle.Render("up/down: scroll | y: copy | esc: back")
	return lipgloss.JoinVertical(lipgloss.Left, header, panelStyle.Width(maxInt(width-2, 20)).Render(m.code.View()), m.renderStatusLine())
}

func (m Model) renderStatusLine() string {
	if m.errorMessage != "" {
		return errorStyle.Render(m.errorMessage)
	}
	if m.statusMessage != "" {
		return mutedStyle.Render(m.statusMessage)
	}
	return ""
}

func actionLine(key, label string, enabled bool) string {
	text := "[" + key + "] " + label
	if !enabled {
		return mutedStyle.Render(text)
	}
	return text
}

func kv(key, value string) string {
	return mutedStyle.Render(key+":") + " " + value
}

// listWindow returns the visible [start, end) slice of total rows keeping
// cursor in view.
func listWindow(total, cursor, size int) (int, int) {
	if total <= size {
		return 0, total
	}
	start := cursor - size/2
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > total {
		end = total
		start = end - size
	}
	return start, end
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 1 {
		return string(r[:limit])
	}
	return string(r[:limit-1]) + "…"
}
