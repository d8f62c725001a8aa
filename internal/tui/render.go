package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/minutes/internal/tabs"
	"github.com/fakeyudi/minutes/internal/timeline"
)

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabs.Tab) string {
	switch t {
	case tabs.Main:
		return m.renderLive()
	case tabs.History:
		return m.renderHistory()
	case tabs.Limits:
		return m.renderLimits()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) wrap(s string) string {
	w := m.width - 4
	if w < 10 {
		w = 10
	}
	return lipgloss.NewStyle().PaddingLeft(2).Width(w).Render(s)
}

func (m *Model) renderLive() string {
	var sb strings.Builder
	sb.WriteString(heading("Transcript"))
	if m.final == "" && m.interim == "" {
		sb.WriteString(dimStyle.Render("  Press space and start speaking") + "\n")
	} else {
		sb.WriteString(m.wrap(m.final + dimStyle.Render(m.interim)))
		sb.WriteString("\n")
	}

	if m.reading != "" && m.reading != m.final {
		sb.WriteString(heading("Hiragana"))
		sb.WriteString(m.wrap(m.reading) + "\n")
	}

	tl := m.app.Timeline()
	if tl.Len() > 0 || m.app.RecorderPhase() != timeline.PhaseIdle {
		sb.WriteString(heading(fmt.Sprintf("Timeline (%d)", tl.Len())))
		for _, u := range tl.Utterances() {
			style := sectionHeader.Foreground(speakerColors[tl.ColorIndex(u.Name)%len(speakerColors)])
			sb.WriteString("  " + style.Render(u.Name) + "  " + u.Text + "\n")
		}
		if phase := m.app.RecorderPhase(); phase != timeline.PhaseIdle {
			sb.WriteString(dimStyle.Render("  recording: "+string(phase)) + "\n")
		}
	}

	if m.output != "" {
		sb.WriteString(heading(m.outputTitle))
		sb.WriteString(m.wrap(m.output) + "\n")
	}
	return sb.String()
}

func (m *Model) renderHistory() string {
	query := m.app.Tabs().Query()
	rows := m.app.History().Display(query)

	var sb strings.Builder
	title := fmt.Sprintf("History (%d/%d)", m.app.History().Len(), m.app.History().MaxItems())
	if query != "" {
		title += fmt.Sprintf("  filter %q: %d", query, len(rows))
	}
	sb.WriteString(heading(title))
	if len(rows) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for i, r := range rows {
		text := strings.ReplaceAll(r.Entry.Text, "\n", " ")
		if limit := m.width - 26; limit > 10 && len([]rune(text)) > limit {
			text = string([]rune(text)[:limit]) + "…"
		}
		row := fmt.Sprintf("  %s  %s", timeStyle.Render(r.Entry.Date), text)
		if i == m.cursor {
			row = selectedRowStyle.Width(m.width - 2).Render(row)
		}
		sb.WriteString(row + "\n")
	}
	return sb.String()
}

func (m *Model) renderLimits() string {
	var sb strings.Builder
	s := m.app.Summarizer()
	if s == nil {
		sb.WriteString(heading("Rate limits"))
		sb.WriteString(dimStyle.Render("  summarization is not available") + "\n")
		return sb.String()
	}
	key := "not set"
	if s.HasKey() {
		key = "set"
	}
	sb.WriteString(heading("Gemini"))
	sb.WriteString(labelStyle.Render("  Model:  ") + s.Model() + "\n")
	sb.WriteString(labelStyle.Render("  Key:    ") + key + "\n")

	for _, st := range s.Stats() {
		sb.WriteString(heading(st.Model))
		sb.WriteString(limitRow("RPM", st.Requests.Used, st.Requests.Limit))
		sb.WriteString(limitRow("TPM", st.Tokens.Used, st.Tokens.Limit))
		if st.Daily != nil {
			sb.WriteString(limitRow("RPD", st.Daily.Used, st.Daily.Limit))
		}
	}
	return sb.String()
}

func limitRow(label string, used, limit int) string {
	return fmt.Sprintf("  %s  %s  %d/%d\n", labelStyle.Render(fmt.Sprintf("%-4s", label)), bar(used, limit, 20), used, limit)
}

func bar(used, limit, width int) string {
	if limit <= 0 {
		return dimStyle.Render(strings.Repeat("·", width))
	}
	filled := used * width / limit
	if filled > width {
		filled = width
	}
	style := barFull
	switch pct := used * 100 / limit; {
	case pct >= 90:
		style = barAlert
	case pct >= 70:
		style = barWarn
	}
	return style.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("·", width-filled))
}
