package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"laivdata.app/agentdesk/internal/model"
)

const untitled = "Untitled"

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// title bar
	title := titleStyle.Render("AgentDesk")
	info := dimStyle.Render(fmt.Sprintf("  %s  [%s]  %d conversations", m.agentName, m.snap.State, len(m.conversations)))
	b.WriteString(title + info + "\n")

	switch m.mode {
	case modeChat:
		m.renderChat(&b)
	default:
		m.renderList(&b)
	}

	// status line
	if errText := m.errorText(); errText != "" {
		b.WriteString(errorStyle.Render(truncate(errText, m.width-2)) + "\n")
	} else {
		b.WriteString("\n")
	}

	// bottom bar
	switch m.mode {
	case modeRename:
		b.WriteString(statusBarStyle.Render("Rename: ") + m.renameInput.View())
	case modeChat:
		b.WriteString(helpStyle.Render("  Enter: send  Esc: back  PgUp/PgDn: scroll  Ctrl+L: clear  Ctrl+E: dismiss error"))
	default:
		b.WriteString(helpStyle.Render("  Enter: open  Tab: resume  n: new  r: rename  d: delete  R: refresh  q: quit"))
	}

	return b.String()
}

func (m Model) renderList(b *strings.Builder) {
	w := m.colWidths()
	header := []string{
		pad(" ", 1),
		pad("Title", w.title),
		pad("Updated", w.updated),
		pad("Msgs", w.count),
		pad("Last message", w.last),
	}
	b.WriteString(headerStyle.Render(strings.Join(header, " ")) + "\n")

	visible := m.visibleRows()
	end := min(m.offset+visible, len(m.conversations))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(m.conversations[i], i == m.cursor) + "\n")
	}

	if len(m.conversations) == 0 {
		b.WriteString(dimStyle.Render("  No conversations yet. Press n to start one.") + "\n")
		end++
	}

	// pad remaining rows
	for i := end - m.offset; i < visible; i++ {
		b.WriteString("\n")
	}
}

func (m Model) renderRow(s model.ConversationSummary, selected bool) string {
	w := m.colWidths()

	marker := " "
	if s.ID == m.snap.ActiveConversationID {
		marker = "●"
	}
	title := s.Title
	if title == "" {
		title = untitled
	}
	updated := ""
	if !s.UpdatedAt.IsZero() {
		updated = s.UpdatedAt.Local().Format("01-02 15:04")
	}
	last := strings.ReplaceAll(s.LastMessage, "\n", " ")

	cols := []string{
		marker,
		pad(title, w.title),
		pad(updated, w.updated),
		pad(fmt.Sprintf("%d", s.MessageCount), w.count),
		truncate(last, w.last),
	}

	if selected {
		row := selectedStyle.Render(strings.Join(cols, " "))
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, row)
	}
	if marker != " " {
		cols[0] = activeTag.Render(marker)
	}
	return normalStyle.Render(strings.Join(cols, " "))
}

func (m Model) renderChat(b *strings.Builder) {
	b.WriteString(headerStyle.Render(pad(m.activeTitle(), max(m.width-2, 1))) + "\n")

	lines := m.renderChatContent()
	visible := m.chatVisibleRows()
	end := len(lines) - m.chatOffset
	start := max(end-visible, 0)
	for i := start; i < end; i++ {
		b.WriteString(lines[i] + "\n")
	}
	for i := end - start; i < visible; i++ {
		b.WriteString("\n")
	}

	b.WriteString(m.input.View() + "\n")
}

// renderChatContent renders the message view, newest last.
func (m Model) renderChatContent() []string {
	var lines []string
	maxWidth := m.width - 2
	if maxWidth < 40 {
		maxWidth = 40
	}

	if m.loadingID != "" && len(m.snap.Messages) == 0 {
		lines = append(lines, dimStyle.Render(" loading conversation..."))
	}

	for _, msg := range m.snap.Messages {
		lines = append(lines, roleHeader(msg.Role, maxWidth))
		for _, wl := range wrapText(msg.Content, maxWidth-2) {
			lines = append(lines, " "+wl)
		}
		lines = append(lines, "")
	}

	if m.pending != "" {
		lines = append(lines, roleHeader(model.RoleUser, maxWidth))
		for _, wl := range wrapText(m.pending, maxWidth-2) {
			lines = append(lines, " "+wl)
		}
		lines = append(lines, "", pendingStyle.Render(" waiting for reply..."))
	}

	return lines
}

func roleHeader(role model.Role, width int) string {
	switch role {
	case model.RoleUser:
		return userRoleStyle.Render(pad(" USER", width))
	case model.RoleAssistant:
		return assistantRoleStyle.Render(pad(" ASSISTANT", width))
	default:
		return systemRoleStyle.Render(pad(" "+strings.ToUpper(string(role)), width))
	}
}

func (m Model) activeTitle() string {
	id := m.snap.ActiveConversationID
	if id == "" {
		return "New conversation"
	}
	for _, s := range m.conversations {
		if s.ID == id && s.Title != "" {
			return s.Title
		}
	}
	return untitled
}

func (m Model) errorText() string {
	if m.snap.Error != "" {
		return m.snap.Error
	}
	return m.status
}

type colWidths struct {
	title   int
	updated int
	count   int
	last    int
}

func (m Model) colWidths() colWidths {
	w := colWidths{
		title:   32,
		updated: 11,
		count:   5,
	}
	// last message gets remaining width
	used := 1 + w.title + w.updated + w.count + 6
	w.last = m.width - used
	if w.last < 20 {
		w.last = 20
	}
	return w
}

func pad(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return s + strings.Repeat(" ", width-len(runes))
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width || width < 3 {
		return s
	}
	return string(runes[:width-2]) + ".."
}

// wrapText splits text into lines that fit within maxWidth.
func wrapText(text string, maxWidth int) []string {
	var result []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			result = append(result, "")
			continue
		}
		runes := []rune(line)
		for len(runes) > maxWidth {
			result = append(result, string(runes[:maxWidth]))
			runes = runes[maxWidth:]
		}
		result = append(result, string(runes))
	}
	return result
}
