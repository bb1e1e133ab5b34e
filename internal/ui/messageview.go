package ui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
)

// viewMessage is a message with its sender resolved for display.
type viewMessage struct {
	ID         int64
	Time       time.Time
	SenderName string
	Out        bool
	Text       string
	Markdown   bool
	Edited     bool
	Mention    bool
	Attachment string
}

// viewChat is what the message pane shows of the selected chat.
type viewChat struct {
	Messages []viewMessage
	// LastReadInbox is the newest incoming message the user has read.
	LastReadInbox int64
	// Truncated is set when older messages fell out of the kept history.
	Truncated bool
	Actions   []string
}

// MessageViewModel shows the kept history of the selected chat. Text with
// entities goes through glamour.
type MessageViewModel struct {
	viewport viewport.Model
	renderer *glamour.TermRenderer
	focused  bool
	width    int
	height   int
	chat     viewChat
}

func NewMessageViewModel() MessageViewModel {
	return MessageViewModel{viewport: viewport.New()}
}

func (m MessageViewModel) Update(msg tea.Msg) (MessageViewModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "j":
			m.viewport.ScrollDown(1)
			return m, nil
		case "k":
			m.viewport.ScrollUp(1)
			return m, nil
		case "g":
			m.viewport.GotoTop()
			return m, nil
		case "G":
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m MessageViewModel) View() string {
	content := truncateHeight(m.viewport.View(), max(m.height-2, 0))

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	return applyBorderColor(style, m.focused).Render(content)
}

func (m MessageViewModel) SetSize(w, h int) MessageViewModel {
	m.width = w
	m.height = h
	m.viewport.SetWidth(max(w-2, 1))
	m.viewport.SetHeight(max(h-2, 1))

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(max(m.viewport.Width()-2, 10)),
	)
	if err == nil {
		m.renderer = r
	}
	return m.render()
}

func (m MessageViewModel) SetFocused(f bool) MessageViewModel {
	m.focused = f
	return m
}

// SetChat replaces the shown chat. The view follows the newest message.
func (m MessageViewModel) SetChat(chat viewChat) MessageViewModel {
	m.chat = chat
	return m.render()
}

func (m MessageViewModel) render() MessageViewModel {
	content := lipgloss.NewStyle().Width(m.viewport.Width()).Render(m.content())
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
	return m
}

func (m MessageViewModel) content() string {
	var b strings.Builder
	if m.chat.Truncated {
		b.WriteString(hintStyle.Render(fmt.Sprintf("Showing the last %d messages", len(m.chat.Messages))))
		b.WriteString("\n")
	}

	var day string
	unreadShown := false
	for _, msg := range m.chat.Messages {
		if d := msg.Time.Format("January 2, 2006"); d != day {
			if day != "" {
				b.WriteString("\n")
			}
			b.WriteString(separator(d) + "\n")
			day = d
		}
		if !unreadShown && !msg.Out && m.chat.LastReadInbox > 0 && msg.ID > m.chat.LastReadInbox {
			b.WriteString(separator("unread") + "\n")
			unreadShown = true
		}
		b.WriteString(m.renderMessage(msg))
	}

	for _, action := range m.chat.Actions {
		b.WriteString("\n" + typingStyle.Render(action))
	}
	return b.String()
}

func separator(label string) string {
	return daySeparatorStyle.Render(fmt.Sprintf("───── %s ─────", label))
}

func (m MessageViewModel) renderMessage(msg viewMessage) string {
	nameStyle := inNameStyle
	if msg.Out {
		nameStyle = outNameStyle
	}
	header := timeStyle.Render(msg.Time.Format("15:04")) + " " + nameStyle.Render(msg.SenderName+":")
	if msg.Mention {
		header += " " + activeStyle.Render("@")
	}

	var body string
	switch {
	case msg.Markdown && m.renderer != nil:
		body = m.renderMarkdown(msg.Text)
	default:
		body = msg.Text
	}
	if msg.Edited {
		body += " " + hintStyle.Render("(edited)")
	}
	if msg.Attachment != "" {
		body = strings.TrimLeft(body+"\n"+hintStyle.Render("["+msg.Attachment+"]"), "\n")
	}

	if !strings.Contains(body, "\n") {
		return header + " " + body + "\n"
	}
	return header + "\n" + body + "\n\n"
}

func (m MessageViewModel) renderMarkdown(text string) string {
	out, err := m.renderer.Render(hardBreaks(text))
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n ")
}

// hardBreaks keeps the line breaks of a message, which markdown would fold
// into one paragraph. Code fences and table rows are left alone.
func hardBreaks(text string) string {
	lines := strings.Split(text, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || trimmed == "" || strings.HasPrefix(trimmed, "|") || i == len(lines)-1 {
			continue
		}
		lines[i] = line + "  "
	}
	return strings.Join(lines, "\n")
}
