package ui

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/danhigham/multigram/internal/client"
	"github.com/danhigham/multigram/internal/state"
)

var (
	statusBarBg     = lipgloss.Color("#353533")
	statusPillBg    = lipgloss.Color("#FF5FAF")
	statusPillBgOff = lipgloss.Color("#6C5098")
	statusTimeBg    = lipgloss.Color("#6124DF")
	statusUnreadBg  = lipgloss.Color("#2ECC71")
)

type statusModel struct {
	stage     string
	ready     bool
	chatTitle string
	userName  string
	unread    int32
	message   string
	width     int
}

func newStatusModel() statusModel {
	return statusModel{stage: "Starting"}
}

func (m statusModel) SetWidth(w int) statusModel {
	m.width = w
	return m
}

// SetClient shows the phase of the active client.
func (m statusModel) SetClient(c *client.Client) statusModel {
	m.stage, m.ready = stageText(c)
	if !m.ready {
		m.chatTitle = ""
		m.userName = ""
		m.unread = 0
	}
	return m
}

// SetMessage shows a transient message, such as a failed request, in place of
// the chat title. An empty message clears it.
func (m statusModel) SetMessage(msg string) statusModel {
	m.message = msg
	return m
}

func stageText(c *client.Client) (string, bool) {
	if c == nil {
		return "Starting", false
	}
	switch s := c.State().(type) {
	case *state.Session:
		return "Online", true
	case *client.LoggingOut:
		return "Logging out", false
	case *client.Auth:
		switch s.State().(type) {
		case *client.WaitCode:
			return "Code", false
		case *client.WaitPassword:
			return "Password", false
		case *client.WaitRegistration:
			return "Sign up", false
		case *client.WaitOtherDeviceConfirmation:
			return "QR login", false
		}
		return "Log in", false
	}
	return "", false
}

// View renders a full-width status bar:
// [STAGE pill] [chat title] ... [unread pill] [user name] [time pill]
func (m statusModel) View() string {
	pillBg := statusPillBgOff
	if m.ready {
		pillBg = statusPillBg
	}
	pill := pillStyle(pillBg).Render(strings.ToUpper(m.stage))

	leftText := m.chatTitle
	titleStyle := lipgloss.NewStyle().
		Background(statusBarBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
	if m.message != "" {
		leftText = m.message
		titleStyle = titleStyle.Foreground(lipgloss.Color("#FF8787"))
	}
	left := pill + titleStyle.Render(leftText)

	var right string
	if m.unread > 0 {
		right += pillStyle(statusUnreadBg).Render(fmt.Sprintf("%d unread", m.unread))
	}
	if m.userName != "" {
		right += pillStyle(lipgloss.Color("#7B5EA7")).Render(m.userName)
	}
	right += pillStyle(statusTimeBg).Render(time.Now().Format("15:04"))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	filler := lipgloss.NewStyle().
		Background(statusBarBg).
		Render(strings.Repeat(" ", gap))

	return lipgloss.NewStyle().
		Background(statusBarBg).
		Width(m.width).
		MaxWidth(m.width).
		Render(left + filler + right)
}

func pillStyle(bg color.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(bg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1)
}
