package ui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/danhigham/multigram/internal/client"
	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/state"
)

type accountEntry struct {
	clientID int32
	label    string
	active   bool
}

// AccountsModel lists the clients, marking the active one.
type AccountsModel struct {
	entries []accountEntry
	width   int
}

func NewAccountsModel() AccountsModel {
	return AccountsModel{}
}

func (m AccountsModel) WithClients(clients []*client.Client, active *client.Client) AccountsModel {
	m.entries = make([]accountEntry, len(clients))
	for i, c := range clients {
		m.entries[i] = accountEntry{
			clientID: c.ID(),
			label:    accountLabel(c),
			active:   c == active,
		}
	}
	return m
}

func (m AccountsModel) SetWidth(w int) AccountsModel {
	m.width = w
	return m
}

// Height is the number of rows the rendered list takes.
func (m AccountsModel) Height() int {
	return len(m.entries) + 2
}

// Neighbor returns the id of the client delta steps away from the active
// one, wrapping around.
func (m AccountsModel) Neighbor(delta int) (int32, bool) {
	n := len(m.entries)
	if n < 2 {
		return 0, false
	}
	for i, e := range m.entries {
		if e.active {
			return m.entries[((i+delta)%n+n)%n].clientID, true
		}
	}
	return m.entries[0].clientID, true
}

func (m AccountsModel) View() string {
	contentW := m.width - 4
	if contentW < 1 {
		contentW = 1
	}
	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		style := lipgloss.NewStyle().MaxWidth(contentW)
		cursor := "  "
		if e.active {
			cursor = "> "
			style = style.Inherit(activeStyle)
		}
		lines[i] = cursor + style.Render(e.label)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Width(m.width).
		Render(strings.Join(lines, "\n"))
}

// accountLabel names a client by its own user once logged in.
func accountLabel(c *client.Client) string {
	switch s := c.State().(type) {
	case *state.Session:
		if me := s.Me(); me != nil {
			return displayName(me.Get())
		}
		return "Loading…"
	case *client.LoggingOut:
		return "Logging out…"
	}
	label := "New account"
	if c.DatabaseInfo().UseTestDC {
		label += " (test)"
	}
	return label
}

func displayName(u domain.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case name != "":
		return name
	case u.Username != "":
		return "@" + u.Username
	case u.PhoneNumber != "":
		return "+" + u.PhoneNumber
	}
	return fmt.Sprintf("User %d", u.ID)
}
