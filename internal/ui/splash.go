package ui

import "charm.land/lipgloss/v2"

const splashArt = `
                 _ _   _
 _ __ ___  _   _| | |_(_) __ _ _ __ __ _ _ __ ___
| '_ ` + "`" + ` _ \| | | | | __| |/ _` + "`" + ` | '__/ _` + "`" + ` | '_ ` + "`" + ` _ \
| | | | | | |_| | | |_| | (_| | | | (_| | | | | | |
|_| |_| |_|\__,_|_|\__|_|\__, |_|  \__,_|_| |_| |_|
                         |___/
`

// SplashModel renders a centered splash overlay on startup. It stays visible
// for at least the minimum duration even if a client is ready sooner.
type SplashModel struct {
	visible       bool
	timerDone     bool
	clientReady   bool
	width, height int
}

func NewSplashModel() SplashModel {
	return SplashModel{visible: true}
}

func (s SplashModel) SetSize(w, h int) SplashModel {
	s.width = w
	s.height = h
	return s
}

func (s SplashModel) IsVisible() bool {
	return s.visible
}

// TimerDone marks the minimum display duration as elapsed.
func (s SplashModel) TimerDone() SplashModel {
	s.timerDone = true
	if s.clientReady {
		s.visible = false
	}
	return s
}

// ClientReady marks that there is an active client to show.
func (s SplashModel) ClientReady() SplashModel {
	s.clientReady = true
	if s.timerDone {
		s.visible = false
	}
	return s
}

func (s SplashModel) View() string {
	if !s.visible || s.width == 0 || s.height == 0 {
		return ""
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(highlightColor).
		Padding(1, 3).
		Render(splashArt)

	return lipgloss.Place(s.width, s.height, lipgloss.Center, lipgloss.Center, box)
}
