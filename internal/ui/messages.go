package ui

import (
	"github.com/danhigham/multigram/internal/client"
	"github.com/danhigham/multigram/internal/state"
)

// refreshMsg asks the model to re-read the active client.
type refreshMsg struct{}

// stateChangedMsg reports that the active client moved to another state, so
// its notifications have to be watched again.
type stateChangedMsg struct{}

// clientsChangedMsg reports that clients were added or removed.
type clientsChangedMsg struct{}

// activeClientMsg reports the client now shown. atEnd tells whether it was
// added at the back of the account list.
type activeClientMsg struct {
	client *client.Client
	atEnd  bool
}

// ChatSelectedMsg is emitted when the user picks a chat.
type ChatSelectedMsg struct {
	ChatID int64
}

// requestDoneMsg carries the outcome of a request started from a key press.
type requestDoneMsg struct {
	op  string
	err error
}

// existingSessionMsg is returned when the entered phone number belongs to an
// account that is logged in already.
type existingSessionMsg struct {
	session *state.Session
}

// SplashDoneMsg signals that the splash screen timeout has elapsed.
type SplashDoneMsg struct{}

// clockTickMsg triggers a status bar time refresh.
type clockTickMsg struct{}
