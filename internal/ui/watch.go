package ui

import (
	"sync"

	tea "charm.land/bubbletea/v2"

	"github.com/danhigham/multigram/internal/client"
	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/state"
)

// watcher subscribes to the notifications of the active client and turns
// them into messages for the event loop.
type watcher struct {
	send func(tea.Msg)

	mu      sync.Mutex
	cancels []func()
}

func newWatcher(send func(tea.Msg)) *watcher {
	return &watcher{send: send}
}

// watch drops the previous subscriptions and subscribes to c. A nil c only
// unsubscribes.
func (w *watcher) watch(c *client.Client) {
	w.mu.Lock()
	old := w.cancels
	w.cancels = nil
	w.mu.Unlock()
	for _, cancel := range old {
		cancel()
	}
	if c == nil {
		return
	}

	refresh := func() { w.send(refreshMsg{}) }
	changed := func() { w.send(stateChangedMsg{}) }

	w.add(c.OnStateChanged(func(client.State) { changed() }))
	switch s := c.State().(type) {
	case *client.Auth:
		w.add(s.OnStateChanged(func(client.AuthState) { changed() }))
		switch a := s.State().(type) {
		case *client.WaitPhoneNumber:
			w.add(a.OnCountriesChanged(func([]domain.Country) { refresh() }))
		case *client.WaitCode:
			w.add(a.OnDataChanged(func(domain.AuthenticationCodeInfo) { refresh() }))
			w.add(a.OnCountdownChanged(func(int32) { refresh() }))
		case *client.WaitOtherDeviceConfirmation:
			w.add(a.OnLinkChanged(func(string) { refresh() }))
		}
	case *state.Session:
		w.add(s.OnMeChanged(func(*state.User) { refresh() }))
		w.add(s.OnSelectedChatChanged(func(*state.Chat) { changed() }))
		list := s.MainChatList()
		w.add(list.OnItemsChanged(func(observe.ItemsChanged) { changed() }))
		w.add(list.OnUnreadCountChanged(func(int32) { refresh() }))
		for _, chat := range list.Chats() {
			w.add(chat.OnChanged(func(domain.Chat) { refresh() }))
		}
		if chat := s.SelectedChat(); chat != nil {
			w.add(chat.OnHistoryChanged(refresh))
			w.add(chat.OnActionsChanged(refresh))
		}
	}
}

func (w *watcher) add(cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancels = append(w.cancels, cancel)
}
