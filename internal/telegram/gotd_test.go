package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danhigham/multigram/internal/domain"
)

func newTestClient(t *testing.T) (*GotdDriver, *gotdClient) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	d := NewGotdDriver(ctx, zaptest.NewLogger(t))
	c, err := d.client(d.CreateClient())
	require.NoError(t, err)
	return d, c
}

// nextUpdate returns the next update that is not an authorization state.
func nextUpdate(t *testing.T, d *GotdDriver) domain.Update {
	t.Helper()
	for {
		select {
		case u := <-d.Updates():
			if _, ok := u.Update.(domain.UpdateAuthorizationState); ok {
				continue
			}
			return u.Update
		case <-time.After(time.Second):
			t.Fatal("no update received")
			return nil
		}
	}
}

func TestSetOption_OnlineBeforeLogin(t *testing.T) {
	d, c := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.SetOption(ctx, c.id, "online", true))
	assert.Equal(t, domain.UpdateOption{Name: "online", Value: true}, nextUpdate(t, d))

	c.mu.Lock()
	assert.Equal(t, true, c.options["online"])
	c.mu.Unlock()

	require.NoError(t, d.SetOption(ctx, c.id, "online", false))
	assert.Equal(t, domain.UpdateOption{Name: "online", Value: false}, nextUpdate(t, d))
	require.NoError(t, d.Close(ctx, c.id))
	require.NoError(t, ctx.Err())
}

func TestUnreadMessageCount(t *testing.T) {
	d, c := newTestClient(t)
	main := domain.ChatList{Kind: domain.ChatListMain}
	archive := domain.ChatList{Kind: domain.ChatListArchive}

	c.mu.Lock()
	c.chatLists[1] = main
	c.chatLists[2] = main
	c.chatLists[3] = archive
	c.unread[1] = 2
	c.unread[3] = 7
	c.mu.Unlock()

	c.setUnread(2, 5)
	assert.Equal(t, domain.UpdateUnreadMessageCount{ChatList: main, UnreadCount: 7}, nextUpdate(t, d))

	c.addUnread(1)
	assert.Equal(t, domain.UpdateUnreadMessageCount{ChatList: main, UnreadCount: 8}, nextUpdate(t, d))

	c.setUnread(3, 0)
	assert.Equal(t, domain.UpdateUnreadMessageCount{ChatList: archive, UnreadCount: 0}, nextUpdate(t, d))

	// Chats outside every list are remembered but announce nothing.
	c.setUnread(99, 4)
	c.emitUnreadCount(main)
	assert.Equal(t, domain.UpdateUnreadMessageCount{ChatList: main, UnreadCount: 8}, nextUpdate(t, d))
}

func TestHandleNotifySettings(t *testing.T) {
	d, c := newTestClient(t)
	c.mu.Lock()
	c.knownChats[42] = true
	c.mu.Unlock()

	muted := &tg.PeerNotifySettings{}
	muted.SetShowPreviews(false)
	muted.SetMuteUntil(int(time.Now().Add(time.Hour).Unix()))

	c.handleNotifySettings(&tg.NotifyChats{}, muted)
	u := nextUpdate(t, d).(domain.UpdateScopeNotificationSettings)
	assert.Equal(t, domain.ScopeGroupChats, u.Scope)
	assert.False(t, u.Settings.ShowPreview)
	assert.InDelta(t, 3600, u.Settings.MuteFor, 5)

	c.handleNotifySettings(&tg.NotifyUsers{}, &tg.PeerNotifySettings{})
	assert.Equal(t, domain.UpdateScopeNotificationSettings{
		Scope:    domain.ScopePrivateChats,
		Settings: domain.ScopeNotificationSettings{ShowPreview: true},
	}, nextUpdate(t, d))

	c.handleNotifySettings(&tg.NotifyPeer{Peer: &tg.PeerUser{UserID: 7}}, muted)
	c.handleNotifySettings(&tg.NotifyPeer{Peer: &tg.PeerUser{UserID: 42}}, &tg.PeerNotifySettings{})
	assert.Equal(t, domain.UpdateChatNotificationSettings{
		ChatID:               42,
		NotificationSettings: domain.ChatNotificationSettings{UseDefaultMuteFor: true},
	}, nextUpdate(t, d))
}
