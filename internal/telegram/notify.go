package telegram

import (
	"context"
	"time"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
)

var notifyScopes = []struct {
	scope domain.NotificationSettingsScope
	peer  tg.InputNotifyPeerClass
}{
	{domain.ScopePrivateChats, &tg.InputNotifyUsers{}},
	{domain.ScopeGroupChats, &tg.InputNotifyChats{}},
	{domain.ScopeChannelChats, &tg.InputNotifyBroadcasts{}},
}

// loadScopeNotificationSettings announces the default notification settings
// of private chats, groups and channels. Failures leave the defaults unset.
func (c *gotdClient) loadScopeNotificationSettings(ctx context.Context) {
	for _, s := range notifyScopes {
		settings, err := c.api.AccountGetNotifySettings(ctx, s.peer)
		if err != nil {
			c.logger.Warn("Failed to get notification settings", zap.Int("scope", int(s.scope)), zap.Error(err))
			continue
		}
		c.emit(domain.UpdateScopeNotificationSettings{Scope: s.scope, Settings: scopeNotificationSettings(settings)})
	}
}

func (c *gotdClient) handleNotifySettings(peer tg.NotifyPeerClass, settings *tg.PeerNotifySettings) {
	switch p := peer.(type) {
	case *tg.NotifyUsers:
		c.emit(domain.UpdateScopeNotificationSettings{Scope: domain.ScopePrivateChats, Settings: scopeNotificationSettings(settings)})
	case *tg.NotifyChats:
		c.emit(domain.UpdateScopeNotificationSettings{Scope: domain.ScopeGroupChats, Settings: scopeNotificationSettings(settings)})
	case *tg.NotifyBroadcasts:
		c.emit(domain.UpdateScopeNotificationSettings{Scope: domain.ScopeChannelChats, Settings: scopeNotificationSettings(settings)})
	case *tg.NotifyPeer:
		if chatID := peerChatID(p.Peer); c.knownChat(chatID) {
			c.emit(domain.UpdateChatNotificationSettings{ChatID: chatID, NotificationSettings: chatNotificationSettings(settings)})
		}
	}
}

func scopeNotificationSettings(s *tg.PeerNotifySettings) domain.ScopeNotificationSettings {
	out := domain.ScopeNotificationSettings{ShowPreview: true}
	if show, ok := s.GetShowPreviews(); ok {
		out.ShowPreview = show
	}
	if until, ok := s.GetMuteUntil(); ok {
		out.MuteFor = muteFor(until)
	}
	return out
}

func chatNotificationSettings(s *tg.PeerNotifySettings) domain.ChatNotificationSettings {
	out := domain.ChatNotificationSettings{UseDefaultMuteFor: true}
	if until, ok := s.GetMuteUntil(); ok {
		out.UseDefaultMuteFor = false
		out.MuteFor = muteFor(until)
	}
	return out
}

// muteFor converts a mute deadline into the seconds left.
func muteFor(until int) int32 {
	left := int64(until) - time.Now().Unix()
	if left <= 0 {
		return 0
	}
	return int32(min(left, int64(1<<31-1)))
}

// setUnread records the unread count of a chat and announces the new total
// of the list it belongs to.
func (c *gotdClient) setUnread(chatID int64, count int32) {
	c.mu.Lock()
	c.unread[chatID] = max(count, 0)
	list, ok := c.chatLists[chatID]
	c.mu.Unlock()
	if ok {
		c.emitUnreadCount(list)
	}
}

// addUnread counts a new incoming message of a chat.
func (c *gotdClient) addUnread(chatID int64) {
	c.mu.Lock()
	c.unread[chatID]++
	list, ok := c.chatLists[chatID]
	c.mu.Unlock()
	if ok {
		c.emitUnreadCount(list)
	}
}

func (c *gotdClient) unreadCount(list domain.ChatList) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int32
	for chatID, l := range c.chatLists {
		if l == list {
			total += c.unread[chatID]
		}
	}
	return total
}

func (c *gotdClient) emitUnreadCount(list domain.ChatList) {
	c.emit(domain.UpdateUnreadMessageCount{ChatList: list, UnreadCount: c.unreadCount(list)})
}
