package telegram

import (
	"context"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
)

// registerHandlers translates dispatched server updates into domain updates.
// Updates about chats that were never announced are dropped; they reappear
// once the chat is loaded.
func (c *gotdClient) registerHandlers() {
	c.dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		c.handleNewMessage(update.Message, e)
		return nil
	})
	c.dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		c.handleNewMessage(update.Message, e)
		return nil
	})
	c.dispatcher.OnEditMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateEditMessage) error {
		c.handleEditedMessage(update.Message)
		return nil
	})
	c.dispatcher.OnEditChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateEditChannelMessage) error {
		c.handleEditedMessage(update.Message)
		return nil
	})

	c.dispatcher.OnUserStatus(func(ctx context.Context, e tg.Entities, update *tg.UpdateUserStatus) error {
		if c.knownUser(update.UserID) {
			c.emit(domain.UpdateUserStatus{UserID: update.UserID, Status: convertUserStatus(update.Status)})
		}
		return nil
	})

	// Register typing event handlers.
	c.dispatcher.OnUserTyping(func(ctx context.Context, e tg.Entities, update *tg.UpdateUserTyping) error {
		c.handleChatAction(userChatID(update.UserID), &tg.PeerUser{UserID: update.UserID}, update.Action)
		return nil
	})
	c.dispatcher.OnChatUserTyping(func(ctx context.Context, e tg.Entities, update *tg.UpdateChatUserTyping) error {
		c.handleChatAction(basicGroupChatID(update.ChatID), update.FromID, update.Action)
		return nil
	})
	c.dispatcher.OnChannelUserTyping(func(ctx context.Context, e tg.Entities, update *tg.UpdateChannelUserTyping) error {
		c.handleChatAction(channelChatID(update.ChannelID), update.FromID, update.Action)
		return nil
	})

	c.dispatcher.OnReadHistoryInbox(func(ctx context.Context, e tg.Entities, update *tg.UpdateReadHistoryInbox) error {
		if chatID := peerChatID(update.Peer); c.knownChat(chatID) {
			c.emit(domain.UpdateChatReadInbox{
				ChatID:                 chatID,
				LastReadInboxMessageID: int64(update.MaxID),
				UnreadCount:            int32(update.StillUnreadCount),
			})
			c.setUnread(chatID, int32(update.StillUnreadCount))
		}
		return nil
	})
	c.dispatcher.OnReadChannelInbox(func(ctx context.Context, e tg.Entities, update *tg.UpdateReadChannelInbox) error {
		if chatID := channelChatID(update.ChannelID); c.knownChat(chatID) {
			c.emit(domain.UpdateChatReadInbox{
				ChatID:                 chatID,
				LastReadInboxMessageID: int64(update.MaxID),
				UnreadCount:            int32(update.StillUnreadCount),
			})
			c.setUnread(chatID, int32(update.StillUnreadCount))
		}
		return nil
	})
	c.dispatcher.OnReadHistoryOutbox(func(ctx context.Context, e tg.Entities, update *tg.UpdateReadHistoryOutbox) error {
		if chatID := peerChatID(update.Peer); c.knownChat(chatID) {
			c.emit(domain.UpdateChatReadOutbox{ChatID: chatID, LastReadOutboxMessageID: int64(update.MaxID)})
		}
		return nil
	})

	c.dispatcher.OnDeleteChannelMessages(func(ctx context.Context, e tg.Entities, update *tg.UpdateDeleteChannelMessages) error {
		chatID := channelChatID(update.ChannelID)
		if !c.knownChat(chatID) {
			return nil
		}
		ids := make([]int64, 0, len(update.Messages))
		for _, id := range update.Messages {
			ids = append(ids, int64(id))
		}
		c.emit(domain.UpdateDeleteMessages{ChatID: chatID, MessageIDs: ids, IsPermanent: true})
		return nil
	})

	c.dispatcher.OnNotifySettings(func(ctx context.Context, e tg.Entities, update *tg.UpdateNotifySettings) error {
		c.handleNotifySettings(update.Peer, &update.NotifySettings)
		return nil
	})
}

func (c *gotdClient) handleNewMessage(msg tg.MessageClass, e tg.Entities) {
	m, ok := msg.(*tg.Message)
	if !ok {
		return
	}
	chatID, ok := c.ensureChat(m.PeerID, updateEntities(e))
	if !ok {
		c.logger.Debug("Dropping message of unknown chat", zap.Int("message_id", m.ID))
		return
	}
	if from, ok := m.FromID.(*tg.PeerUser); ok {
		if u, ok := e.Users[from.UserID]; ok {
			c.ensureUser(u)
		}
	}

	message := convertMessage(m, c.self())
	c.emit(domain.UpdateNewMessage{Message: message})
	c.emit(domain.UpdateChatLastMessage{
		ChatID:      chatID,
		LastMessage: &message,
		Positions:   c.livePositions(chatID, m),
	})
	if !m.Out {
		c.addUnread(chatID)
	}
}

func (c *gotdClient) handleEditedMessage(msg tg.MessageClass) {
	m, ok := msg.(*tg.Message)
	if !ok {
		return
	}
	chatID := peerChatID(m.PeerID)
	if !c.knownChat(chatID) {
		return
	}
	message := convertMessage(m, c.self())
	c.emit(domain.UpdateMessageContent{ChatID: chatID, MessageID: message.ID, NewContent: message.Content})
	c.emit(domain.UpdateMessageEdited{ChatID: chatID, MessageID: message.ID, EditDate: message.EditDate})
}

func (c *gotdClient) handleChatAction(chatID int64, from tg.PeerClass, action tg.SendMessageActionClass) {
	if !c.knownChat(chatID) {
		return
	}
	var sender domain.MessageSender
	switch p := from.(type) {
	case *tg.PeerUser:
		if !c.knownUser(p.UserID) {
			return
		}
		sender.UserID = p.UserID
	default:
		sender.ChatID = peerChatID(from)
	}
	c.emit(domain.UpdateChatAction{ChatID: chatID, Sender: sender, Action: convertChatAction(action)})
}
