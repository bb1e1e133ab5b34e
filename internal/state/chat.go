package state

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/telegram"
)

// HistoryLimit is the number of recent messages a chat keeps.
const HistoryLimit = 500

const chatActionCooldown = 5 * time.Second

// Chat is a chat of a session with its recent history and the actions other
// members are performing in it.
type Chat struct {
	Record[domain.Chat]

	clientID int32
	api      telegram.API
	now      func() time.Time

	historyMu sync.RWMutex
	messages  []domain.Message
	actions   map[domain.MessageSender]domain.ChatActionKind

	actionMu            sync.Mutex
	actionInFlight      bool
	actionCooldownUntil time.Time

	historyChanged observe.Notifier[struct{}]
	actionsChanged observe.Notifier[struct{}]
}

func newChat(c domain.Chat, clientID int32, api telegram.API) *Chat {
	chat := &Chat{
		clientID: clientID,
		api:      api,
		now:      time.Now,
		actions:  make(map[domain.MessageSender]domain.ChatActionKind),
	}
	chat.value = c
	return chat
}

func (c *Chat) ID() int64 {
	return c.Get().ID
}

// Messages returns the retained history, oldest first.
func (c *Chat) Messages() []domain.Message {
	c.historyMu.RLock()
	defer c.historyMu.RUnlock()
	return slices.Clone(c.messages)
}

// Actions returns the actions currently reported by other members.
func (c *Chat) Actions() map[domain.MessageSender]domain.ChatActionKind {
	c.historyMu.RLock()
	defer c.historyMu.RUnlock()
	out := make(map[domain.MessageSender]domain.ChatActionKind, len(c.actions))
	for k, v := range c.actions {
		out[k] = v
	}
	return out
}

func (c *Chat) OnHistoryChanged(fn func()) (cancel func()) {
	return c.historyChanged.Subscribe(func(struct{}) { fn() })
}

func (c *Chat) OnActionsChanged(fn func()) (cancel func()) {
	return c.actionsChanged.Subscribe(func(struct{}) { fn() })
}

// SendChatAction tells the other members what the user is doing. Actions are
// throttled: after a successful request further actions are dropped for five
// seconds.
func (c *Chat) SendChatAction(ctx context.Context, action domain.ChatActionKind) error {
	c.actionMu.Lock()
	if c.actionInFlight || c.now().Before(c.actionCooldownUntil) {
		c.actionMu.Unlock()
		return nil
	}
	c.actionInFlight = true
	c.actionMu.Unlock()

	err := c.api.SendChatAction(ctx, c.clientID, c.ID(), action)

	c.actionMu.Lock()
	defer c.actionMu.Unlock()
	c.actionInFlight = false
	if err != nil {
		c.actionCooldownUntil = time.Time{}
		return fmt.Errorf("send chat action: %w", err)
	}
	c.actionCooldownUntil = c.now().Add(chatActionCooldown)
	return nil
}

// ResetChatActionCooldown allows the next action to be sent right away.
func (c *Chat) ResetChatActionCooldown() {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()
	c.actionCooldownUntil = time.Time{}
}

func (c *Chat) setPosition(pos domain.ChatPosition) {
	c.update(func(chat *domain.Chat) {
		for i, p := range chat.Positions {
			if p.List == pos.List {
				if pos.Order == 0 {
					chat.Positions = slices.Delete(chat.Positions, i, i+1)
				} else {
					chat.Positions[i] = pos
				}
				return
			}
		}
		if pos.Order != 0 {
			chat.Positions = append(chat.Positions, pos)
		}
	})
}

// handleUpdate applies an update addressed to this chat.
func (c *Chat) handleUpdate(update domain.Update) {
	switch u := update.(type) {
	case domain.UpdateChatLastMessage:
		c.update(func(chat *domain.Chat) { chat.LastMessage = u.LastMessage })
	case domain.UpdateChatDraftMessage:
		c.update(func(chat *domain.Chat) { chat.DraftMessage = u.DraftMessage })
	case domain.UpdateChatTitle:
		c.update(func(chat *domain.Chat) { chat.Title = u.Title })
	case domain.UpdateChatPhoto:
		c.update(func(chat *domain.Chat) { chat.Photo = u.Photo })
	case domain.UpdateChatPermissions:
		c.update(func(chat *domain.Chat) { chat.Permissions = u.Permissions })
	case domain.UpdateChatReadInbox:
		c.update(func(chat *domain.Chat) {
			chat.LastReadInboxMessageID = u.LastReadInboxMessageID
			chat.UnreadCount = u.UnreadCount
		})
	case domain.UpdateChatReadOutbox:
		c.update(func(chat *domain.Chat) { chat.LastReadOutboxMessageID = u.LastReadOutboxMessageID })
	case domain.UpdateChatNotificationSettings:
		c.update(func(chat *domain.Chat) { chat.NotificationSettings = u.NotificationSettings })
	case domain.UpdateChatUnreadMentionCount:
		c.update(func(chat *domain.Chat) { chat.UnreadMentionCount = u.UnreadMentionCount })
	case domain.UpdateChatIsBlocked:
		c.update(func(chat *domain.Chat) { chat.IsBlocked = u.IsBlocked })
	case domain.UpdateChatIsMarkedAsUnread:
		c.update(func(chat *domain.Chat) { chat.IsMarkedAsUnread = u.IsMarkedAsUnread })
	case domain.UpdateChatAction:
		c.handleChatAction(u)
	case domain.UpdateNewMessage:
		c.editHistory(func(messages []domain.Message) []domain.Message {
			messages = append(messages, u.Message)
			if len(messages) > HistoryLimit {
				messages = messages[len(messages)-HistoryLimit:]
			}
			return messages
		})
	case domain.UpdateDeleteMessages:
		if !u.IsPermanent {
			return
		}
		c.editHistory(func(messages []domain.Message) []domain.Message {
			return slices.DeleteFunc(messages, func(m domain.Message) bool {
				return slices.Contains(u.MessageIDs, m.ID)
			})
		})
	case domain.UpdateMessageContent:
		c.editMessage(u.MessageID, func(m *domain.Message) { m.Content = u.NewContent })
	case domain.UpdateMessageEdited:
		c.editMessage(u.MessageID, func(m *domain.Message) { m.EditDate = u.EditDate })
	case domain.UpdateMessageMentionRead:
		c.editMessage(u.MessageID, func(m *domain.Message) { m.ContainsUnreadMention = false })
		c.update(func(chat *domain.Chat) { chat.UnreadMentionCount = u.UnreadMentionCount })
	case domain.UpdateMessageSendSucceeded:
		c.editMessage(u.OldMessageID, func(m *domain.Message) { *m = u.Message })
	}
}

func (c *Chat) handleChatAction(u domain.UpdateChatAction) {
	c.historyMu.Lock()
	if u.Action == domain.ChatActionCancel {
		delete(c.actions, u.Sender)
	} else {
		c.actions[u.Sender] = u.Action
	}
	c.historyMu.Unlock()
	c.actionsChanged.Notify(struct{}{})
}

func (c *Chat) editHistory(fn func([]domain.Message) []domain.Message) {
	c.historyMu.Lock()
	c.messages = fn(c.messages)
	c.historyMu.Unlock()
	c.historyChanged.Notify(struct{}{})
}

// editMessage mutates a retained message and the last message if it is the
// same one.
func (c *Chat) editMessage(id int64, fn func(*domain.Message)) {
	c.historyMu.Lock()
	found := false
	for i := range c.messages {
		if c.messages[i].ID == id {
			fn(&c.messages[i])
			found = true
			break
		}
	}
	c.historyMu.Unlock()
	if found {
		c.historyChanged.Notify(struct{}{})
	}

	chat := c.Get()
	if chat.LastMessage != nil && chat.LastMessage.ID == id {
		last := *chat.LastMessage
		fn(&last)
		c.update(func(chat *domain.Chat) { chat.LastMessage = &last })
	}
}
