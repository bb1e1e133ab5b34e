package state

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/telegram"
)

const chatsPerLoad = 20

type listEntry struct {
	chat     *Chat
	position domain.ChatPosition
}

// ChatList keeps the chats of one list sorted by descending order. Chats with
// equal order are sorted by descending id.
type ChatList struct {
	list     domain.ChatList
	clientID int32
	api      telegram.API
	logger   *zap.Logger

	mu      sync.RWMutex
	entries []listEntry
	unread  int32

	itemsChanged  observe.Notifier[observe.ItemsChanged]
	unreadChanged observe.Notifier[int32]
}

func newChatList(list domain.ChatList, clientID int32, api telegram.API, logger *zap.Logger) *ChatList {
	return &ChatList{
		list:     list,
		clientID: clientID,
		api:      api,
		logger:   logger,
	}
}

func (l *ChatList) List() domain.ChatList {
	return l.list
}

func (l *ChatList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Chats returns the chats in display order.
func (l *ChatList) Chats() []*Chat {
	l.mu.RLock()
	defer l.mu.RUnlock()
	chats := make([]*Chat, len(l.entries))
	for i, e := range l.entries {
		chats[i] = e.chat
	}
	return chats
}

// Position returns the stored position of a chat in this list.
func (l *ChatList) Position(chatID int64) (domain.ChatPosition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.index(chatID); i >= 0 {
		return l.entries[i].position, true
	}
	return domain.ChatPosition{}, false
}

func (l *ChatList) UnreadCount() int32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unread
}

func (l *ChatList) OnItemsChanged(fn func(observe.ItemsChanged)) (cancel func()) {
	return l.itemsChanged.Subscribe(fn)
}

func (l *ChatList) OnUnreadCountChanged(fn func(int32)) (cancel func()) {
	return l.unreadChanged.Subscribe(fn)
}

func (l *ChatList) setUnreadCount(count int32) {
	l.mu.Lock()
	if l.unread == count {
		l.mu.Unlock()
		return
	}
	l.unread = count
	l.mu.Unlock()
	l.unreadChanged.Notify(count)
}

// UpdateChatPosition moves, inserts or removes a chat. An order of zero
// removes the chat from the list.
func (l *ChatList) UpdateChatPosition(chat *Chat, pos domain.ChatPosition) {
	var events []observe.ItemsChanged

	l.mu.Lock()
	if i := l.index(chat.ID()); i >= 0 {
		l.entries = append(l.entries[:i], l.entries[i+1:]...)
		events = append(events, observe.ItemsChanged{Position: i, Removed: 1})
	}
	if pos.Order != 0 {
		i := l.insertIndex(pos.Order, chat.ID())
		l.entries = append(l.entries, listEntry{})
		copy(l.entries[i+1:], l.entries[i:])
		l.entries[i] = listEntry{chat: chat, position: pos}
		events = append(events, observe.ItemsChanged{Position: i, Added: 1})
	}
	l.mu.Unlock()

	for _, e := range events {
		l.itemsChanged.Notify(e)
	}
}

// Fetch loads the list page by page until the backend reports that every
// chat is loaded. Loaded chats arrive as updates.
func (l *ChatList) Fetch(ctx context.Context) {
	for ctx.Err() == nil {
		err := l.api.LoadChats(ctx, l.clientID, l.list, chatsPerLoad)
		if err == nil {
			continue
		}
		if domain.ErrorCode(err) != domain.CodeNotFound {
			l.logger.Warn("Failed to load chats", zap.Int("list_kind", int(l.list.Kind)), zap.Error(err))
		}
		return
	}
}

func (l *ChatList) index(chatID int64) int {
	for i, e := range l.entries {
		if e.chat.ID() == chatID {
			return i
		}
	}
	return -1
}

func (l *ChatList) insertIndex(order, chatID int64) int {
	return sort.Search(len(l.entries), func(i int) bool {
		e := l.entries[i]
		if e.position.Order != order {
			return e.position.Order < order
		}
		return e.chat.ID() < chatID
	})
}
