package state_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/state"
	"github.com/danhigham/multigram/internal/telegram/telegramtest"
)

var mainList = domain.ChatList{Kind: domain.ChatListMain}

func newSession(t *testing.T) (*state.Session, *telegramtest.Driver) {
	t.Helper()
	d := telegramtest.NewDriver()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return state.NewSession(ctx, 1, d, zaptest.NewLogger(t)), d
}

func addChat(s *state.Session, id, order int64) {
	s.HandleUpdate(domain.UpdateNewChat{Chat: domain.Chat{ID: id, Title: "chat"}})
	if order != 0 {
		s.HandleUpdate(domain.UpdateChatPosition{ChatID: id, Position: domain.ChatPosition{List: mainList, Order: order}})
	}
}

func chatIDs(l *state.ChatList) []int64 {
	var ids []int64
	for _, c := range l.Chats() {
		ids = append(ids, c.ID())
	}
	return ids
}

func TestSession_ChatListReorder(t *testing.T) {
	s, _ := newSession(t)
	addChat(s, 7, 100)
	addChat(s, 3, 50)
	require.Equal(t, []int64{7, 3}, chatIDs(s.MainChatList()))

	var events []observe.ItemsChanged
	s.MainChatList().OnItemsChanged(func(e observe.ItemsChanged) {
		events = append(events, e)
	})

	s.HandleUpdate(domain.UpdateChatPosition{ChatID: 3, Position: domain.ChatPosition{List: mainList, Order: 200}})

	assert.Equal(t, []int64{3, 7}, chatIDs(s.MainChatList()))
	assert.Equal(t, []observe.ItemsChanged{
		{Position: 1, Removed: 1},
		{Position: 0, Added: 1},
	}, events)

	pos, ok := s.MainChatList().Position(3)
	require.True(t, ok)
	assert.Equal(t, int64(200), pos.Order)
}

func TestSession_ChatPositionZeroRemoves(t *testing.T) {
	s, _ := newSession(t)
	addChat(s, 7, 100)
	addChat(s, 3, 50)

	s.HandleUpdate(domain.UpdateChatPosition{ChatID: 7, Position: domain.ChatPosition{List: mainList}})
	assert.Equal(t, []int64{3}, chatIDs(s.MainChatList()))

	chat, ok := s.Chat(7)
	require.True(t, ok)
	assert.Empty(t, chat.Get().Positions)

	// Removing a chat that is not listed does nothing.
	var events int
	s.MainChatList().OnItemsChanged(func(observe.ItemsChanged) { events++ })
	s.HandleUpdate(domain.UpdateChatPosition{ChatID: 7, Position: domain.ChatPosition{List: mainList}})
	assert.Zero(t, events)
}

func TestSession_ChatListInsertThenRemove(t *testing.T) {
	s, _ := newSession(t)
	addChat(s, 1, 30)
	addChat(s, 2, 20)
	before := chatIDs(s.MainChatList())

	addChat(s, 9, 25)
	assert.Equal(t, []int64{1, 9, 2}, chatIDs(s.MainChatList()))
	s.HandleUpdate(domain.UpdateChatPosition{ChatID: 9, Position: domain.ChatPosition{List: mainList}})

	assert.Equal(t, before, chatIDs(s.MainChatList()))
}

func TestSession_ChatListTies(t *testing.T) {
	s, _ := newSession(t)
	addChat(s, 1, 10)
	addChat(s, 5, 10)
	addChat(s, 3, 10)

	assert.Equal(t, []int64{5, 3, 1}, chatIDs(s.MainChatList()))
}

func TestSession_LastMessagePositions(t *testing.T) {
	s, _ := newSession(t)
	addChat(s, 4, 0)
	archive := domain.ChatList{Kind: domain.ChatListArchive}

	msg := &domain.Message{ID: 11, ChatID: 4}
	s.HandleUpdate(domain.UpdateChatLastMessage{
		ChatID:      4,
		LastMessage: msg,
		Positions:   []domain.ChatPosition{{List: archive, Order: 5}},
	})

	assert.Equal(t, []int64{4}, chatIDs(s.ArchiveChatList()))
	assert.Zero(t, s.MainChatList().Len())
	chat, _ := s.Chat(4)
	assert.Equal(t, msg, chat.Get().LastMessage)
}

func TestSession_FolderListCreatedOnFirstUse(t *testing.T) {
	s, _ := newSession(t)
	addChat(s, 4, 0)
	folder := domain.ChatList{Kind: domain.ChatListFolder, FolderID: 3}

	s.HandleUpdate(domain.UpdateChatPosition{ChatID: 4, Position: domain.ChatPosition{List: folder, Order: 1}})

	assert.Same(t, s.FolderChatList(3), s.FolderChatList(3))
	assert.Equal(t, []int64{4}, chatIDs(s.FolderChatList(3)))
}

func TestSession_UpsertUserInPlace(t *testing.T) {
	s, _ := newSession(t)
	held := s.UpsertUser(domain.User{ID: 1, FirstName: "Ada"})

	var notified int
	held.OnChanged(func(domain.User) { notified++ })
	s.HandleUpdate(domain.UpdateUser{User: domain.User{ID: 1, FirstName: "Grace"}})

	got, ok := s.User(1)
	require.True(t, ok)
	assert.Same(t, held, got)
	assert.Equal(t, "Grace", held.Get().FirstName)
	assert.Equal(t, 1, notified)

	s.HandleUpdate(domain.UpdateUserStatus{UserID: 1, Status: domain.UserStatus{Kind: domain.UserStatusOnline}})
	assert.Equal(t, domain.UserStatusOnline, held.Get().Status.Kind)
}

func TestSession_SecretChatResolvesUser(t *testing.T) {
	s, _ := newSession(t)
	user := s.UpsertUser(domain.User{ID: 8})

	s.HandleUpdate(domain.UpdateSecretChat{SecretChat: domain.SecretChat{ID: 2, UserID: 8}})

	secret, ok := s.SecretChat(2)
	require.True(t, ok)
	assert.Same(t, user, secret.User())
}

func TestSession_ScopeNotificationSettingsElided(t *testing.T) {
	s, _ := newSession(t)
	var notified int
	s.ScopeNotificationSettings(domain.ScopeGroupChats).OnChanged(func(domain.ScopeNotificationSettings) { notified++ })

	settings := domain.ScopeNotificationSettings{MuteFor: 3600, ShowPreview: true}
	s.HandleUpdate(domain.UpdateScopeNotificationSettings{Scope: domain.ScopeGroupChats, Settings: settings})
	s.HandleUpdate(domain.UpdateScopeNotificationSettings{Scope: domain.ScopeGroupChats, Settings: settings})

	assert.Equal(t, 1, notified)
	assert.Equal(t, settings, s.ScopeNotificationSettings(domain.ScopeGroupChats).Get())
	assert.Zero(t, s.ScopeNotificationSettings(domain.ScopePrivateChats).Get())
}

func TestSession_UnreadMessageCount(t *testing.T) {
	s, _ := newSession(t)
	s.HandleUpdate(domain.UpdateUnreadMessageCount{ChatList: mainList, UnreadCount: 12})
	assert.Equal(t, int32(12), s.MainChatList().UnreadCount())
	assert.Zero(t, s.ArchiveChatList().UnreadCount())
}

func TestSession_ChatUpdates(t *testing.T) {
	s, _ := newSession(t)
	addChat(s, 4, 10)
	chat, _ := s.Chat(4)

	s.HandleUpdate(domain.UpdateChatTitle{ChatID: 4, Title: "Renamed"})
	s.HandleUpdate(domain.UpdateChatReadInbox{ChatID: 4, LastReadInboxMessageID: 9, UnreadCount: 2})
	s.HandleUpdate(domain.UpdateNewMessage{Message: domain.Message{ID: 10, ChatID: 4}})
	s.HandleUpdate(domain.UpdateMessageEdited{ChatID: 4, MessageID: 10, EditDate: 77})

	got := chat.Get()
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, int32(2), got.UnreadCount)
	assert.Equal(t, int64(9), got.LastReadInboxMessageID)
	require.Len(t, chat.Messages(), 1)
	assert.Equal(t, int32(77), chat.Messages()[0].EditDate)

	s.HandleUpdate(domain.UpdateDeleteMessages{ChatID: 4, MessageIDs: []int64{10}, IsPermanent: true})
	assert.Empty(t, chat.Messages())
}

func TestSession_ChatActions(t *testing.T) {
	s, _ := newSession(t)
	addChat(s, 4, 10)
	chat, _ := s.Chat(4)
	sender := domain.MessageSender{UserID: 8}

	s.HandleUpdate(domain.UpdateChatAction{ChatID: 4, Sender: sender, Action: domain.ChatActionTyping})
	assert.Equal(t, domain.ChatActionTyping, chat.Actions()[sender])

	s.HandleUpdate(domain.UpdateChatAction{ChatID: 4, Sender: sender, Action: domain.ChatActionCancel})
	assert.Empty(t, chat.Actions())
}

func TestSession_SelectChat(t *testing.T) {
	s, _ := newSession(t)
	addChat(s, 4, 10)

	var selected []*state.Chat
	s.OnSelectedChatChanged(func(c *state.Chat) { selected = append(selected, c) })

	chat, err := s.SelectChat(4)
	require.NoError(t, err)
	_, err = s.SelectChat(4)
	require.NoError(t, err)
	assert.Same(t, chat, s.SelectedChat())
	assert.Len(t, selected, 1)

	_, err = s.SelectChat(5)
	assert.Error(t, err)
}

func TestSession_FetchContacts(t *testing.T) {
	s, d := newSession(t)
	s.UpsertUser(domain.User{ID: 1})
	s.UpsertUser(domain.User{ID: 2})
	d.Handle("GetContacts", func(context.Context, int32, ...any) (any, error) {
		return []int64{2, 3}, nil
	})

	users, err := s.FetchContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(2), users[0].ID())
}

func TestSession_SetMe(t *testing.T) {
	s, _ := newSession(t)
	assert.Nil(t, s.Me())

	me := s.SetMe(domain.User{ID: 5, PhoneNumber: "15550100"})
	assert.Same(t, me, s.Me())
	got, _ := s.User(5)
	assert.Same(t, me, got)
}

func TestChatList_Fetch(t *testing.T) {
	t.Run("until all chats are loaded", func(t *testing.T) {
		s, d := newSession(t)
		d.Handle("LoadChats", func(context.Context, int32, ...any) (any, error) {
			if len(d.Calls("LoadChats")) < 3 {
				return nil, nil
			}
			return nil, domain.NewError(domain.CodeNotFound, "Not Found")
		})

		s.MainChatList().Fetch(context.Background())

		calls := d.Calls("LoadChats")
		require.Len(t, calls, 3)
		assert.Equal(t, []any{mainList, int32(20)}, calls[0].Args)
	})

	t.Run("stops on other errors", func(t *testing.T) {
		s, d := newSession(t)
		d.Fail("LoadChats", domain.NewError(500, "INTERNAL"))

		s.ArchiveChatList().Fetch(context.Background())

		assert.Equal(t, 1, d.CallCount("LoadChats"))
	})
}
