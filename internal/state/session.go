// Package state holds the object graph of a logged-in account: users, chats,
// groups and chat lists, kept current by the backend's update stream.
package state

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/telegram"
)

// Session is the state of a client once it is authorized.
type Session struct {
	clientID int32
	api      telegram.API
	logger   *zap.Logger
	ctx      context.Context

	mu          sync.RWMutex
	me          *User
	selected    *Chat
	chats       map[int64]*Chat
	users       map[int64]*User
	basicGroups map[int64]*BasicGroup
	supergroups map[int64]*Supergroup
	secretChats map[int32]*SecretChat
	folders     map[int32]*ChatList

	main    *ChatList
	archive *ChatList
	scopes  map[domain.NotificationSettingsScope]*Record[domain.ScopeNotificationSettings]

	downloads *downloads

	meChanged       observe.Notifier[*User]
	selectedChanged observe.Notifier[*Chat]
	chatAdded       observe.Notifier[*Chat]
}

// NewSession creates an empty session. Background work started by the
// session stops when ctx is done.
func NewSession(ctx context.Context, clientID int32, api telegram.API, logger *zap.Logger) *Session {
	s := &Session{
		clientID:    clientID,
		api:         api,
		logger:      logger,
		ctx:         ctx,
		chats:       make(map[int64]*Chat),
		users:       make(map[int64]*User),
		basicGroups: make(map[int64]*BasicGroup),
		supergroups: make(map[int64]*Supergroup),
		secretChats: make(map[int32]*SecretChat),
		folders:     make(map[int32]*ChatList),
		scopes:      make(map[domain.NotificationSettingsScope]*Record[domain.ScopeNotificationSettings]),
		downloads:   newDownloads(ctx, clientID, api, logger),
	}
	s.main = newChatList(domain.ChatList{Kind: domain.ChatListMain}, clientID, api, logger)
	s.archive = newChatList(domain.ChatList{Kind: domain.ChatListArchive}, clientID, api, logger)
	for _, scope := range []domain.NotificationSettingsScope{
		domain.ScopePrivateChats,
		domain.ScopeGroupChats,
		domain.ScopeChannelChats,
	} {
		s.scopes[scope] = &Record[domain.ScopeNotificationSettings]{}
	}
	return s
}

func (s *Session) ClientID() int32 {
	return s.clientID
}

// Me returns the account's own user, or nil before it is known.
func (s *Session) Me() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me
}

// SetMe records the account's own user.
func (s *Session) SetMe(u domain.User) *User {
	user := s.UpsertUser(u)
	s.mu.Lock()
	s.me = user
	s.mu.Unlock()
	s.meChanged.Notify(user)
	return user
}

func (s *Session) OnMeChanged(fn func(*User)) (cancel func()) {
	return s.meChanged.Subscribe(fn)
}

func (s *Session) OnChatAdded(fn func(*Chat)) (cancel func()) {
	return s.chatAdded.Subscribe(fn)
}

func (s *Session) Chat(id int64) (*Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	return c, ok
}

func (s *Session) User(id int64) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Session) BasicGroup(id int64) (*BasicGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.basicGroups[id]
	return g, ok
}

func (s *Session) Supergroup(id int64) (*Supergroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.supergroups[id]
	return g, ok
}

func (s *Session) SecretChat(id int32) (*SecretChat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.secretChats[id]
	return c, ok
}

func (s *Session) MainChatList() *ChatList {
	return s.main
}

func (s *Session) ArchiveChatList() *ChatList {
	return s.archive
}

// FolderChatList returns the list of a chat folder, creating it on first use.
func (s *Session) FolderChatList(folderID int32) *ChatList {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.folders[folderID]
	if !ok {
		l = newChatList(domain.ChatList{Kind: domain.ChatListFolder, FolderID: folderID}, s.clientID, s.api, s.logger)
		s.folders[folderID] = l
	}
	return l
}

func (s *Session) chatList(list domain.ChatList) *ChatList {
	switch list.Kind {
	case domain.ChatListMain:
		return s.main
	case domain.ChatListArchive:
		return s.archive
	default:
		return s.FolderChatList(list.FolderID)
	}
}

// ScopeNotificationSettings returns the default notification settings of a
// scope.
func (s *Session) ScopeNotificationSettings(scope domain.NotificationSettingsScope) *Record[domain.ScopeNotificationSettings] {
	return s.scopes[scope]
}

// FetchChats loads the main chat list in the background.
func (s *Session) FetchChats() {
	go s.main.Fetch(s.ctx)
}

// FetchContacts returns the account's contacts that are known to the session.
func (s *Session) FetchContacts(ctx context.Context) ([]*User, error) {
	ids, err := s.api.GetContacts(ctx, s.clientID)
	if err != nil {
		return nil, fmt.Errorf("get contacts: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			users = append(users, u)
		} else {
			s.logger.Debug("Contact not loaded yet", zap.Int64("user_id", id))
		}
	}
	return users, nil
}

// SelectChat makes the chat the one the user is looking at.
func (s *Session) SelectChat(chatID int64) (*Chat, error) {
	chat, ok := s.Chat(chatID)
	if !ok {
		return nil, fmt.Errorf("select chat %d: unknown chat", chatID)
	}
	s.mu.Lock()
	if s.selected == chat {
		s.mu.Unlock()
		return chat, nil
	}
	s.selected = chat
	s.mu.Unlock()

	chat.ResetChatActionCooldown()
	s.selectedChanged.Notify(chat)
	return chat, nil
}

func (s *Session) SelectedChat() *Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *Session) OnSelectedChatChanged(fn func(*Chat)) (cancel func()) {
	return s.selectedChanged.Subscribe(fn)
}

// DownloadFile downloads a file and returns it once complete.
func (s *Session) DownloadFile(ctx context.Context, fileID int32) (domain.File, error) {
	return s.downloads.downloadFile(ctx, fileID)
}

// DownloadFileWithUpdates starts downloading a file if nobody else is and
// calls fn with its progress until the download stops. Calling stop drops the
// subscription.
func (s *Session) DownloadFileWithUpdates(fileID int32, fn func(domain.File)) (stop func()) {
	return s.downloads.subscribe(fileID, fn)
}

// CancelDownloadFile stops a download. Failures are logged.
func (s *Session) CancelDownloadFile(fileID int32) {
	s.downloads.cancel(fileID)
}

// UpsertUser updates a known user in place or adds a new one.
func (s *Session) UpsertUser(u domain.User) *User {
	s.mu.Lock()
	user, ok := s.users[u.ID]
	if !ok {
		user = newUser(u)
		s.users[u.ID] = user
	}
	s.mu.Unlock()
	if ok {
		user.set(u)
	}
	return user
}

// HandleUpdate applies an update of this session's client.
func (s *Session) HandleUpdate(update domain.Update) {
	switch u := update.(type) {
	case domain.UpdateNewChat:
		s.handleNewChat(u.Chat)
	case domain.UpdateChatLastMessage:
		if chat := s.mustChat(u.ChatID); chat != nil {
			for _, pos := range u.Positions {
				s.handleChatPosition(chat, pos)
			}
			chat.handleUpdate(u)
		}
	case domain.UpdateChatDraftMessage:
		if chat := s.mustChat(u.ChatID); chat != nil {
			for _, pos := range u.Positions {
				s.handleChatPosition(chat, pos)
			}
			chat.handleUpdate(u)
		}
	case domain.UpdateChatPosition:
		if chat := s.mustChat(u.ChatID); chat != nil {
			s.handleChatPosition(chat, u.Position)
		}
	case domain.UpdateUser:
		s.UpsertUser(u.User)
	case domain.UpdateBasicGroup:
		s.upsertBasicGroup(u.BasicGroup)
	case domain.UpdateSupergroup:
		s.upsertSupergroup(u.Supergroup)
	case domain.UpdateSecretChat:
		s.upsertSecretChat(u.SecretChat)
	case domain.UpdateUserStatus:
		user, ok := s.User(u.UserID)
		if !ok {
			s.logger.DPanic("Status of unknown user", zap.Int64("user_id", u.UserID))
			return
		}
		user.update(func(v *domain.User) { v.Status = u.Status })
	case domain.UpdateScopeNotificationSettings:
		s.setScopeNotificationSettings(u.Scope, u.Settings)
	case domain.UpdateUnreadMessageCount:
		s.chatList(u.ChatList).setUnreadCount(u.UnreadCount)
	case domain.UpdateFile:
		s.downloads.handleFileUpdate(u.File)
	case domain.UpdateOption:
		s.logger.Debug("Option changed", zap.String("name", u.Name), zap.Any("value", u.Value))
	default:
		chatID, ok := chatUpdateID(update)
		if !ok {
			s.logger.Debug("Unhandled update", zap.String("type", fmt.Sprintf("%T", update)))
			return
		}
		if chat := s.mustChat(chatID); chat != nil {
			chat.handleUpdate(update)
		}
	}
}

func (s *Session) handleNewChat(c domain.Chat) {
	s.mu.Lock()
	if chat, ok := s.chats[c.ID]; ok {
		s.mu.Unlock()
		chat.set(c)
		return
	}
	chat := newChat(c, s.clientID, s.api)
	s.chats[c.ID] = chat
	s.mu.Unlock()
	s.chatAdded.Notify(chat)
}

func (s *Session) handleChatPosition(chat *Chat, pos domain.ChatPosition) {
	chat.setPosition(pos)
	s.chatList(pos.List).UpdateChatPosition(chat, pos)
}

func (s *Session) setScopeNotificationSettings(scope domain.NotificationSettingsScope, settings domain.ScopeNotificationSettings) {
	r, ok := s.scopes[scope]
	if !ok {
		s.logger.DPanic("Unknown notification scope", zap.Int("scope", int(scope)))
		return
	}
	if r.Get() == settings {
		return
	}
	r.set(settings)
}

func (s *Session) upsertBasicGroup(g domain.BasicGroup) {
	s.mu.Lock()
	group, ok := s.basicGroups[g.ID]
	if !ok {
		group = &BasicGroup{}
		group.value = g
		s.basicGroups[g.ID] = group
	}
	s.mu.Unlock()
	if ok {
		group.set(g)
	}
}

func (s *Session) upsertSupergroup(g domain.Supergroup) {
	s.mu.Lock()
	group, ok := s.supergroups[g.ID]
	if !ok {
		group = &Supergroup{}
		group.value = g
		s.supergroups[g.ID] = group
	}
	s.mu.Unlock()
	if ok {
		group.set(g)
	}
}

func (s *Session) upsertSecretChat(c domain.SecretChat) {
	s.mu.Lock()
	secret, ok := s.secretChats[c.ID]
	if !ok {
		user, known := s.users[c.UserID]
		if !known {
			s.mu.Unlock()
			s.logger.DPanic("Secret chat with unknown user", zap.Int64("user_id", c.UserID))
			return
		}
		secret = &SecretChat{user: user}
		secret.value = c
		s.secretChats[c.ID] = secret
	}
	s.mu.Unlock()
	if ok {
		secret.set(c)
	}
}

func (s *Session) mustChat(id int64) *Chat {
	chat, ok := s.Chat(id)
	if !ok {
		s.logger.DPanic("Update of unknown chat", zap.Int64("chat_id", id))
		return nil
	}
	return chat
}

// chatUpdateID returns the chat addressed by a per-chat update.
func chatUpdateID(update domain.Update) (int64, bool) {
	switch u := update.(type) {
	case domain.UpdateChatTitle:
		return u.ChatID, true
	case domain.UpdateChatPhoto:
		return u.ChatID, true
	case domain.UpdateChatPermissions:
		return u.ChatID, true
	case domain.UpdateChatReadInbox:
		return u.ChatID, true
	case domain.UpdateChatReadOutbox:
		return u.ChatID, true
	case domain.UpdateChatNotificationSettings:
		return u.ChatID, true
	case domain.UpdateChatUnreadMentionCount:
		return u.ChatID, true
	case domain.UpdateChatIsBlocked:
		return u.ChatID, true
	case domain.UpdateChatIsMarkedAsUnread:
		return u.ChatID, true
	case domain.UpdateDeleteMessages:
		return u.ChatID, true
	case domain.UpdateChatAction:
		return u.ChatID, true
	case domain.UpdateMessageContent:
		return u.ChatID, true
	case domain.UpdateMessageEdited:
		return u.ChatID, true
	case domain.UpdateMessageMentionRead:
		return u.ChatID, true
	case domain.UpdateMessageSendSucceeded:
		return u.Message.ChatID, true
	case domain.UpdateNewMessage:
		return u.Message.ChatID, true
	}
	return 0, false
}
