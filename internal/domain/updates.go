package domain

// Update is the sum of records delivered on a client's update stream.
type Update interface {
	isUpdate()
}

type UpdateAuthorizationState struct {
	State AuthorizationState
}

type UpdateOption struct {
	Name  string
	Value any
}

type UpdateNewChat struct {
	Chat Chat
}

type UpdateChatLastMessage struct {
	ChatID      int64
	LastMessage *Message
	Positions   []ChatPosition
}

type UpdateChatDraftMessage struct {
	ChatID       int64
	DraftMessage *DraftMessage
	Positions    []ChatPosition
}

type UpdateChatPosition struct {
	ChatID   int64
	Position ChatPosition
}

type UpdateBasicGroup struct {
	BasicGroup BasicGroup
}

type UpdateSupergroup struct {
	Supergroup Supergroup
}

type UpdateSecretChat struct {
	SecretChat SecretChat
}

type UpdateUser struct {
	User User
}

type UpdateUserStatus struct {
	UserID int64
	Status UserStatus
}

type UpdateScopeNotificationSettings struct {
	Scope    NotificationSettingsScope
	Settings ScopeNotificationSettings
}

type UpdateUnreadMessageCount struct {
	ChatList    ChatList
	UnreadCount int32
}

type UpdateFile struct {
	File File
}

type UpdateChatTitle struct {
	ChatID int64
	Title  string
}

type UpdateChatPhoto struct {
	ChatID int64
	Photo  *ChatPhotoInfo
}

type UpdateChatPermissions struct {
	ChatID      int64
	Permissions ChatPermissions
}

type UpdateChatReadInbox struct {
	ChatID                 int64
	LastReadInboxMessageID int64
	UnreadCount            int32
}

type UpdateChatReadOutbox struct {
	ChatID                  int64
	LastReadOutboxMessageID int64
}

type UpdateChatNotificationSettings struct {
	ChatID               int64
	NotificationSettings ChatNotificationSettings
}

type UpdateChatUnreadMentionCount struct {
	ChatID             int64
	UnreadMentionCount int32
}

type UpdateChatIsBlocked struct {
	ChatID    int64
	IsBlocked bool
}

type UpdateChatIsMarkedAsUnread struct {
	ChatID           int64
	IsMarkedAsUnread bool
}

type UpdateDeleteMessages struct {
	ChatID      int64
	MessageIDs  []int64
	IsPermanent bool
}

type UpdateChatAction struct {
	ChatID int64
	Sender MessageSender
	Action ChatActionKind
}

type UpdateMessageContent struct {
	ChatID     int64
	MessageID  int64
	NewContent MessageContent
}

type UpdateMessageEdited struct {
	ChatID    int64
	MessageID int64
	EditDate  int32
}

type UpdateMessageMentionRead struct {
	ChatID             int64
	MessageID          int64
	UnreadMentionCount int32
}

type UpdateMessageSendSucceeded struct {
	Message      Message
	OldMessageID int64
}

type UpdateNewMessage struct {
	Message Message
}

func (UpdateAuthorizationState) isUpdate()        {}
func (UpdateOption) isUpdate()                    {}
func (UpdateNewChat) isUpdate()                   {}
func (UpdateChatLastMessage) isUpdate()           {}
func (UpdateChatDraftMessage) isUpdate()          {}
func (UpdateChatPosition) isUpdate()              {}
func (UpdateBasicGroup) isUpdate()                {}
func (UpdateSupergroup) isUpdate()                {}
func (UpdateSecretChat) isUpdate()                {}
func (UpdateUser) isUpdate()                      {}
func (UpdateUserStatus) isUpdate()                {}
func (UpdateScopeNotificationSettings) isUpdate() {}
func (UpdateUnreadMessageCount) isUpdate()        {}
func (UpdateFile) isUpdate()                      {}
func (UpdateChatTitle) isUpdate()                 {}
func (UpdateChatPhoto) isUpdate()                 {}
func (UpdateChatPermissions) isUpdate()           {}
func (UpdateChatReadInbox) isUpdate()             {}
func (UpdateChatReadOutbox) isUpdate()            {}
func (UpdateChatNotificationSettings) isUpdate()  {}
func (UpdateChatUnreadMentionCount) isUpdate()    {}
func (UpdateChatIsBlocked) isUpdate()             {}
func (UpdateChatIsMarkedAsUnread) isUpdate()      {}
func (UpdateDeleteMessages) isUpdate()            {}
func (UpdateChatAction) isUpdate()                {}
func (UpdateMessageContent) isUpdate()            {}
func (UpdateMessageEdited) isUpdate()             {}
func (UpdateMessageMentionRead) isUpdate()        {}
func (UpdateMessageSendSucceeded) isUpdate()      {}
func (UpdateNewMessage) isUpdate()                {}
