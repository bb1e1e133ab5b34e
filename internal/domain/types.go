package domain

// ChatListKind identifies which projection of chats a position belongs to.
type ChatListKind int

const (
	ChatListMain ChatListKind = iota
	ChatListArchive
	ChatListFolder
)

// ChatList names a chat list. FolderID is only meaningful for ChatListFolder.
type ChatList struct {
	Kind     ChatListKind
	FolderID int32
}

// ChatPosition is the coordinate of a chat in a list. Order 0 means the chat
// is not in the list.
type ChatPosition struct {
	List     ChatList
	Order    int64
	IsPinned bool
}

type UserStatusKind int

const (
	UserStatusEmpty UserStatusKind = iota
	UserStatusOnline
	UserStatusOffline
	UserStatusRecently
	UserStatusLastWeek
	UserStatusLastMonth
)

type UserStatus struct {
	Kind      UserStatusKind
	Expires   int32
	WasOnline int32
}

type UserType int

const (
	UserTypeRegular UserType = iota
	UserTypeBot
	UserTypeDeleted
	UserTypeUnknown
)

type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	PhoneNumber  string
	Type         UserType
	Status       UserStatus
	ProfilePhoto *File
	IsContact    bool
}

type ChatTypeKind int

const (
	ChatTypePrivate ChatTypeKind = iota
	ChatTypeBasicGroup
	ChatTypeSupergroup
	ChatTypeSecret
)

// ChatType references the entity a chat is backed by.
type ChatType struct {
	Kind         ChatTypeKind
	UserID       int64
	BasicGroupID int64
	SupergroupID int64
	SecretChatID int32
	IsChannel    bool
}

type ChatPermissions struct {
	CanSendMessages      bool
	CanSendMediaMessages bool
	CanSendPolls         bool
	CanAddWebPagePreview bool
	CanChangeInfo        bool
	CanInviteUsers       bool
	CanPinMessages       bool
}

type ChatNotificationSettings struct {
	UseDefaultMuteFor bool
	MuteFor           int32
}

type NotificationSettingsScope int

const (
	ScopePrivateChats NotificationSettingsScope = iota
	ScopeGroupChats
	ScopeChannelChats
)

type ScopeNotificationSettings struct {
	MuteFor     int32
	ShowPreview bool
}

type ChatPhotoInfo struct {
	Small File
	Big   File
}

type DraftMessage struct {
	ReplyToMessageID int64
	Date             int32
	Text             FormattedText
}

type Chat struct {
	ID                      int64
	Type                    ChatType
	Title                   string
	Photo                   *ChatPhotoInfo
	Permissions             ChatPermissions
	LastMessage             *Message
	Positions               []ChatPosition
	IsMarkedAsUnread        bool
	IsBlocked               bool
	UnreadCount             int32
	LastReadInboxMessageID  int64
	LastReadOutboxMessageID int64
	UnreadMentionCount      int32
	NotificationSettings    ChatNotificationSettings
	DraftMessage            *DraftMessage
}

type BasicGroup struct {
	ID          int64
	MemberCount int32
	IsActive    bool
}

type Supergroup struct {
	ID          int64
	Username    string
	Date        int32
	MemberCount int32
	IsChannel   bool
	IsVerified  bool
}

type SecretChatState int

const (
	SecretChatPending SecretChatState = iota
	SecretChatReady
	SecretChatClosed
)

type SecretChat struct {
	ID         int32
	UserID     int64
	State      SecretChatState
	IsOutbound bool
}

// MessageSender is either a user or a chat.
type MessageSender struct {
	UserID int64
	ChatID int64
}

type Message struct {
	ID                    int64
	ChatID                int64
	Sender                MessageSender
	Date                  int32
	EditDate              int32
	IsOutgoing            bool
	ContainsUnreadMention bool
	Content               MessageContent
}

// MessageContent carries the text of a message. Media is reduced to a caption
// plus an optional file.
type MessageContent struct {
	Text FormattedText
	File *File
}

type LocalFile struct {
	Path                   string
	CanBeDownloaded        bool
	IsDownloadingActive    bool
	IsDownloadingCompleted bool
	DownloadedSize         int64
}

type RemoteFile struct {
	ID         string
	UniqueID   string
	IsUploaded bool
}

type File struct {
	ID           int32
	Size         int64
	ExpectedSize int64
	Local        LocalFile
	Remote       RemoteFile
}

type ChatActionKind int

const (
	ChatActionTyping ChatActionKind = iota
	ChatActionRecordingVoice
	ChatActionUploadingPhoto
	ChatActionUploadingDocument
	ChatActionChoosingSticker
	ChatActionCancel
)

type Country struct {
	CountryCode  string
	Name         string
	EnglishName  string
	IsHidden     bool
	CallingCodes []string
}

// ClientUpdate is an update tagged with the id of the client it belongs to.
type ClientUpdate struct {
	ClientID int32
	Update   Update
}
