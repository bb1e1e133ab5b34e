package telegram

import (
	"context"

	"github.com/danhigham/multigram/internal/domain"
)

// API is the set of backend requests issued by the session core. Every
// request is addressed to a client id and fails with a *tgerr.Error on
// protocol errors.
type API interface {
	SetLogVerbosityLevel(ctx context.Context, clientID int32, level int32) error
	SetOption(ctx context.Context, clientID int32, name string, value any) error
	SetTdlibParameters(ctx context.Context, clientID int32, params domain.TdlibParameters) error

	GetMe(ctx context.Context, clientID int32) (domain.User, error)
	GetCountries(ctx context.Context, clientID int32) ([]domain.Country, error)
	GetContacts(ctx context.Context, clientID int32) ([]int64, error)

	SetAuthenticationPhoneNumber(ctx context.Context, clientID int32, phoneNumber string, settings domain.PhoneNumberAuthenticationSettings) error
	RequestQrCodeAuthentication(ctx context.Context, clientID int32, otherUserIDs []int64) error
	CheckAuthenticationCode(ctx context.Context, clientID int32, code string) error
	ResendAuthenticationCode(ctx context.Context, clientID int32) error
	CheckAuthenticationPassword(ctx context.Context, clientID int32, password string) error
	RequestAuthenticationPasswordRecovery(ctx context.Context, clientID int32) error
	RecoverAuthenticationPassword(ctx context.Context, clientID int32, recoveryCode string) error
	RegisterUser(ctx context.Context, clientID int32, firstName, lastName string) error

	LoadChats(ctx context.Context, clientID int32, list domain.ChatList, limit int32) error
	DownloadFile(ctx context.Context, clientID int32, fileID int32, priority int32, synchronous bool) (domain.File, error)
	CancelDownloadFile(ctx context.Context, clientID int32, fileID int32) error
	SendChatAction(ctx context.Context, clientID int32, chatID int64, action domain.ChatActionKind) error

	LogOut(ctx context.Context, clientID int32) error
	Close(ctx context.Context, clientID int32) error
}

// Driver owns the backend clients and their update stream.
type Driver interface {
	API

	// CreateClient registers a new client and returns its id. The first
	// update delivered for it asks for its parameters.
	CreateClient() int32

	// Updates delivers updates of every client in emission order.
	Updates() <-chan domain.ClientUpdate
}
