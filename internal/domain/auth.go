package domain

type AuthenticationCodeTypeKind int

const (
	CodeTypeTelegramMessage AuthenticationCodeTypeKind = iota
	CodeTypeSms
	CodeTypeCall
	CodeTypeFlashCall
	CodeTypeMissedCall
	CodeTypeFragment
)

type AuthenticationCodeType struct {
	Kind   AuthenticationCodeTypeKind
	Length int32
}

// AuthenticationCodeInfo describes a sent login code. NextType is nil when the
// code cannot be resent.
type AuthenticationCodeInfo struct {
	PhoneNumber string
	Type        AuthenticationCodeType
	NextType    *AuthenticationCodeType
	Timeout     int32
}

type TermsOfService struct {
	Text       FormattedText
	MinUserAge int32
	ShowPopup  bool
}

// AuthorizationState is the sum of backend authorization states.
type AuthorizationState interface {
	isAuthorizationState()
}

type (
	AuthorizationStateWaitTdlibParameters struct{}
	AuthorizationStateWaitPhoneNumber     struct{}
	AuthorizationStateReady               struct{}
	AuthorizationStateLoggingOut          struct{}
	AuthorizationStateClosing             struct{}
	AuthorizationStateClosed              struct{}
)

type AuthorizationStateWaitCode struct {
	CodeInfo AuthenticationCodeInfo
}

type AuthorizationStateWaitOtherDeviceConfirmation struct {
	Link string
}

type AuthorizationStateWaitRegistration struct {
	TermsOfService TermsOfService
}

type AuthorizationStateWaitPassword struct {
	PasswordHint                string
	HasRecoveryEmailAddress     bool
	RecoveryEmailAddressPattern string
}

func (AuthorizationStateWaitTdlibParameters) isAuthorizationState()         {}
func (AuthorizationStateWaitPhoneNumber) isAuthorizationState()             {}
func (AuthorizationStateWaitCode) isAuthorizationState()                    {}
func (AuthorizationStateWaitOtherDeviceConfirmation) isAuthorizationState() {}
func (AuthorizationStateWaitRegistration) isAuthorizationState()            {}
func (AuthorizationStateWaitPassword) isAuthorizationState()                {}
func (AuthorizationStateReady) isAuthorizationState()                       {}
func (AuthorizationStateLoggingOut) isAuthorizationState()                  {}
func (AuthorizationStateClosing) isAuthorizationState()                     {}
func (AuthorizationStateClosed) isAuthorizationState()                      {}

// TdlibParameters configures a freshly created client.
type TdlibParameters struct {
	UseTestDC             bool
	DatabaseDirectory     string
	FilesDirectory        string
	DatabaseEncryptionKey string
	UseFileDatabase       bool
	UseChatInfoDatabase   bool
	UseMessageDatabase    bool
	UseSecretChats        bool
	APIID                 int
	APIHash               string
	SystemLanguageCode    string
	DeviceModel           string
	SystemVersion         string
	ApplicationVersion    string
}

// PhoneNumberAuthenticationSettings controls which code delivery methods are
// acceptable.
type PhoneNumberAuthenticationSettings struct {
	AllowFlashCall       bool
	AllowMissedCall      bool
	IsCurrentPhoneNumber bool
}
