package domain

import "github.com/gotd/td/tgerr"

// Protocol error codes and messages with special meaning.
const (
	// CodeResendUnavailable is returned when a login code cannot be resent.
	CodeResendUnavailable = 8
	// CodeNotFound is returned by LoadChats once every chat has been loaded.
	CodeNotFound = 404

	MessagePasswordRecoveryExpired = "PASSWORD_RECOVERY_EXPIRED"
)

// NewError builds a protocol error.
func NewError(code int, message string) error {
	return tgerr.New(code, message)
}

// ErrorCode returns the protocol error code of err, or 0 if err is not a
// protocol error.
func ErrorCode(err error) int {
	if rpcErr, ok := tgerr.As(err); ok {
		return rpcErr.Code
	}
	return 0
}

// IsErrorMessage reports whether err is a protocol error with the given message.
func IsErrorMessage(err error, message string) bool {
	if rpcErr, ok := tgerr.As(err); ok {
		return rpcErr.Message == message
	}
	return false
}
