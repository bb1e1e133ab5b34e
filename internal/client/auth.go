package client

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
)

var (
	// ErrSuperseded is returned by a login request that was replaced by a
	// newer one before it finished. Its result is discarded.
	ErrSuperseded = errors.New("request superseded")

	// ErrPasswordRecoveryExpired is returned when the emailed recovery code
	// is no longer valid and a new one has to be requested.
	ErrPasswordRecoveryExpired = errors.New("password recovery expired")
)

// AuthState is one step of the login flow: *WaitPhoneNumber, *WaitCode,
// *WaitOtherDeviceConfirmation, *WaitPassword or *WaitRegistration.
type AuthState interface {
	authState()
}

// Auth drives a client through login.
type Auth struct {
	client *Client

	mu    sync.Mutex
	state AuthState
	phone *WaitPhoneNumber

	changed observe.Notifier[AuthState]
}

func newAuth(c *Client) *Auth {
	a := &Auth{client: c}
	a.state = a.waitPhoneNumber()
	return a
}

func (a *Auth) Client() *Client {
	return a.client
}

func (a *Auth) State() AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Auth) OnStateChanged(fn func(AuthState)) (cancel func()) {
	return a.changed.Subscribe(fn)
}

// Reset goes back to phone number entry.
func (a *Auth) Reset() {
	a.setState(a.waitPhoneNumber())
}

// waitPhoneNumber returns the phone number step, creating it on first use.
// The same instance is reused so the country list is only loaded once.
func (a *Auth) waitPhoneNumber() *WaitPhoneNumber {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phone == nil {
		a.phone = newWaitPhoneNumber(a)
	}
	return a.phone
}

func (a *Auth) setState(s AuthState) {
	a.mu.Lock()
	if a.state == s {
		a.mu.Unlock()
		return
	}
	prev := a.state
	a.state = s
	a.mu.Unlock()

	if code, ok := prev.(*WaitCode); ok {
		code.stopCountdown()
	}
	a.changed.Notify(s)
}

func (a *Auth) cancelPending() {
	a.mu.Lock()
	phone := a.phone
	a.mu.Unlock()
	if phone != nil {
		phone.Cancel()
	}
}

func (a *Auth) handleUpdate(s domain.AuthorizationState) {
	switch s := s.(type) {
	case domain.AuthorizationStateWaitPhoneNumber:
		a.setState(a.waitPhoneNumber())
	case domain.AuthorizationStateWaitCode:
		if code, ok := a.State().(*WaitCode); ok {
			code.setData(s.CodeInfo)
			return
		}
		a.setState(newWaitCode(a, s.CodeInfo))
	case domain.AuthorizationStateWaitOtherDeviceConfirmation:
		if confirm, ok := a.State().(*WaitOtherDeviceConfirmation); ok {
			confirm.setLink(s.Link)
			return
		}
		a.setState(newWaitOtherDeviceConfirmation(a, s.Link))
	case domain.AuthorizationStateWaitRegistration:
		a.setState(newWaitRegistration(a, s.TermsOfService))
	case domain.AuthorizationStateWaitPassword:
		a.setState(newWaitPassword(a, s))
	default:
		a.client.logger.DPanic("Unexpected authorization state", zap.String("state", fmt.Sprintf("%T", s)))
	}
}
