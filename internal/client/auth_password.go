package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
)

// WaitPassword asks for the two-step verification password.
type WaitPassword struct {
	auth *Auth
	data domain.AuthorizationStateWaitPassword

	mu              sync.Mutex
	recoveryExpired bool
}

func newWaitPassword(a *Auth, data domain.AuthorizationStateWaitPassword) *WaitPassword {
	return &WaitPassword{auth: a, data: data}
}

func (*WaitPassword) authState() {}

func (w *WaitPassword) Data() domain.AuthorizationStateWaitPassword {
	return w.data
}

// RecoveryExpired reports whether a new recovery code must be requested
// before one can be entered.
func (w *WaitPassword) RecoveryExpired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recoveryExpired
}

func (w *WaitPassword) SendPassword(ctx context.Context, password string) error {
	c := w.auth.client
	if err := c.api.CheckAuthenticationPassword(ctx, c.id, password); err != nil {
		return fmt.Errorf("send password: %w", err)
	}
	return nil
}

// RecoverPassword makes sure a valid recovery code has been sent to the
// recovery email address. A new code is only requested after the last one
// expired.
func (w *WaitPassword) RecoverPassword(ctx context.Context) error {
	if !w.RecoveryExpired() {
		return nil
	}
	c := w.auth.client
	err := c.api.RequestAuthenticationPasswordRecovery(ctx, c.id)

	w.mu.Lock()
	w.recoveryExpired = err != nil
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("request password recovery: %w", err)
	}
	return nil
}

// SendPasswordRecoveryCode submits the emailed recovery code. It returns
// ErrPasswordRecoveryExpired if the code is no longer valid.
func (w *WaitPassword) SendPasswordRecoveryCode(ctx context.Context, code string) error {
	c := w.auth.client
	err := c.api.RecoverAuthenticationPassword(ctx, c.id, code)
	if err == nil {
		return nil
	}
	if domain.IsErrorMessage(err, domain.MessagePasswordRecoveryExpired) {
		w.mu.Lock()
		w.recoveryExpired = true
		w.mu.Unlock()
		return ErrPasswordRecoveryExpired
	}
	return fmt.Errorf("send recovery code: %w", err)
}

// WaitOtherDeviceConfirmation shows a login link to be confirmed from a device
// where the account is logged in already.
type WaitOtherDeviceConfirmation struct {
	auth *Auth

	mu   sync.Mutex
	link string

	linkChanged observe.Notifier[string]
}

func newWaitOtherDeviceConfirmation(a *Auth, link string) *WaitOtherDeviceConfirmation {
	return &WaitOtherDeviceConfirmation{auth: a, link: link}
}

func (*WaitOtherDeviceConfirmation) authState() {}

func (w *WaitOtherDeviceConfirmation) Link() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.link
}

func (w *WaitOtherDeviceConfirmation) OnLinkChanged(fn func(string)) (cancel func()) {
	return w.linkChanged.Subscribe(fn)
}

func (w *WaitOtherDeviceConfirmation) setLink(link string) {
	w.mu.Lock()
	if w.link == link {
		w.mu.Unlock()
		return
	}
	w.link = link
	w.mu.Unlock()
	w.linkChanged.Notify(link)
}

// WaitRegistration asks a new user for their name and to accept the terms of
// service.
type WaitRegistration struct {
	auth           *Auth
	termsOfService domain.TermsOfService
}

func newWaitRegistration(a *Auth, tos domain.TermsOfService) *WaitRegistration {
	return &WaitRegistration{auth: a, termsOfService: tos}
}

func (*WaitRegistration) authState() {}

func (w *WaitRegistration) TermsOfService() domain.TermsOfService {
	return w.termsOfService
}

func (w *WaitRegistration) SendRegistration(ctx context.Context, firstName, lastName string) error {
	c := w.auth.client
	if err := c.api.RegisterUser(ctx, c.id, firstName, lastName); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}
