package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/state"
)

// WaitPhoneNumber asks for the phone number of the account, or for a QR code
// login instead.
type WaitPhoneNumber struct {
	auth *Auth

	mu          sync.Mutex
	phoneNumber string
	countries   []domain.Country
	loaded      bool
	abort       context.CancelCauseFunc

	countriesChanged observe.Notifier[[]domain.Country]
}

func newWaitPhoneNumber(a *Auth) *WaitPhoneNumber {
	w := &WaitPhoneNumber{auth: a}
	go w.loadCountries()
	return w
}

func (*WaitPhoneNumber) authState() {}

func (w *WaitPhoneNumber) loadCountries() {
	c := w.auth.client
	countries, err := c.api.GetCountries(c.ctx, c.id)
	if err != nil {
		c.logger.Warn("Failed to load countries", zap.Error(err))
		return
	}
	w.mu.Lock()
	w.countries = countries
	w.loaded = true
	w.mu.Unlock()
	w.countriesChanged.Notify(countries)
}

// Countries returns the country list and whether it has been loaded yet.
func (w *WaitPhoneNumber) Countries() ([]domain.Country, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.countries, w.loaded
}

func (w *WaitPhoneNumber) OnCountriesChanged(fn func([]domain.Country)) (cancel func()) {
	return w.countriesChanged.Subscribe(fn)
}

// PhoneNumber returns the digits of the last submitted number.
func (w *WaitPhoneNumber) PhoneNumber() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phoneNumber
}

// SendPhoneNumber submits the account's phone number. If another client is
// already logged in with that number on the same data center, this client is
// logged out and the existing session is returned instead.
func (w *WaitPhoneNumber) SendPhoneNumber(ctx context.Context, number string) (*state.Session, error) {
	c := w.auth.client
	digits := digitsOnly(number)
	w.mu.Lock()
	w.phoneNumber = digits
	w.mu.Unlock()

	for _, s := range c.manager.Sessions() {
		owner, ok := c.manager.Client(s.ClientID())
		if !ok || owner.database.UseTestDC != c.database.UseTestDC {
			continue
		}
		if me := s.Me(); me != nil && digitsOnly(me.Get().PhoneNumber) == digits {
			if err := c.LogOut(ctx); err != nil {
				c.logger.Warn("Failed to log out duplicate client", zap.Error(err))
			}
			return s, nil
		}
	}

	ctx, done := w.setupAbort(ctx)
	defer done()
	err := c.api.SetAuthenticationPhoneNumber(ctx, c.id, number, domain.PhoneNumberAuthenticationSettings{
		AllowFlashCall:  true,
		AllowMissedCall: true,
	})
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("send phone number: %w", err)
	}
	return nil, nil
}

// RequestQrCode asks for a login link to confirm on another device. Accounts
// logged in already are excluded.
func (w *WaitPhoneNumber) RequestQrCode(ctx context.Context) error {
	c := w.auth.client
	var others []int64
	for _, u := range c.manager.LoggedInUsers() {
		others = append(others, u.ID())
	}

	ctx, done := w.setupAbort(ctx)
	defer done()
	err := c.api.RequestQrCodeAuthentication(ctx, c.id, others)
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return ErrSuperseded
	}
	if err != nil {
		return fmt.Errorf("request qr code: %w", err)
	}
	return nil
}

// Cancel aborts the pending request, if any.
func (w *WaitPhoneNumber) Cancel() {
	w.mu.Lock()
	abort := w.abort
	w.abort = nil
	w.mu.Unlock()
	if abort != nil {
		abort(ErrSuperseded)
	}
}

// setupAbort replaces the pending request with a new one. The returned
// function releases the new request's context.
func (w *WaitPhoneNumber) setupAbort(parent context.Context) (context.Context, func()) {
	ctx, abort := context.WithCancelCause(parent)
	w.mu.Lock()
	prev := w.abort
	w.abort = abort
	w.mu.Unlock()
	if prev != nil {
		prev(ErrSuperseded)
	}
	return ctx, func() { abort(nil) }
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
