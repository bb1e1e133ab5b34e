package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhigham/multigram/internal/domain"
)

type fakeTicker struct {
	ch chan time.Time

	mu      sync.Mutex
	stopped bool
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (t *fakeTicker) Chan() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func TestAuth_PhoneNumberForExistingSession(t *testing.T) {
	m, d := newTestManager(t, Options{})
	d.Handle("GetMe", func(context.Context, int32, ...any) (any, error) {
		return domain.User{ID: 1, PhoneNumber: "1 555 0100"}, nil
	})
	a := m.AddNewSession(false)
	m.HandleUpdate(authState(domain.AuthorizationStateReady{}), a.ID())
	sessionA, _ := a.Session()
	require.Eventually(t, func() bool { return sessionA.Me() != nil }, time.Second, 10*time.Millisecond)

	b := m.AddNewSession(false)
	auth, _ := b.Auth()
	phone := auth.State().(*WaitPhoneNumber)

	got, err := phone.SendPhoneNumber(context.Background(), "+1 (555) 0100")
	require.NoError(t, err)
	assert.Same(t, sessionA, got)
	assert.Equal(t, "15550100", phone.PhoneNumber())

	_, ok := m.Client(b.ID())
	assert.False(t, ok)
	logOuts := d.Calls("LogOut")
	require.Len(t, logOuts, 1)
	assert.Equal(t, b.ID(), logOuts[0].ClientID)
	assert.Zero(t, d.CallCount("SetAuthenticationPhoneNumber"))
}

func TestAuth_PhoneNumberOnOtherDataCenter(t *testing.T) {
	m, d := newTestManager(t, Options{})
	d.Handle("GetMe", func(context.Context, int32, ...any) (any, error) {
		return domain.User{ID: 1, PhoneNumber: "15550100"}, nil
	})
	a := m.AddNewSession(true)
	m.HandleUpdate(authState(domain.AuthorizationStateReady{}), a.ID())
	sessionA, _ := a.Session()
	require.Eventually(t, func() bool { return sessionA.Me() != nil }, time.Second, 10*time.Millisecond)

	b := m.AddNewSession(false)
	auth, _ := b.Auth()
	got, err := auth.State().(*WaitPhoneNumber).SendPhoneNumber(context.Background(), "+1 555 0100")

	require.NoError(t, err)
	assert.Nil(t, got)
	calls := d.Calls("SetAuthenticationPhoneNumber")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"+1 555 0100", domain.PhoneNumberAuthenticationSettings{
		AllowFlashCall:  true,
		AllowMissedCall: true,
	}}, calls[0].Args)
}

func TestAuth_PhoneNumberError(t *testing.T) {
	m, d := newTestManager(t, Options{})
	d.Fail("SetAuthenticationPhoneNumber", domain.NewError(400, "PHONE_NUMBER_INVALID"))
	c := m.AddNewSession(false)
	auth, _ := c.Auth()

	_, err := auth.State().(*WaitPhoneNumber).SendPhoneNumber(context.Background(), "123")

	assert.True(t, domain.IsErrorMessage(err, "PHONE_NUMBER_INVALID"))
}

func TestAuth_PhoneNumberSuperseded(t *testing.T) {
	m, d := newTestManager(t, Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	d.Handle("SetAuthenticationPhoneNumber", func(_ context.Context, _ int32, args ...any) (any, error) {
		if args[0] == "111" {
			close(started)
			<-release
			return nil, domain.NewError(400, "PHONE_NUMBER_INVALID")
		}
		return nil, nil
	})
	c := m.AddNewSession(false)
	auth, _ := c.Auth()
	phone := auth.State().(*WaitPhoneNumber)

	errCh := make(chan error, 1)
	go func() {
		_, err := phone.SendPhoneNumber(context.Background(), "111")
		errCh <- err
	}()
	<-started

	_, err := phone.SendPhoneNumber(context.Background(), "222")
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
}

func TestAuth_RequestQrCode(t *testing.T) {
	m, d := newTestManager(t, Options{})
	d.Handle("GetMe", func(context.Context, int32, ...any) (any, error) {
		return domain.User{ID: 77}, nil
	})
	a := m.AddNewSession(false)
	m.HandleUpdate(authState(domain.AuthorizationStateReady{}), a.ID())
	require.Eventually(t, func() bool { return len(m.LoggedInUsers()) == 1 }, time.Second, 10*time.Millisecond)

	b := m.AddNewSession(false)
	auth, _ := b.Auth()
	require.NoError(t, auth.State().(*WaitPhoneNumber).RequestQrCode(context.Background()))

	calls := d.Calls("RequestQrCodeAuthentication")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{[]int64{77}}, calls[0].Args)

	m.HandleUpdate(authState(domain.AuthorizationStateWaitOtherDeviceConfirmation{Link: "tg://login?token=a"}), b.ID())
	confirm := auth.State().(*WaitOtherDeviceConfirmation)
	var links []string
	confirm.OnLinkChanged(func(l string) { links = append(links, l) })

	m.HandleUpdate(authState(domain.AuthorizationStateWaitOtherDeviceConfirmation{Link: "tg://login?token=b"}), b.ID())

	assert.Same(t, confirm, auth.State())
	assert.Equal(t, "tg://login?token=b", confirm.Link())
	assert.Equal(t, []string{"tg://login?token=b"}, links)
}

func TestAuth_Countries(t *testing.T) {
	m, d := newTestManager(t, Options{})
	d.Handle("GetCountries", func(context.Context, int32, ...any) (any, error) {
		return []domain.Country{{CountryCode: "GB", CallingCodes: []string{"44"}}}, nil
	})
	c := m.AddNewSession(false)
	auth, _ := c.Auth()
	phone := auth.State().(*WaitPhoneNumber)

	require.Eventually(t, func() bool {
		_, loaded := phone.Countries()
		return loaded
	}, time.Second, 10*time.Millisecond)
	countries, _ := phone.Countries()
	assert.Equal(t, "GB", countries[0].CountryCode)
}

func TestAuth_Transitions(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	auth, _ := c.Auth()
	phone := auth.State()

	var changes int
	auth.OnStateChanged(func(AuthState) { changes++ })

	auth.Reset()
	assert.Zero(t, changes)

	password := domain.AuthorizationStateWaitPassword{PasswordHint: "pet"}
	m.HandleUpdate(authState(password), c.ID())
	first := auth.State()
	m.HandleUpdate(authState(password), c.ID())
	assert.NotSame(t, first, auth.State())
	assert.Equal(t, "pet", auth.State().(*WaitPassword).Data().PasswordHint)

	tos := domain.TermsOfService{MinUserAge: 16}
	m.HandleUpdate(authState(domain.AuthorizationStateWaitRegistration{TermsOfService: tos}), c.ID())
	registration := auth.State().(*WaitRegistration)
	assert.Equal(t, tos, registration.TermsOfService())

	m.HandleUpdate(authState(domain.AuthorizationStateWaitPhoneNumber{}), c.ID())
	assert.Same(t, phone, auth.State())
	assert.Equal(t, 4, changes)

	auth.Reset()
	assert.Equal(t, 4, changes)
}

func TestAuth_Registration(t *testing.T) {
	m, d := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	m.HandleUpdate(authState(domain.AuthorizationStateWaitRegistration{}), c.ID())
	auth, _ := c.Auth()

	require.NoError(t, auth.State().(*WaitRegistration).SendRegistration(context.Background(), "Ada", "Lovelace"))

	calls := d.Calls("RegisterUser")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"Ada", "Lovelace"}, calls[0].Args)
}

func TestWaitCode_ResendFlood(t *testing.T) {
	m, d := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	tick := newFakeTicker()
	c.newTicker = func(time.Duration) ticker { return tick }
	sms := domain.AuthenticationCodeType{Kind: domain.CodeTypeSms}

	m.HandleUpdate(authState(domain.AuthorizationStateWaitCode{CodeInfo: domain.AuthenticationCodeInfo{
		PhoneNumber: "15550100",
		NextType:    &sms,
		Timeout:     60,
	}}), c.ID())
	auth, _ := c.Auth()
	code := auth.State().(*WaitCode)
	assert.Equal(t, int32(60), code.Countdown())

	for range 3 {
		tick.ch <- time.Now()
	}
	require.Eventually(t, func() bool { return code.Countdown() == 57 }, time.Second, time.Millisecond)

	var notified int
	var countdowns []int32
	code.OnDataChanged(func(domain.AuthenticationCodeInfo) { notified++ })
	code.OnCountdownChanged(func(v int32) { countdowns = append(countdowns, v) })
	d.Fail("ResendAuthenticationCode", domain.NewError(domain.CodeResendUnavailable, "SEND_CODE_UNAVAILABLE"))

	err := code.ResendAuthCode(context.Background())

	assert.Equal(t, domain.CodeResendUnavailable, domain.ErrorCode(err))
	assert.Nil(t, code.Data().NextType)
	assert.Zero(t, code.Countdown())
	assert.Equal(t, 1, notified)
	assert.Equal(t, []int32{0}, countdowns)
	assert.True(t, tick.isStopped())
}

func TestWaitCode_RefreshInPlace(t *testing.T) {
	m, d := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	ticks := make(chan *fakeTicker, 4)
	c.newTicker = func(time.Duration) ticker {
		tick := newFakeTicker()
		ticks <- tick
		return tick
	}
	sms := domain.AuthenticationCodeType{Kind: domain.CodeTypeSms}
	update := authState(domain.AuthorizationStateWaitCode{CodeInfo: domain.AuthenticationCodeInfo{NextType: &sms, Timeout: 30}})

	m.HandleUpdate(update, c.ID())
	auth, _ := c.Auth()
	code := auth.State().(*WaitCode)
	first := <-ticks

	m.HandleUpdate(update, c.ID())
	assert.Same(t, code, auth.State())
	assert.True(t, first.isStopped())
	assert.Len(t, ticks, 1)

	var countdowns []int32
	code.OnCountdownChanged(func(v int32) { countdowns = append(countdowns, v) })
	require.NoError(t, code.SendCode(context.Background(), "12345"))
	assert.Zero(t, code.Countdown())
	assert.Equal(t, []int32{0}, countdowns)
	assert.Equal(t, []any{"12345"}, d.Calls("CheckAuthenticationCode")[0].Args)
}

func TestWaitCode_NoCountdownWithoutNextType(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	c.newTicker = func(time.Duration) ticker {
		t.Fatal("ticker started")
		return nil
	}

	m.HandleUpdate(authState(domain.AuthorizationStateWaitCode{CodeInfo: domain.AuthenticationCodeInfo{Timeout: 60}}), c.ID())

	auth, _ := c.Auth()
	assert.Zero(t, auth.State().(*WaitCode).Countdown())
}

func TestWaitPassword_RecoveryExpiry(t *testing.T) {
	m, d := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	m.HandleUpdate(authState(domain.AuthorizationStateWaitPassword{HasRecoveryEmailAddress: true}), c.ID())
	auth, _ := c.Auth()
	password := auth.State().(*WaitPassword)
	ctx := context.Background()

	require.NoError(t, password.RecoverPassword(ctx))
	assert.Zero(t, d.CallCount("RequestAuthenticationPasswordRecovery"))

	d.Fail("RecoverAuthenticationPassword", domain.NewError(400, domain.MessagePasswordRecoveryExpired))
	err := password.SendPasswordRecoveryCode(ctx, "123")
	assert.ErrorIs(t, err, ErrPasswordRecoveryExpired)
	assert.True(t, password.RecoveryExpired())
	assert.Equal(t, []any{"123"}, d.Calls("RecoverAuthenticationPassword")[0].Args)

	require.NoError(t, password.RecoverPassword(ctx))
	assert.Equal(t, 1, d.CallCount("RequestAuthenticationPasswordRecovery"))
	assert.False(t, password.RecoveryExpired())
}

func TestWaitPassword_Errors(t *testing.T) {
	m, d := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	m.HandleUpdate(authState(domain.AuthorizationStateWaitPassword{}), c.ID())
	auth, _ := c.Auth()
	password := auth.State().(*WaitPassword)
	ctx := context.Background()

	d.Fail("CheckAuthenticationPassword", domain.NewError(400, "PASSWORD_HASH_INVALID"))
	assert.True(t, domain.IsErrorMessage(password.SendPassword(ctx, "hunter2"), "PASSWORD_HASH_INVALID"))

	d.Fail("RecoverAuthenticationPassword", domain.NewError(400, "CODE_INVALID"))
	err := password.SendPasswordRecoveryCode(ctx, "000")
	assert.NotErrorIs(t, err, ErrPasswordRecoveryExpired)
	assert.False(t, password.RecoveryExpired())
}
