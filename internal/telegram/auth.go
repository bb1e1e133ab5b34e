package telegram

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
)

// Authorization requests drive the login of a started client. Every
// successful step is reported as an authorization state update, the way the
// session core expects it.

func (d *GotdDriver) SetAuthenticationPhoneNumber(ctx context.Context, clientID int32, phoneNumber string, settings domain.PhoneNumberAuthenticationSettings) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}
	sent, err := c.client.Auth().SendCode(ctx, phoneNumber, auth.SendCodeOptions{
		AllowFlashCall: settings.AllowFlashCall,
		CurrentNumber:  settings.IsCurrentPhoneNumber,
	})
	if err != nil {
		return errors.Wrap(err, "send code")
	}
	return c.handleSentCode(phoneNumber, sent)
}

func (d *GotdDriver) ResendAuthenticationCode(ctx context.Context, clientID int32) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}
	phone, hash := c.pendingCode()
	sent, err := c.api.AuthResendCode(ctx, &tg.AuthResendCodeRequest{
		PhoneNumber:   phone,
		PhoneCodeHash: hash,
	})
	if err != nil {
		if _, ok := tgerr.AsFloodWait(err); ok || tgerr.Is(err, "SEND_CODE_UNAVAILABLE") {
			return tgerr.New(domain.CodeResendUnavailable, err.Error())
		}
		return errors.Wrap(err, "resend code")
	}
	return c.handleSentCode(phone, sent)
}

func (d *GotdDriver) CheckAuthenticationCode(ctx context.Context, clientID int32, code string) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}
	phone, hash := c.pendingCode()
	_, err = c.client.Auth().SignIn(ctx, phone, code, hash)

	var signUp *auth.SignUpRequired
	switch {
	case errors.Is(err, auth.ErrPasswordAuthNeeded):
		return c.requirePassword(ctx)
	case errors.As(err, &signUp):
		c.mu.Lock()
		c.tos = &signUp.TermsOfService
		c.mu.Unlock()
		c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateWaitRegistration{
			TermsOfService: convertTermsOfService(signUp.TermsOfService),
		}})
		return nil
	case err != nil:
		return errors.Wrap(err, "sign in")
	}
	c.markAuthorized()
	return nil
}

func (d *GotdDriver) CheckAuthenticationPassword(ctx context.Context, clientID int32, password string) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}
	if _, err := c.client.Auth().Password(ctx, password); err != nil {
		return errors.Wrap(err, "check password")
	}
	c.markAuthorized()
	return nil
}

func (d *GotdDriver) RequestAuthenticationPasswordRecovery(ctx context.Context, clientID int32) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}
	if _, err := c.api.AuthRequestPasswordRecovery(ctx); err != nil {
		return errors.Wrap(err, "request password recovery")
	}
	return nil
}

// RecoverAuthenticationPassword fails with PASSWORD_RECOVERY_EXPIRED when the
// emailed code is no longer valid.
func (d *GotdDriver) RecoverAuthenticationPassword(ctx context.Context, clientID int32, recoveryCode string) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}
	if _, err := c.api.AuthRecoverPassword(ctx, &tg.AuthRecoverPasswordRequest{Code: recoveryCode}); err != nil {
		return errors.Wrap(err, "recover password")
	}
	c.markAuthorized()
	return nil
}

func (d *GotdDriver) RegisterUser(ctx context.Context, clientID int32, firstName, lastName string) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}
	phone, hash := c.pendingCode()

	c.mu.Lock()
	tos := c.tos
	c.mu.Unlock()
	if tos != nil {
		if err := c.client.Auth().AcceptTOS(ctx, tos.ID); err != nil {
			return errors.Wrap(err, "accept terms of service")
		}
	}

	if _, err := c.client.Auth().SignUp(ctx, auth.SignUp{
		PhoneNumber:   phone,
		PhoneCodeHash: hash,
		FirstName:     firstName,
		LastName:      lastName,
	}); err != nil {
		return errors.Wrap(err, "sign up")
	}
	c.markAuthorized()
	return nil
}

// RequestQrCodeAuthentication starts a QR login in the background. Every new
// token is reported as an other-device confirmation link. A new request
// replaces the running one.
func (d *GotdDriver) RequestQrCodeAuthentication(ctx context.Context, clientID int32, otherUserIDs []int64) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}

	qrCtx, cancel := context.WithCancel(d.ctx)
	c.mu.Lock()
	if c.qrCancel != nil {
		c.qrCancel()
	}
	c.qrCancel = cancel
	c.mu.Unlock()

	loggedIn := qrlogin.OnLoginToken(c.dispatcher)
	go func() {
		defer cancel()
		_, err := c.client.QR().Auth(qrCtx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
			c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateWaitOtherDeviceConfirmation{
				Link: token.URL(),
			}})
			return nil
		}, otherUserIDs...)

		switch {
		case err == nil:
			c.markAuthorized()
		case errors.Is(err, context.Canceled):
		case errors.Is(err, auth.ErrPasswordAuthNeeded), tgerr.Is(err, "SESSION_PASSWORD_NEEDED"):
			if err := c.requirePassword(qrCtx); err != nil {
				c.logger.Warn("Failed to get password info", zap.Error(err))
			}
		default:
			c.logger.Warn("QR login failed", zap.Error(err))
			c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateWaitPhoneNumber{}})
		}
	}()
	return nil
}

func (c *gotdClient) pendingCode() (phone, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phone, c.codeHash
}

func (c *gotdClient) handleSentCode(phone string, sent tg.AuthSentCodeClass) error {
	switch s := sent.(type) {
	case *tg.AuthSentCode:
		c.mu.Lock()
		c.phone = phone
		c.codeHash = s.PhoneCodeHash
		c.mu.Unlock()
		c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateWaitCode{
			CodeInfo: codeInfo(phone, s),
		}})
		return nil
	case *tg.AuthSentCodeSuccess:
		c.markAuthorized()
		return nil
	default:
		return errors.Errorf("unexpected sent code %T", sent)
	}
}

func (c *gotdClient) requirePassword(ctx context.Context) error {
	pwd, err := c.api.AccountGetPassword(ctx)
	if err != nil {
		return errors.Wrap(err, "get password")
	}
	c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateWaitPassword{
		PasswordHint:                pwd.Hint,
		HasRecoveryEmailAddress:     pwd.HasRecovery,
		RecoveryEmailAddressPattern: pwd.EmailUnconfirmedPattern,
	}})
	return nil
}

func convertTermsOfService(tos tg.HelpTermsOfService) domain.TermsOfService {
	minAge, _ := tos.GetMinAgeConfirm()
	return domain.TermsOfService{
		Text:       domain.FormattedText{Text: tos.Text, Entities: convertEntities(tos.Entities)},
		MinUserAge: int32(minAge),
		ShowPopup:  tos.Popup,
	}
}
