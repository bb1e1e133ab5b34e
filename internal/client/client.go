package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/logging"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/state"
	"github.com/danhigham/multigram/internal/telegram"
)

// DatabaseInfo locates the database directory of a client.
type DatabaseInfo struct {
	DirectoryBaseName string
	UseTestDC         bool
}

// State is the phase a client is in: *Auth, *state.Session or *LoggingOut.
type State any

// LoggingOut is the state of a client whose account is being closed.
type LoggingOut struct{}

// Client is one backend connection and the account behind it.
type Client struct {
	id        int32
	database  DatabaseInfo
	manager   *Manager
	api       telegram.API
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	newTicker func(time.Duration) ticker

	mu    sync.RWMutex
	state State

	stateChanged observe.Notifier[State]
}

func newClient(m *Manager, id int32, info DatabaseInfo) *Client {
	ctx, cancel := context.WithCancel(m.ctx)
	c := &Client{
		id:        id,
		database:  info,
		manager:   m,
		api:       m.driver,
		logger:    m.logger.Named("client").With(zap.Int32("client_id", id)),
		ctx:       ctx,
		cancel:    cancel,
		newTicker: newTimeTicker,
	}
	c.state = newAuth(c)
	go c.init()
	return c
}

func (c *Client) init() {
	level := logging.BackendVerbosity(c.manager.opts.LogLevel)
	if err := c.api.SetLogVerbosityLevel(c.ctx, c.id, level); err != nil {
		c.logger.Warn("Failed to set backend log level", zap.Error(err))
	}
	if err := c.api.SetOption(c.ctx, c.id, "disable_animated_emoji", true); err != nil {
		c.logger.Warn("Failed to disable animated emoji", zap.Error(err))
	}
}

func (c *Client) ID() int32 {
	return c.id
}

func (c *Client) DatabaseInfo() DatabaseInfo {
	return c.database
}

func (c *Client) Manager() *Manager {
	return c.manager
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Auth returns the login state machine while the client is not authorized.
func (c *Client) Auth() (*Auth, bool) {
	a, ok := c.State().(*Auth)
	return a, ok
}

// Session returns the account state once the client is authorized.
func (c *Client) Session() (*state.Session, bool) {
	s, ok := c.State().(*state.Session)
	return s, ok
}

func (c *Client) OnStateChanged(fn func(State)) (cancel func()) {
	return c.stateChanged.Subscribe(fn)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.stateChanged.Notify(s)
}

// SetOnline reports whether the user is looking at this account.
func (c *Client) SetOnline(ctx context.Context, online bool) error {
	if err := c.api.SetOption(ctx, c.id, "online", online); err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

// LogOut removes the client and its database, then logs the account out.
func (c *Client) LogOut(ctx context.Context) error {
	if a, ok := c.Auth(); ok {
		a.cancelPending()
	}
	c.manager.RemoveClient(c)
	if err := c.api.LogOut(ctx, c.id); err != nil {
		c.logger.Error("Failed to log out", zap.Error(err))
		return fmt.Errorf("log out: %w", err)
	}
	return nil
}

// Close shuts the backend connection down and keeps the database.
func (c *Client) Close(ctx context.Context) error {
	if err := c.api.Close(ctx, c.id); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// HandleUpdate routes an update of this client.
func (c *Client) HandleUpdate(update domain.Update) {
	if u, ok := update.(domain.UpdateAuthorizationState); ok {
		c.handleAuthorizationState(u.State)
		return
	}
	switch s := c.State().(type) {
	case *state.Session:
		s.HandleUpdate(update)
	case *LoggingOut:
	default:
		c.logger.Debug("Update before authorization", zap.String("type", fmt.Sprintf("%T", update)))
	}
}

func (c *Client) handleAuthorizationState(s domain.AuthorizationState) {
	switch s := s.(type) {
	case domain.AuthorizationStateWaitTdlibParameters:
		go func() {
			if err := c.sendTdlibParameters(c.ctx); err != nil {
				c.logger.Error("Failed to set parameters", zap.Error(err))
			}
		}()
	case domain.AuthorizationStateReady:
		c.setReady()
	case domain.AuthorizationStateClosing:
		if _, ok := c.State().(*LoggingOut); !ok {
			c.setState(&LoggingOut{})
		}
	case domain.AuthorizationStateLoggingOut:
		c.logger.Info("Logging out")
	case domain.AuthorizationStateClosed:
		c.logger.Debug("Closed")
	default:
		a, ok := c.Auth()
		if !ok {
			c.logger.DPanic("Authorization state outside of login", zap.String("state", fmt.Sprintf("%T", s)))
			return
		}
		a.handleUpdate(s)
	}
}

func (c *Client) sendTdlibParameters(ctx context.Context) error {
	opts := c.manager.opts
	return c.api.SetTdlibParameters(ctx, c.id, domain.TdlibParameters{
		UseTestDC:           c.database.UseTestDC,
		DatabaseDirectory:   filepath.Join(opts.DataDir, c.database.DirectoryBaseName),
		UseFileDatabase:     true,
		UseChatInfoDatabase: true,
		UseMessageDatabase:  true,
		UseSecretChats:      true,
		APIID:               opts.APIID,
		APIHash:             opts.APIHash,
		SystemLanguageCode:  systemLanguage(),
		DeviceModel:         "Desktop",
		ApplicationVersion:  opts.AppVersion,
	})
}

func (c *Client) setReady() {
	session := state.NewSession(c.ctx, c.id, c.api, c.logger.Named("session"))
	c.setState(session)

	go func() {
		me, err := c.api.GetMe(c.ctx, c.id)
		if err != nil {
			c.logger.Error("Failed to get own user", zap.Error(err))
			return
		}
		session.SetMe(me)
		session.FetchChats()

		if err := c.api.SetOption(c.ctx, c.id, "notification_group_count_max", int32(5)); err != nil {
			c.logger.Warn("Failed to set notification group count", zap.Error(err))
		}
	}()
}

// systemLanguage returns the locale of the process, like en_US.
func systemLanguage() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return v
	}
	return "en_US"
}
