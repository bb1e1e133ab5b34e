// Package sessions decides which account is shown and remembers the order in
// which the accounts were last used.
package sessions

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danhigham/multigram/internal/client"
	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/prefs"
	"github.com/danhigham/multigram/internal/state"
)

// Prefs stores the recently used sessions between runs.
type Prefs interface {
	Strings(key string) ([]string, error)
	SetStrings(key string, values []string) error
}

// View presents the clients. The active client is added at the front or the
// back of it.
type View interface {
	Append(c *client.Client)
	Prepend(c *client.Client)
}

// Manager tracks the active client.
type Manager struct {
	clients *client.Manager
	prefs   Prefs
	view    View
	logger  *zap.Logger
	ctx     context.Context

	mu           sync.Mutex
	active       *client.Client
	recentlyUsed []string

	activeChanged observe.Notifier[*client.Client]
	unsubscribe   []func()
}

// New restores the recently used sessions from p and activates the most
// recently used client. view may be nil.
func New(ctx context.Context, clients *client.Manager, p Prefs, view View, logger *zap.Logger) *Manager {
	m := &Manager{
		clients: clients,
		prefs:   p,
		view:    view,
		logger:  logger,
		ctx:     ctx,
	}

	recent, err := p.Strings(prefs.KeyRecentlyUsedSessions)
	if err != nil {
		logger.Warn("Failed to load recently used sessions", zap.Error(err))
	}
	m.recentlyUsed = slices.DeleteFunc(recent, func(name string) bool {
		_, ok := clients.ClientByDirectoryBaseName(name)
		return !ok
	})

	m.unsubscribe = append(m.unsubscribe,
		clients.OnClientAdded(m.handleClientAdded),
		clients.OnClientRemoved(m.handleClientRemoved),
	)
	m.setRecentClient()
	return m
}

// Stop unsubscribes from the client manager.
func (m *Manager) Stop() {
	for _, cancel := range m.unsubscribe {
		cancel()
	}
}

func (m *Manager) Clients() *client.Manager {
	return m.clients
}

// ActiveClient returns the client shown to the user, or nil.
func (m *Manager) ActiveClient() *client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) OnActiveClientChanged(fn func(*client.Client)) (cancel func()) {
	return m.activeChanged.Subscribe(fn)
}

// RecentlyUsedSessions returns the directory base names of the clients,
// least recently used first.
func (m *Manager) RecentlyUsedSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.recentlyUsed)
}

func (m *Manager) handleClientAdded(c *client.Client) {
	m.SetActiveClient(c, true)
}

func (m *Manager) handleClientRemoved(c *client.Client) {
	name := c.DatabaseInfo().DirectoryBaseName
	m.mu.Lock()
	if i := slices.Index(m.recentlyUsed, name); i >= 0 {
		m.recentlyUsed = slices.Delete(m.recentlyUsed, i, i+1)
	}
	if m.active == c {
		m.active = nil
	}
	recent := slices.Clone(m.recentlyUsed)
	m.mu.Unlock()

	m.save(recent)
	m.setRecentClient()
}

// setRecentClient activates the most recently used client, else the first
// one. Without clients a new session is added, which activates itself.
func (m *Manager) setRecentClient() {
	first, ok := m.clients.FirstClient()
	if !ok {
		m.clients.AddNewSession(m.clients.UseTestDC())
		return
	}

	m.mu.Lock()
	var last string
	if n := len(m.recentlyUsed); n > 0 {
		last = m.recentlyUsed[n-1]
	}
	m.mu.Unlock()

	if c, ok := m.clients.ClientByDirectoryBaseName(last); ok {
		m.SetActiveClient(c, false)
		return
	}
	m.SetActiveClient(first, false)
}

// SetActiveClient shows c and records it as the most recently used session.
// The previous active client goes offline. c is added at the back of the view
// if atEnd is set, else at the front.
func (m *Manager) SetActiveClient(c *client.Client, atEnd bool) {
	name := c.DatabaseInfo().DirectoryBaseName

	m.mu.Lock()
	prev := m.active
	if prev == c {
		m.mu.Unlock()
		return
	}
	m.active = c
	if i := slices.Index(m.recentlyUsed, name); i >= 0 {
		m.recentlyUsed = slices.Delete(m.recentlyUsed, i, i+1)
	}
	m.recentlyUsed = append(m.recentlyUsed, name)
	recent := slices.Clone(m.recentlyUsed)
	m.mu.Unlock()

	// Online status is best effort.
	if prev != nil {
		go func() { _ = prev.SetOnline(m.ctx, false) }()
	}
	go func() { _ = c.SetOnline(m.ctx, true) }()

	if m.view != nil {
		if atEnd {
			m.view.Append(c)
		} else {
			m.view.Prepend(c)
		}
	}
	m.logger.Debug("Active client changed",
		zap.Int32("client_id", c.ID()),
		zap.String("directory", name),
	)
	m.save(recent)
	m.activeChanged.Notify(c)
}

func (m *Manager) save(recent []string) {
	if err := m.prefs.SetStrings(prefs.KeyRecentlyUsedSessions, recent); err != nil {
		m.logger.Warn("Failed to save recently used sessions", zap.Error(err))
	}
}

// SetActiveClientOnline follows the focus of the window. It does nothing
// without an active client.
func (m *Manager) SetActiveClientOnline(ctx context.Context, online bool) error {
	c := m.ActiveClient()
	if c == nil {
		return nil
	}
	return c.SetOnline(ctx, online)
}

// CloseClients sets every client that is not logging out offline and closes
// it, waiting for all of them.
func (m *Manager) CloseClients(ctx context.Context) error {
	var g errgroup.Group
	for _, c := range m.clients.Clients() {
		if _, loggingOut := c.State().(*client.LoggingOut); loggingOut {
			continue
		}
		g.Go(func() error {
			err := c.SetOnline(ctx, false)
			if err == nil {
				err = c.Close(ctx)
			}
			if err != nil {
				m.logger.Warn("Failed to close client", zap.Int32("client_id", c.ID()), zap.Error(err))
			}
			return err
		})
	}
	return g.Wait()
}

// SelectChat opens a chat of a logged-in client and makes that client active.
func (m *Manager) SelectChat(clientID int32, chatID int64) (*state.Chat, error) {
	c, ok := m.clients.Client(clientID)
	if !ok {
		return nil, fmt.Errorf("client %d not found", clientID)
	}
	s, ok := c.Session()
	if !ok {
		return nil, fmt.Errorf("client %d is not logged in", clientID)
	}
	chat, err := s.SelectChat(chatID)
	if err != nil {
		return nil, err
	}
	m.SetActiveClient(c, false)
	return chat, nil
}

// HandleUpdate passes a backend update to the client manager.
func (m *Manager) HandleUpdate(update domain.Update, clientID int32) {
	m.clients.HandleUpdate(update, clientID)
}
