// Package client manages the backend clients of all accounts and walks each
// of them through login.
package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/state"
	"github.com/danhigham/multigram/internal/telegram"
)

// Options configures the clients of a manager.
type Options struct {
	DataDir    string
	TestDC     bool
	APIID      int
	APIHash    string
	AppVersion string
	LogLevel   zapcore.Level
}

// Manager owns every client in creation order and routes backend updates to
// them.
type Manager struct {
	driver telegram.Driver
	opts   Options
	logger *zap.Logger
	ctx    context.Context
	now    func() time.Time

	mu      sync.Mutex
	ids     []int32
	clients map[int32]*Client

	added        observe.Notifier[*Client]
	removed      observe.Notifier[*Client]
	itemsChanged observe.Notifier[observe.ItemsChanged]
}

// NewManager creates an empty manager. Clients stop their background work
// when ctx is done.
func NewManager(ctx context.Context, driver telegram.Driver, opts Options, logger *zap.Logger) *Manager {
	return &Manager{
		driver:  driver,
		opts:    opts,
		logger:  logger,
		ctx:     ctx,
		now:     time.Now,
		clients: make(map[int32]*Client),
	}
}

// Start loads the sessions found in the data directory. A new session is
// added when there are none.
func (m *Manager) Start() error {
	infos, err := m.analyzeDataDir()
	if err != nil {
		return fmt.Errorf("analyze data directory: %w", err)
	}
	if len(infos) == 0 {
		m.AddNewSession(m.opts.TestDC)
		return nil
	}
	for _, info := range infos {
		m.AddExistingSession(info)
	}
	return nil
}

// analyzeDataDir creates the data directory if it is missing and otherwise
// lists the database directories in it.
func (m *Manager) analyzeDataDir() ([]DatabaseInfo, error) {
	entries, err := os.ReadDir(m.opts.DataDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, os.MkdirAll(m.opts.DataDir, 0o700)
	}
	if err != nil {
		return nil, err
	}

	var infos []DatabaseInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.opts.DataDir, e.Name())
		switch {
		case isFile(filepath.Join(dir, telegram.BinlogName(false))):
			infos = append(infos, DatabaseInfo{DirectoryBaseName: e.Name()})
		case isFile(filepath.Join(dir, telegram.BinlogName(true))):
			infos = append(infos, DatabaseInfo{DirectoryBaseName: e.Name(), UseTestDC: true})
		}
	}
	return infos, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// AddNewSession adds a client for an account that still has to log in.
func (m *Manager) AddNewSession(useTestDC bool) *Client {
	return m.addClient(DatabaseInfo{
		DirectoryBaseName: m.newDirectoryBaseName(),
		UseTestDC:         useTestDC,
	})
}

// AddExistingSession adds a client for a database from an earlier run.
func (m *Manager) AddExistingSession(info DatabaseInfo) *Client {
	return m.addClient(info)
}

func (m *Manager) addClient(info DatabaseInfo) *Client {
	id := m.driver.CreateClient()
	c := newClient(m, id, info)

	m.mu.Lock()
	if _, ok := m.clients[id]; ok {
		m.mu.Unlock()
		m.logger.DPanic("Duplicate client id", zap.Int32("client_id", id))
		return m.clients[id]
	}
	m.clients[id] = c
	m.ids = append(m.ids, id)
	pos := len(m.ids) - 1
	m.mu.Unlock()

	m.logger.Info("Client added",
		zap.Int32("client_id", id),
		zap.String("directory", info.DirectoryBaseName),
		zap.Bool("test_dc", info.UseTestDC),
	)
	m.itemsChanged.Notify(observe.ItemsChanged{Position: pos, Added: 1})
	m.added.Notify(c)
	return c
}

// newDirectoryBaseName returns db<unix millis>, with a _<n> suffix if that
// name is taken.
func (m *Manager) newDirectoryBaseName() string {
	base := fmt.Sprintf("db%d", m.now().UnixMilli())
	name := base
	for n := 2; m.directoryTaken(name); n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}
	return name
}

func (m *Manager) directoryTaken(name string) bool {
	if _, ok := m.ClientByDirectoryBaseName(name); ok {
		return true
	}
	_, err := os.Stat(filepath.Join(m.opts.DataDir, name))
	return err == nil
}

// RemoveClient forgets a client and deletes its database directory.
func (m *Manager) RemoveClient(c *Client) {
	m.mu.Lock()
	pos, ok := m.take(c.id)
	m.mu.Unlock()
	if ok {
		m.removeClient(c, pos)
	}
}

func (m *Manager) take(id int32) (int, bool) {
	pos := slices.Index(m.ids, id)
	if pos < 0 {
		return 0, false
	}
	m.ids = slices.Delete(m.ids, pos, pos+1)
	delete(m.clients, id)
	return pos, true
}

func (m *Manager) removeClient(c *Client, pos int) {
	c.cancel()
	dir := filepath.Join(m.opts.DataDir, c.database.DirectoryBaseName)
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Error("Failed to remove database directory", zap.String("dir", dir), zap.Error(err))
	}
	m.logger.Info("Client removed", zap.Int32("client_id", c.id))
	m.itemsChanged.Notify(observe.ItemsChanged{Position: pos, Removed: 1})
	m.removed.Notify(c)
}

// HandleUpdate routes an update to its client. A closed client is removed.
func (m *Manager) HandleUpdate(update domain.Update, clientID int32) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if u, isAuth := update.(domain.UpdateAuthorizationState); isAuth {
		if _, closed := u.State.(domain.AuthorizationStateClosed); closed {
			pos, _ := m.take(clientID)
			m.mu.Unlock()
			m.removeClient(c, pos)
			return
		}
	}
	m.mu.Unlock()
	c.HandleUpdate(update)
}

// Run delivers the driver's updates until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	updates := m.driver.Updates()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			m.HandleUpdate(u.Update, u.ClientID)
		}
	}
}

// UseTestDC reports whether new sessions log in on the test data center.
func (m *Manager) UseTestDC() bool {
	return m.opts.TestDC
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

// Clients returns the clients in creation order.
func (m *Manager) Clients() []*Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Client, len(m.ids))
	for i, id := range m.ids {
		out[i] = m.clients[id]
	}
	return out
}

func (m *Manager) Client(id int32) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	return c, ok
}

func (m *Manager) FirstClient() (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ids) == 0 {
		return nil, false
	}
	return m.clients[m.ids[0]], true
}

func (m *Manager) ClientByDirectoryBaseName(name string) (*Client, bool) {
	for _, c := range m.Clients() {
		if c.database.DirectoryBaseName == name {
			return c, true
		}
	}
	return nil, false
}

// Session returns the session of a logged-in client.
func (m *Manager) Session(id int32) (*state.Session, bool) {
	c, ok := m.Client(id)
	if !ok {
		return nil, false
	}
	return c.Session()
}

// Sessions returns the sessions of all logged-in clients.
func (m *Manager) Sessions() []*state.Session {
	var out []*state.Session
	for _, c := range m.Clients() {
		if s, ok := c.Session(); ok {
			out = append(out, s)
		}
	}
	return out
}

// LoggedInUsers returns the own user of every session that knows it.
func (m *Manager) LoggedInUsers() []*state.User {
	var out []*state.User
	for _, s := range m.Sessions() {
		if me := s.Me(); me != nil {
			out = append(out, me)
		}
	}
	return out
}

func (m *Manager) OnClientAdded(fn func(*Client)) (cancel func()) {
	return m.added.Subscribe(fn)
}

func (m *Manager) OnClientRemoved(fn func(*Client)) (cancel func()) {
	return m.removed.Subscribe(fn)
}

func (m *Manager) OnItemsChanged(fn func(observe.ItemsChanged)) (cancel func()) {
	return m.itemsChanged.Subscribe(fn)
}
