package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/state"
	"github.com/danhigham/multigram/internal/telegram/telegramtest"
)

func newTestManager(t *testing.T, opts Options) (*Manager, *telegramtest.Driver) {
	t.Helper()
	d := telegramtest.NewDriver()
	d.Fail("LoadChats", domain.NewError(domain.CodeNotFound, "Not Found"))
	if opts.DataDir == "" {
		opts.DataDir = t.TempDir()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewManager(ctx, d, opts, zaptest.NewLogger(t)), d
}

func authState(s domain.AuthorizationState) domain.Update {
	return domain.UpdateAuthorizationState{State: s}
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
}

func TestManager_StartWithoutDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	m, _ := newTestManager(t, Options{DataDir: dataDir, TestDC: true})

	require.NoError(t, m.Start())

	assert.DirExists(t, dataDir)
	require.Equal(t, 1, m.Len())
	c, ok := m.FirstClient()
	require.True(t, ok)
	assert.Regexp(t, `^db\d+$`, c.DatabaseInfo().DirectoryBaseName)
	assert.True(t, c.DatabaseInfo().UseTestDC)

	auth, ok := c.Auth()
	require.True(t, ok)
	assert.IsType(t, &WaitPhoneNumber{}, auth.State())
}

func TestManager_StartWithExistingSessions(t *testing.T) {
	dataDir := t.TempDir()
	touch(t, filepath.Join(dataDir, "a", "td.binlog"))
	touch(t, filepath.Join(dataDir, "b", "td_test.binlog"))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "c"), 0o700))
	touch(t, filepath.Join(dataDir, "notes.txt"))
	m, _ := newTestManager(t, Options{DataDir: dataDir})

	require.NoError(t, m.Start())

	clients := m.Clients()
	require.Len(t, clients, 2)
	assert.Equal(t, DatabaseInfo{DirectoryBaseName: "a"}, clients[0].DatabaseInfo())
	assert.Equal(t, DatabaseInfo{DirectoryBaseName: "b", UseTestDC: true}, clients[1].DatabaseInfo())

	c, ok := m.ClientByDirectoryBaseName("b")
	require.True(t, ok)
	assert.Same(t, clients[1], c)
}

func TestManager_StartWithEmptyDataDir(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "stale"), 0o700))
	m, _ := newTestManager(t, Options{DataDir: dataDir})

	require.NoError(t, m.Start())

	require.Equal(t, 1, m.Len())
	c, _ := m.FirstClient()
	assert.False(t, c.DatabaseInfo().UseTestDC)
}

func TestManager_DirectoryNames(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	m.now = func() time.Time { return time.UnixMilli(1638487692420) }
	require.NoError(t, os.MkdirAll(filepath.Join(m.opts.DataDir, "db1638487692420_2"), 0o700))

	a := m.AddNewSession(false)
	b := m.AddNewSession(false)

	assert.Equal(t, "db1638487692420", a.DatabaseInfo().DirectoryBaseName)
	assert.Equal(t, "db1638487692420_3", b.DatabaseInfo().DirectoryBaseName)
}

func TestManager_ClientEvents(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	var added, removed []*Client
	var items []observe.ItemsChanged
	m.OnClientAdded(func(c *Client) { added = append(added, c) })
	m.OnClientRemoved(func(c *Client) { removed = append(removed, c) })
	m.OnItemsChanged(func(e observe.ItemsChanged) { items = append(items, e) })

	a := m.AddNewSession(false)
	b := m.AddNewSession(false)
	m.RemoveClient(a)
	m.RemoveClient(a)

	assert.Equal(t, []*Client{a, b}, added)
	assert.Equal(t, []*Client{a}, removed)
	assert.Equal(t, []observe.ItemsChanged{
		{Position: 0, Added: 1},
		{Position: 1, Added: 1},
		{Position: 0, Removed: 1},
	}, items)
	assert.Equal(t, []*Client{b}, m.Clients())
}

func TestManager_ClosedRemovesClient(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	dir := filepath.Join(m.opts.DataDir, c.DatabaseInfo().DirectoryBaseName)
	touch(t, filepath.Join(dir, "td.binlog"))

	var removed int
	m.OnClientRemoved(func(*Client) { removed++ })
	m.HandleUpdate(authState(domain.AuthorizationStateClosed{}), c.ID())

	assert.Zero(t, m.Len())
	assert.NoDirExists(t, dir)
	assert.Equal(t, 1, removed)

	// Updates of removed clients are dropped.
	m.HandleUpdate(authState(domain.AuthorizationStateReady{}), c.ID())
	_, ok := c.Session()
	assert.False(t, ok)
}

func TestManager_SessionsAndUsers(t *testing.T) {
	m, d := newTestManager(t, Options{})
	d.Handle("GetMe", func(_ context.Context, clientID int32, _ ...any) (any, error) {
		return domain.User{ID: int64(clientID) * 100}, nil
	})
	a := m.AddNewSession(false)
	m.AddNewSession(false)

	m.HandleUpdate(authState(domain.AuthorizationStateReady{}), a.ID())

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	s, ok := m.Session(a.ID())
	require.True(t, ok)
	assert.Same(t, sessions[0], s)

	require.Eventually(t, func() bool { return len(m.LoggedInUsers()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(a.ID())*100, m.LoggedInUsers()[0].ID())
}

func TestManager_Run(t *testing.T) {
	m, d := newTestManager(t, Options{})
	c := m.AddNewSession(false)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	d.Push(c.ID(), authState(domain.AuthorizationStateReady{}))
	d.Push(c.ID(), domain.UpdateUser{User: domain.User{ID: 5, FirstName: "Ada"}})

	require.Eventually(t, func() bool {
		s, ok := c.Session()
		if !ok {
			return false
		}
		_, ok = s.User(5)
		return ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestClient_Init(t *testing.T) {
	m, d := newTestManager(t, Options{LogLevel: zapcore.DebugLevel})
	c := m.AddNewSession(false)

	require.Eventually(t, func() bool { return d.CallCount("SetOption") == 1 }, time.Second, 10*time.Millisecond)
	levels := d.Calls("SetLogVerbosityLevel")
	require.Len(t, levels, 1)
	assert.Equal(t, c.ID(), levels[0].ClientID)
	assert.Equal(t, []any{int32(4)}, levels[0].Args)
	assert.Equal(t, []any{"disable_animated_emoji", true}, d.Calls("SetOption")[0].Args)
}

func TestClient_TdlibParameters(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "de_DE.UTF-8")
	m, d := newTestManager(t, Options{APIID: 17, APIHash: "hash", AppVersion: "1.2.3"})
	c := m.AddExistingSession(DatabaseInfo{DirectoryBaseName: "db1", UseTestDC: true})

	m.HandleUpdate(authState(domain.AuthorizationStateWaitTdlibParameters{}), c.ID())

	require.Eventually(t, func() bool { return d.CallCount("SetTdlibParameters") == 1 }, time.Second, 10*time.Millisecond)
	params := d.Calls("SetTdlibParameters")[0].Args[0].(domain.TdlibParameters)
	assert.Equal(t, domain.TdlibParameters{
		UseTestDC:           true,
		DatabaseDirectory:   filepath.Join(m.opts.DataDir, "db1"),
		UseFileDatabase:     true,
		UseChatInfoDatabase: true,
		UseMessageDatabase:  true,
		UseSecretChats:      true,
		APIID:               17,
		APIHash:             "hash",
		SystemLanguageCode:  "de_DE",
		DeviceModel:         "Desktop",
		ApplicationVersion:  "1.2.3",
	}, params)
}

func TestClient_Ready(t *testing.T) {
	m, d := newTestManager(t, Options{})
	d.Handle("GetMe", func(context.Context, int32, ...any) (any, error) {
		return domain.User{ID: 9, PhoneNumber: "15550100"}, nil
	})
	c := m.AddNewSession(false)

	var states []State
	c.OnStateChanged(func(s State) { states = append(states, s) })
	m.HandleUpdate(authState(domain.AuthorizationStateReady{}), c.ID())

	s, ok := c.Session()
	require.True(t, ok)
	require.Len(t, states, 1)
	assert.Same(t, s, states[0])

	require.Eventually(t, func() bool {
		for _, call := range d.Calls("SetOption") {
			if call.Args[0] == "notification_group_count_max" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	require.NotNil(t, s.Me())
	assert.Equal(t, int64(9), s.Me().ID())
	require.Eventually(t, func() bool { return d.CallCount("LoadChats") == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []any{domain.ChatList{Kind: domain.ChatListMain}, int32(20)}, d.Calls("LoadChats")[0].Args)
}

func TestClient_LoggingOut(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	m.HandleUpdate(authState(domain.AuthorizationStateReady{}), c.ID())

	var changes int
	c.OnStateChanged(func(State) { changes++ })
	m.HandleUpdate(authState(domain.AuthorizationStateClosing{}), c.ID())
	m.HandleUpdate(authState(domain.AuthorizationStateClosing{}), c.ID())
	m.HandleUpdate(authState(domain.AuthorizationStateLoggingOut{}), c.ID())
	m.HandleUpdate(domain.UpdateUser{User: domain.User{ID: 1}}, c.ID())

	assert.IsType(t, &LoggingOut{}, c.State())
	assert.Equal(t, 1, changes)
}

func TestClient_LogOut(t *testing.T) {
	m, d := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	dir := filepath.Join(m.opts.DataDir, c.DatabaseInfo().DirectoryBaseName)
	touch(t, filepath.Join(dir, "td.binlog"))

	require.NoError(t, c.LogOut(context.Background()))

	assert.Zero(t, m.Len())
	assert.NoDirExists(t, dir)
	calls := d.Calls("LogOut")
	require.Len(t, calls, 1)
	assert.Equal(t, c.ID(), calls[0].ClientID)
}

func TestClient_SetOnlineAndClose(t *testing.T) {
	m, d := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	ctx := context.Background()

	require.NoError(t, c.SetOnline(ctx, true))
	require.NoError(t, c.Close(ctx))

	var online []any
	for _, call := range d.Calls("SetOption") {
		if call.Args[0] == "online" {
			online = call.Args
		}
	}
	assert.Equal(t, []any{"online", true}, online)
	assert.Equal(t, 1, d.CallCount("Close"))
	assert.Equal(t, 1, m.Len())
}

func TestClient_SessionTypeIsState(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	c := m.AddNewSession(false)
	m.HandleUpdate(authState(domain.AuthorizationStateReady{}), c.ID())
	assert.IsType(t, &state.Session{}, c.State())
}
