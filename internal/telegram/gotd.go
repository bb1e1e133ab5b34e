package telegram

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-faster/errors"
	boltstor "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/logging"
)

const (
	// ProductionBinlog and TestBinlog mark a database directory as a session
	// on the production or test data center.
	ProductionBinlog = "td.binlog"
	TestBinlog       = "td_test.binlog"

	stateFile = "updates.bbolt"
	filesDir  = "files"
)

// BinlogName returns the session file name for the data center.
func BinlogName(useTestDC bool) string {
	if useTestDC {
		return TestBinlog
	}
	return ProductionBinlog
}

// GotdDriver implements Driver on top of gotd/td. Each client runs its own
// MTProto connection with a session file in its database directory.
type GotdDriver struct {
	ctx     context.Context
	logger  *zap.Logger
	level   zapcore.Level
	updates chan domain.ClientUpdate

	mu      sync.Mutex
	nextID  int32
	clients map[int32]*gotdClient
}

// NewGotdDriver creates a driver whose clients live until ctx is cancelled.
// Clients log at the level named by the MULTIGRAM_LOG environment variable
// until their verbosity is set.
func NewGotdDriver(ctx context.Context, logger *zap.Logger) *GotdDriver {
	return &GotdDriver{
		ctx:     ctx,
		logger:  logger,
		level:   logging.LevelFromEnv(),
		updates: make(chan domain.ClientUpdate, 256),
		clients: make(map[int32]*gotdClient),
	}
}

func (d *GotdDriver) Updates() <-chan domain.ClientUpdate {
	return d.updates
}

// CreateClient registers an idle client. It connects once its parameters are
// set.
func (d *GotdDriver) CreateClient() int32 {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	level := zap.NewAtomicLevelAt(d.level)
	c := &gotdClient{
		id:         id,
		driver:     d,
		level:      level,
		logger:     d.logger.Named("client").With(zap.Int32("client_id", id)).WithOptions(zap.IncreaseLevel(level)),
		startedCh:  make(chan struct{}),
		done:       make(chan struct{}),
		authorized: make(chan struct{}),
		options:    make(map[string]any),
		peers:      make(map[int64]tg.InputPeerClass),
		knownUsers: make(map[int64]bool),
		knownChats: make(map[int64]bool),
		lists:      make(map[domain.ChatList]*dialogs.Iterator),
		pinned:     make(map[domain.ChatList]int),
		chatLists:  make(map[int64]domain.ChatList),
		unread:     make(map[int64]int32),
		pinnedChat: make(map[int64]bool),
		files:      make(map[int32]*fileRef),
		photoFiles: make(map[int64]int32),
	}
	d.clients[id] = c
	d.mu.Unlock()

	go c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateWaitTdlibParameters{}})
	return id
}

func (d *GotdDriver) client(id int32) (*gotdClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[id]
	if !ok {
		return nil, errors.Errorf("unknown client %d", id)
	}
	return c, nil
}

// running returns the client once its connection has been started. Requests
// issued before the parameters are set wait for them.
func (d *GotdDriver) running(ctx context.Context, id int32) (*gotdClient, error) {
	c, err := d.client(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-c.startedCh:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *GotdDriver) forget(id int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clients, id)
}

// SetLogVerbosityLevel maps backend verbosity onto the client's log level.
func (d *GotdDriver) SetLogVerbosityLevel(_ context.Context, clientID int32, level int32) error {
	c, err := d.client(clientID)
	if err != nil {
		return err
	}
	switch {
	case level >= 4:
		c.level.SetLevel(zapcore.DebugLevel)
	case level == 3:
		c.level.SetLevel(zapcore.InfoLevel)
	case level == 2:
		c.level.SetLevel(zapcore.WarnLevel)
	default:
		c.level.SetLevel(zapcore.ErrorLevel)
	}
	return nil
}

// SetOption stores an option. "online" is forwarded to the server as the
// account status once the client is authorized; before that it is only
// stored.
func (d *GotdDriver) SetOption(ctx context.Context, clientID int32, name string, value any) error {
	c, err := d.client(clientID)
	if err != nil {
		return err
	}
	if name == "online" && c.isAuthorized() {
		online, _ := value.(bool)
		if _, err := c.api.AccountUpdateStatus(ctx, !online); err != nil {
			return errors.Wrap(err, "update status")
		}
	}

	c.mu.Lock()
	c.options[name] = value
	c.mu.Unlock()
	c.emit(domain.UpdateOption{Name: name, Value: value})
	return nil
}

// SetTdlibParameters prepares the database directory and starts the client.
func (d *GotdDriver) SetTdlibParameters(_ context.Context, clientID int32, params domain.TdlibParameters) error {
	c, err := d.client(clientID)
	if err != nil {
		return err
	}
	if c.started() {
		return tgerr.New(400, "PARAMETERS_ALREADY_SET")
	}
	if err := os.MkdirAll(params.DatabaseDirectory, 0o700); err != nil {
		return errors.Wrap(err, "create database directory")
	}
	c.params = params

	c.dispatcher = tg.NewUpdateDispatcher()
	c.registerHandlers()
	c.waiter = floodwait.NewWaiter()

	options := telegram.Options{
		Logger:         c.logger.Named("mtproto"),
		SessionStorage: &session.FileStorage{Path: filepath.Join(params.DatabaseDirectory, BinlogName(params.UseTestDC))},
		UpdateHandler:  telegram.UpdateHandlerFunc(c.handleUpdates),
		Middlewares: []telegram.Middleware{
			c.waiter,
			ratelimit.New(rate.Every(100*time.Millisecond), 5),
		},
		Device: telegram.DeviceConfig{
			DeviceModel:    params.DeviceModel,
			SystemVersion:  params.SystemVersion,
			AppVersion:     params.ApplicationVersion,
			SystemLangCode: params.SystemLanguageCode,
			LangCode:       langCode(params.SystemLanguageCode),
		},
	}
	if params.UseTestDC {
		options.DCList = dcs.Test()
	}

	// Create the telegram client.
	client := telegram.NewClient(params.APIID, params.APIHash, options)
	ctx, cancel := context.WithCancel(d.ctx)

	c.mu.Lock()
	c.client = client
	c.api = client.API()
	c.cancel = cancel
	c.mu.Unlock()
	close(c.startedCh)

	go c.run(ctx)
	return nil
}

func (d *GotdDriver) GetMe(ctx context.Context, clientID int32) (domain.User, error) {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return domain.User{}, err
	}
	self, err := c.client.Self(ctx)
	if err != nil {
		return domain.User{}, errors.Wrap(err, "get self")
	}
	return c.user(self), nil
}

func (d *GotdDriver) GetCountries(ctx context.Context, clientID int32) ([]domain.Country, error) {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return nil, err
	}
	res, err := c.api.HelpGetCountriesList(ctx, &tg.HelpGetCountriesListRequest{
		LangCode: langCode(c.params.SystemLanguageCode),
	})
	if err != nil {
		return nil, errors.Wrap(err, "get countries")
	}
	list, ok := res.(*tg.HelpCountriesList)
	if !ok {
		return nil, nil
	}
	return convertCountries(list.Countries), nil
}

func (d *GotdDriver) GetContacts(ctx context.Context, clientID int32) ([]int64, error) {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return nil, err
	}
	res, err := c.api.ContactsGetContacts(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "get contacts")
	}
	contacts, ok := res.(*tg.ContactsContacts)
	if !ok {
		return nil, nil
	}
	users := usersToMap(contacts.Users)
	ids := make([]int64, 0, len(contacts.Contacts))
	for _, contact := range contacts.Contacts {
		u, ok := users[contact.UserID]
		if !ok {
			continue
		}
		c.ensureUser(u)
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (d *GotdDriver) SendChatAction(ctx context.Context, clientID int32, chatID int64, action domain.ChatActionKind) error {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return err
	}
	peer := c.findPeer(chatID)
	if peer == nil {
		return tgerr.New(400, "PEER_ID_INVALID")
	}
	if _, err := c.api.MessagesSetTyping(ctx, &tg.MessagesSetTypingRequest{
		Peer:   peer,
		Action: sendMessageAction(action),
	}); err != nil {
		return errors.Wrap(err, "set typing")
	}
	return nil
}

// LogOut terminates the authorization and then closes the client, emitting
// the usual closing states.
func (d *GotdDriver) LogOut(ctx context.Context, clientID int32) error {
	c, err := d.client(clientID)
	if err != nil {
		return err
	}
	c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateLoggingOut{}})
	if c.started() {
		if _, err := c.api.AuthLogOut(ctx); err != nil {
			c.logger.Warn("Failed to log out", zap.Error(err))
		}
	}
	c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateClosing{}})
	c.stop(ctx)
	d.forget(clientID)
	c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateClosed{}})
	return nil
}

// Close stops the client connection and keeps its database.
func (d *GotdDriver) Close(ctx context.Context, clientID int32) error {
	c, err := d.client(clientID)
	if err != nil {
		return err
	}
	c.stop(ctx)
	d.forget(clientID)
	return nil
}

// gotdClient is one MTProto connection and the bookkeeping needed to
// translate its updates.
type gotdClient struct {
	id     int32
	driver *GotdDriver
	logger *zap.Logger
	level  zap.AtomicLevel
	params domain.TdlibParameters

	client     *telegram.Client
	api        *tg.Client
	dispatcher tg.UpdateDispatcher
	gaps       *updates.Manager
	waiter     *floodwait.Waiter

	cancel     context.CancelFunc
	startedCh  chan struct{}
	done       chan struct{}
	authorized chan struct{}
	authOnce   sync.Once

	mu         sync.Mutex
	selfID     int64
	phone      string
	codeHash   string
	tos        *tg.HelpTermsOfService
	qrCancel   context.CancelFunc
	options    map[string]any
	peers      map[int64]tg.InputPeerClass
	knownUsers map[int64]bool
	knownChats map[int64]bool
	lists      map[domain.ChatList]*dialogs.Iterator
	pinned     map[domain.ChatList]int
	chatLists  map[int64]domain.ChatList
	unread     map[int64]int32
	pinnedChat map[int64]bool
	files      map[int32]*fileRef
	photoFiles map[int64]int32
	nextFileID int32
}

func (c *gotdClient) emit(u domain.Update) {
	select {
	case c.driver.updates <- domain.ClientUpdate{ClientID: c.id, Update: u}:
	case <-c.driver.ctx.Done():
	}
}

// run blocks until ctx is cancelled or the connection fails.
func (c *gotdClient) run(ctx context.Context) {
	defer close(c.done)

	err := c.waiter.Run(ctx, func(ctx context.Context) error {
		return c.client.Run(ctx, func(ctx context.Context) error {
			status, err := c.client.Auth().Status(ctx)
			if err != nil {
				return errors.Wrap(err, "auth status")
			}
			if status.Authorized {
				c.markAuthorized()
			} else {
				c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateWaitPhoneNumber{}})
				select {
				case <-c.authorized:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return c.serve(ctx)
		})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("Client stopped", zap.Error(err))
	}
}

// serve runs the gap manager of an authorized client.
func (c *gotdClient) serve(ctx context.Context) error {
	self, err := c.client.Self(ctx)
	if err != nil {
		return errors.Wrap(err, "get self")
	}
	c.mu.Lock()
	c.selfID = self.ID
	c.mu.Unlock()

	db, err := bbolt.Open(filepath.Join(c.params.DatabaseDirectory, stateFile), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return errors.Wrap(err, "open update state")
	}
	defer db.Close()

	// Create gap-aware update manager.
	gaps := updates.New(updates.Config{
		Handler: c.dispatcher,
		Storage: boltstor.NewStateStorage(db),
		Logger:  c.logger.Named("gaps"),
	})
	c.mu.Lock()
	c.gaps = gaps
	c.mu.Unlock()

	c.ensureUser(self)
	c.emit(domain.UpdateAuthorizationState{State: domain.AuthorizationStateReady{}})
	go c.loadScopeNotificationSettings(ctx)

	return gaps.Run(ctx, c.api, self.ID, updates.AuthOptions{})
}

// handleUpdates routes raw updates to the gap manager once it runs. Before
// that only the dispatcher sees them, which is enough for QR login tokens.
func (c *gotdClient) handleUpdates(ctx context.Context, u tg.UpdatesClass) error {
	c.mu.Lock()
	gaps := c.gaps
	c.mu.Unlock()
	if gaps != nil {
		return gaps.Handle(ctx, u)
	}
	return c.dispatcher.Handle(ctx, u)
}

func (c *gotdClient) markAuthorized() {
	c.authOnce.Do(func() { close(c.authorized) })
}

func (c *gotdClient) isAuthorized() bool {
	select {
	case <-c.authorized:
		return true
	default:
		return false
	}
}

func (c *gotdClient) started() bool {
	select {
	case <-c.startedCh:
		return true
	default:
		return false
	}
}

func (c *gotdClient) stop(ctx context.Context) {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *gotdClient) self() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

func (c *gotdClient) findPeer(chatID int64) tg.InputPeerClass {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers[chatID]
}

func (c *gotdClient) cachePeer(chatID int64, peer tg.InputPeerClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[chatID] = peer
}

func langCode(systemLanguageCode string) string {
	if len(systemLanguageCode) >= 2 {
		return systemLanguageCode[:2]
	}
	return "en"
}
