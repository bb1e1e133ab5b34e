// Package telegramtest provides an in-memory telegram.Driver for tests.
package telegramtest

import (
	"context"
	"sync"

	"github.com/danhigham/multigram/internal/domain"
)

// Call is a recorded request.
type Call struct {
	ClientID int32
	Method   string
	Args     []any
}

// Handler answers a request. The returned value must have the result type of
// the method, or be nil.
type Handler func(ctx context.Context, clientID int32, args ...any) (any, error)

// Driver records every request and answers it with the handler registered for
// the method. Methods without a handler succeed with a zero result.
type Driver struct {
	mu       sync.Mutex
	nextID   int32
	calls    []Call
	handlers map[string]Handler
	updates  chan domain.ClientUpdate
}

func NewDriver() *Driver {
	return &Driver{
		handlers: make(map[string]Handler),
		updates:  make(chan domain.ClientUpdate, 64),
	}
}

// Handle registers fn for method, replacing any previous handler.
func (d *Driver) Handle(method string, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = fn
}

// Fail makes every call of method return err.
func (d *Driver) Fail(method string, err error) {
	d.Handle(method, func(context.Context, int32, ...any) (any, error) {
		return nil, err
	})
}

// Push queues an update on the stream.
func (d *Driver) Push(clientID int32, update domain.Update) {
	d.updates <- domain.ClientUpdate{ClientID: clientID, Update: update}
}

// Calls returns the recorded calls of method, or all calls if method is empty.
func (d *Driver) Calls(method string) []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Call
	for _, c := range d.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (d *Driver) CallCount(method string) int {
	return len(d.Calls(method))
}

func (d *Driver) CreateClient() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Driver) Updates() <-chan domain.ClientUpdate {
	return d.updates
}

func (d *Driver) call(ctx context.Context, clientID int32, method string, args ...any) (any, error) {
	d.mu.Lock()
	d.calls = append(d.calls, Call{ClientID: clientID, Method: method, Args: args})
	h := d.handlers[method]
	d.mu.Unlock()

	if h == nil {
		return nil, nil
	}
	return h(ctx, clientID, args...)
}

func (d *Driver) SetLogVerbosityLevel(ctx context.Context, clientID int32, level int32) error {
	_, err := d.call(ctx, clientID, "SetLogVerbosityLevel", level)
	return err
}

func (d *Driver) SetOption(ctx context.Context, clientID int32, name string, value any) error {
	_, err := d.call(ctx, clientID, "SetOption", name, value)
	return err
}

func (d *Driver) SetTdlibParameters(ctx context.Context, clientID int32, params domain.TdlibParameters) error {
	_, err := d.call(ctx, clientID, "SetTdlibParameters", params)
	return err
}

func (d *Driver) GetMe(ctx context.Context, clientID int32) (domain.User, error) {
	res, err := d.call(ctx, clientID, "GetMe")
	user, _ := res.(domain.User)
	return user, err
}

func (d *Driver) GetCountries(ctx context.Context, clientID int32) ([]domain.Country, error) {
	res, err := d.call(ctx, clientID, "GetCountries")
	countries, _ := res.([]domain.Country)
	return countries, err
}

func (d *Driver) GetContacts(ctx context.Context, clientID int32) ([]int64, error) {
	res, err := d.call(ctx, clientID, "GetContacts")
	ids, _ := res.([]int64)
	return ids, err
}

func (d *Driver) SetAuthenticationPhoneNumber(ctx context.Context, clientID int32, phoneNumber string, settings domain.PhoneNumberAuthenticationSettings) error {
	_, err := d.call(ctx, clientID, "SetAuthenticationPhoneNumber", phoneNumber, settings)
	return err
}

func (d *Driver) RequestQrCodeAuthentication(ctx context.Context, clientID int32, otherUserIDs []int64) error {
	_, err := d.call(ctx, clientID, "RequestQrCodeAuthentication", otherUserIDs)
	return err
}

func (d *Driver) CheckAuthenticationCode(ctx context.Context, clientID int32, code string) error {
	_, err := d.call(ctx, clientID, "CheckAuthenticationCode", code)
	return err
}

func (d *Driver) ResendAuthenticationCode(ctx context.Context, clientID int32) error {
	_, err := d.call(ctx, clientID, "ResendAuthenticationCode")
	return err
}

func (d *Driver) CheckAuthenticationPassword(ctx context.Context, clientID int32, password string) error {
	_, err := d.call(ctx, clientID, "CheckAuthenticationPassword", password)
	return err
}

func (d *Driver) RequestAuthenticationPasswordRecovery(ctx context.Context, clientID int32) error {
	_, err := d.call(ctx, clientID, "RequestAuthenticationPasswordRecovery")
	return err
}

func (d *Driver) RecoverAuthenticationPassword(ctx context.Context, clientID int32, recoveryCode string) error {
	_, err := d.call(ctx, clientID, "RecoverAuthenticationPassword", recoveryCode)
	return err
}

func (d *Driver) RegisterUser(ctx context.Context, clientID int32, firstName, lastName string) error {
	_, err := d.call(ctx, clientID, "RegisterUser", firstName, lastName)
	return err
}

func (d *Driver) LoadChats(ctx context.Context, clientID int32, list domain.ChatList, limit int32) error {
	_, err := d.call(ctx, clientID, "LoadChats", list, limit)
	return err
}

func (d *Driver) DownloadFile(ctx context.Context, clientID int32, fileID int32, priority int32, synchronous bool) (domain.File, error) {
	res, err := d.call(ctx, clientID, "DownloadFile", fileID, priority, synchronous)
	file, _ := res.(domain.File)
	return file, err
}

func (d *Driver) CancelDownloadFile(ctx context.Context, clientID int32, fileID int32) error {
	_, err := d.call(ctx, clientID, "CancelDownloadFile", fileID)
	return err
}

func (d *Driver) SendChatAction(ctx context.Context, clientID int32, chatID int64, action domain.ChatActionKind) error {
	_, err := d.call(ctx, clientID, "SendChatAction", chatID, action)
	return err
}

func (d *Driver) LogOut(ctx context.Context, clientID int32) error {
	_, err := d.call(ctx, clientID, "LogOut")
	return err
}

func (d *Driver) Close(ctx context.Context, clientID int32) error {
	_, err := d.call(ctx, clientID, "Close")
	return err
}
