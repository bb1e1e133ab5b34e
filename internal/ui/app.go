// Package ui is the terminal front end. It renders the active client and
// forwards key presses to the session core.
package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/client"
	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
	"github.com/danhigham/multigram/internal/sessions"
	"github.com/danhigham/multigram/internal/state"
)

type focusTarget int

const (
	focusChatList focusTarget = iota
	focusMessages
)

const chatListWidth = 36

// statusBarHeight is the row taken by the status bar.
const statusBarHeight = 1

// deps are shared by every copy of the model.
type deps struct {
	clients  *client.Manager
	sessions *sessions.Manager
	watcher  *watcher
	logger   *zap.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	accounts    AccountsModel
	chatList    ChatListModel
	messageView MessageViewModel
	auth        AuthModel
	status      statusModel
	splash      SplashModel
	help        HelpModel

	deps   *deps
	active *client.Client

	focus  focusTarget
	width  int
	height int
}

func newModel(d *deps) Model {
	return Model{
		accounts:    NewAccountsModel(),
		chatList:    NewChatListModel(),
		messageView: NewMessageViewModel(),
		auth:        NewAuthModel(),
		status:      newStatusModel(),
		splash:      NewSplashModel(),
		help:        NewHelpModel(),
		deps:        d,
		focus:       focusChatList,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.Tick(2*time.Second, func(time.Time) tea.Msg { return SplashDoneMsg{} }),
		clockTick(),
	)
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Minute, func(time.Time) tea.Msg { return clockTickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.distributeSize()
		return m, nil

	case activeClientMsg:
		m.active = msg.client
		m.deps.watcher.watch(m.active)
		m.auth = m.auth.Hide()
		m.status = m.status.SetMessage("")
		m.splash = m.splash.ClientReady()
		return m.refresh(), nil

	case stateChangedMsg:
		m.deps.watcher.watch(m.active)
		return m.refresh(), nil

	case refreshMsg, clientsChangedMsg:
		return m.refresh(), nil

	case ChatSelectedMsg:
		if m.active == nil || m.deps.sessions == nil {
			return m, nil
		}
		if _, err := m.deps.sessions.SelectChat(m.active.ID(), msg.ChatID); err != nil {
			m.status = m.status.SetMessage(err.Error())
			return m, nil
		}
		m.focus = focusMessages
		m = m.updateFocus()
		return m, nil

	case existingSessionMsg:
		if c, ok := m.deps.clients.Client(msg.session.ClientID()); ok && m.deps.sessions != nil {
			m.deps.sessions.SetActiveClient(c, false)
		}
		return m, nil

	case requestDoneMsg:
		if msg.err == nil || errors.Is(msg.err, client.ErrSuperseded) {
			return m, nil
		}
		m.deps.logger.Info("Request failed", zap.String("op", msg.op), zap.Error(msg.err))
		if m.auth.IsVisible() {
			m.auth = m.auth.SetError(msg.err)
		} else {
			m.status = m.status.SetMessage(fmt.Sprintf("%s: %v", msg.op, msg.err))
		}
		return m, nil

	case tea.FocusMsg:
		return m, m.setOnline(true)

	case tea.BlurMsg:
		return m, m.setOnline(false)

	case SplashDoneMsg:
		m.splash = m.splash.TimerDone()
		return m, nil

	case clockTickMsg:
		return m, clockTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.splash.IsVisible() {
		return m, nil
	}
	if m.help.IsVisible() {
		switch key {
		case "h", "f1", "esc":
			m.help = m.help.Toggle()
		}
		return m, nil
	}

	switch key {
	case "ctrl+n":
		m.deps.clients.AddNewSession(m.deps.clients.UseTestDC())
		return m, nil
	case "ctrl+l":
		if c := m.active; c != nil {
			return m, request("log out", c.LogOut)
		}
		return m, nil
	case "[", "]":
		if m.auth.IsVisible() && m.focusedInputHasText() {
			break
		}
		delta := 1
		if key == "[" {
			delta = -1
		}
		if id, ok := m.accounts.Neighbor(delta); ok && m.deps.sessions != nil {
			if c, ok := m.deps.clients.Client(id); ok {
				m.deps.sessions.SetActiveClient(c, false)
			}
		}
		return m, nil
	}

	if m.auth.IsVisible() {
		var cmd tea.Cmd
		m.auth, cmd = m.auth.Update(msg)
		return m, cmd
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "h", "f1":
		m.help = m.help.Toggle()
		return m, nil
	case "tab", "shift+tab":
		m.focus = (m.focus + 1) % 2
		m = m.updateFocus()
		return m, nil
	case "esc":
		m.focus = focusChatList
		m = m.updateFocus()
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusChatList:
		m.chatList, cmd = m.chatList.Update(msg)
	case focusMessages:
		m.messageView, cmd = m.messageView.Update(msg)
	}
	return m, cmd
}

func (m Model) focusedInputHasText() bool {
	return m.auth.input.Value() != "" || m.auth.lastName.Value() != ""
}

func (m Model) setOnline(online bool) tea.Cmd {
	s := m.deps.sessions
	if s == nil {
		return nil
	}
	return request("set online", func(ctx context.Context) error {
		return s.SetActiveClientOnline(ctx, online)
	})
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	v.ReportFocus = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	var body string
	if m.auth.IsVisible() {
		body = lipgloss.JoinVertical(lipgloss.Left, m.accounts.View(), m.auth.View())
	} else {
		left := lipgloss.JoinVertical(lipgloss.Left, m.accounts.View(), m.chatList.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, m.messageView.View())
	}
	full := lipgloss.JoinVertical(lipgloss.Left, body, m.status.View())

	mainContent := lipgloss.NewStyle().
		MaxWidth(m.width).
		MaxHeight(m.height).
		Render(full)

	var overlay string
	var x, y int
	switch {
	case m.splash.IsVisible():
		overlay = m.splash.View()
	case m.help.IsVisible():
		overlay = m.help.View()
		x, y = m.help.BoxOffset()
	}
	if overlay == "" {
		v.SetContent(mainContent)
		return v
	}
	bg := lipgloss.NewLayer(mainContent)
	fg := lipgloss.NewLayer(overlay).X(x).Y(y).Z(1)
	v.SetContent(lipgloss.NewCompositor(bg, fg).Render())
	return v
}

func (m Model) distributeSize() Model {
	contentHeight := m.height - statusBarHeight

	clWidth := chatListWidth
	if clWidth > m.width {
		clWidth = m.width
	}
	m.accounts = m.accounts.SetWidth(clWidth)
	listHeight := contentHeight - m.accounts.Height()
	if listHeight < 3 {
		listHeight = 3
	}
	m.chatList = m.chatList.SetSize(clWidth, listHeight)

	rightWidth := m.width - clWidth
	if rightWidth < 1 {
		rightWidth = 1
	}
	m.messageView = m.messageView.SetSize(rightWidth, contentHeight)

	authHeight := contentHeight - m.accounts.Height()
	if authHeight < 1 {
		authHeight = 1
	}
	m.auth = m.auth.SetSize(m.width, authHeight)
	m.status = m.status.SetWidth(m.width)
	m.splash = m.splash.SetSize(m.width, m.height)
	m.help = m.help.SetSize(m.width, m.height)

	return m
}

func (m Model) updateFocus() Model {
	m.chatList = m.chatList.SetFocused(m.focus == focusChatList)
	m.messageView = m.messageView.SetFocused(m.focus == focusMessages)
	return m
}

// refresh re-reads everything shown from the active client.
func (m Model) refresh() Model {
	prevAccounts := m.accounts.Height()
	m.accounts = m.accounts.WithClients(m.deps.clients.Clients(), m.active)
	if m.accounts.Height() != prevAccounts && m.width > 0 {
		m = m.distributeSize()
	}
	m.status = m.status.SetClient(m.active)
	if m.active == nil {
		return m
	}

	switch s := m.active.State().(type) {
	case *client.Auth:
		m.auth = m.auth.SetState(s.State())
	case *state.Session:
		m.auth = m.auth.Hide()
		list := s.MainChatList()
		m.chatList = m.chatList.WithChats(list)
		m.status.unread = list.UnreadCount()
		if me := s.Me(); me != nil {
			m.status.userName = displayName(me.Get())
		}
		if chat := s.SelectedChat(); chat != nil {
			m.status.chatTitle = chat.Get().Title
			m.messageView = m.messageView.SetChat(viewChatOf(s, chat))
		}
	default:
		m.auth = m.auth.Hide()
	}
	return m
}

func viewChatOf(s *state.Session, chat *state.Chat) viewChat {
	msgs := chat.Messages()
	out := viewChat{
		Messages:      make([]viewMessage, len(msgs)),
		LastReadInbox: chat.Get().LastReadInboxMessageID,
		Truncated:     len(msgs) >= state.HistoryLimit,
	}
	for i, msg := range msgs {
		text := msg.Content.Text
		vm := viewMessage{
			ID:         msg.ID,
			Time:       time.Unix(int64(msg.Date), 0),
			SenderName: senderName(s, msg.Sender),
			Out:        msg.IsOutgoing,
			Text:       text.Text,
			Markdown:   len(text.Entities) > 0,
			Edited:     msg.EditDate != 0,
			Mention:    msg.ContainsUnreadMention,
		}
		if vm.Markdown {
			vm.Text = text.Markdown()
		}
		if f := msg.Content.File; f != nil {
			vm.Attachment = attachmentName(*f)
		}
		out.Messages[i] = vm
	}
	for sender, kind := range chat.Actions() {
		out.Actions = append(out.Actions, senderName(s, sender)+" "+actionText(kind))
	}
	slices.Sort(out.Actions)
	return out
}

func attachmentName(f domain.File) string {
	if f.Local.IsDownloadingCompleted && f.Local.Path != "" {
		return filepath.Base(f.Local.Path)
	}
	if size := max(f.Size, f.ExpectedSize); size > 0 {
		return fmt.Sprintf("file, %d KB", (size+1023)/1024)
	}
	return "file"
}

func actionText(kind domain.ChatActionKind) string {
	switch kind {
	case domain.ChatActionRecordingVoice:
		return "is recording a voice message..."
	case domain.ChatActionUploadingPhoto:
		return "is sending a photo..."
	case domain.ChatActionUploadingDocument:
		return "is sending a file..."
	case domain.ChatActionChoosingSticker:
		return "is choosing a sticker..."
	}
	return "is typing..."
}

func senderName(s *state.Session, sender domain.MessageSender) string {
	if sender.UserID != 0 {
		if u, ok := s.User(sender.UserID); ok {
			return displayName(u.Get())
		}
		return fmt.Sprintf("User %d", sender.UserID)
	}
	if c, ok := s.Chat(sender.ChatID); ok {
		return c.Get().Title
	}
	return ""
}

// App wraps the Bubble Tea program for external use. It is the View of the
// session manager.
type App struct {
	program *tea.Program
	deps    *deps
	stop    func()
}

// NewApp creates a new App ready to Run. SetSessions must be called before
// Run.
func NewApp(ctx context.Context, clients *client.Manager, logger *zap.Logger) *App {
	d := &deps{clients: clients, logger: logger}
	a := &App{deps: d}
	a.program = tea.NewProgram(newModel(d), tea.WithContext(ctx))
	d.watcher = newWatcher(a.Send)
	a.stop = clients.OnItemsChanged(func(observe.ItemsChanged) {
		a.Send(clientsChangedMsg{})
	})
	return a
}

func (a *App) SetSessions(s *sessions.Manager) {
	a.deps.sessions = s
}

// Run starts the Bubble Tea event loop (blocks until quit).
func (a *App) Run() error {
	defer a.stop()
	defer a.deps.watcher.watch(nil)
	_, err := a.program.Run()
	return err
}

// Send sends a message into the Bubble Tea event loop from external goroutines.
func (a *App) Send(msg tea.Msg) {
	go a.program.Send(msg)
}

func (a *App) Append(c *client.Client) {
	a.Send(activeClientMsg{client: c, atEnd: true})
}

func (a *App) Prepend(c *client.Client) {
	a.Send(activeClientMsg{client: c})
}
