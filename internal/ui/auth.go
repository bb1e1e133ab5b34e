package ui

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/danhigham/multigram/internal/client"
	"github.com/danhigham/multigram/internal/domain"
)

const authBoxWidth = 60

// AuthModel prompts for the input the current login step needs.
type AuthModel struct {
	state client.AuthState

	input    textinput.Model
	lastName textinput.Model
	// editingLast is set while the last name field of the registration has
	// focus.
	editingLast bool
	// recovering is set while a password recovery code is entered instead
	// of the password.
	recovering bool

	err           string
	width, height int
}

func NewAuthModel() AuthModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 64
	ln := textinput.New()
	ln.Prompt = "> "
	ln.Placeholder = "Last name (optional)"
	ln.CharLimit = 64
	return AuthModel{input: ti, lastName: ln}
}

// IsVisible reports whether a login step is shown.
func (m AuthModel) IsVisible() bool {
	return m.state != nil
}

// SetState shows s. The input is kept while the step stays the same.
func (m AuthModel) SetState(s client.AuthState) AuthModel {
	if s == m.state {
		return m
	}
	m.state = s
	m.err = ""
	m.recovering = false
	m.editingLast = false
	m.input.Reset()
	m.lastName.Reset()
	m.input.EchoMode = textinput.EchoNormal
	m.input.Placeholder = ""

	switch s.(type) {
	case *client.WaitPhoneNumber:
		m.input.Placeholder = "+44 20 7946 0000"
	case *client.WaitCode:
		m.input.Placeholder = "Code"
	case *client.WaitPassword:
		m.input.Placeholder = "Password"
		m.input.EchoMode = textinput.EchoPassword
	case *client.WaitRegistration:
		m.input.Placeholder = "First name"
	}
	m.input.Focus()
	m.lastName.Blur()
	return m
}

// Hide clears the login step.
func (m AuthModel) Hide() AuthModel {
	m.state = nil
	m.err = ""
	return m
}

// SetError shows a failed request below the prompt.
func (m AuthModel) SetError(err error) AuthModel {
	m.err = err.Error()
	return m
}

func (m AuthModel) SetSize(w, h int) AuthModel {
	m.width = w
	m.height = h
	m.input.SetWidth(authBoxWidth - 8)
	m.lastName.SetWidth(authBoxWidth - 8)
	return m
}

func (m AuthModel) Update(msg tea.Msg) (AuthModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			return m.submit()
		case "ctrl+r":
			return m.resend()
		case "ctrl+o":
			if phone, ok := m.state.(*client.WaitPhoneNumber); ok {
				return m, request("qr code", func(ctx context.Context) error {
					return phone.RequestQrCode(ctx)
				})
			}
		case "tab", "shift+tab":
			if _, ok := m.state.(*client.WaitRegistration); ok {
				m.editingLast = !m.editingLast
				if m.editingLast {
					m.input.Blur()
					return m, m.lastName.Focus()
				}
				m.lastName.Blur()
				return m, m.input.Focus()
			}
		}
	}

	var cmd tea.Cmd
	if m.editingLast {
		m.lastName, cmd = m.lastName.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m AuthModel) submit() (AuthModel, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}
	m.err = ""

	switch s := m.state.(type) {
	case *client.WaitPhoneNumber:
		return m, func() tea.Msg {
			session, err := s.SendPhoneNumber(context.Background(), value)
			if err != nil {
				return requestDoneMsg{op: "phone number", err: err}
			}
			if session != nil {
				return existingSessionMsg{session: session}
			}
			return requestDoneMsg{op: "phone number"}
		}
	case *client.WaitCode:
		m.input.Reset()
		return m, request("code", func(ctx context.Context) error {
			return s.SendCode(ctx, value)
		})
	case *client.WaitPassword:
		m.input.Reset()
		if m.recovering {
			return m, request("recovery code", func(ctx context.Context) error {
				return s.SendPasswordRecoveryCode(ctx, value)
			})
		}
		return m, request("password", func(ctx context.Context) error {
			return s.SendPassword(ctx, value)
		})
	case *client.WaitRegistration:
		last := strings.TrimSpace(m.lastName.Value())
		return m, request("registration", func(ctx context.Context) error {
			return s.SendRegistration(ctx, value, last)
		})
	}
	return m, nil
}

func (m AuthModel) resend() (AuthModel, tea.Cmd) {
	switch s := m.state.(type) {
	case *client.WaitCode:
		return m, request("resend code", func(ctx context.Context) error {
			return s.ResendAuthCode(ctx)
		})
	case *client.WaitPassword:
		if !s.Data().HasRecoveryEmailAddress {
			return m, nil
		}
		m.recovering = true
		m.input.Reset()
		m.input.EchoMode = textinput.EchoNormal
		m.input.Placeholder = "Recovery code"
		return m, request("password recovery", func(ctx context.Context) error {
			return s.RecoverPassword(ctx)
		})
	}
	return m, nil
}

// request runs fn outside the event loop and reports its outcome.
func request(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return requestDoneMsg{op: op, err: fn(context.Background())}
	}
}

func (m AuthModel) View() string {
	if m.state == nil {
		return ""
	}

	var title string
	var lines []string
	switch s := m.state.(type) {
	case *client.WaitPhoneNumber:
		title = "Enter Phone Number"
		if countries, ok := s.Countries(); ok {
			lines = append(lines, hintStyle.Render(fmt.Sprintf("%d countries available", len(countries))))
		}
		lines = append(lines, m.input.View(), hintStyle.Render("ctrl+o: log in with a QR code"))
	case *client.WaitCode:
		title = "Enter Verification Code"
		data := s.Data()
		lines = append(lines, fmt.Sprintf("Sent %s to +%s", codeTypeName(data.Type.Kind), data.PhoneNumber))
		lines = append(lines, m.input.View())
		lines = append(lines, hintStyle.Render(resendHint(data, s.Countdown())))
	case *client.WaitOtherDeviceConfirmation:
		title = "Confirm On Another Device"
		lines = append(lines,
			"Open this link on a device where you are logged in:",
			activeStyle.Render(s.Link()),
		)
	case *client.WaitPassword:
		title = "Enter 2FA Password"
		data := s.Data()
		if m.recovering {
			title = "Enter Recovery Code"
			lines = append(lines, fmt.Sprintf("Sent to %s", data.RecoveryEmailAddressPattern))
		} else if data.PasswordHint != "" {
			lines = append(lines, hintStyle.Render("Hint: "+data.PasswordHint))
		}
		lines = append(lines, m.input.View())
		if data.HasRecoveryEmailAddress && !m.recovering {
			lines = append(lines, hintStyle.Render("ctrl+r: forgot password"))
		}
		if s.RecoveryExpired() {
			lines = append(lines, errorStyle.Render("The recovery code expired. Press ctrl+r for a new one."))
		}
	case *client.WaitRegistration:
		title = "Sign Up"
		if tos := renderTermsOfService(s.TermsOfService(), authBoxWidth-6); tos != "" {
			lines = append(lines, tos)
		}
		lines = append(lines, m.input.View(), m.lastName.View(), hintStyle.Render("tab: switch field"))
	}
	if m.err != "" {
		lines = append(lines, errorStyle.Render(m.err))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(highlightColor).
		Padding(1, 2).
		Width(authBoxWidth).
		Render(activeStyle.Render(title) + "\n\n" + strings.Join(lines, "\n"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func codeTypeName(kind domain.AuthenticationCodeTypeKind) string {
	switch kind {
	case domain.CodeTypeTelegramMessage:
		return "a Telegram message"
	case domain.CodeTypeSms:
		return "an SMS"
	case domain.CodeTypeCall:
		return "a call"
	case domain.CodeTypeFlashCall:
		return "a flash call"
	case domain.CodeTypeMissedCall:
		return "a missed call"
	}
	return "a code"
}

func resendHint(data domain.AuthenticationCodeInfo, countdown int32) string {
	if data.NextType == nil {
		return ""
	}
	via := codeTypeName(data.NextType.Kind)
	if countdown > 0 {
		return fmt.Sprintf("Get %s in %d:%02d", via, countdown/60, countdown%60)
	}
	return fmt.Sprintf("ctrl+r: get %s instead", via)
}

func renderTermsOfService(tos domain.TermsOfService, width int) string {
	text := tos.Text.Markdown()
	if text == "" {
		return ""
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
