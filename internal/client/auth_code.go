package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/observe"
)

type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func newTimeTicker(d time.Duration) ticker {
	return timeTicker{time.NewTicker(d)}
}

func (t timeTicker) Chan() <-chan time.Time {
	return t.C
}

// WaitCode asks for the login code. While the code cannot be resent yet, a
// countdown of the remaining seconds runs.
type WaitCode struct {
	auth *Auth

	mu        sync.Mutex
	data      domain.AuthenticationCodeInfo
	countdown int32
	ticker    ticker
	stop      chan struct{}

	dataChanged      observe.Notifier[domain.AuthenticationCodeInfo]
	countdownChanged observe.Notifier[int32]
}

func newWaitCode(a *Auth, info domain.AuthenticationCodeInfo) *WaitCode {
	w := &WaitCode{auth: a, data: info}
	w.updateCodeResendState()
	return w
}

func (*WaitCode) authState() {}

func (w *WaitCode) Data() domain.AuthenticationCodeInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.data
}

// Countdown returns the seconds left until the code can be resent.
func (w *WaitCode) Countdown() int32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.countdown
}

func (w *WaitCode) OnDataChanged(fn func(domain.AuthenticationCodeInfo)) (cancel func()) {
	return w.dataChanged.Subscribe(fn)
}

func (w *WaitCode) OnCountdownChanged(fn func(int32)) (cancel func()) {
	return w.countdownChanged.Subscribe(fn)
}

func (w *WaitCode) setData(info domain.AuthenticationCodeInfo) {
	w.mu.Lock()
	w.data = info
	w.mu.Unlock()
	w.updateCodeResendState()
	w.dataChanged.Notify(info)
}

// SendCode submits the login code.
func (w *WaitCode) SendCode(ctx context.Context, code string) error {
	c := w.auth.client
	if err := c.api.CheckAuthenticationCode(ctx, c.id, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	w.stopCountdown()
	return nil
}

// ResendAuthCode requests the code through the next delivery method. If the
// backend refuses to resend, resending is disabled.
func (w *WaitCode) ResendAuthCode(ctx context.Context) error {
	c := w.auth.client
	err := c.api.ResendAuthenticationCode(ctx, c.id)
	if err == nil {
		return nil
	}
	if domain.ErrorCode(err) == domain.CodeResendUnavailable {
		w.mu.Lock()
		w.data.NextType = nil
		stopped := w.stopCountdownLocked()
		data := w.data
		w.mu.Unlock()
		w.dataChanged.Notify(data)
		if stopped {
			w.countdownChanged.Notify(0)
		}
	}
	return fmt.Errorf("resend code: %w", err)
}

func (w *WaitCode) updateCodeResendState() {
	w.mu.Lock()
	stopped := w.stopCountdownLocked()
	if w.data.NextType == nil || w.data.Timeout <= 0 {
		w.mu.Unlock()
		if stopped {
			w.countdownChanged.Notify(0)
		}
		return
	}
	w.countdown = w.data.Timeout
	t := w.auth.client.newTicker(time.Second)
	stop := make(chan struct{})
	w.ticker = t
	w.stop = stop
	countdown := w.countdown
	w.mu.Unlock()

	w.countdownChanged.Notify(countdown)
	go w.runCountdown(t, stop)
}

func (w *WaitCode) runCountdown(t ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.Chan():
		}

		w.mu.Lock()
		if w.ticker != t {
			w.mu.Unlock()
			return
		}
		w.countdown--
		countdown := w.countdown
		if countdown <= 0 {
			w.stopCountdownLocked()
		}
		w.mu.Unlock()

		w.countdownChanged.Notify(countdown)
		if countdown <= 0 {
			return
		}
	}
}

func (w *WaitCode) stopCountdown() {
	w.mu.Lock()
	stopped := w.stopCountdownLocked()
	w.mu.Unlock()
	if stopped {
		w.countdownChanged.Notify(0)
	}
}

// stopCountdownLocked reports whether a running countdown was reset to 0.
func (w *WaitCode) stopCountdownLocked() bool {
	if w.ticker == nil {
		return false
	}
	w.ticker.Stop()
	close(w.stop)
	w.ticker = nil
	w.stop = nil
	changed := w.countdown != 0
	w.countdown = 0
	return changed
}
