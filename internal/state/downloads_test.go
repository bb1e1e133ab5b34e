package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/telegram/telegramtest"
)

func receive(t *testing.T, files <-chan domain.File) domain.File {
	t.Helper()
	select {
	case f := <-files:
		return f
	case <-time.After(time.Second):
		t.Fatal("no file update received")
		return domain.File{}
	}
}

func activeFile(id int32, downloaded int64) domain.File {
	return domain.File{
		ID:    id,
		Local: domain.LocalFile{IsDownloadingActive: true, DownloadedSize: downloaded},
	}
}

func TestDownloads_TwoSubscribers(t *testing.T) {
	d := telegramtest.NewDriver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewSession(ctx, 1, d, zaptest.NewLogger(t))

	first := make(chan domain.File, 8)
	second := make(chan domain.File, 8)
	stopFirst := s.DownloadFileWithUpdates(42, func(f domain.File) { first <- f })
	stopSecond := s.DownloadFileWithUpdates(42, func(f domain.File) { second <- f })
	defer stopSecond()

	require.Eventually(t, func() bool { return d.CallCount("DownloadFile") == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []any{int32(42), int32(downloadPriority), false}, d.Calls("DownloadFile")[0].Args)
	assert.Equal(t, 2, s.downloads.subscriberCount(42))

	s.HandleUpdate(domain.UpdateFile{File: activeFile(42, 10)})
	assert.Equal(t, int64(10), receive(t, first).Local.DownloadedSize)
	assert.Equal(t, int64(10), receive(t, second).Local.DownloadedSize)

	stopFirst()
	s.HandleUpdate(domain.UpdateFile{File: activeFile(42, 20)})
	assert.Equal(t, int64(20), receive(t, second).Local.DownloadedSize)
	assert.Empty(t, first)
	assert.Equal(t, 1, s.downloads.subscriberCount(42))

	done := domain.File{ID: 42, Local: domain.LocalFile{IsDownloadingCompleted: true, DownloadedSize: 30}}
	s.HandleUpdate(domain.UpdateFile{File: done})
	assert.True(t, receive(t, second).Local.IsDownloadingCompleted)
	assert.Zero(t, s.downloads.subscriberCount(42))
	assert.Equal(t, 1, d.CallCount("DownloadFile"))
}

func TestDownloads_Synchronous(t *testing.T) {
	d := telegramtest.NewDriver()
	d.Handle("DownloadFile", func(_ context.Context, _ int32, args ...any) (any, error) {
		return domain.File{ID: args[0].(int32), Local: domain.LocalFile{Path: "/tmp/f", IsDownloadingCompleted: true}}, nil
	})
	s := NewSession(context.Background(), 1, d, zaptest.NewLogger(t))

	f, err := s.DownloadFile(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/f", f.Local.Path)
	assert.Equal(t, true, d.Calls("DownloadFile")[0].Args[2])
}

func TestDownloads_Cancel(t *testing.T) {
	d := telegramtest.NewDriver()
	s := NewSession(context.Background(), 1, d, zaptest.NewLogger(t))

	s.CancelDownloadFile(7)

	require.Eventually(t, func() bool { return d.CallCount("CancelDownloadFile") == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []any{int32(7)}, d.Calls("CancelDownloadFile")[0].Args)
}

func TestDownloads_SlowSubscriberDoesNotBlockUpdates(t *testing.T) {
	d := telegramtest.NewDriver()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewSession(ctx, 1, d, zaptest.NewLogger(t))

	release := make(chan struct{})
	files := make(chan domain.File, 64)
	stop := s.DownloadFileWithUpdates(42, func(f domain.File) {
		files <- f
		<-release
	})
	defer stop()

	handled := make(chan struct{})
	go func() {
		defer close(handled)
		for i := int64(1); i <= 40; i++ {
			s.HandleUpdate(domain.UpdateFile{File: activeFile(42, i)})
		}
	}()
	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("file updates blocked on a busy subscriber")
	}

	first := receive(t, files)
	close(release)

	// Records that arrived while the callback was busy collapse into the
	// newest one.
	last, seen := first, 1
	require.Eventually(t, func() bool {
		select {
		case last = <-files:
			seen++
		default:
		}
		return last.Local.DownloadedSize == 40
	}, time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, seen, 2)
	assert.Equal(t, 1, s.downloads.subscriberCount(42))
}
