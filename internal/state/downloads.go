package state

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
	"github.com/danhigham/multigram/internal/telegram"
)

const downloadPriority = 5

// fileSubscriber is the sending end of a download subscription. It holds
// only the newest file record, so a send never waits for the receiver. A
// send fails once the receiving side has been dropped.
type fileSubscriber struct {
	mu      sync.Mutex
	pending *domain.File
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newFileSubscriber() *fileSubscriber {
	return &fileSubscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *fileSubscriber) send(f domain.File) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	s.mu.Lock()
	s.pending = &f
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *fileSubscriber) take() (domain.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return domain.File{}, false
	}
	f := *s.pending
	s.pending = nil
	return f, true
}

func (s *fileSubscriber) drop() {
	s.once.Do(func() { close(s.done) })
}

// downloads fans file updates out to the subscribers of each file id.
type downloads struct {
	clientID int32
	api      telegram.API
	logger   *zap.Logger
	ctx      context.Context

	mu          sync.Mutex
	subscribers map[int32][]*fileSubscriber
}

func newDownloads(ctx context.Context, clientID int32, api telegram.API, logger *zap.Logger) *downloads {
	return &downloads{
		clientID:    clientID,
		api:         api,
		logger:      logger,
		ctx:         ctx,
		subscribers: make(map[int32][]*fileSubscriber),
	}
}

func (d *downloads) downloadFile(ctx context.Context, fileID int32) (domain.File, error) {
	f, err := d.api.DownloadFile(ctx, d.clientID, fileID, downloadPriority, true)
	if err != nil {
		return domain.File{}, fmt.Errorf("download file %d: %w", fileID, err)
	}
	return f, nil
}

// subscribe registers fn for the progress of fileID. The first subscriber of
// a file starts the download.
func (d *downloads) subscribe(fileID int32, fn func(domain.File)) (stop func()) {
	sub := newFileSubscriber()

	d.mu.Lock()
	first := len(d.subscribers[fileID]) == 0
	d.subscribers[fileID] = append(d.subscribers[fileID], sub)
	d.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.wake:
				f, ok := sub.take()
				if !ok {
					continue
				}
				fn(f)
				if !f.Local.IsDownloadingActive {
					sub.drop()
					return
				}
			case <-sub.done:
				return
			}
		}
	}()

	if first {
		go func() {
			f, err := d.api.DownloadFile(d.ctx, d.clientID, fileID, downloadPriority, false)
			if err != nil {
				d.logger.Warn("Failed to start download", zap.Int32("file_id", fileID), zap.Error(err))
				return
			}
			d.handleFileUpdate(f)
		}()
	}
	return sub.drop
}

// handleFileUpdate sends f to every live subscriber of its id. The entry is
// removed when the download is no longer active or nobody listens.
func (d *downloads) handleFileUpdate(f domain.File) {
	d.mu.Lock()
	subs := d.subscribers[f.ID]
	d.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	alive := make(map[*fileSubscriber]bool, len(subs))
	for _, s := range subs {
		alive[s] = s.send(f)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	var kept []*fileSubscriber
	for _, s := range d.subscribers[f.ID] {
		if ok, seen := alive[s]; !seen || ok {
			kept = append(kept, s)
		}
	}
	if !f.Local.IsDownloadingActive || len(kept) == 0 {
		delete(d.subscribers, f.ID)
		return
	}
	d.subscribers[f.ID] = kept
}

func (d *downloads) cancel(fileID int32) {
	go func() {
		if err := d.api.CancelDownloadFile(d.ctx, d.clientID, fileID); err != nil {
			d.logger.Warn("Failed to cancel download", zap.Int32("file_id", fileID), zap.Error(err))
		}
	}()
}

func (d *downloads) subscriberCount(fileID int32) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers[fileID])
}
