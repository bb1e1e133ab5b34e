package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"

	"github.com/danhigham/multigram/internal/domain"
)

// fileRef is a downloadable file known to a client.
type fileRef struct {
	location tg.InputFileLocationClass
	name     string
	file     domain.File
	cancel   context.CancelFunc
}

// photoFile registers a profile or chat photo and returns its file record.
// The same photo always maps to the same file id.
func (c *gotdClient) photoFile(photoID int64, peer tg.InputPeerClass) domain.File {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.photoFiles[photoID]; ok {
		return c.files[id].file
	}
	c.nextFileID++
	ref := &fileRef{
		location: &tg.InputPeerPhotoFileLocation{Peer: peer, PhotoID: photoID},
		name:     fmt.Sprintf("photo_%d.jpg", photoID),
		file: domain.File{
			ID:     c.nextFileID,
			Local:  domain.LocalFile{CanBeDownloaded: true},
			Remote: domain.RemoteFile{ID: fmt.Sprint(photoID), IsUploaded: true},
		},
	}
	c.files[ref.file.ID] = ref
	c.photoFiles[photoID] = ref.file.ID
	return ref.file
}

// DownloadFile downloads a file into the client's files directory. A
// synchronous call returns once the file is complete. Otherwise progress is
// reported with file updates and the current record is returned right away.
func (d *GotdDriver) DownloadFile(ctx context.Context, clientID int32, fileID int32, _ int32, synchronous bool) (domain.File, error) {
	c, err := d.running(ctx, clientID)
	if err != nil {
		return domain.File{}, err
	}

	c.mu.Lock()
	ref, ok := c.files[fileID]
	if !ok {
		c.mu.Unlock()
		return domain.File{}, tgerr.New(400, "FILE_ID_INVALID")
	}
	file := ref.file
	if file.Local.IsDownloadingCompleted || file.Local.IsDownloadingActive {
		c.mu.Unlock()
		if synchronous && file.Local.IsDownloadingActive {
			return domain.File{}, tgerr.New(400, "FILE_DOWNLOAD_IN_PROGRESS")
		}
		return file, nil
	}
	if synchronous {
		c.mu.Unlock()
		return c.download(ctx, ref)
	}

	dctx, cancel := context.WithCancel(d.ctx)
	ref.cancel = cancel
	ref.file.Local.IsDownloadingActive = true
	file = ref.file
	c.mu.Unlock()

	c.emit(domain.UpdateFile{File: file})
	go func() {
		defer cancel()
		done, err := c.download(dctx, ref)
		if err != nil {
			c.logger.Warn("Failed to download file", zap.Int32("file_id", fileID), zap.Error(err))
		}
		c.emit(domain.UpdateFile{File: done})
	}()
	return file, nil
}

func (d *GotdDriver) CancelDownloadFile(_ context.Context, clientID int32, fileID int32) error {
	c, err := d.client(clientID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.files[fileID]
	if !ok {
		return tgerr.New(400, "FILE_ID_INVALID")
	}
	if ref.cancel != nil {
		ref.cancel()
	}
	return nil
}

// download fetches ref and returns its final record. The record is inactive
// whether or not the download succeeded.
func (c *gotdClient) download(ctx context.Context, ref *fileRef) (domain.File, error) {
	dir := filepath.Join(c.params.DatabaseDirectory, filesDir)
	path := filepath.Join(dir, ref.name)

	err := os.MkdirAll(dir, 0o700)
	if err == nil {
		_, err = downloader.NewDownloader().Download(c.api, ref.location).ToPath(ctx, path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ref.cancel = nil
	ref.file.Local.IsDownloadingActive = false
	if err != nil {
		return ref.file, errors.Wrap(err, "download")
	}
	ref.file.Local.Path = path
	ref.file.Local.IsDownloadingCompleted = true
	if info, statErr := os.Stat(path); statErr == nil {
		ref.file.Size = info.Size()
		ref.file.ExpectedSize = info.Size()
		ref.file.Local.DownloadedSize = info.Size()
	}
	return ref.file, nil
}
