// Package view implements the file manager view: it keeps the list of files
// known to the File Service and drives create, refresh and download.
package view

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/metrics"
	"github.com/fruitsalade/filedesk/internal/saver"
	"github.com/fruitsalade/filedesk/pkg/client"
	"github.com/fruitsalade/filedesk/pkg/models"
)

// FileService is the remote side the view drives. *client.Client implements it.
type FileService interface {
	CreateFile(ctx context.Context) (string, error)
	ListFiles(ctx context.Context) ([]string, error)
	FetchFile(ctx context.Context, filename string) (io.ReadCloser, int64, error)
}

var _ FileService = (*client.Client)(nil)

// View holds the file list state. All methods are safe for concurrent use.
type View struct {
	svc    FileService
	stager saver.Stager
	saver  saver.Saver

	mu      sync.Mutex
	files   []models.FileEntry
	issued  uint64 // sequence of the most recently started fetch
	applied uint64 // sequence of the fetch whose result is in files
	closed  bool
}

// New creates a view with an empty file list.
func New(svc FileService, stager saver.Stager, sv saver.Saver) *View {
	return &View{
		svc:    svc,
		stager: stager,
		saver:  sv,
		files:  []models.FileEntry{},
	}
}

// Files returns a copy of the current file list.
func (v *View) Files() []models.FileEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.FileEntry, len(v.files))
	copy(out, v.files)
	return out
}

// FetchFiles replaces the file list with the service's current list. When
// fetches overlap, the result of the most recently started one wins.
func (v *View) FetchFiles(ctx context.Context) error {
	v.mu.Lock()
	v.issued++
	seq := v.issued
	v.mu.Unlock()

	names, err := v.svc.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("fetch files: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	if seq < v.applied {
		logging.Debug("Discarding stale file list", logging.Int("count", len(names)))
		return nil
	}
	v.applied = seq
	v.files = models.EntriesFromNames(names)
	metrics.SetFileListSize(len(v.files))
	logging.Debug("File list updated", logging.Strings("files", names))
	return nil
}

// CreateFile asks the service to create a file, then refreshes the list if
// the service answered at all. A rejected creation still triggers the
// refresh; its error is returned alongside any refresh error.
func (v *View) CreateFile(ctx context.Context) error {
	name, err := v.svc.CreateFile(ctx)
	metrics.RecordFileCreated(err == nil)
	if err != nil {
		if _, answered := client.AsStatusError(err); !answered {
			return fmt.Errorf("create file: %w", err)
		}
		if ferr := v.FetchFiles(ctx); ferr != nil {
			logging.Warn("Refresh after failed create", logging.Err(ferr))
		}
		return fmt.Errorf("create file: %w", err)
	}

	logging.Info("Created file", logging.String("filename", name))
	return v.FetchFiles(ctx)
}

// DownloadFile fetches filename, stages it locally and hands it to the saver
// under the same name. The name is used as given. The staged object is
// released exactly once, even if saving fails or panics.
func (v *View) DownloadFile(ctx context.Context, filename string) (err error) {
	var saved int64
	defer func() { metrics.RecordDownload(saved, err == nil) }()

	body, _, err := v.svc.FetchFile(ctx, filename)
	if err != nil {
		return fmt.Errorf("download %s: %w", filename, err)
	}
	blob, err := v.stager.Stage(ctx, body)
	body.Close()
	if err != nil {
		return fmt.Errorf("download %s: %w", filename, err)
	}
	defer func() {
		if rerr := blob.Release(); rerr != nil {
			logging.Warn("Release staged download", logging.String("filename", filename), logging.Err(rerr))
			if err == nil {
				err = rerr
			}
		}
	}()

	if err := v.saver.Save(ctx, filename, blob); err != nil {
		return fmt.Errorf("save %s: %w", filename, err)
	}
	saved = blob.Size()
	logging.Debug("Download saved", logging.String("filename", filename), logging.Int64("size", saved))
	return nil
}

// Close discards the file list. Fetches still in flight are ignored.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.files = []models.FileEntry{}
}
