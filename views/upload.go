package views

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/notebookgrader/grader-client/grader"
)

// UploadState is the state of a file upload widget
type UploadState struct {
	grader.FileState
	Uploading          bool
	Deleting           bool
	DeleteConfirmation bool
}

// FileUpload holds one file attached to a homework, stored in object storage
type FileUpload struct {
	env Env
	url string

	mu    sync.Mutex
	state UploadState
}

// NewFileUpload creates the upload widget of homework id
func NewFileUpload(env Env, id string) *FileUpload {
	env = env.withDefaults()
	return &FileUpload{env: env, url: grader.RoutesFor(env.Client.BaseURL(), id).FileUpload}
}

// State returns a snapshot of the widget
func (u *FileUpload) State() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Load fetches the attached file
func (u *FileUpload) Load(ctx context.Context) error {
	fs, err := u.env.Client.FileState(ctx, u.url)
	if err != nil {
		return u.env.fail(ctx, err)
	}
	u.mu.Lock()
	u.state.FileState = fs
	u.mu.Unlock()
	return nil
}

// Upload replaces the attached file with size bytes read from body
func (u *FileUpload) Upload(ctx context.Context, name, mimeType string, body io.Reader, size int64) error {
	u.mu.Lock()
	switch {
	case u.state.Readonly:
		u.mu.Unlock()
		return ErrReadonly
	case u.state.Uploading || u.state.Deleting:
		u.mu.Unlock()
		return ErrBusy
	}
	u.state.Uploading = true
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.state.Uploading = false
		u.mu.Unlock()
	}()

	target, err := u.env.Client.FileAction(ctx, u.url, grader.FileAction{
		Action:   grader.ActionObtainUploadURL,
		MimeType: mimeType,
		FileName: name,
	})
	if err != nil {
		return u.env.fail(ctx, err)
	}
	if err := u.env.Storage.Put(ctx, target.SignedURL, mimeType, body, size); err != nil {
		u.env.Log.Error("upload failed", name, err)
		return err
	}
	done, err := u.env.Client.FileAction(ctx, u.url, grader.FileAction{
		Action:   grader.ActionUploadComplete,
		FileName: name,
		FileType: mimeType,
		FilePath: target.FilePath,
		FileSize: size,
	})
	if err != nil {
		return u.env.fail(ctx, err)
	}

	u.mu.Lock()
	u.state.FileName = name
	u.state.FileType = mimeType
	u.state.FilePath = target.FilePath
	u.state.FileSize = size
	u.state.FileDate = done.FileDate
	u.state.DownloadURL = done.DownloadURL
	u.mu.Unlock()
	return nil
}

// Delete removes the attached file. The first call only asks for
// confirmation and returns false; the next one deletes.
func (u *FileUpload) Delete(ctx context.Context) (bool, error) {
	u.mu.Lock()
	switch {
	case u.state.Readonly:
		u.mu.Unlock()
		return false, ErrReadonly
	case u.state.FilePath == "":
		u.mu.Unlock()
		return false, ErrNoFile
	case u.state.Uploading || u.state.Deleting:
		u.mu.Unlock()
		return false, ErrBusy
	case !u.state.DeleteConfirmation:
		u.state.DeleteConfirmation = true
		u.mu.Unlock()
		return false, nil
	}
	u.state.DeleteConfirmation = false
	u.state.Deleting = true
	path := u.state.FilePath
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.state.Deleting = false
		u.mu.Unlock()
	}()

	target, err := u.env.Client.FileAction(ctx, u.url, grader.FileAction{
		Action:   grader.ActionObtainDeletionURL,
		FilePath: path,
	})
	if err != nil {
		return false, u.env.fail(ctx, err)
	}
	// no URL: the server holds no such file
	if target.SignedURL == "" {
		return false, nil
	}
	if err := u.env.Storage.Delete(ctx, target.SignedURL); err != nil {
		u.env.Log.Error("delete failed", path, err)
		return false, err
	}
	if _, err := u.env.Client.FileAction(ctx, u.url, grader.FileAction{
		Action:   grader.ActionDeletionComplete,
		FilePath: path,
	}); err != nil {
		return false, u.env.fail(ctx, err)
	}

	u.mu.Lock()
	u.state.FileState = grader.FileState{Readonly: u.state.Readonly}
	u.mu.Unlock()
	return true, nil
}

// CancelDelete drops a pending delete confirmation
func (u *FileUpload) CancelDelete() {
	u.mu.Lock()
	u.state.DeleteConfirmation = false
	u.mu.Unlock()
}

// Download copies the attached file to w
func (u *FileUpload) Download(ctx context.Context, w io.Writer) (int64, error) {
	u.mu.Lock()
	url := u.state.DownloadURL
	u.mu.Unlock()
	if url == "" {
		return 0, ErrNoFile
	}
	return u.env.Storage.Get(ctx, url, w)
}

// FileInfo describes the file, e.g. "notes.txt (1.5 kB text/plain), uploaded 3 minutes ago".
// It is empty when there is no file.
func (u *FileUpload) FileInfo(now time.Time) string {
	u.mu.Lock()
	fs := u.state.FileState
	u.mu.Unlock()

	if fs.FilePath == "" {
		return ""
	}
	var parts []string
	if fs.FileSize > 0 {
		parts = append(parts, HumanSize(fs.FileSize))
	}
	if fs.FileType != "" {
		parts = append(parts, fs.FileType)
	}
	info := fs.FileName
	if len(parts) > 0 {
		info += " (" + strings.Join(parts, " ") + ")"
	}
	if date, err := grader.ParseTime(fs.FileDate); err == nil && !date.IsZero() {
		info += ", uploaded " + humanize.RelTime(date, now, "ago", "from now")
	}
	return info
}

// HumanSize formats n bytes with SI units and one decimal, e.g. "1.5 kB"
func HumanSize(n int64) string {
	return humanize.SIWithDigits(float64(n), 1, "B")
}
