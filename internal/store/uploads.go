// internal/store/uploads.go
//
// Formpipe – Storage: uploaded files.
//
// Context
//   The file sanitizer hands each validated upload to Uploads.Save before the
//   submission row exists.  Save copies the bytes under the upload directory
//   as “YYYY/MM/<uuid><ext>”, records a `form_upload` row with no owner,
//   and returns a FileRef whose URL is the public base URL plus the relative
//   path.  Once the submission is stored the processor calls Reparent to
//   attach each file to it.  Rows left without an owner belong to
//   submissions that failed and can be swept by a periodic job.
//
//   Schema (MySQL):
//
//     CREATE TABLE form_upload (
//       id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//       submission_id BIGINT UNSIGNED NULL,
//       file_name     VARCHAR(255)    NOT NULL,
//       stored_path   VARCHAR(512)    NOT NULL,
//       content_type  VARCHAR(255)    NOT NULL DEFAULT '',
//       size          BIGINT          NOT NULL,
//       created_at    DATETIME(6)     NOT NULL,
//       KEY idx_submission (submission_id)
//     );
//
//------------------------------------------------------------------------------

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/formpipe/internal/form"
)

// ErrUploadNotFound is returned by Reparent for unknown file IDs.
var ErrUploadNotFound = errors.New("upload not found")

const insertUpload = `INSERT INTO form_upload
	(file_name, stored_path, content_type, size, created_at)
	VALUES (:file_name, :stored_path, :content_type, :size, :created_at)`

const reparentUpload = `UPDATE form_upload SET submission_id = ? WHERE id = ?`

type uploadRow struct {
	FileName    string    `db:"file_name"`
	StoredPath  string    `db:"stored_path"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	CreatedAt   time.Time `db:"created_at"`
}

// Uploads implements form.UploadStore on the local filesystem plus a MySQL
// table.
type Uploads struct {
	db      *sqlx.DB
	dir     string
	baseURL string
	now     func() time.Time
}

// NewUploads stores files under dir and serves them from baseURL.
func NewUploads(db *sqlx.DB, dir, baseURL string) *Uploads {
	return &Uploads{
		db:      db,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Save copies the upload to disk and records it.
func (u *Uploads) Save(ctx context.Context, up *form.Upload) (form.FileRef, error) {
	if up == nil || up.Open == nil {
		return form.FileRef{}, errors.New("upload has no content")
	}

	now := u.now().UTC()
	rel, err := storedName(now, up.Name)
	if err != nil {
		return form.FileRef{}, err
	}
	abs := filepath.Join(u.dir, filepath.FromSlash(rel))

	size, err := u.copyTo(abs, up)
	if err != nil {
		return form.FileRef{}, err
	}

	row := uploadRow{
		FileName:    truncate(filepath.Base(up.Name), 255),
		StoredPath:  rel,
		ContentType: truncate(up.ContentType, 255),
		Size:        size,
		CreatedAt:   now,
	}
	res, err := u.db.NamedExecContext(ctx, insertUpload, row)
	if err != nil {
		_ = os.Remove(abs)
		return form.FileRef{}, fmt.Errorf("insert upload %s: %w", rel, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = os.Remove(abs)
		return form.FileRef{}, fmt.Errorf("upload id %s: %w", rel, err)
	}

	return form.FileRef{
		ID:       id,
		URL:      u.baseURL + "/" + rel,
		FileName: row.FileName,
	}, nil
}

// Reparent attaches a stored file to its submission.
func (u *Uploads) Reparent(ctx context.Context, fileID, submissionID int64) error {
	res, err := u.db.ExecContext(ctx, reparentUpload, submissionID, fileID)
	if err != nil {
		return fmt.Errorf("reparent upload %d: %w", fileID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reparent upload %d: %w", fileID, err)
	}
	if n == 0 {
		return fmt.Errorf("reparent upload %d: %w", fileID, ErrUploadNotFound)
	}
	return nil
}

func (u *Uploads) copyTo(abs string, up *form.Upload) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return 0, fmt.Errorf("upload dir: %w", err)
	}
	src, err := up.Open()
	if err != nil {
		return 0, fmt.Errorf("open upload %s: %w", up.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", abs, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(abs)
		return 0, fmt.Errorf("write %s: %w", abs, err)
	}
	return n, nil
}

// storedName builds “YYYY/MM/<uuid><ext>”.  The client name only
// contributes its lower-cased extension.
func storedName(now time.Time, clientName string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(clientName)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return path.Join(now.Format("2006"), now.Format("01"), id.String()+ext), nil
}
