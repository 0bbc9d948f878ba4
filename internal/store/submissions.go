// internal/store/submissions.go
//
// Formpipe – Storage: submission records.
//
// Context
//   A successful submission is written as one row in `form_submission`.  The
//   sanitized Record is stored as a JSON object keyed by field slug, with
//   each value in the natural shape of its kind (string, object, array, or
//   file reference).  Request metadata sits in plain columns so operators can
//   filter without parsing JSON.
//
//   Schema (MySQL):
//
//     CREATE TABLE form_submission (
//       id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//       form_id      BIGINT UNSIGNED NOT NULL,
//       submitted_at DATETIME(6)     NOT NULL,
//       data         JSON            NOT NULL,
//       remote_ip    VARCHAR(45)     NOT NULL DEFAULT '',
//       user_agent   VARCHAR(512)    NOT NULL DEFAULT '',
//       form_page    VARCHAR(2048)   NOT NULL DEFAULT '',
//       KEY idx_form (form_id, submitted_at)
//     );
//
//------------------------------------------------------------------------------

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/formpipe/internal/form"
)

const insertSubmission = `INSERT INTO form_submission
	(form_id, submitted_at, data, remote_ip, user_agent, form_page)
	VALUES (:form_id, :submitted_at, :data, :remote_ip, :user_agent, :form_page)`

type submissionRow struct {
	FormID      int64     `db:"form_id"`
	SubmittedAt time.Time `db:"submitted_at"`
	Data        []byte    `db:"data"`
	RemoteIP    string    `db:"remote_ip"`
	UserAgent   string    `db:"user_agent"`
	FormPage    string    `db:"form_page"`
}

// Submissions implements form.SubmissionStore on a MySQL table.
type Submissions struct {
	db *sqlx.DB
}

// NewSubmissions returns a store backed by db.
func NewSubmissions(db *sqlx.DB) *Submissions {
	return &Submissions{db: db}
}

// Create inserts one submission and returns its auto-increment ID.
func (s *Submissions) Create(ctx context.Context, formID int64, data form.Record, meta form.Meta) (int64, error) {
	if data == nil {
		data = form.Record{}
	}
	j, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("encode submission for form %d: %w", formID, err)
	}

	row := submissionRow{
		FormID:      formID,
		SubmittedAt: meta.SubmittedAt,
		Data:        j,
		RemoteIP:    truncate(meta.RemoteAddr, 45),
		UserAgent:   truncate(meta.UserAgent, 512),
		FormPage:    truncate(meta.FormPage, 2048),
	}
	res, err := s.db.NamedExecContext(ctx, insertSubmission, row)
	if err != nil {
		return 0, fmt.Errorf("insert submission for form %d: %w", formID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("submission id for form %d: %w", formID, err)
	}
	return id, nil
}

// truncate clips s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
