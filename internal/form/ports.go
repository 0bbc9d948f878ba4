// internal/form/ports.go
//
// Formpipe – Forms subsystem: collaborator interfaces and extension points.
//
// Context
//   The processor owns validation and sanitizing.  Everything else, form
//   storage, anti-forgery checks, upload storage, submission persistence,
//   email delivery, and CAPTCHA verification, is reached through the small
//   interfaces below.  Concrete implementations live in sibling packages
//   (formdef, csrf, store, message, captcha) and are wired in cmd/web.
//
//   Hooks replace the filter points of a global hook bus with typed callbacks
//   passed at construction time.  Each receives the default and returns a
//   (possibly unchanged) replacement.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"time"
)

// NonceAction is the action tag submission tokens are bound to.
const NonceAction = "form_submit"

// FormStore reads form and field definitions.
type FormStore interface {
	Form(ctx context.Context, id int64) (*Form, error)
	Field(ctx context.Context, id int64) (*Field, error)
}

// NonceVerifier checks an anti-forgery token for an action.
type NonceVerifier interface {
	Verify(token, action string) bool
}

// UploadStore persists uploaded files and re-parents them to submissions.
type UploadStore interface {
	Save(ctx context.Context, u *Upload) (FileRef, error)
	Reparent(ctx context.Context, fileID, submissionID int64) error
}

// SubmissionStore persists a sanitized submission and returns its ID.
type SubmissionStore interface {
	Create(ctx context.Context, formID int64, data Record, meta Meta) (int64, error)
}

// Mailer delivers one notification.  Failures are logged by the processor and
// never change the submission outcome.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// CaptchaVerifier checks a CAPTCHA response token against a secret.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, secret string) (bool, error)
}

// DateFormatter renders a date field value for humans.
type DateFormatter interface {
	FormatDate(v Value, f *Field) string
}

// AddressFormatter renders an address field value for humans.
type AddressFormatter interface {
	FormatAddress(v Value, f *Field) string
}

// -----------------------------------------------------------------------------
// Request and record shapes
// -----------------------------------------------------------------------------

// Submission is the raw request envelope handed to Process.  Values are keyed
// by input key: the field slug, or the type's alternate key (see
// Options.InputKeys).
type Submission struct {
	FormID     int64
	Values     map[string]Value
	Nonce      string
	Honeypot   string
	FormPage   string // page the form was posted from, optional
	RemoteAddr string
	UserAgent  string
	Country    string // best-effort geolocation, optional
}

// Record is the sanitized submission keyed by field slug.
type Record map[string]Value

// Meta is stored alongside a Record.
type Meta struct {
	RemoteAddr  string
	FormPage    string
	UserAgent   string
	SubmittedAt time.Time
}

// Email is one outbound notification.
type Email struct {
	To      string
	Subject string
	HTML    string
	Headers map[string]string
}

// -----------------------------------------------------------------------------
// Extension points
// -----------------------------------------------------------------------------

// Hooks are optional typed filters.  Nil members are skipped.
type Hooks struct {
	// Validator may replace the validator chosen for a field.
	Validator func(def Validator, v Value, f *Field) Validator
	// Sanitizer may replace the sanitizer chosen for a field value or leaf.
	Sanitizer func(def Sanitizer, v Value, f *Field) Sanitizer
	// EmailSubject, EmailBody, and EmailHeaders adjust each notification.
	EmailSubject func(subject string, fm *Form, to, page string) string
	EmailBody    func(body string, fm *Form, to, page string) string
	EmailHeaders func(h map[string]string, fm *Form, to, page string) map[string]string
}

// Options are the skip lists and input-key mapping.  Use DefaultOptions as a
// starting point.
type Options struct {
	SkipTypes     []string          // display-only, never read
	SaveSkipTypes []string          // validated but never stored or emailed
	InputKeys     map[string]string // type → alternate raw-input key
	SiteName      string            // used in notification subjects
}

// DefaultOptions returns the built-in skip lists and key mapping.
func DefaultOptions() Options {
	return Options{
		SkipTypes:     []string{TypeHTML, TypeSectionHeader},
		SaveSkipTypes: []string{TypeRecaptcha},
		InputKeys:     map[string]string{TypeRecaptcha: "g-recaptcha-response"},
	}
}

func (o Options) skips(typ string) bool     { return contains(o.SkipTypes, typ) }
func (o Options) saveSkips(typ string) bool { return contains(o.SaveSkipTypes, typ) }

func (o Options) inputKey(f *Field) string {
	if k, ok := o.InputKeys[f.Type]; ok && k != "" {
		return k
	}
	return f.Slug
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
