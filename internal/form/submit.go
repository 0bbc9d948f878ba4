// internal/form/submit.go
//
// Formpipe – Forms subsystem: submission processing.
//
// Context
//   Process turns one raw Submission into an Outcome.  The flow is:
//
//   1. Guard clauses: honeypot filled, anti-forgery token bad, form unknown.
//      Each aborts immediately with a stable outcome code.
//   2. Every field of the form, in order, is processed (see field.go).
//      Display-only types are skipped.  Errors accumulate per slug; values
//      accumulate into the Record unless the type is storage-excluded.
//   3. Any error: cache the map in the ErrorStore and return invalid_fields.
//      Nothing is persisted and nothing is emailed.
//   4. Otherwise persist the Record, re-parent uploaded files, resolve the
//      completion behaviour, and send notifications (see notify.go).
//
//   Outcome codes are data.  The Go error return is reserved for
//   infrastructure failures outside that taxonomy, such as a FormStore that
//   cannot be reached.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/formpipe/internal/metrics"
)

// Outcome codes.  Success carries the empty code.
const (
	OutcomeHoneypot       = "honeypot"
	OutcomeNonce          = "nonce"
	OutcomeMissingForm    = "missing_form"
	OutcomeInvalidFields  = "invalid_fields"
	OutcomeCouldNotCreate = "could_not_create_submission"
	OutcomeSuccess        = ""

	metricsOutcomeSuccess = "success"
)

// Outcome is the result of Process.
type Outcome struct {
	Code         string
	FieldErrors  FormErrors
	SubmissionID int64
	Action       string // ActionRedirect or ActionMessage on success
	RedirectURL  string
	Message      string
	Data         Record
}

// Success reports whether the submission was stored.
func (o Outcome) Success() bool { return o.Code == OutcomeSuccess }

// Config wires a Processor.  Forms, Submissions, and Registry are required.
type Config struct {
	Registry    *Registry
	Forms       FormStore
	Nonces      NonceVerifier
	Submissions SubmissionStore
	Uploads     UploadStore
	Mailer      Mailer
	Errors      *ErrorStore
	Dates       DateFormatter
	Addresses   AddressFormatter
	Hooks       Hooks
	Options     Options
	Logger      *zap.SugaredLogger
	Now         func() time.Time
}

// Processor validates, sanitizes, stores, and announces submissions.  It
// holds no per-request state and is safe for concurrent use when its
// collaborators are.
type Processor struct {
	registry    *Registry
	forms       FormStore
	nonces      NonceVerifier
	submissions SubmissionStore
	uploads     UploadStore
	mailer      Mailer
	errors      *ErrorStore
	dates       DateFormatter
	addresses   AddressFormatter
	hooks       Hooks
	opts        Options
	log         *zap.SugaredLogger
	now         func() time.Time
}

// NewProcessor validates cfg and returns a Processor.  Nil optional members
// get defaults: a fresh ErrorStore, the built-in formatters, zap.S(), and
// time.Now.
func NewProcessor(cfg Config) (*Processor, error) {
	switch {
	case cfg.Registry == nil:
		return nil, errors.New("form: Config.Registry is required")
	case cfg.Forms == nil:
		return nil, errors.New("form: Config.Forms is required")
	case cfg.Submissions == nil:
		return nil, errors.New("form: Config.Submissions is required")
	}

	p := &Processor{
		registry:    cfg.Registry,
		forms:       cfg.Forms,
		nonces:      cfg.Nonces,
		submissions: cfg.Submissions,
		uploads:     cfg.Uploads,
		mailer:      cfg.Mailer,
		errors:      cfg.Errors,
		dates:       cfg.Dates,
		addresses:   cfg.Addresses,
		hooks:       cfg.Hooks,
		opts:        cfg.Options,
		log:         cfg.Logger,
		now:         cfg.Now,
	}
	if p.errors == nil {
		p.errors = NewErrorStore(DefaultErrorStoreSize)
	}
	if p.dates == nil {
		p.dates = defaultDateFormatter{}
	}
	if p.addresses == nil {
		p.addresses = defaultAddressFormatter{}
	}
	if p.log == nil {
		p.log = zap.S()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Errors exposes the ErrorStore so hosts can re-display failures.
func (p *Processor) Errors() *ErrorStore { return p.errors }

// Process runs the full submission pipeline for sub.
func (p *Processor) Process(ctx context.Context, sub Submission) (Outcome, error) {
	if strings.TrimSpace(sub.Honeypot) != "" {
		return p.done(sub.FormID, Outcome{Code: OutcomeHoneypot}), nil
	}
	if sub.Nonce == "" || p.nonces == nil || !p.nonces.Verify(sub.Nonce, NonceAction) {
		return p.done(sub.FormID, Outcome{Code: OutcomeNonce}), nil
	}

	fm, err := p.forms.Form(ctx, sub.FormID)
	if errors.Is(err, ErrFormNotFound) || (err == nil && fm == nil) {
		return p.done(sub.FormID, Outcome{Code: OutcomeMissingForm}), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("load form %d: %w", sub.FormID, err)
	}

	fieldErrs, record, fileIDs := p.collect(ctx, fm, sub)

	if len(fieldErrs) > 0 {
		p.errors.Set(fm.ID, fieldErrs)
		return p.done(fm.ID, Outcome{Code: OutcomeInvalidFields, FieldErrors: fieldErrs}), nil
	}

	meta := Meta{
		RemoteAddr:  sub.RemoteAddr,
		FormPage:    sub.FormPage,
		UserAgent:   sub.UserAgent,
		SubmittedAt: p.now().UTC(),
	}
	subID, err := p.submissions.Create(ctx, fm.ID, record, meta)
	if err != nil {
		p.log.Errorw("submission create failed", "form", fm.ID, "error", err)
		return p.done(fm.ID, Outcome{Code: OutcomeCouldNotCreate}), nil
	}

	p.reparent(ctx, fileIDs, subID)

	out := Outcome{Code: OutcomeSuccess, SubmissionID: subID, Data: record}
	if fm.Completion.Action == ActionRedirect {
		out.Action = ActionRedirect
		out.RedirectURL = fm.Completion.RedirectURL
	} else {
		out.Action = ActionMessage
		out.Message = fm.Completion.Message
		if out.Message == "" {
			out.Message = msgDefaultComplete
		}
	}

	p.notify(ctx, fm, record, sub)
	return p.done(fm.ID, out), nil
}

// collect processes every submittable field of fm.
func (p *Processor) collect(ctx context.Context, fm *Form, sub Submission) (FormErrors, Record, []int64) {
	fieldErrs := FormErrors{}
	record := Record{}
	var fileIDs []int64

	for i := range fm.Fields {
		f := &fm.Fields[i]
		if p.opts.skips(f.Type) {
			continue
		}

		raw, ok := sub.Values[p.opts.inputKey(f)]
		if !ok {
			raw = Absent()
		}

		res := p.processField(ctx, f, raw)
		if !res.OK() {
			fieldErrs[f.Slug] = res.Errors
			metrics.FieldErrorsTotal.WithLabelValues(f.Type).Inc()
			continue
		}
		if p.opts.saveSkips(f.Type) {
			continue
		}

		record[f.Slug] = res.Value
		if ref, isFile := res.Value.FileRef(); isFile && ref.ID != 0 {
			fileIDs = append(fileIDs, ref.ID)
		}
	}
	return fieldErrs, record, fileIDs
}

// reparent attaches stored uploads to the new submission.  Failures are
// logged; the submission already exists.
func (p *Processor) reparent(ctx context.Context, fileIDs []int64, subID int64) {
	if p.uploads == nil {
		return
	}
	for _, id := range fileIDs {
		if err := p.uploads.Reparent(ctx, id, subID); err != nil {
			p.log.Warnw("upload reparent failed", "file", id, "submission", subID, "error", err)
		}
	}
}

// done records metrics and the log line for every outcome.
func (p *Processor) done(formID int64, out Outcome) Outcome {
	label := out.Code
	if label == OutcomeSuccess {
		label = metricsOutcomeSuccess
	}
	metrics.SubmissionsTotal.WithLabelValues(label).Inc()
	p.log.Infow("form submission processed",
		"form", formID,
		"outcome", label,
		"field_errors", len(out.FieldErrors),
		"submission", out.SubmissionID,
	)
	return out
}
