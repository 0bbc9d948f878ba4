// internal/web/handler.go
//
// Formpipe – Web: HTTP surface for form submissions.
//
// Context
//   Routes (mounted under /forms by cmd/web):
//
//      POST /forms/{formID}          submit; JSON reply or 303 redirect
//      GET  /forms/{formID}/errors   last cached field errors for a form
//      GET  /forms/nonce             mint a `form_nonce` for a page render
//
//   AJAX callers (X-Requested-With: XMLHttpRequest or Accept: JSON) always
//   get JSON.  A plain browser post whose form completes with a redirect
//   gets a 303 to the configured URL; every other outcome is answered in
//   JSON as well, since rendering pages is the embedding site's job.
//
//   Pipeline outcomes are 200 responses with `success` set accordingly.
//   Only transport faults (bad form ID, oversized body, store outage) use
//   other status codes.
//
//------------------------------------------------------------------------------

package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/formpipe/internal/form"
	"github.com/yanizio/formpipe/internal/middleware"
)

// Processor is the slice of *form.Processor the handler needs.
type Processor interface {
	Process(ctx context.Context, sub form.Submission) (form.Outcome, error)
	Errors() *form.ErrorStore
}

// NonceIssuer mints anti-forgery tokens.  *csrf.Signer satisfies it.
type NonceIssuer interface {
	Generate(action string) (string, error)
}

// Options configures NewHandler.
type Options struct {
	MaxBodyBytes int64    // whole request cap; zero selects 32 MB
	MaxMemory    int64    // multipart bytes kept in memory; zero selects 8 MB
	RawKeys      []string // unprefixed keys copied into Submission.Values
	Logger       *zap.SugaredLogger
}

// Handler serves the form routes.
type Handler struct {
	proc   Processor
	nonces NonceIssuer
	opts   Options
	log    *zap.SugaredLogger
}

// NewHandler returns a Handler.  nonces may be nil, which disables the
// nonce route.
func NewHandler(proc Processor, nonces NonceIssuer, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 32 << 20
	}
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = 8 << 20
	}
	if opts.RawKeys == nil {
		for _, k := range form.DefaultOptions().InputKeys {
			opts.RawKeys = append(opts.RawKeys, k)
		}
	}
	if opts.Logger == nil {
		opts.Logger = zap.S()
	}
	return &Handler{proc: proc, nonces: nonces, opts: opts, log: opts.Logger}
}

// Routes returns the router to mount under /forms.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.NoStore)
	if h.nonces != nil {
		r.Get("/nonce", h.nonce)
	}
	r.Post("/{formID}", h.submit)
	r.Get("/{formID}/errors", h.fieldErrors)
	return r
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	formID, ok := formIDParam(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, submitReply{Error: form.OutcomeMissingForm})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	sub, err := decodeSubmission(r, formID, h.opts.MaxMemory, h.opts.RawKeys)
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	switch {
	case errors.Is(err, errBodyTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, submitReply{Error: errRequestTooLarge})
		return
	case err != nil:
		h.log.Debugw("submission decode failed", "form", formID, "error", err)
		writeJSON(w, http.StatusBadRequest, submitReply{Error: errBadRequest})
		return
	}

	out, err := h.proc.Process(r.Context(), sub)
	if err != nil {
		h.log.Errorw("submission failed", "form", formID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, submitReply{Error: errUnavailable})
		return
	}

	if !wantsJSON(r) && out.Success() && out.Action == form.ActionRedirect && out.RedirectURL != "" {
		http.Redirect(w, r, out.RedirectURL, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, replyFor(out))
}

func (h *Handler) fieldErrors(w http.ResponseWriter, r *http.Request) {
	formID, ok := formIDParam(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorsReply{})
		return
	}
	fe, _ := h.proc.Errors().Get(formID)
	if fe == nil {
		fe = form.FormErrors{}
	}
	writeJSON(w, http.StatusOK, errorsReply{FormID: formID, FieldErrors: fe})
}

func (h *Handler) nonce(w http.ResponseWriter, _ *http.Request) {
	tok, err := h.nonces.Generate(form.NonceAction)
	if err != nil {
		h.log.Errorw("nonce generation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, nonceReply{})
		return
	}
	writeJSON(w, http.StatusOK, nonceReply{Nonce: tok})
}

func formIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "formID"), 10, 64)
	return id, err == nil && id > 0
}

func wantsJSON(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
