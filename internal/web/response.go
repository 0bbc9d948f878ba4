package web

import (
	"encoding/json"
	"net/http"

	"github.com/yanizio/formpipe/internal/form"
)

// Transport error codes.  Pipeline codes come from form.Outcome.
const (
	errRequestTooLarge = "request_too_large"
	errBadRequest      = "bad_request"
	errUnavailable     = "unavailable"
)

// submitReply is the JSON body for POST /forms/{formID}.
type submitReply struct {
	Success               bool            `json:"success"`
	Error                 string          `json:"error,omitempty"`
	FieldErrors           form.FormErrors `json:"field_errors,omitempty"`
	ActionType            string          `json:"action_type,omitempty"`
	CompletionRedirectURL string          `json:"completion_redirect_url,omitempty"`
	CompletionMessage     string          `json:"completion_message,omitempty"`
}

type errorsReply struct {
	FormID      int64           `json:"form_id"`
	FieldErrors form.FormErrors `json:"field_errors"`
}

type nonceReply struct {
	Nonce string `json:"nonce"`
}

func replyFor(out form.Outcome) submitReply {
	if !out.Success() {
		return submitReply{Error: out.Code, FieldErrors: out.FieldErrors}
	}
	return submitReply{
		Success:               true,
		ActionType:            out.Action,
		CompletionRedirectURL: out.RedirectURL,
		CompletionMessage:     out.Message,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
