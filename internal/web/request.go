// internal/web/request.go
//
// Formpipe – Web: decoding a posted form into a form.Submission.
//
// Context
//   Browsers post field values under `ccf_field_<slug>`.  Three shapes occur:
//
//      ccf_field_email=ada@example.com           → form.Text
//      ccf_field_name[first]=Ada                  → form.Composite part
//      ccf_field_colors[]=red&ccf_field_colors[]=blue → form.Selection
//
//   A plain key posted more than once also becomes a Selection.  Files arrive
//   as multipart parts under the same prefix.  A small set of raw keys (the
//   reCAPTCHA response) is copied through unprefixed because the processor
//   reads those types from alternate input keys.
//
//   Envelope keys: `form_nonce`, `form_page`, and the `my_information`
//   honeypot.
//
//------------------------------------------------------------------------------

package web

import (
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"

	"github.com/yanizio/formpipe/internal/form"
	"github.com/yanizio/formpipe/internal/requestinfo"
)

const (
	fieldPrefix = "ccf_field_"

	keyNonce    = "form_nonce"
	keyFormPage = "form_page"
	keyHoneypot = "my_information"
)

// errBodyTooLarge is returned when the request exceeds the body cap.
var errBodyTooLarge = errors.New("web: request body too large")

// splitKey parses a posted key.  ok is false for keys without the prefix.
func splitKey(key string) (slug, part string, list, ok bool) {
	rest, ok := strings.CutPrefix(key, fieldPrefix)
	if !ok || rest == "" {
		return "", "", false, false
	}
	open := strings.IndexByte(rest, '[')
	if open <= 0 || !strings.HasSuffix(rest, "]") {
		return rest, "", false, true
	}
	slug, part = rest[:open], rest[open+1:len(rest)-1]
	if part == "" {
		return slug, "", true, true
	}
	return slug, part, false, true
}

// decodeSubmission parses r (multipart or urlencoded) into a Submission for
// formID.  rawKeys are copied through as Text under their own name.
func decodeSubmission(r *http.Request, formID int64, maxMemory int64, rawKeys []string) (form.Submission, error) {
	if err := parseBody(r, maxMemory); err != nil {
		return form.Submission{}, err
	}

	sub := form.Submission{
		FormID:    formID,
		Values:    decodeValues(r.PostForm),
		Nonce:     r.PostForm.Get(keyNonce),
		Honeypot:  r.PostForm.Get(keyHoneypot),
		FormPage:  r.PostForm.Get(keyFormPage),
		UserAgent: r.UserAgent(),
	}
	for _, k := range rawKeys {
		if vals, ok := r.PostForm[k]; ok && len(vals) > 0 {
			sub.Values[k] = form.Text(vals[0])
		}
	}
	if r.MultipartForm != nil {
		for key, fhs := range r.MultipartForm.File {
			slug, _, _, ok := splitKey(key)
			if !ok || len(fhs) == 0 {
				continue
			}
			sub.Values[slug] = form.UploadValue(toUpload(key, fhs[0]))
		}
	}

	if ri := requestinfo.FromContext(r.Context()); ri != nil {
		sub.RemoteAddr = ri.ClientIP()
		sub.Country = ri.Location()
	} else {
		sub.RemoteAddr = hostOnly(r.RemoteAddr)
	}
	return sub, nil
}

func parseBody(r *http.Request, maxMemory int64) error {
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxMemory)
	} else {
		err = r.ParseForm()
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return err
}

// decodeValues groups prefixed keys by slug.
func decodeValues(post map[string][]string) map[string]form.Value {
	parts := map[string]map[string]string{}
	out := map[string]form.Value{}

	for key, vals := range post {
		slug, part, list, ok := splitKey(key)
		if !ok || len(vals) == 0 {
			continue
		}
		switch {
		case part != "":
			if parts[slug] == nil {
				parts[slug] = map[string]string{}
			}
			parts[slug][part] = vals[0]
		case list || len(vals) > 1:
			out[slug] = form.Selection(vals...)
		default:
			out[slug] = form.Text(vals[0])
		}
	}
	for slug, p := range parts {
		out[slug] = form.Composite(p)
	}
	return out
}

func toUpload(key string, fh *multipart.FileHeader) *form.Upload {
	up := &form.Upload{
		Key:         key,
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Status:      form.UploadOK,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
	if fh.Filename == "" {
		up.Status = form.UploadNoFile
		up.Open = nil
	}
	return up
}

func hostOnly(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
