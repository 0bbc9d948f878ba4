// internal/form/sanitizers.go
//
// Formpipe – Forms subsystem: built-in sanitizers.
//
// Context
//   Sanitizers run only after a field validates.  Text-like types strip all
//   markup through a bluemonday strict policy and collapse whitespace, so
//   stored values never carry HTML.  Email, URL, and phone sanitizers
//   normalise their formats.  The file sanitizer hands the upload to the
//   UploadStore and returns the stored reference.
//
//   For composite and selection values the processor calls these once per
//   leaf; a sanitizer never iterates a collection itself.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy

	emailLocalBad  = regexp.MustCompile("[^a-zA-Z0-9!#$%&'*+/=?^_`{|}~.-]")
	emailDomainBad = regexp.MustCompile(`[^a-z0-9.-]`)
	phoneKeep      = regexp.MustCompile(`[^0-9]`)
)

// strictPolicy strips every element and attribute.
func strictPolicy() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

// cleanText removes markup, decodes the entities bluemonday introduced, and
// collapses runs of whitespace including line breaks and tabs.
func cleanText(s string) string {
	stripped := html.UnescapeString(strictPolicy().Sanitize(s))
	return strings.Join(strings.Fields(stripped), " ")
}

func sanitizeText(_ context.Context, v Value, _ *Field) (Value, error) {
	return Text(cleanText(v.String())), nil
}

// sanitizeEmail keeps only characters legal in an address.  Input without
// an "@" sanitizes to "".
func sanitizeEmail(_ context.Context, v Value, _ *Field) (Value, error) {
	return Text(cleanEmail(v.String())), nil
}

func cleanEmail(s string) string {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return ""
	}
	local := emailLocalBad.ReplaceAllString(s[:at], "")
	domain := emailDomainBad.ReplaceAllString(strings.ToLower(s[at+1:]), "")
	domain = strings.Trim(domain, ".-")
	if local == "" || domain == "" {
		return ""
	}
	return local + "@" + domain
}

// sanitizeURL normalises a URL for storage.  Scheme-less input is assumed
// to be http.  Schemes outside the allow list sanitize to "".
func sanitizeURL(_ context.Context, v Value, _ *Field) (Value, error) {
	return Text(cleanURL(v.String())), nil
}

var allowedSchemes = []string{"http", "https", "ftp", "ftps", "mailto"}

func cleanURL(s string) string {
	s = strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, ":") && !strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "#") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if u.Scheme != "" && !contains(allowedSchemes, strings.ToLower(u.Scheme)) {
		return ""
	}
	return u.String()
}

// sanitizePhone keeps digits and a leading "+".
func sanitizePhone(_ context.Context, v Value, _ *Field) (Value, error) {
	s := strings.TrimSpace(v.String())
	prefix := ""
	if strings.HasPrefix(s, "+") {
		prefix = "+"
	}
	return Text(prefix + phoneKeep.ReplaceAllString(s, "")), nil
}

// fileSanitizer persists a validated upload.  An optional input with no file
// sanitizes to Absent.
func fileSanitizer(store UploadStore) Sanitizer {
	return func(ctx context.Context, v Value, f *Field) (Value, error) {
		up := v.Upload()
		if up == nil || up.Status == UploadNoFile {
			return Absent(), nil
		}
		if store == nil {
			return Absent(), ErrNoUploadStore
		}
		ref, err := store.Save(ctx, up)
		if err != nil {
			return Absent(), fmt.Errorf("save upload for %s: %w", f.Slug, err)
		}
		return File(ref), nil
	}
}
