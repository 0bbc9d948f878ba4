// internal/form/registry.go
//
// Formpipe – Forms subsystem: field-type registry.
//
// Context
//   Every field type tag maps to a Handlers pair: an optional Validator and an
//   optional Sanitizer.  A type with neither passes its raw value through.
//   NewRegistry installs the built-in table; hosts call Register to add their
//   own types or replace a built-in one.  The last registration for a tag
//   wins.
//
//   The registry is an explicit value handed to the Processor, not package
//   state, so tests and tenants can hold independent tables.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"sort"
	"sync"
)

// Validator checks a raw value.  It returns Valid or a non-empty Errors.
type Validator func(ctx context.Context, v Value, f *Field, required bool) Errors

// Sanitizer cleans one value.  For composite and selection values it is
// called once per leaf with a Text value.
type Sanitizer func(ctx context.Context, v Value, f *Field) (Value, error)

// Handlers is the capability pair registered for a type tag.
type Handlers struct {
	Validate Validator
	Sanitize Sanitizer
}

// Deps are the collaborators the built-in handlers need.  Either may be nil;
// the file sanitizer then fails with ErrNoUploadStore and the recaptcha
// validator rejects every token.
type Deps struct {
	Uploads UploadStore
	Captcha CaptchaVerifier
}

// Registry maps type tags to Handlers.  Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Handlers
}

// NewRegistry returns a registry holding the built-in field types.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{types: make(map[string]Handlers)}

	text := Handlers{Sanitize: sanitizeText, Validate: notEmpty}
	choice := Handlers{Sanitize: sanitizeText, Validate: notEmptyChoiceable}

	r.Register(TypeSingleLineText, text)
	r.Register(TypeParagraphText, text)
	r.Register(TypeHidden, Handlers{Sanitize: sanitizeText})
	r.Register(TypeRecaptcha, Handlers{Validate: recaptchaValidator(deps.Captcha)})
	r.Register(TypeEmail, Handlers{Sanitize: sanitizeEmail, Validate: validateEmail})
	r.Register(TypePhone, Handlers{Sanitize: sanitizePhone, Validate: validatePhone})
	r.Register(TypeWebsite, Handlers{Sanitize: sanitizeURL, Validate: validateWebsite})
	r.Register(TypeName, Handlers{Sanitize: sanitizeText, Validate: validateName})
	r.Register(TypeAddress, Handlers{Sanitize: sanitizeText, Validate: validateAddress})
	r.Register(TypeFile, Handlers{Sanitize: fileSanitizer(deps.Uploads), Validate: validateFile})
	r.Register(TypeDate, Handlers{Sanitize: sanitizeText, Validate: validateDate})
	r.Register(TypeDropdown, choice)
	r.Register(TypeCheckboxes, choice)
	r.Register(TypeRadio, choice)
	return r
}

// Register installs or replaces the handlers for tag.
func (r *Registry) Register(tag string, h Handlers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types == nil {
		r.types = make(map[string]Handlers)
	}
	r.types[tag] = h
}

// Lookup returns the handlers for tag.  The boolean is false for unknown
// tags, in which case the zero Handlers is returned.
func (r *Registry) Lookup(tag string) (Handlers, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.types[tag]
	return h, ok
}

// Types lists the registered tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for tag := range r.types {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// KnownTypes is Types plus the display-only tags in o.SkipTypes, which a
// form may use without a registered pair.
func (r *Registry) KnownTypes(o Options) []string {
	out := r.Types()
	for _, t := range o.SkipTypes {
		if !contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
