// internal/form/field.go
//
// Formpipe – Forms subsystem: single-field processing.
//
// Context
//   Every field runs the same two-phase contract: validate, and only on
//   success, sanitize.  The validator and sanitizer come from the Registry,
//   optionally replaced through Hooks.  Composite and selection values are
//   sanitized leaf by leaf so a scalar sanitizer serves every shape.
//
//   A sanitizer error (in practice a failed file save) becomes a field error
//   so the submitter can retry; the cause is logged.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"errors"
	"fmt"
)

// FieldResult is the outcome of processing one field.  Exactly one of Errors
// (non-empty) or Value (meaningful) is set.
type FieldResult struct {
	Errors Errors
	Value  Value
}

// OK reports whether the field validated and sanitized cleanly.
func (r FieldResult) OK() bool { return r.Errors.OK() }

// ProcessField looks up fieldID in the FormStore and runs validate-then-
// sanitize on v.  The error return covers store failures only; validation
// problems are reported in FieldResult.Errors.
func (p *Processor) ProcessField(ctx context.Context, fieldID int64, v Value) (FieldResult, error) {
	f, err := p.forms.Field(ctx, fieldID)
	if err != nil {
		return FieldResult{}, fmt.Errorf("load field %d: %w", fieldID, err)
	}
	return p.processField(ctx, f, v), nil
}

func (p *Processor) processField(ctx context.Context, f *Field, v Value) FieldResult {
	h, _ := p.registry.Lookup(f.Type)

	validate := h.Validate
	if p.hooks.Validator != nil {
		validate = p.hooks.Validator(validate, v, f)
	}
	if validate != nil {
		if errs := validate(ctx, v, f, f.Required); !errs.OK() {
			p.log.Debugw("field invalid", "field", f.Slug, "type", f.Type, "codes", errs.Codes())
			return FieldResult{Errors: errs}
		}
	}

	switch v.Kind() {
	case KindComposite:
		out := make(map[string]string, len(v.keys))
		for _, k := range v.keys {
			leaf := Text(v.Part(k))
			sanitize := p.sanitizerFor(h.Sanitize, leaf, f)
			if sanitize == nil {
				continue
			}
			clean, err := sanitize(ctx, leaf, f)
			if err != nil {
				return p.sanitizeFailed(f, err)
			}
			out[k] = clean.String()
		}
		return FieldResult{Value: Composite(out)}

	case KindSelection:
		out := make([]string, 0, len(v.items))
		for _, item := range v.items {
			leaf := Text(item)
			sanitize := p.sanitizerFor(h.Sanitize, leaf, f)
			if sanitize == nil {
				continue
			}
			clean, err := sanitize(ctx, leaf, f)
			if err != nil {
				return p.sanitizeFailed(f, err)
			}
			out = append(out, clean.String())
		}
		return FieldResult{Value: Selection(out...)}

	default:
		sanitize := p.sanitizerFor(h.Sanitize, v, f)
		if sanitize == nil {
			return FieldResult{Value: v}
		}
		clean, err := sanitize(ctx, v, f)
		if err != nil {
			return p.sanitizeFailed(f, err)
		}
		return FieldResult{Value: clean}
	}
}

func (p *Processor) sanitizerFor(def Sanitizer, v Value, f *Field) Sanitizer {
	if p.hooks.Sanitizer != nil {
		return p.hooks.Sanitizer(def, v, f)
	}
	return def
}

func (p *Processor) sanitizeFailed(f *Field, err error) FieldResult {
	p.log.Warnw("field sanitize failed", "field", f.Slug, "type", f.Type, "error", err)
	if f.Type == TypeFile || errors.Is(err, ErrNoUploadStore) {
		return FieldResult{Errors: Errors{CodeFileUpload: msgFileUpload}}
	}
	return FieldResult{Errors: Errors{CodeInvalid: msgInvalid}}
}
