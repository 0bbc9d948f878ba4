// internal/form/value.go
//
// Formpipe – Forms subsystem: submitted and sanitized values.
//
// Context
//   A field value arrives in one of a handful of shapes.  Most inputs post a
//   single string.  Name, address, date, and confirm-email inputs post a
//   mapping of named parts.  Checkbox groups post a list of selections.  File
//   inputs carry transport metadata instead of a string.  After sanitizing, a
//   file input becomes a stored-file reference.
//
//   Value is one immutable struct covering every shape so validators,
//   sanitizers, the processor, and the notification renderer all share a
//   single currency.  Values marshal to JSON in the natural shape of their
//   kind, which is how the submission store persists them.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
)

// Kind identifies the shape held by a Value.
type Kind uint8

const (
	KindAbsent    Kind = iota // nothing was posted
	KindText                  // single string
	KindComposite             // named parts, e.g. {first, last}
	KindSelection             // ordered list of choices
	KindUpload                // file transport metadata (raw only)
	KindFile                  // stored file reference (sanitized only)
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindComposite:
		return "composite"
	case KindSelection:
		return "selection"
	case KindUpload:
		return "upload"
	case KindFile:
		return "file"
	default:
		return "absent"
	}
}

// UploadStatus mirrors the status a multipart transport reports for a file
// input.
type UploadStatus int

const (
	UploadOK       UploadStatus = iota
	UploadTooLarge              // rejected by the transport size limit
	UploadPartial               // body ended early
	UploadNoFile                // input present, no file chosen
	UploadFailed                // any other transport failure
)

// Upload is the transport's view of one posted file.  Open is nil when the
// transport has nothing to read (for example, UploadNoFile).
type Upload struct {
	Key         string // request key the file arrived under
	Name        string // client-supplied file name
	Size        int64  // bytes
	ContentType string
	Status      UploadStatus
	Open        func() (io.ReadCloser, error)
}

// FileRef points at a file persisted by an UploadStore.
type FileRef struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	FileName string `json:"file_name"`
}

// Value is a raw or sanitized field value.  The zero Value is absent.
type Value struct {
	kind   Kind
	text   string
	parts  map[string]string
	keys   []string
	items  []string
	upload *Upload
	file   FileRef
}

// Absent returns the value used when nothing was posted for a field.
func Absent() Value { return Value{} }

// Text wraps a scalar string.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Composite wraps a mapping of named parts.  The map is copied.
func Composite(parts map[string]string) Value {
	cp := make(map[string]string, len(parts))
	keys := make([]string, 0, len(parts))
	for k, v := range parts {
		cp[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Value{kind: KindComposite, parts: cp, keys: keys}
}

// Selection wraps an ordered list of choices.  The slice is copied.
func Selection(items ...string) Value {
	return Value{kind: KindSelection, items: append([]string(nil), items...)}
}

// UploadValue wraps transport metadata for a file input.
func UploadValue(u *Upload) Value { return Value{kind: KindUpload, upload: u} }

// File wraps a stored file reference.
func File(ref FileRef) Value { return Value{kind: KindFile, file: ref} }

// Kind reports the shape of v.
func (v Value) Kind() Kind { return v.kind }

// String returns the scalar text.  Stored files return their URL; other
// shapes return "".
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindFile:
		return v.file.URL
	default:
		return ""
	}
}

// Part returns one named part of a composite value, or "".
func (v Value) Part(key string) string { return v.parts[key] }

// Keys returns the part names of a composite value in sorted order.
func (v Value) Keys() []string { return append([]string(nil), v.keys...) }

// Items returns the choices of a selection value.
func (v Value) Items() []string { return append([]string(nil), v.items...) }

// Upload returns the transport metadata of an upload value, or nil.
func (v Value) Upload() *Upload { return v.upload }

// FileRef returns the stored reference of a file value.
func (v Value) FileRef() (FileRef, bool) { return v.file, v.kind == KindFile }

// IsEmpty reports whether v carries nothing worth keeping: absent, blank
// text, or a collection with no entries.  A collection of blank entries is
// NOT empty here; see anySelected for the choice-field rule.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindText:
		return isBlank(v.text)
	case KindComposite:
		return len(v.parts) == 0
	case KindSelection:
		return len(v.items) == 0
	case KindUpload:
		return v.upload == nil
	case KindFile:
		return v.file.ID == 0 && v.file.URL == ""
	default:
		return true
	}
}

// leaves returns the scalar entries of a collection value in a stable order.
func (v Value) leaves() []string {
	switch v.kind {
	case KindComposite:
		out := make([]string, 0, len(v.keys))
		for _, k := range v.keys {
			out = append(out, v.parts[k])
		}
		return out
	case KindSelection:
		return v.Items()
	default:
		return nil
	}
}

// MarshalJSON encodes v in the natural JSON shape of its kind.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindComposite:
		return json.Marshal(v.parts)
	case KindSelection:
		return json.Marshal(v.items)
	case KindFile:
		return json.Marshal(v.file)
	default:
		return []byte("null"), nil
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
