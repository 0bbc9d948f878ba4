// internal/formdef/formdef_test.go
//
// Unit-tests for the YAML definition store.
//
// Run: go test ./internal/formdef -v

package formdef

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanizio/formpipe/internal/form"
)

const contactYAML = `
id: 1
title: Contact
fields:
  - id: 11
    type: single-line-text
    slug: full-name
    label: Your name
    required: true
  - id: 12
    type: email
    slug: email
    label: Email
    required: true
  - id: 13
    type: file
    slug: cv
    config:
      max_file_size: 5
      file_extensions: "pdf, docx"
completion:
  action: message
  message: Thanks!
notifications:
  enabled: true
  addresses: "a@example.com, b@example.com"
  from_type: field
  from_field: email
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func newStore() *Store { return New(zap.NewNop().Sugar()) }

func TestLoadFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "contact.yaml", contactYAML)

	fm, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	want := &form.Form{
		ID:    1,
		Title: "Contact",
		Fields: []form.Field{
			{ID: 11, Type: form.TypeSingleLineText, Slug: "full-name", Label: "Your name", Required: true},
			{ID: 12, Type: form.TypeEmail, Slug: "email", Label: "Email", Required: true},
			{ID: 13, Type: form.TypeFile, Slug: "cv", Config: form.FieldConfig{MaxFileSize: 5, FileExtensions: "pdf, docx"}},
		},
		Completion: form.Completion{Action: form.ActionMessage, Message: "Thanks!"},
		Notify: form.Notification{
			Enabled:   true,
			Addresses: "a@example.com, b@example.com",
			FromType:  form.FromField,
			FromField: "email",
		},
	}
	if diff := cmp.Diff(want, fm); diff != "" {
		t.Fatalf("form mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileRejectsBadDefinitions(t *testing.T) {
	cases := map[string]string{
		"duplicate slug": strings.Replace(contactYAML, "slug: email", "slug: full-name", 1),
		"bad slug":       strings.Replace(contactYAML, "slug: cv", "slug: \"cv[]\"", 1),
		"no fields":      "id: 2\ntitle: Empty\n",
		"redirect without url": strings.Replace(contactYAML,
			"action: message", "action: redirect", 1),
		"from field not email": strings.Replace(contactYAML,
			"from_field: email", "from_field: full-name", 1),
		"unknown address mode": strings.Replace(contactYAML,
			"max_file_size: 5", "address_type: moon", 1),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "f.yaml", body)
			if _, err := LoadFile(p); err == nil {
				t.Fatalf("definition accepted")
			}
		})
	}
}

func TestStoreLoadAndLookup(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "site"), "contact.yaml", contactYAML)
	writeFile(t, filepath.Join(root, "site", "nested"), "survey.yml", `
id: 2
title: Survey
fields:
  - id: 21
    type: radio
    slug: rating
`)
	writeFile(t, filepath.Join(root, "site"), "README.md", "not a form")

	s := newStore()
	n, err := s.Load(filepath.Join(root, "site"), filepath.Join(root, "missing"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d forms, want 2", n)
	}
	if diff := cmp.Diff([]int64{1, 2}, s.IDs()); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}

	ctx := context.Background()
	f, err := s.Field(ctx, 21)
	if err != nil || f.Slug != "rating" {
		t.Fatalf("Field(21) = %+v, %v", f, err)
	}
	if _, err := s.Form(ctx, 9); !errors.Is(err, form.ErrFormNotFound) {
		t.Fatalf("Form(9) err = %v", err)
	}
	if _, err := s.Field(ctx, 99); !errors.Is(err, form.ErrFieldNotFound) {
		t.Fatalf("Field(99) err = %v", err)
	}
}

func TestStoreLoadPrecedence(t *testing.T) {
	root := t.TempDir()
	override := filepath.Join(root, "tenant")
	global := filepath.Join(root, "global")
	writeFile(t, override, "contact.yaml", strings.Replace(contactYAML, "title: Contact", "title: Tenant Contact", 1))
	writeFile(t, global, "contact.yaml", contactYAML)

	s := newStore()
	if _, err := s.Load(override, global); err != nil {
		t.Fatalf("Load: %v", err)
	}
	fm, _ := s.Form(context.Background(), 1)
	if fm.Title != "Tenant Contact" {
		t.Fatalf("title = %q, want the override", fm.Title)
	}
}

func TestStoreLoadDuplicateInOneDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", contactYAML)
	writeFile(t, dir, "b.yaml", contactYAML)

	if _, err := newStore().Load(dir); err == nil {
		t.Fatalf("duplicate form id accepted")
	}
}

func TestStoreAddReplacesAndGuardsFieldIDs(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	a := &form.Form{ID: 1, Fields: []form.Field{{ID: 10, Type: form.TypeHidden, Slug: "a"}}}
	if err := s.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}

	clash := &form.Form{ID: 2, Fields: []form.Field{{ID: 10, Type: form.TypeHidden, Slug: "b"}}}
	if err := s.Add(clash); err == nil {
		t.Fatalf("field id shared across forms accepted")
	}

	replaced := &form.Form{ID: 1, Fields: []form.Field{{ID: 11, Type: form.TypeHidden, Slug: "a"}}}
	if err := s.Add(replaced); err != nil {
		t.Fatalf("Add replacement: %v", err)
	}
	if _, err := s.Field(ctx, 10); !errors.Is(err, form.ErrFieldNotFound) {
		t.Fatalf("stale field survived replacement: %v", err)
	}
	if err := s.Add(clash); err != nil {
		t.Fatalf("field id should be free after replacement: %v", err)
	}
}

func TestStoreWarnsOnlyForUnknownTypes(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	reg := form.NewRegistry(form.Deps{})
	s := New(zap.New(core).Sugar(), reg.KnownTypes(form.DefaultOptions())...)

	fm := &form.Form{ID: 1, Fields: []form.Field{
		{ID: 10, Type: form.TypeSectionHeader, Slug: "intro"},
		{ID: 11, Type: form.TypeHTML, Slug: "blurb"},
		{ID: 12, Type: form.TypeEmail, Slug: "email"},
	}}
	if err := s.Add(fm); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if n := logs.Len(); n != 0 {
		t.Fatalf("got %d warnings for known types: %v", n, logs.All())
	}

	odd := &form.Form{ID: 2, Fields: []form.Field{{ID: 20, Type: "rating", Slug: "stars"}}}
	if err := s.Add(odd); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if n := logs.FilterMessage("form field has unregistered type").Len(); n != 1 {
		t.Fatalf("unregistered type warnings = %d, want 1", n)
	}
}
