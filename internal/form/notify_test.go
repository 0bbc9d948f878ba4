package form

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRenderNotification(t *testing.T) {
	fm := &Form{
		ID:    4,
		Title: "Apply",
		Fields: []Field{
			{ID: 1, Type: TypeName, Slug: "name", Label: "Your Name"},
			{ID: 2, Type: TypePhone, Slug: "phone", Label: "Phone"},
			{ID: 3, Type: TypeCheckboxes, Slug: "colors"},
			{ID: 4, Type: TypeHidden, Slug: "ref", Label: "Referrer"},
			{ID: 5, Type: TypeFile, Slug: "cv", Label: "CV"},
			{ID: 6, Type: TypeSingleLineText, Slug: "not-stored", Label: "Skipped"},
		},
	}
	rec := Record{
		"name":   Composite(map[string]string{"first": "Ada", "last": "Lovelace"}),
		"phone":  Text(""),
		"colors": Selection("red", "", "blue"),
		"ref":    Text("newsletter"),
		"cv":     File(FileRef{ID: 1, URL: "https://files.example.com/1", FileName: "cv.pdf"}),
	}
	sub := Submission{FormPage: "https://example.com/apply", RemoteAddr: "203.0.113.9", Country: "NZ"}

	env := newTestEnv(t, fm)
	body, err := env.proc.RenderNotification(fm, rec, sub)
	if err != nil {
		t.Fatalf("RenderNotification: %v", err)
	}

	for _, want := range []string{
		"<b>Your Name (name):</b>",
		"Ada Lovelace",
		"<b>Phone (phone):</b></div>\n<div style=\"margin-bottom: 10px;\"><span>-</span>",
		"<b>colors:</b>",
		"red<br>blue",
		"<b>*Hidden Field* (ref):</b>",
		`<a href="https://files.example.com/1">cv.pdf</a>`,
		"Form submitted from: https://example.com/apply",
		"Form submitter IP: 203.0.113.9",
		"Form submitter location: NZ",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Skipped") {
		t.Fatalf("field absent from the record was rendered:\n%s", body)
	}
	if strings.Index(body, "Your Name") > strings.Index(body, "colors") {
		t.Fatalf("fields not in form order:\n%s", body)
	}
}

func TestRenderNotificationEscapes(t *testing.T) {
	fm := &Form{ID: 4, Fields: []Field{{ID: 1, Type: "custom", Slug: "x", Label: "<i>X</i>"}}}
	env := newTestEnv(t, fm)

	body, err := env.proc.RenderNotification(fm, Record{"x": Text("<script>")}, Submission{})
	if err != nil {
		t.Fatalf("RenderNotification: %v", err)
	}
	if strings.Contains(body, "<script>") || strings.Contains(body, "<i>") {
		t.Fatalf("markup not escaped:\n%s", body)
	}
	if strings.Contains(body, "Form submitted from") {
		t.Fatalf("empty page rendered:\n%s", body)
	}
}

func TestNotifyHeaders(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		n    Notification
		rec  Record
		want string
	}{
		{"default", Notification{FromType: FromDefault}, nil, ""},
		{"custom", Notification{FromType: FromCustom, FromAddress: " Owner@Example.com "}, nil, "Owner@example.com"},
		{"field scalar", Notification{FromType: FromField, FromField: "e"}, Record{"e": Text("a@x.com")}, "a@x.com"},
		{"field pair prefers confirm", Notification{FromType: FromField, FromField: "e"},
			Record{"e": Composite(map[string]string{"email": "a@x.com", "confirm": "b@x.com"})}, "b@x.com"},
		{"field missing", Notification{FromType: FromField, FromField: "e"}, Record{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := env.proc.notifyHeaders(&Form{Notify: tc.n}, tc.rec)
			if h["Content-Type"] != "text/html; charset=utf-8" {
				t.Fatalf("Content-Type = %q", h["Content-Type"])
			}
			if h["From"] != tc.want || h["Reply-To"] != tc.want {
				t.Fatalf("From/Reply-To = %q/%q, want %q", h["From"], h["Reply-To"], tc.want)
			}
		})
	}
}

func TestNotifyHooks(t *testing.T) {
	hooks := Hooks{
		EmailSubject: func(s string, _ *Form, to, _ string) string { return s + " for " + to },
		EmailBody:    func(b string, _ *Form, _, page string) string { return "<p>" + page + "</p>" + b },
		EmailHeaders: func(h map[string]string, _ *Form, _, _ string) map[string]string {
			h["X-Form"] = "contact"
			return h
		},
	}
	env := newTestEnvWith(t, Deps{}, hooks, contactForm())

	if out, err := env.proc.Process(context.Background(), submission(7, validContact())); err != nil || !out.Success() {
		t.Fatalf("got %q, %v", out.Code, err)
	}

	var subjects []string
	for _, e := range env.mailer.sent {
		subjects = append(subjects, e.Subject)
		if !strings.HasPrefix(e.HTML, "<p>https://example.com/contact</p>") {
			t.Fatalf("body hook not applied: %q", e.HTML)
		}
		if e.Headers["X-Form"] != "contact" {
			t.Fatalf("header hook not applied: %v", e.Headers)
		}
	}
	want := []string{
		`Acme: Form Submission to "Contact" for sales@example.com`,
		`Acme: Form Submission to "Contact" for ops@example.com`,
	}
	if diff := cmp.Diff(want, subjects); diff != "" {
		t.Fatalf("subjects (-want +got):\n%s", diff)
	}
}

func TestPrettyLines(t *testing.T) {
	env := newTestEnv(t)
	p := env.proc

	cases := []struct {
		name string
		f    Field
		v    Value
		want []string
	}{
		{"date", Field{Type: TypeDate}, Composite(map[string]string{"date": "1/2/2026", "hour": "9", "minute": "5", "am-pm": "am"}),
			[]string{"1/2/2026 9:05 am"}},
		{"address", Field{Type: TypeAddress}, Composite(map[string]string{"street": "1 Main", "city": "Springfield", "state": "IL", "zipcode": "62701"}),
			[]string{"1 Main, Springfield, IL 62701"}},
		{"email pair", Field{Type: TypeEmail}, Composite(map[string]string{"email": "a@x.com", "confirm": "a@x.com"}),
			[]string{"a@x.com"}},
		{"radio scalar", Field{Type: TypeRadio}, Text("yes"), []string{"yes"}},
		{"empty", Field{Type: TypeSingleLineText}, Text(""), nil},
		{"other composite", Field{Type: "custom"}, Composite(map[string]string{"a": "1", "b": "2"}), []string{"1, 2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, p.prettyLines(&tc.f, tc.v)); diff != "" {
				t.Fatalf("lines (-want +got):\n%s", diff)
			}
		})
	}
}
