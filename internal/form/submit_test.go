// internal/form/submit_test.go
//
// End-to-end tests for Processor.Process using in-memory collaborators.
//
// Run: go test ./internal/form -run Process -v

package form

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func contactForm() *Form {
	return &Form{
		ID:    7,
		Title: "Contact",
		Fields: []Field{
			{ID: 71, Type: TypeSectionHeader, Slug: "intro", Label: "About you", Required: true},
			{ID: 72, Type: TypeSingleLineText, Slug: "full-name", Label: "Your name", Required: true},
			{ID: 73, Type: TypeEmail, Slug: "email", Label: "Email", Required: true},
			{ID: 74, Type: TypeParagraphText, Slug: "message", Label: "Message"},
		},
		Completion: Completion{Action: ActionMessage},
		Notify: Notification{
			Enabled:   true,
			Addresses: "sales@example.com; ops@example.com",
			FromType:  FromField,
			FromField: "email",
		},
	}
}

func validContact() map[string]Value {
	return map[string]Value{
		"full-name": Text("<b>Ada</b> Lovelace"),
		"email":     Composite(map[string]string{"email": "ada@example.com", "confirm": "ada@example.com"}),
		"message":   Text("Hello\nthere"),
	}
}

func TestProcessInvalidFields(t *testing.T) {
	env := newTestEnv(t, contactForm())
	values := validContact()
	delete(values, "full-name")

	out, err := env.proc.Process(context.Background(), submission(7, values))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Code != OutcomeInvalidFields {
		t.Fatalf("code = %q, want %q", out.Code, OutcomeInvalidFields)
	}
	want := FormErrors{"full-name": {CodeRequired: msgRequired}}
	if diff := cmp.Diff(want, out.FieldErrors); diff != "" {
		t.Fatalf("field errors (-want +got):\n%s", diff)
	}
	if len(env.subs.calls) != 0 {
		t.Fatalf("submission stored despite errors")
	}
	if len(env.mailer.sent) != 0 {
		t.Fatalf("notification sent despite errors")
	}

	cached, ok := env.proc.Errors().Get(7)
	if !ok {
		t.Fatalf("errors not cached for form 7")
	}
	if diff := cmp.Diff(want, cached); diff != "" {
		t.Fatalf("cached errors (-want +got):\n%s", diff)
	}
}

func TestProcessSuccess(t *testing.T) {
	env := newTestEnv(t, contactForm())

	out, err := env.proc.Process(context.Background(), submission(7, validContact()))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !out.Success() {
		t.Fatalf("code = %q, want success", out.Code)
	}
	if out.SubmissionID != 99 || out.Action != ActionMessage || out.Message != msgDefaultComplete {
		t.Fatalf("outcome = %+v", out)
	}

	if len(env.subs.calls) != 1 {
		t.Fatalf("Create calls = %d, want 1", len(env.subs.calls))
	}
	call := env.subs.calls[0]
	if call.FormID != 7 {
		t.Fatalf("stored form = %d", call.FormID)
	}
	if got := call.Data["full-name"].String(); got != "Ada Lovelace" {
		t.Fatalf("full-name = %q", got)
	}
	if got := call.Data["message"].String(); got != "Hello there" {
		t.Fatalf("message = %q", got)
	}
	if _, ok := call.Data["intro"]; ok {
		t.Fatalf("display-only field stored")
	}
	wantMeta := Meta{
		RemoteAddr:  "203.0.113.9",
		FormPage:    "https://example.com/contact",
		UserAgent:   "test-agent",
		SubmittedAt: testNow,
	}
	if diff := cmp.Diff(wantMeta, call.Meta); diff != "" {
		t.Fatalf("meta (-want +got):\n%s", diff)
	}

	// One message per recipient, in list order.
	var to []string
	for _, e := range env.mailer.sent {
		to = append(to, e.To)
		if e.Subject != `Acme: Form Submission to "Contact"` {
			t.Fatalf("subject = %q", e.Subject)
		}
		if e.Headers["Reply-To"] != "ada@example.com" {
			t.Fatalf("Reply-To = %q", e.Headers["Reply-To"])
		}
	}
	if diff := cmp.Diff([]string{"sales@example.com", "ops@example.com"}, to); diff != "" {
		t.Fatalf("recipients (-want +got):\n%s", diff)
	}
}

func TestProcessSuccessKeepsCachedErrors(t *testing.T) {
	env := newTestEnv(t, contactForm())
	ctx := context.Background()

	bad := validContact()
	bad["full-name"] = Text("")
	if out, _ := env.proc.Process(ctx, submission(7, bad)); out.Code != OutcomeInvalidFields {
		t.Fatalf("first submit code = %q", out.Code)
	}
	if out, _ := env.proc.Process(ctx, submission(7, validContact())); !out.Success() {
		t.Fatalf("second submit code = %q", out.Code)
	}
	if _, ok := env.proc.Errors().Field(7, "full-name"); !ok {
		t.Fatalf("successful submit cleared cached errors")
	}
}

func TestProcessGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("honeypot", func(t *testing.T) {
		env := newTestEnv(t, contactForm())
		sub := submission(7, validContact())
		sub.Honeypot = "http://spam.example"
		out, err := env.proc.Process(ctx, sub)
		if err != nil || out.Code != OutcomeHoneypot {
			t.Fatalf("got %q, %v", out.Code, err)
		}
		if len(env.subs.calls) != 0 {
			t.Fatalf("honeypot submission stored")
		}
	})

	t.Run("nonce", func(t *testing.T) {
		env := newTestEnv(t, contactForm())
		sub := submission(7, validContact())
		sub.Nonce = ""
		out, err := env.proc.Process(ctx, sub)
		if err != nil || out.Code != OutcomeNonce {
			t.Fatalf("got %q, %v", out.Code, err)
		}
	})

	t.Run("missing form", func(t *testing.T) {
		env := newTestEnv(t, contactForm())
		out, err := env.proc.Process(ctx, submission(8, validContact()))
		if err != nil || out.Code != OutcomeMissingForm {
			t.Fatalf("got %q, %v", out.Code, err)
		}
	})

	t.Run("form store down", func(t *testing.T) {
		env := newTestEnv(t, contactForm())
		boom := errors.New("connection reset")
		env.forms.err = boom
		if _, err := env.proc.Process(ctx, submission(7, validContact())); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped %v", err, boom)
		}
	})

	t.Run("could not create", func(t *testing.T) {
		env := newTestEnv(t, contactForm())
		env.subs.err = errors.New("duplicate key")
		out, err := env.proc.Process(ctx, submission(7, validContact()))
		if err != nil || out.Code != OutcomeCouldNotCreate {
			t.Fatalf("got %q, %v", out.Code, err)
		}
		if len(env.mailer.sent) != 0 {
			t.Fatalf("notification sent after failed create")
		}
	})
}

func TestProcessRedirect(t *testing.T) {
	fm := contactForm()
	fm.Completion = Completion{Action: ActionRedirect, RedirectURL: "https://example.com/thanks"}
	fm.Notify.Enabled = false
	env := newTestEnv(t, fm)

	out, err := env.proc.Process(context.Background(), submission(7, validContact()))
	if err != nil || !out.Success() {
		t.Fatalf("got %q, %v", out.Code, err)
	}
	if out.Action != ActionRedirect || out.RedirectURL != "https://example.com/thanks" {
		t.Fatalf("outcome = %+v", out)
	}
	if len(env.mailer.sent) != 0 {
		t.Fatalf("notification sent while disabled")
	}
}

func TestProcessRecaptchaNotStored(t *testing.T) {
	fm := &Form{
		ID: 9,
		Fields: []Field{
			{ID: 91, Type: TypeSingleLineText, Slug: "q", Required: true},
			{ID: 92, Type: TypeRecaptcha, Slug: "captcha", Config: FieldConfig{SecretKey: "s"}},
		},
	}
	captcha := &stubCaptcha{ok: true}
	env := newTestEnvWith(t, Deps{Captcha: captcha}, Hooks{}, fm)

	out, err := env.proc.Process(context.Background(), submission(9, map[string]Value{
		"q":                    Text("hi"),
		"g-recaptcha-response": Text("captcha-token"),
	}))
	if err != nil || !out.Success() {
		t.Fatalf("got %q, %v (%v)", out.Code, err, out.FieldErrors)
	}
	if captcha.gotToken != "captcha-token" {
		t.Fatalf("captcha token = %q", captcha.gotToken)
	}
	if _, ok := env.subs.calls[0].Data["captcha"]; ok {
		t.Fatalf("recaptcha value stored")
	}

	captcha.ok = false
	out, _ = env.proc.Process(context.Background(), submission(9, map[string]Value{
		"q":                    Text("hi"),
		"g-recaptcha-response": Text("bad"),
	}))
	if diff := cmp.Diff([]string{CodeRecaptcha}, codes(out.FieldErrors["captcha"])); diff != "" {
		t.Fatalf("captcha codes (-want +got):\n%s", diff)
	}
}

func TestProcessFileReparented(t *testing.T) {
	fm := &Form{
		ID: 11,
		Fields: []Field{
			{ID: 111, Type: TypeFile, Slug: "resume", Required: true, Config: FieldConfig{MaxFileSize: 2, FileExtensions: "pdf"}},
			{ID: 112, Type: TypeFile, Slug: "cover"},
		},
	}
	env := newTestEnv(t, fm)

	out, err := env.proc.Process(context.Background(), submission(11, map[string]Value{
		"resume": UploadValue(&Upload{Name: "cv.pdf", Size: 1024, Status: UploadOK}),
		"cover":  UploadValue(&Upload{Status: UploadNoFile}),
	}))
	if err != nil || !out.Success() {
		t.Fatalf("got %q, %v (%v)", out.Code, err, out.FieldErrors)
	}
	if diff := cmp.Diff([][2]int64{{42, 99}}, env.uploads.reparented); diff != "" {
		t.Fatalf("reparented (-want +got):\n%s", diff)
	}
	ref, ok := out.Data["resume"].FileRef()
	if !ok || ref.FileName != "cv.pdf" {
		t.Fatalf("resume = %+v", ref)
	}
	if out.Data["cover"].Kind() != KindAbsent {
		t.Fatalf("empty optional upload stored as %v", out.Data["cover"].Kind())
	}
}

func TestProcessNotificationFailureIsBestEffort(t *testing.T) {
	env := newTestEnv(t, contactForm())
	env.mailer.failFor = map[string]bool{"sales@example.com": true}

	out, err := env.proc.Process(context.Background(), submission(7, validContact()))
	if err != nil || !out.Success() {
		t.Fatalf("got %q, %v", out.Code, err)
	}
	if len(env.mailer.sent) != 1 || env.mailer.sent[0].To != "ops@example.com" {
		t.Fatalf("sent = %+v", env.mailer.sent)
	}
}

func TestNewProcessorRequiresCollaborators(t *testing.T) {
	if _, err := NewProcessor(Config{}); err == nil {
		t.Fatalf("empty config accepted")
	}
	if _, err := NewProcessor(Config{Registry: NewRegistry(Deps{}), Forms: &fakeForms{}}); err == nil {
		t.Fatalf("config without Submissions accepted")
	}
}
