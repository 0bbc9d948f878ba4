package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// In-memory collaborators shared by the processor tests.

type fakeForms struct {
	forms map[int64]*Form
	err   error
}

func (s *fakeForms) Form(_ context.Context, id int64) (*Form, error) {
	if s.err != nil {
		return nil, s.err
	}
	fm, ok := s.forms[id]
	if !ok {
		return nil, ErrFormNotFound
	}
	return fm, nil
}

func (s *fakeForms) Field(_ context.Context, id int64) (*Field, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, fm := range s.forms {
		for i := range fm.Fields {
			if fm.Fields[i].ID == id {
				return &fm.Fields[i], nil
			}
		}
	}
	return nil, ErrFieldNotFound
}

type fakeNonces struct{ ok bool }

func (n fakeNonces) Verify(token, action string) bool {
	return n.ok && token != "" && action == NonceAction
}

type createCall struct {
	FormID int64
	Data   Record
	Meta   Meta
}

type fakeSubmissions struct {
	mu    sync.Mutex
	id    int64
	err   error
	calls []createCall
}

func (s *fakeSubmissions) Create(_ context.Context, formID int64, data Record, meta Meta) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, createCall{FormID: formID, Data: data, Meta: meta})
	if s.err != nil {
		return 0, s.err
	}
	return s.id, nil
}

type fakeUploads struct {
	mu         sync.Mutex
	ref        FileRef
	saveErr    error
	saved      []string
	reparented [][2]int64
}

func (s *fakeUploads) Save(_ context.Context, u *Upload) (FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return FileRef{}, s.saveErr
	}
	s.saved = append(s.saved, u.Name)
	ref := s.ref
	ref.FileName = u.Name
	return ref, nil
}

func (s *fakeUploads) Reparent(_ context.Context, fileID, submissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reparented = append(s.reparented, [2]int64{fileID, submissionID})
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Email
	// failFor makes Send fail for these recipients.
	failFor map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, e Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[e.To] {
		return errors.New("smtp: connection refused")
	}
	m.sent = append(m.sent, e)
	return nil
}

// testEnv bundles a Processor with its fakes.
type testEnv struct {
	proc    *Processor
	forms   *fakeForms
	subs    *fakeSubmissions
	uploads *fakeUploads
	mailer  *fakeMailer
}

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestEnv(t *testing.T, forms ...*Form) *testEnv {
	t.Helper()
	return newTestEnvWith(t, Deps{}, Hooks{}, forms...)
}

func newTestEnvWith(t *testing.T, deps Deps, hooks Hooks, forms ...*Form) *testEnv {
	t.Helper()
	env := &testEnv{
		forms:   &fakeForms{forms: map[int64]*Form{}},
		subs:    &fakeSubmissions{id: 99},
		uploads: &fakeUploads{ref: FileRef{ID: 42, URL: "https://files.example.com/42"}},
		mailer:  &fakeMailer{},
	}
	for _, fm := range forms {
		env.forms.forms[fm.ID] = fm
	}
	if deps.Uploads == nil {
		deps.Uploads = env.uploads
	}

	opts := DefaultOptions()
	opts.SiteName = "Acme"

	p, err := NewProcessor(Config{
		Registry:    NewRegistry(deps),
		Forms:       env.forms,
		Nonces:      fakeNonces{ok: true},
		Submissions: env.subs,
		Uploads:     env.uploads,
		Mailer:      env.mailer,
		Hooks:       hooks,
		Options:     opts,
		Logger:      zap.NewNop().Sugar(),
		Now:         func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	env.proc = p
	return env
}

// submission builds a Submission carrying a valid nonce.
func submission(formID int64, values map[string]Value) Submission {
	return Submission{
		FormID:     formID,
		Values:     values,
		Nonce:      "tok",
		FormPage:   "https://example.com/contact",
		RemoteAddr: "203.0.113.9",
		UserAgent:  "test-agent",
	}
}
