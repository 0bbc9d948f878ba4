package form

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func nameForm() *Form {
	return &Form{
		ID:    3,
		Title: "Signup",
		Fields: []Field{
			{ID: 31, Type: TypeName, Slug: "name", Required: true},
			{ID: 32, Type: TypeCheckboxes, Slug: "colors"},
			{ID: 33, Type: "custom-widget", Slug: "widget"},
			{ID: 34, Type: TypeSingleLineText, Slug: "note", Required: true},
		},
	}
}

func TestProcessFieldCompositeSanitizesLeaves(t *testing.T) {
	env := newTestEnv(t, nameForm())

	res, err := env.proc.ProcessField(context.Background(), 31,
		Composite(map[string]string{"first": "<b>Ada</b>", "last": "  Lovelace "}))
	if err != nil {
		t.Fatalf("ProcessField: %v", err)
	}
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if res.Value.Kind() != KindComposite {
		t.Fatalf("kind = %v, want composite", res.Value.Kind())
	}
	if diff := cmp.Diff([]string{"first", "last"}, res.Value.Keys()); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	if res.Value.Part("first") != "Ada" || res.Value.Part("last") != "Lovelace" {
		t.Fatalf("parts = %q %q", res.Value.Part("first"), res.Value.Part("last"))
	}
}

func TestProcessFieldSelectionKeepsOrder(t *testing.T) {
	env := newTestEnv(t, nameForm())

	res, err := env.proc.ProcessField(context.Background(), 32, Selection("<i>red</i>", "", "blue "))
	if err != nil || !res.OK() {
		t.Fatalf("ProcessField: %v %v", err, res.Errors)
	}
	if diff := cmp.Diff([]string{"red", "", "blue"}, res.Value.Items()); diff != "" {
		t.Fatalf("items (-want +got):\n%s", diff)
	}
}

func TestProcessFieldInvalidSkipsSanitize(t *testing.T) {
	env := newTestEnv(t, nameForm())

	res, err := env.proc.ProcessField(context.Background(), 34, Text("  "))
	if err != nil {
		t.Fatalf("ProcessField: %v", err)
	}
	if diff := cmp.Diff([]string{CodeRequired}, codes(res.Errors)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
	if res.Value.Kind() != KindAbsent {
		t.Fatalf("value should be unset on failure, got %v", res.Value.Kind())
	}
}

func TestProcessFieldUnknownTypePassesThrough(t *testing.T) {
	env := newTestEnv(t, nameForm())

	res, err := env.proc.ProcessField(context.Background(), 33, Text("<b>raw</b>"))
	if err != nil || !res.OK() {
		t.Fatalf("ProcessField: %v %v", err, res.Errors)
	}
	if res.Value.String() != "<b>raw</b>" {
		t.Fatalf("value = %q, want untouched", res.Value.String())
	}
}

func TestProcessFieldIdempotent(t *testing.T) {
	env := newTestEnv(t, nameForm())
	ctx := context.Background()

	first, _ := env.proc.ProcessField(ctx, 34, Text("<p>Hello\n\n  world</p>"))
	second, _ := env.proc.ProcessField(ctx, 34, first.Value)
	if first.Value.String() != second.Value.String() {
		t.Fatalf("not idempotent: %q then %q", first.Value.String(), second.Value.String())
	}
}

func TestProcessFieldUnknownID(t *testing.T) {
	env := newTestEnv(t, nameForm())
	if _, err := env.proc.ProcessField(context.Background(), 999, Text("x")); !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("err = %v, want ErrFieldNotFound", err)
	}
}

func TestProcessFieldHooks(t *testing.T) {
	hooks := Hooks{
		Validator: func(def Validator, _ Value, f *Field) Validator {
			if f.Slug != "note" {
				return def
			}
			return func(_ context.Context, v Value, _ *Field, _ bool) Errors {
				if v.String() == "forbidden" {
					return Errors{"banned": "Not allowed."}
				}
				return Valid
			}
		},
		Sanitizer: func(def Sanitizer, v Value, f *Field) Sanitizer {
			if f.Type == TypeName && v.String() == "drop" {
				return nil
			}
			return def
		},
	}
	env := newTestEnvWith(t, Deps{}, hooks, nameForm())
	ctx := context.Background()

	res, _ := env.proc.ProcessField(ctx, 34, Text("forbidden"))
	if diff := cmp.Diff([]string{"banned"}, codes(res.Errors)); diff != "" {
		t.Fatalf("validator hook (-want +got):\n%s", diff)
	}

	// The replacement validator no longer requires a value.
	res, _ = env.proc.ProcessField(ctx, 34, Text(""))
	if !res.OK() {
		t.Fatalf("empty note should pass the hooked validator: %v", res.Errors)
	}

	// A nil sanitizer drops that leaf from the composite.
	res, _ = env.proc.ProcessField(ctx, 31, Composite(map[string]string{"first": "drop", "last": "Kept"}))
	if !res.OK() {
		t.Fatalf("errors: %v", res.Errors)
	}
	if diff := cmp.Diff([]string{"last"}, res.Value.Keys()); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
}

func TestProcessFieldSaveFailure(t *testing.T) {
	fm := &Form{ID: 5, Fields: []Field{{ID: 51, Type: TypeFile, Slug: "cv"}}}
	env := newTestEnv(t, fm)
	env.uploads.saveErr = errors.New("disk full")

	res, err := env.proc.ProcessField(context.Background(), 51,
		UploadValue(&Upload{Name: "cv.pdf", Size: 100, Status: UploadOK}))
	if err != nil {
		t.Fatalf("ProcessField: %v", err)
	}
	if diff := cmp.Diff([]string{CodeFileUpload}, codes(res.Errors)); diff != "" {
		t.Fatalf("codes (-want +got):\n%s", diff)
	}
}
