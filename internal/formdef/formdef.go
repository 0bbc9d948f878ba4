// internal/formdef/formdef.go
//
// Formpipe – Forms subsystem: YAML definition store.
//
// Context
//   Each form is declared in one YAML file: its numeric ID, title, ordered
//   fields, completion behaviour, and notification settings.  At startup we
//   parse every “*.yaml” under the configured directories and keep the
//   resulting form.Form values in memory.  The Store implements
//   form.FormStore, so the processor resolves forms and fields through it.
//
// Workflow
//   •  LoadFile parses a single YAML file and validates it.
//   •  Store.Load walks one or more base directories in precedence order.
//      A form ID found in an earlier directory shadows the same ID in a
//      later one; a duplicate inside one directory is an error.
//   •  Store.Add installs or replaces one form, indexing its fields by ID.
//   •  Store.Form and Store.Field give read-only access.  Callers must not
//      mutate the returned values.
//
//------------------------------------------------------------------------------

package formdef

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yanizio/formpipe/internal/form"
)

// Slugs become request keys such as “email[confirm]”, so brackets and
// whitespace are not allowed.
var slugRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var check = validator.New()

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store holds parsed forms keyed by form ID and field ID.  Safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	forms  map[int64]*form.Form
	fields map[int64]*form.Field
	owner  map[int64]int64 // field ID → form ID

	known map[string]bool
	log   *zap.SugaredLogger
}

// New returns an empty Store.  When knownTypes is non-empty, fields whose
// type is not listed are accepted but logged as a warning so typos in YAML
// surface early.
func New(log *zap.SugaredLogger, knownTypes ...string) *Store {
	if log == nil {
		log = zap.S()
	}
	s := &Store{
		forms:  make(map[int64]*form.Form),
		fields: make(map[int64]*form.Field),
		owner:  make(map[int64]int64),
		log:    log,
	}
	if len(knownTypes) > 0 {
		s.known = make(map[string]bool, len(knownTypes))
		for _, t := range knownTypes {
			s.known[t] = true
		}
	}
	return s
}

// Form implements form.FormStore.
func (s *Store) Form(_ context.Context, id int64) (*form.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fm, ok := s.forms[id]
	if !ok {
		return nil, form.ErrFormNotFound
	}
	return fm, nil
}

// Field implements form.FormStore.
func (s *Store) Field(_ context.Context, id int64) (*form.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[id]
	if !ok {
		return nil, form.ErrFieldNotFound
	}
	return f, nil
}

// IDs lists the loaded form IDs in ascending order.
func (s *Store) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.forms))
	for id := range s.forms {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Add validates fm and installs it, replacing any form with the same ID.
// Field IDs must be unique across all forms in the store.
func (s *Store) Add(fm *form.Form) error {
	if err := validateForm(fm); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range fm.Fields {
		id := fm.Fields[i].ID
		if owner, taken := s.owner[id]; taken && owner != fm.ID {
			return fmt.Errorf("form %d: field id %d already used by form %d", fm.ID, id, owner)
		}
	}

	if old, ok := s.forms[fm.ID]; ok {
		for i := range old.Fields {
			delete(s.fields, old.Fields[i].ID)
			delete(s.owner, old.Fields[i].ID)
		}
	}
	s.forms[fm.ID] = fm
	for i := range fm.Fields {
		f := &fm.Fields[i]
		s.fields[f.ID] = f
		s.owner[f.ID] = fm.ID
		if s.known != nil && !s.known[f.Type] {
			s.log.Warnw("form field has unregistered type", "form", fm.ID, "field", f.Slug, "type", f.Type)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// LoadFile parses one YAML file and validates it.  It never touches a Store.
func LoadFile(path string) (*form.Form, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}

	var fm form.Form
	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", path, err)
	}
	if err := validateForm(&fm); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &fm, nil
}

// Load walks each base directory for “*.yaml” and “*.yml” files and adds
// every form found.  Directories are ordered by precedence, highest first.
// Missing directories are skipped.  It returns the number of forms added.
func (s *Store) Load(dirs ...string) (int, error) {
	if len(dirs) == 0 {
		return 0, errors.New("formdef: no directories provided")
	}

	seen := make(map[int64]string) // form ID → base dir that supplied it
	added := 0

	for _, base := range dirs {
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !isYAML(d.Name()) {
				return nil
			}

			fm, err := LoadFile(path)
			if err != nil {
				return err
			}
			if prev, dup := seen[fm.ID]; dup {
				if prev == base {
					return fmt.Errorf("%s: duplicate form id %d in %s", path, fm.ID, base)
				}
				s.log.Debugw("form shadowed by higher-precedence directory",
					"form", fm.ID, "file", path, "winner", prev)
				return nil
			}
			if err := s.Add(fm); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			seen[fm.ID] = base
			added++
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return added, err
		}
	}

	s.log.Infow("form definitions loaded", "forms", added, "dirs", dirs)
	return added, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

// validateForm runs the struct-tag rules and then the cross-field rules
// that tags cannot express.
func validateForm(fm *form.Form) error {
	if err := check.Struct(fm); err != nil {
		return fmt.Errorf("form %d: %w", fm.ID, err)
	}

	slugs := make(map[string]*form.Field, len(fm.Fields))
	ids := make(map[int64]struct{}, len(fm.Fields))
	for i := range fm.Fields {
		f := &fm.Fields[i]
		if !slugRe.MatchString(f.Slug) {
			return fmt.Errorf("form %d: field %d has invalid slug %q", fm.ID, f.ID, f.Slug)
		}
		if _, dup := slugs[f.Slug]; dup {
			return fmt.Errorf("form %d: duplicate field slug %q", fm.ID, f.Slug)
		}
		if _, dup := ids[f.ID]; dup {
			return fmt.Errorf("form %d: duplicate field id %d", fm.ID, f.ID)
		}
		slugs[f.Slug] = f
		ids[f.ID] = struct{}{}
	}

	if fm.Notify.FromType == form.FromField {
		f, ok := slugs[fm.Notify.FromField]
		if !ok {
			return fmt.Errorf("form %d: notifications.from_field %q is not a field", fm.ID, fm.Notify.FromField)
		}
		if f.Type != form.TypeEmail {
			return fmt.Errorf("form %d: notifications.from_field %q is %s, want email", fm.ID, f.Slug, f.Type)
		}
	}
	return nil
}
