// internal/form/errorstore.go
//
// Formpipe – Forms subsystem: last-errors cache.
//
// Context
//   After a failed submission the processor caches the whole field-error map
//   under the form ID so a re-rendered form can show messages next to each
//   input.  A new failure for the same form overwrites the entry.  A
//   successful submission leaves it untouched.
//
//   Entries live for the process lifetime, bounded by an LRU so a flood of
//   distinct form IDs cannot grow memory without limit.  When the store is
//   shared across requests the last write wins.
//
//------------------------------------------------------------------------------

package form

import (
	"sync"

	"github.com/yanizio/formpipe/internal/cache"
)

// DefaultErrorStoreSize is the number of forms NewErrorStore keeps.
const DefaultErrorStoreSize = 1024

// ErrorStore caches FormErrors by form ID.  Safe for concurrent use.
type ErrorStore struct {
	mu  sync.Mutex
	lru *cache.LRU[int64, FormErrors]
}

// NewErrorStore returns a store holding at most capacity forms.  A
// capacity below 1 selects DefaultErrorStoreSize.
func NewErrorStore(capacity int) *ErrorStore {
	if capacity < 1 {
		capacity = DefaultErrorStoreSize
	}
	return &ErrorStore{lru: cache.New[int64, FormErrors](capacity)}
}

// Set replaces the cached errors for formID.
func (s *ErrorStore) Set(formID int64, errs FormErrors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(formID, errs.clone())
}

// Get returns the cached errors for formID.  The boolean is false when no
// failure has been recorded.
func (s *ErrorStore) Get(formID int64) (FormErrors, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs, ok := s.lru.Get(formID)
	if !ok || len(errs) == 0 {
		return nil, false
	}
	return errs.clone(), true
}

// Field returns the cached errors for one field of formID.
func (s *ErrorStore) Field(formID int64, slug string) (Errors, bool) {
	errs, ok := s.Get(formID)
	if !ok {
		return nil, false
	}
	fe, ok := errs[slug]
	if !ok || len(fe) == 0 {
		return nil, false
	}
	return fe, true
}
