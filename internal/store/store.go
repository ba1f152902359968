// Package store owns the ordered subscription list and the "currently
// selected" cursor. It is the single source of truth for what is selected;
// every public operation leaves the cursor valid (0 <= cursor < len when the
// list is non-empty, 0 when it is empty).
package store

import (
	"log/slog"
	"sync"

	"podradio/internal/domain"
)

// Storage persists the subscription list and cursor. Load is called once at
// construction, Save after every mutating operation. A missing backing file
// must load as an empty store, not an error.
type Storage interface {
	Load() ([]domain.Subscription, int, error)
	Save(subs []domain.Subscription, currentIndex int) error
}

// Store is safe for concurrent use; every session thread reaches it through
// its own dispatcher call. Compound read-modify-write operations (Next,
// Previous, Add, Remove) are atomic under one mutex. Persistence writes go
// to local storage and happen under the same mutex so saves can never be
// reordered against the mutations that produced them.
type Store struct {
	mu      sync.Mutex
	subs    []domain.Subscription
	current int

	storage Storage
	logger  *slog.Logger
}

func New(storage Storage, logger *slog.Logger) (*Store, error) {
	s := &Store{storage: storage, logger: logger}

	if storage != nil {
		subs, current, err := storage.Load()
		if err != nil {
			return nil, err
		}
		s.subs = subs
		s.current = current
		s.clampCursor()
	}

	return s, nil
}

// Add appends a new subscription. Name and feed URL must be non-empty and
// unique within the store; on rejection the store is left untouched.
func (s *Store) Add(name, feedURL, description string) (domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" || feedURL == "" {
		return domain.Subscription{}, domain.NewCommandError(domain.CodeBadRequest, "Name and URL must not be empty")
	}
	for _, sub := range s.subs {
		if sub.Name == name || sub.FeedURL == feedURL {
			return domain.Subscription{}, domain.NewCommandError(domain.CodeDuplicate, "Podcast with this name or URL already exists")
		}
	}

	sub := domain.NewSubscription(name, feedURL, description)
	s.subs = append(s.subs, sub)
	if len(s.subs) == 1 {
		s.current = 0
	}
	s.persistLocked()

	return sub, nil
}

// Remove deletes the first subscription matching identifier by name, feed URL
// or ID, and repairs the cursor so the selection stays valid.
func (s *Store) Remove(identifier string) (domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(identifier)
	if idx < 0 {
		return domain.Subscription{}, domain.NewCommandError(domain.CodeNotFound, "Failed to remove podcast: not found")
	}

	removed := s.subs[idx]
	s.subs = append(s.subs[:idx], s.subs[idx+1:]...)

	if s.current >= len(s.subs) {
		if len(s.subs) == 0 {
			s.current = 0
		} else {
			s.current = len(s.subs) - 1
		}
	} else if s.current > idx {
		s.current--
	}
	s.clampCursor()
	s.persistLocked()

	return removed, nil
}

// Current returns the selected subscription, or false if the store is empty.
func (s *Store) Current() (domain.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subs) == 0 {
		return domain.Subscription{}, false
	}
	return s.subs[s.current], true
}

// Next advances the cursor circularly and returns the new selection.
func (s *Store) Next() (domain.Subscription, bool) {
	return s.step(1)
}

// Previous moves the cursor back circularly and returns the new selection.
func (s *Store) Previous() (domain.Subscription, bool) {
	return s.step(-1)
}

func (s *Store) step(delta int) (domain.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subs) == 0 {
		return domain.Subscription{}, false
	}
	s.current = (s.current + delta + len(s.subs)) % len(s.subs)
	s.persistLocked()
	return s.subs[s.current], true
}

// Select moves the cursor to the subscription matching identifier.
func (s *Store) Select(identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(identifier)
	if idx < 0 {
		return domain.NewCommandError(domain.CodeNotFound, "Podcast not found: "+identifier)
	}
	s.current = idx
	s.persistLocked()
	return nil
}

// List returns a snapshot copy of the subscriptions in navigation order.
// Mutating the returned slice does not affect the store.
func (s *Store) List() []domain.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Subscription, len(s.subs))
	copy(out, s.subs)
	return out
}

// Snapshot returns a copy of the subscriptions and the cursor as observed
// at the same instant, so callers can render both without a torn read.
func (s *Store) Snapshot() ([]domain.Subscription, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Subscription, len(s.subs))
	copy(out, s.subs)
	return out, s.current
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// findLocked scans in insertion order; first match by name, feed URL or ID wins.
func (s *Store) findLocked(identifier string) int {
	for i, sub := range s.subs {
		if sub.Name == identifier || sub.FeedURL == identifier || sub.ID == identifier {
			return i
		}
	}
	return -1
}

func (s *Store) clampCursor() {
	switch {
	case len(s.subs) == 0:
		s.current = 0
	case s.current < 0:
		s.current = 0
	case s.current >= len(s.subs):
		s.current = len(s.subs) - 1
	}
}

// persistLocked saves the current state. Persistence failures are logged and
// otherwise ignored so a full disk never breaks navigation.
func (s *Store) persistLocked() {
	if s.storage == nil {
		return
	}
	snapshot := make([]domain.Subscription, len(s.subs))
	copy(snapshot, s.subs)
	if err := s.storage.Save(snapshot, s.current); err != nil && s.logger != nil {
		s.logger.Error("store_save_failed", slog.String("error", err.Error()))
	}
}
