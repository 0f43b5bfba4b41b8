package notifications

import "sync"

// Store is the ordered notification collection backing the inbox and the
// badge count. Records are kept newest-first: realtime arrivals are upserted
// at the front, a bulk fetch replaces the whole collection. IDs are unique
// within the collection; a redelivered event id updates the existing record
// in place instead of duplicating it.
type Store struct {
	lock     sync.RWMutex
	records  []Notification
	onChange func()
}

type StoreOption func(*Store)

// WithOnChange registers a callback fired after every mutation, typically the
// UI badge invalidation hook.
func WithOnChange(fn func()) StoreOption {
	return func(s *Store) {
		s.onChange = fn
	}
}

func NewStore(options ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// ReplaceAll swaps in the result of a bulk fetch, discarding the current
// collection.
func (s *Store) ReplaceAll(records []Notification) {
	s.lock.Lock()
	s.records = make([]Notification, len(records))
	copy(s.records, records)
	s.lock.Unlock()
	s.changed()
}

// Upsert inserts a realtime arrival at the front. When the id is already
// present the existing record is replaced in place, keeping its position and
// leaving the collection free of duplicates under at-least-once delivery.
func (s *Store) Upsert(record Notification) {
	s.lock.Lock()
	replaced := false
	for i := range s.records {
		if s.records[i].ID == record.ID {
			s.records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		s.records = append([]Notification{record}, s.records...)
	}
	s.lock.Unlock()
	s.changed()
}

// MarkRead sets read on the given id. Marking an already-read notification is
// a no-op; an unknown id is ignored.
func (s *Store) MarkRead(id string) {
	s.lock.Lock()
	mutated := false
	for i := range s.records {
		if s.records[i].ID == id && !s.records[i].Read {
			s.records[i].Read = true
			mutated = true
			break
		}
	}
	s.lock.Unlock()
	if mutated {
		s.changed()
	}
}

func (s *Store) MarkAllRead() {
	s.lock.Lock()
	mutated := false
	for i := range s.records {
		if !s.records[i].Read {
			s.records[i].Read = true
			mutated = true
		}
	}
	s.lock.Unlock()
	if mutated {
		s.changed()
	}
}

// UnreadCount is the badge value: the count of records with read == false.
func (s *Store) UnreadCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	count := 0
	for i := range s.records {
		if !s.records[i].Read {
			count++
		}
	}
	return count
}

// List returns a copy of the collection, newest first.
func (s *Store) List() []Notification {
	s.lock.RLock()
	defer s.lock.RUnlock()
	records := make([]Notification, len(s.records))
	copy(records, s.records)
	return records
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
