package db

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

func threadID(t Thread) string { return t.ID }

// NewThread builds an unsaved thread opened at now
func NewThread(title, contactID, projectID string, now time.Time) Thread {
	ms := now.UnixMilli()
	return Thread{
		ID:             NewID(),
		Title:          title,
		ContactID:      contactID,
		ProjectID:      projectID,
		Tags:           []string{},
		CreatedAt:      ms,
		LastActivityAt: ms,
	}
}

// Threads returns all threads, most recently active first
func (s *Store) Threads() ([]Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	threads, err := loadList[Thread](s, KeyThreads)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastActivityAt > threads[j].LastActivityAt
	})
	return threads, nil
}

// GetThread returns a single thread by ID
func (s *Store) GetThread(id string) (*Thread, error) {
	threads, err := s.Threads()
	if err != nil {
		return nil, err
	}
	for i := range threads {
		if threads[i].ID == id {
			return &threads[i], nil
		}
	}
	return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
}

// SearchThreadsByIDPrefix finds threads whose ID starts with the given prefix
func (s *Store) SearchThreadsByIDPrefix(prefix string, limit int) ([]Thread, error) {
	threads, err := s.Threads()
	if err != nil {
		return nil, err
	}
	var out []Thread
	for _, t := range threads {
		if strings.HasPrefix(t.ID, prefix) {
			out = append(out, t)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// SearchThreadsByTitle returns threads whose title contains query (case-insensitive)
func (s *Store) SearchThreadsByTitle(query string) ([]Thread, error) {
	threads, err := s.Threads()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []Thread
	for _, t := range threads {
		if strings.Contains(strings.ToLower(t.Title), q) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ThreadsForContact returns the threads opened with a contact, most recently
// active first
func (s *Store) ThreadsForContact(contactID string) ([]Thread, error) {
	threads, err := s.Threads()
	if err != nil {
		return nil, err
	}
	return without(threads, func(t Thread) bool { return t.ContactID != contactID }), nil
}

// LatestThreadForContact returns the most recently active thread opened with a
// contact outside any project, or nil.
func (s *Store) LatestThreadForContact(contactID string) (*Thread, error) {
	threads, err := s.Threads()
	if err != nil {
		return nil, err
	}
	for i := range threads {
		if threads[i].ContactID == contactID && threads[i].ProjectID == "" {
			return &threads[i], nil
		}
	}
	return nil, nil
}

// SaveThread inserts or replaces a thread. Nil Tags are stored as [] so the
// browser reads an array; the thread reads back with an empty, non-nil slice.
func (s *Store) SaveThread(t Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	threads, err := loadList[Thread](s, KeyThreads)
	if err != nil {
		return err
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return s.store(KeyThreads, upsert(threads, t, threadID))
}

// TouchThread sets a thread's lastActivityAt
func (s *Store) TouchThread(id string, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	threads, err := loadList[Thread](s, KeyThreads)
	if err != nil {
		return err
	}
	for i := range threads {
		if threads[i].ID == id {
			threads[i].LastActivityAt = at
			return s.store(KeyThreads, threads)
		}
	}
	return fmt.Errorf("thread %s: %w", id, ErrNotFound)
}

// DeleteThread removes a thread and every message in it
func (s *Store) DeleteThread(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	threads, err := loadList[Thread](s, KeyThreads)
	if err != nil {
		return err
	}
	threads = without(threads, func(t Thread) bool { return t.ID == id })
	if err := s.store(KeyThreads, threads); err != nil {
		return err
	}

	messages, err := loadList[Message](s, KeyMessages)
	if err != nil {
		return err
	}
	messages = without(messages, func(m Message) bool { return m.ThreadID == id })
	return s.store(KeyMessages, messages)
}
