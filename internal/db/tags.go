package db

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// TagColors is the pastel palette new tags pick from
var TagColors = []string{"#fee2e2", "#dbeafe", "#dcfce7", "#fef9c3", "#f3e8ff", "#fce7f3", "#e0e7ff"}

// NewTag builds a tag with a random palette color. Blank names yield false.
func NewTag(name string, now time.Time) (Tag, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, false
	}
	return Tag{
		ID:        NewID(),
		Name:      name,
		Color:     TagColors[rand.Intn(len(TagColors))],
		CreatedAt: now.UnixMilli(),
	}, true
}

func tagID(t Tag) string { return t.ID }

// Tags returns all tags
func (s *Store) Tags() ([]Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[Tag](s, KeyTags)
}

// GetTag returns a tag by ID or, failing that, by case-insensitive name
func (s *Store) GetTag(ref string) (*Tag, error) {
	tags, err := s.Tags()
	if err != nil {
		return nil, err
	}
	for i := range tags {
		if tags[i].ID == ref {
			return &tags[i], nil
		}
	}
	for i := range tags {
		if strings.EqualFold(tags[i].Name, ref) {
			return &tags[i], nil
		}
	}
	return nil, fmt.Errorf("tag %s: %w", ref, ErrNotFound)
}

// SaveTag inserts or replaces a tag
func (s *Store) SaveTag(t Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags, err := loadList[Tag](s, KeyTags)
	if err != nil {
		return err
	}
	return s.store(KeyTags, upsert(tags, t, tagID))
}

// DeleteTag removes a tag and prunes it from every message
func (s *Store) DeleteTag(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags, err := loadList[Tag](s, KeyTags)
	if err != nil {
		return err
	}
	tags = without(tags, func(t Tag) bool { return t.ID == id })
	if err := s.store(KeyTags, tags); err != nil {
		return err
	}

	messages, err := s.loadMessages()
	if err != nil {
		return err
	}
	for i := range messages {
		if messages[i].TagIDs != nil {
			messages[i].TagIDs = without(messages[i].TagIDs, func(t string) bool { return t == id })
		}
	}
	return s.store(KeyMessages, messages)
}
