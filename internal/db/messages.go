package db

import (
	"fmt"
	"sort"
)

func messageID(m Message) string { return m.ID }

func (s *Store) loadMessages() ([]Message, error) {
	messages, err := loadList[Message](s, KeyMessages)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		normalizeAttachments(messages[i].Attachments)
	}
	return messages, nil
}

// Messages returns every stored message in insertion order
func (s *Store) Messages() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMessages()
}

// MessagesByThread returns a thread's messages ordered by createdAt ascending
func (s *Store) MessagesByThread(threadID string) ([]Message, error) {
	all, err := s.Messages()
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, m := range all {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// MessagesByTag returns messages carrying tagID, newest first
func (s *Store) MessagesByTag(tagID string) ([]Message, error) {
	all, err := s.Messages()
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, m := range all {
		if m.HasTag(tagID) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// GetMessage returns a single message by ID
func (s *Store) GetMessage(id string) (*Message, error) {
	all, err := s.Messages()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
}

// SaveMessage inserts or replaces a message
func (s *Store) SaveMessage(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages, err := s.loadMessages()
	if err != nil {
		return err
	}
	return s.store(KeyMessages, upsert(messages, m, messageID))
}

// UpdateMessage replaces an existing message. It reports false, and writes
// nothing, when no message has that ID.
func (s *Store) UpdateMessage(m Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages, err := s.loadMessages()
	if err != nil {
		return false, err
	}
	for i := range messages {
		if messages[i].ID == m.ID {
			messages[i] = m
			return true, s.store(KeyMessages, messages)
		}
	}
	return false, nil
}

// ToggleMessageTag adds tagID to the message, or removes it when present
func (s *Store) ToggleMessageTag(messageID, tagID string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages, err := s.loadMessages()
	if err != nil {
		return nil, err
	}
	for i := range messages {
		m := &messages[i]
		if m.ID != messageID {
			continue
		}
		if m.HasTag(tagID) {
			m.TagIDs = without(m.TagIDs, func(id string) bool { return id == tagID })
		} else {
			m.TagIDs = append(m.TagIDs, tagID)
		}
		if err := s.store(KeyMessages, messages); err != nil {
			return nil, err
		}
		out := *m
		return &out, nil
	}
	return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
}

// ToggleFavorite flips a message's favorite flag
func (s *Store) ToggleFavorite(messageID string) (*Message, error) {
	m, err := s.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	m.IsFavorite = !m.IsFavorite
	if _, err := s.UpdateMessage(*m); err != nil {
		return nil, err
	}
	return m, nil
}
