package db

import "fmt"

// DefaultUserName is the profile name used before the user sets one
const DefaultUserName = "Diretora Nath"

// UserProfile returns the stored profile, or the default one
func (s *Store) UserProfile() (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := UserProfile{Name: DefaultUserName}
	if _, err := s.loadInto(KeyUserProfile, &p); err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

// SaveUserProfile replaces the profile
func (s *Store) SaveUserProfile(p UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(KeyUserProfile, p)
}

// AgentCustoms returns per-persona overrides keyed by persona ID
func (s *Store) AgentCustoms() (map[string]AgentCustom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCustoms()
}

func (s *Store) loadCustoms() (map[string]AgentCustom, error) {
	customs := map[string]AgentCustom{}
	if _, err := s.loadInto(KeyAgentCustoms, &customs); err != nil {
		return nil, err
	}
	if customs == nil {
		customs = map[string]AgentCustom{}
	}
	return customs, nil
}

// SaveAgentCustom merges custom into the persona's stored overrides.
// Empty fields keep their previous value.
func (s *Store) SaveAgentCustom(personaID string, custom AgentCustom) error {
	if personaID == "" {
		return fmt.Errorf("persona id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	customs, err := s.loadCustoms()
	if err != nil {
		return err
	}
	merged := customs[personaID]
	if custom.Avatar != "" {
		merged.Avatar = custom.Avatar
	}
	customs[personaID] = merged
	return s.store(KeyAgentCustoms, customs)
}
