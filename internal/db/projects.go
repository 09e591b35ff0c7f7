package db

import "fmt"

func projectID(p Project) string { return p.ID }

func (s *Store) Projects() ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[Project](s, KeyProjects)
}

func (s *Store) GetProject(id string) (*Project, error) {
	projects, err := s.Projects()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == id {
			return &projects[i], nil
		}
	}
	return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
}

func (s *Store) SaveProject(p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects, err := loadList[Project](s, KeyProjects)
	if err != nil {
		return err
	}
	if p.DefaultAgents == nil {
		p.DefaultAgents = []string{}
	}
	return s.store(KeyProjects, upsert(projects, p, projectID))
}

// DeleteProject removes a project. Its threads are kept.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects, err := loadList[Project](s, KeyProjects)
	if err != nil {
		return err
	}
	return s.store(KeyProjects, without(projects, func(p Project) bool { return p.ID == id }))
}
