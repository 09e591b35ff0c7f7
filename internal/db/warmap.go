package db

import (
	"fmt"
	"strings"
	"time"
)

// GeneralFolderID is the default folder. It always exists and cannot be deleted.
const GeneralFolderID = "general"

func defaultFolder(now time.Time) Folder {
	return Folder{ID: GeneralFolderID, Name: "Geral", Icon: "📂", Color: "#4f46e5", CreatedAt: now.UnixMilli()}
}

func folderID(f Folder) string { return f.ID }
func nodeID(n Node) string     { return n.ID }

// loadFolders reads the folder list, writing the default folder first when absent.
func (s *Store) loadFolders() ([]Folder, error) {
	folders, err := loadList[Folder](s, KeyFolders)
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		if f.ID == GeneralFolderID {
			return folders, nil
		}
	}
	folders = append([]Folder{defaultFolder(time.Now())}, folders...)
	if err := s.store(KeyFolders, folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// Folders returns all folders, materializing the default one
func (s *Store) Folders() ([]Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFolders()
}

// GetFolder returns a folder by ID or, failing that, by case-insensitive name
func (s *Store) GetFolder(ref string) (*Folder, error) {
	folders, err := s.Folders()
	if err != nil {
		return nil, err
	}
	for i := range folders {
		if folders[i].ID == ref {
			return &folders[i], nil
		}
	}
	for i := range folders {
		if strings.EqualFold(folders[i].Name, ref) {
			return &folders[i], nil
		}
	}
	return nil, fmt.Errorf("folder %s: %w", ref, ErrNotFound)
}

// SaveFolder inserts or replaces a folder
func (s *Store) SaveFolder(f Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folders, err := s.loadFolders()
	if err != nil {
		return err
	}
	return s.store(KeyFolders, upsert(folders, f, folderID))
}

// DeleteFolder removes a folder and moves its nodes to the general folder.
// Deleting the general folder does nothing.
func (s *Store) DeleteFolder(id string) error {
	if id == GeneralFolderID {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	folders, err := s.loadFolders()
	if err != nil {
		return err
	}
	folders = without(folders, func(f Folder) bool { return f.ID == id })
	if err := s.store(KeyFolders, folders); err != nil {
		return err
	}

	nodes, err := s.loadNodes()
	if err != nil {
		return err
	}
	for i := range nodes {
		if nodes[i].FolderID == id {
			nodes[i].FolderID = GeneralFolderID
		}
	}
	return s.store(KeyNodes, nodes)
}

func (s *Store) loadNodes() ([]Node, error) {
	nodes, err := loadList[Node](s, KeyNodes)
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		normalizeAttachments(nodes[i].Attachments)
	}
	return nodes, nil
}

// Nodes returns every war-map node
func (s *Store) Nodes() ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadNodes()
}

// NodesInFolder returns the nodes placed in one folder
func (s *Store) NodesInFolder(folderID string) ([]Node, error) {
	nodes, err := s.Nodes()
	if err != nil {
		return nil, err
	}
	var out []Node
	for _, n := range nodes {
		if n.FolderID == folderID {
			out = append(out, n)
		}
	}
	return out, nil
}

// GetNode returns a single node by ID
func (s *Store) GetNode(id string) (*Node, error) {
	nodes, err := s.Nodes()
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i], nil
		}
	}
	return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
}

// SearchNodesByIDPrefix finds nodes whose ID starts with the given prefix
func (s *Store) SearchNodesByIDPrefix(prefix string, limit int) ([]Node, error) {
	nodes, err := s.Nodes()
	if err != nil {
		return nil, err
	}
	var out []Node
	for _, n := range nodes {
		if strings.HasPrefix(n.ID, prefix) {
			out = append(out, n)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// SaveNode inserts or replaces a node. Nil Tags are stored as [] and read back
// as an empty, non-nil slice.
func (s *Store) SaveNode(n Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, err := s.loadNodes()
	if err != nil {
		return err
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return s.store(KeyNodes, upsert(nodes, n, nodeID))
}

// DeleteNode removes a node and every connection touching it
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, err := s.loadNodes()
	if err != nil {
		return err
	}
	nodes = without(nodes, func(n Node) bool { return n.ID == id })
	if err := s.store(KeyNodes, nodes); err != nil {
		return err
	}

	conns, err := loadList[Connection](s, KeyConnections)
	if err != nil {
		return err
	}
	conns = without(conns, func(c Connection) bool { return c.Touches(id) })
	return s.store(KeyConnections, conns)
}

// Connections returns every link between nodes
func (s *Store) Connections() ([]Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[Connection](s, KeyConnections)
}

// SaveConnection appends a connection. Duplicates are allowed.
func (s *Store) SaveConnection(c Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns, err := loadList[Connection](s, KeyConnections)
	if err != nil {
		return err
	}
	return s.store(KeyConnections, append(conns, c))
}

// DeleteConnection removes a connection by ID
func (s *Store) DeleteConnection(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns, err := loadList[Connection](s, KeyConnections)
	if err != nil {
		return err
	}
	return s.store(KeyConnections, without(conns, func(c Connection) bool { return c.ID == id }))
}

// ConnectionsForNode returns connections with nodeID at either end
func (s *Store) ConnectionsForNode(nodeID string) ([]Connection, error) {
	conns, err := s.Connections()
	if err != nil {
		return nil, err
	}
	var out []Connection
	for _, c := range conns {
		if c.Touches(nodeID) {
			out = append(out, c)
		}
	}
	return out, nil
}
