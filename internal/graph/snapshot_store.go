package graph

import "github.com/NCDesigner/QG-Estrat-gico/internal/db"

// titleLen bounds node titles derived from content
const titleLen = 60

// FromNodes builds a snapshot from store records
func FromNodes(nodes []db.Node, conns []db.Connection) *GraphSnapshot {
	infos := make([]*NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		infos = append(infos, &NodeInfo{
			ID:        n.ID,
			Title:     TitleFromContent(n.Content, titleLen),
			NodeType:  n.Type,
			FolderID:  n.FolderID,
			Author:    n.Author,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		})
	}
	edges := make([]EdgeInfo, 0, len(conns))
	for _, c := range conns {
		edges = append(edges, EdgeInfo{ID: c.ID, Source: c.FromID, Target: c.ToID})
	}
	return NewSnapshot(infos, edges)
}

// SnapshotFromStore loads the map, or one folder of it when folderID is set
func SnapshotFromStore(s *db.Store, folderID string) (*GraphSnapshot, error) {
	var nodes []db.Node
	var err error
	if folderID == "" {
		nodes, err = s.Nodes()
	} else {
		nodes, err = s.NodesInFolder(folderID)
	}
	if err != nil {
		return nil, err
	}
	conns, err := s.Connections()
	if err != nil {
		return nil, err
	}
	return FromNodes(nodes, conns), nil
}
