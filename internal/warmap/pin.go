package warmap

import (
	"math/rand"
	"strings"
	"time"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

// UserAuthor marks nodes pinned from the user's own messages
const UserAuthor = "User"

// pinSpread bounds the random position of a pinned node
const pinSpread = 500.0

func provenanceOf(m db.Message) Provenance {
	author := UserAuthor
	if m.Role == db.RoleAgent {
		author = m.AgentID
	}
	return Provenance{
		Author:          author,
		SourceThreadID:  m.ThreadID,
		SourceMessageID: m.ID,
		Attachments:     m.Attachments,
	}
}

// PinMessage sends a chat message to the map as a node of type t in folderID,
// at a random spot in the top-left 500x500 area.
func PinMessage(store NodeStore, m db.Message, folderID string, t NodeType, now time.Time, r *rand.Rand) (db.Node, error) {
	if folderID == "" {
		folderID = db.GeneralFolderID
	}
	prov := provenanceOf(m)
	n := db.Node{
		ID:              db.NewID(),
		FolderID:        folderID,
		Type:            string(t),
		Content:         m.Content,
		X:               r.Float64() * pinSpread,
		Y:               r.Float64() * pinSpread,
		Width:           NodeWidth,
		Height:          NodeHeight,
		Author:          prov.Author,
		SourceThreadID:  prov.SourceThreadID,
		SourceMessageID: prov.SourceMessageID,
		Attachments:     prov.Attachments,
		Tags:            []string{},
		CreatedAt:       now.UnixMilli(),
		UpdatedAt:       now.UnixMilli(),
	}
	return n, store.SaveNode(n)
}

// NewFolder builds a folder; a blank name yields false
func NewFolder(name string, now time.Time) (db.Folder, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return db.Folder{}, false
	}
	return db.Folder{
		ID:        db.NewID(),
		Name:      name,
		Icon:      "📁",
		Color:     "#4f46e5",
		CreatedAt: now.UnixMilli(),
	}, true
}

// EditNode applies content/notes/type edits and bumps updatedAt. Nil fields
// are left alone.
func EditNode(n db.Node, content, notes *string, t *NodeType, now time.Time) db.Node {
	if content != nil {
		n.Content = *content
	}
	if notes != nil {
		n.Notes = *notes
	}
	if t != nil {
		n.Type = string(*t)
	}
	n.UpdatedAt = now.UnixMilli()
	return n
}
