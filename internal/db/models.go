package db

import (
	"path/filepath"
	"strings"
)

// Field names follow the browser app's localStorage layout so dumps import as-is.

// Role of a message author
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Mode of a message
type Mode string

const (
	ModeNote    Mode = "note"
	ModeSingle  Mode = "single"
	ModeCouncil Mode = "council"
)

// Thread is one conversation
type Thread struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	ProjectID          string   `json:"projectId,omitempty"`
	ContactID          string   `json:"contactId,omitempty"`
	Tags               []string `json:"tags"`
	CreatedAt          int64    `json:"createdAt"`      // Unix millis
	LastActivityAt     int64    `json:"lastActivityAt"` // Unix millis
	IsArchived         bool     `json:"isArchived,omitempty"`
	AutoTitleSuggested bool     `json:"autoTitleSuggested,omitempty"`
}

// Attachment is a file sent along with a message or pinned on a map node
type Attachment struct {
	ID       string `json:"id"`
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"` // MIME type
	Filename string `json:"filename"`
	Base64   string `json:"base64,omitempty"`
}

// Message is one chat entry. Only TagIDs and the two flags change after creation.
type Message struct {
	ID           string       `json:"id"`
	ThreadID     string       `json:"threadId"`
	Role         Role         `json:"role"`
	Mode         Mode         `json:"mode"`
	AgentID      string       `json:"agentId,omitempty"`
	Content      string       `json:"content"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	TagIDs       []string     `json:"tagIds,omitempty"`
	CreatedAt    int64        `json:"createdAt"` // Unix millis
	IsFavorite   bool         `json:"isFavorite,omitempty"`
	IsActionPlan bool         `json:"isActionPlan,omitempty"`
}

// HasTag reports whether tagID is on the message
func (m *Message) HasTag(tagID string) bool {
	for _, id := range m.TagIDs {
		if id == tagID {
			return true
		}
	}
	return false
}

// Tag is a user-defined label for messages
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	CreatedAt int64  `json:"createdAt"`
}

// Project groups threads and carries default advisors
type Project struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	DefaultAgents []string `json:"defaultAgents"`
	CreatedAt     int64    `json:"createdAt"`
}

// Folder groups war-map nodes
type Folder struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Color     string `json:"color"`
	CreatedAt int64  `json:"createdAt"`
}

// Node is a card on the war map
type Node struct {
	ID              string       `json:"id"`
	FolderID        string       `json:"folderId"`
	Type            string       `json:"type"` // insight, tensao, pergunta, decisao, acao, evidencia, anexo
	Content         string       `json:"content"`
	Notes           string       `json:"notes"`
	X               float64      `json:"x"`
	Y               float64      `json:"y"`
	Width           float64      `json:"width"`
	Height          float64      `json:"height"`
	Author          string       `json:"author,omitempty"`
	SourceThreadID  string       `json:"sourceThreadId,omitempty"`
	SourceMessageID string       `json:"sourceMessageId,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	Tags            []string     `json:"tags"`
	CreatedAt       int64        `json:"createdAt"` // Unix millis
	UpdatedAt       int64        `json:"updatedAt"` // Unix millis
}

// Connection links two war-map nodes. Direction carries no meaning.
type Connection struct {
	ID     string `json:"id"`
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
}

// Touches reports whether the connection references nodeID at either end
func (c Connection) Touches(nodeID string) bool {
	return c.FromID == nodeID || c.ToID == nodeID
}

// UserProfile is the singleton profile of the person using the app
type UserProfile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"` // data URI
}

// AgentCustom holds per-persona overrides
type AgentCustom struct {
	Avatar string `json:"avatar,omitempty"`
}

// NormalizeMIME maps the legacy attachment categories ("image", "audio",
// "pdf") to MIME types. Values that already look like a MIME type pass through.
func NormalizeMIME(fileType, filename string) string {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	if strings.Contains(ft, "/") {
		return ft
	}
	switch ft {
	case "image":
		if strings.EqualFold(filepath.Ext(filename), ".png") {
			return "image/png"
		}
		return "image/jpeg"
	case "audio":
		return "audio/webm"
	default:
		return "application/pdf"
	}
}

func normalizeAttachments(atts []Attachment) {
	for i := range atts {
		atts[i].FileType = NormalizeMIME(atts[i].FileType, atts[i].Filename)
	}
}
