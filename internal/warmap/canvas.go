package warmap

import (
	"fmt"
	"math"
	"time"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

const (
	MinZoom = 0.2
	MaxZoom = 3.0
	// ZoomStep converts one unit of wheel delta into zoom
	ZoomStep = 0.001

	NodeWidth  = 280.0
	NodeHeight = 180.0
)

// NodeStore is what the canvas persists through
type NodeStore interface {
	SaveNode(n db.Node) error
	SaveConnection(c db.Connection) error
}

// Viewport maps screen coordinates to world coordinates:
// world = (screen - pan) / zoom
type Viewport struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Zoom    float64 `json:"zoom"`
	ScreenW float64 `json:"screenW"`
	ScreenH float64 `json:"screenH"`
}

// DefaultViewport is unpanned, unzoomed, on a 1280x800 screen
func DefaultViewport() Viewport {
	return Viewport{Zoom: 1, ScreenW: 1280, ScreenH: 800}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Wheel applies a scroll delta. Scrolling down (positive delta) zooms out.
func (v *Viewport) Wheel(deltaY float64) {
	if v.Zoom == 0 {
		v.Zoom = 1
	}
	v.Zoom = clamp(v.Zoom-deltaY*ZoomStep, MinZoom, MaxZoom)
}

// Pan moves the viewport by a screen-space delta
func (v *Viewport) Pan(dx, dy float64) {
	v.X += dx
	v.Y += dy
}

// Center returns the world coordinates under the middle of the screen
func (v Viewport) Center() (float64, float64) {
	zoom := v.Zoom
	if zoom == 0 {
		zoom = 1
	}
	return (v.ScreenW/2 - v.X) / zoom, (v.ScreenH/2 - v.Y) / zoom
}

// Provenance records where a node's content came from
type Provenance struct {
	Author          string
	SourceThreadID  string
	SourceMessageID string
	Attachments     []db.Attachment
}

// Canvas is the interactive state of one folder of the map: the viewport,
// what is being dragged, and a pending link.
type Canvas struct {
	FolderID string
	View     Viewport
	Selected string

	store       NodeStore
	nodes       []db.Node
	grabbed     string // node id being dragged
	panning     bool
	pendingLink string
	now         func() time.Time
}

// NewCanvas opens folderID with its current nodes
func NewCanvas(store NodeStore, folderID string, nodes []db.Node) *Canvas {
	if folderID == "" {
		folderID = db.GeneralFolderID
	}
	c := &Canvas{
		FolderID: folderID,
		View:     DefaultViewport(),
		store:    store,
		now:      time.Now,
	}
	c.load(nodes)
	return c
}

func (c *Canvas) load(nodes []db.Node) {
	c.nodes = c.nodes[:0]
	for _, n := range nodes {
		if n.FolderID == c.FolderID {
			c.nodes = append(c.nodes, n)
		}
	}
}

// SwitchFolder shows another folder; drag and link state are dropped
func (c *Canvas) SwitchFolder(folderID string, nodes []db.Node) {
	c.FolderID = folderID
	c.grabbed, c.panning, c.pendingLink, c.Selected = "", false, "", ""
	c.load(nodes)
}

// Nodes returns the nodes of the active folder, with unsaved drag positions
func (c *Canvas) Nodes() []db.Node {
	return append([]db.Node(nil), c.nodes...)
}

func (c *Canvas) find(id string) *db.Node {
	for i := range c.nodes {
		if c.nodes[i].ID == id {
			return &c.nodes[i]
		}
	}
	return nil
}

// Grab starts a drag. An empty id (or one not on this canvas) grabs the
// background, which pans; a node id moves that node and selects it.
func (c *Canvas) Grab(nodeID string) {
	if n := c.find(nodeID); n != nil {
		c.grabbed = n.ID
		c.panning = false
		c.Selected = n.ID
		return
	}
	c.grabbed = ""
	c.panning = true
}

// Dragging reports the grabbed node id, or "" while panning or idle
func (c *Canvas) Dragging() string { return c.grabbed }

// Move applies a screen-space mouse delta to whatever was grabbed
func (c *Canvas) Move(dx, dy float64) {
	switch {
	case c.grabbed != "":
		n := c.find(c.grabbed)
		if n == nil {
			return
		}
		zoom := c.View.Zoom
		if zoom == 0 {
			zoom = 1
		}
		n.X += dx / zoom
		n.Y += dy / zoom
	case c.panning:
		c.View.Pan(dx, dy)
	}
}

// Release ends a drag. A dragged node is persisted and returned.
func (c *Canvas) Release() (*db.Node, error) {
	id := c.grabbed
	c.grabbed, c.panning = "", false
	if id == "" {
		return nil, nil
	}
	n := c.find(id)
	if n == nil {
		return nil, nil
	}
	if err := c.store.SaveNode(*n); err != nil {
		return nil, fmt.Errorf("saving node position: %w", err)
	}
	out := *n
	return &out, nil
}

// CreateNode adds a default-size node centered in the viewport
func (c *Canvas) CreateNode(t NodeType, content, notes string, prov Provenance) (db.Node, error) {
	x, y := c.View.Center()
	now := c.now().UnixMilli()
	n := db.Node{
		ID:              db.NewID(),
		FolderID:        c.FolderID,
		Type:            string(t),
		Content:         content,
		Notes:           notes,
		X:               x - NodeWidth/2,
		Y:               y - NodeHeight/2,
		Width:           NodeWidth,
		Height:          NodeHeight,
		Author:          prov.Author,
		SourceThreadID:  prov.SourceThreadID,
		SourceMessageID: prov.SourceMessageID,
		Attachments:     prov.Attachments,
		Tags:            []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.store.SaveNode(n); err != nil {
		return db.Node{}, err
	}
	c.nodes = append(c.nodes, n)
	c.Selected = n.ID
	return n, nil
}

// ImportMessage places a tagged chat message on the canvas as an insight
func (c *Canvas) ImportMessage(m db.Message) (db.Node, error) {
	return c.CreateNode(TypeInsight, m.Content, "", provenanceOf(m))
}

// StartLink arms nodeID as the source of the next link
func (c *Canvas) StartLink(nodeID string) {
	if c.find(nodeID) != nil {
		c.pendingLink = nodeID
	}
}

// PendingLink is the armed link source, or ""
func (c *Canvas) PendingLink() string { return c.pendingLink }

// CancelLink disarms a pending link
func (c *Canvas) CancelLink() { c.pendingLink = "" }

// Click handles a click on a node. With a link armed from another node it
// creates the connection (duplicates included) and disarms; otherwise it
// selects the node.
func (c *Canvas) Click(nodeID string) (*db.Connection, error) {
	if c.find(nodeID) == nil {
		return nil, nil
	}
	if c.pendingLink == "" || c.pendingLink == nodeID {
		c.Selected = nodeID
		return nil, nil
	}
	conn := db.Connection{ID: db.NewID(), FromID: c.pendingLink, ToID: nodeID}
	if err := c.store.SaveConnection(conn); err != nil {
		return nil, fmt.Errorf("saving connection: %w", err)
	}
	c.pendingLink = ""
	return &conn, nil
}
