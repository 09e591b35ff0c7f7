package api

import (
	"github.com/valyala/fasthttp"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/graph"
	"github.com/NCDesigner/QG-Estrat-gico/internal/warmap"
)

func (s *Server) listFolders(ctx *fasthttp.RequestCtx) {
	folders, err := s.store.Folders()
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, folders)
}

func (s *Server) createFolder(ctx *fasthttp.RequestCtx) {
	var req struct {
		Name  string `json:"name"`
		Icon  string `json:"icon"`
		Color string `json:"color"`
	}
	if !decode(ctx, &req) {
		return
	}
	f, ok := warmap.NewFolder(req.Name, s.now())
	if !ok {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "folder name cannot be blank")
		return
	}
	if req.Icon != "" {
		f.Icon = req.Icon
	}
	if req.Color != "" {
		f.Color = req.Color
	}
	if err := s.store.SaveFolder(f); err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusCreated, f)
}

func (s *Server) deleteFolder(ctx *fasthttp.RequestCtx) {
	if err := s.store.DeleteFolder(Param(ctx, "id")); err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) listNodes(ctx *fasthttp.RequestCtx) {
	var nodes []db.Node
	var err error
	if folder := string(ctx.QueryArgs().Peek("folder")); folder != "" {
		nodes, err = s.store.NodesInFolder(folder)
	} else {
		nodes, err = s.store.Nodes()
	}
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, nodes)
}

type nodeRequest struct {
	FolderID *string   `json:"folderId"`
	Type     *string   `json:"type"`
	Content  *string   `json:"content"`
	Notes    *string   `json:"notes"`
	X        *float64  `json:"x"`
	Y        *float64  `json:"y"`
	Width    *float64  `json:"width"`
	Height   *float64  `json:"height"`
	Tags     *[]string `json:"tags"`
}

func (r nodeRequest) nodeType() (*warmap.NodeType, error) {
	if r.Type == nil {
		return nil, nil
	}
	t, err := warmap.ParseNodeType(*r.Type)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// place applies geometry and folder changes, which do not count as edits
func (r nodeRequest) place(n *db.Node) {
	if r.FolderID != nil && *r.FolderID != "" {
		n.FolderID = *r.FolderID
	}
	if r.X != nil {
		n.X = *r.X
	}
	if r.Y != nil {
		n.Y = *r.Y
	}
	if r.Width != nil && *r.Width > 0 {
		n.Width = *r.Width
	}
	if r.Height != nil && *r.Height > 0 {
		n.Height = *r.Height
	}
	if r.Tags != nil {
		n.Tags = *r.Tags
	}
}

func (s *Server) createNode(ctx *fasthttp.RequestCtx) {
	var req nodeRequest
	if !decode(ctx, &req) {
		return
	}
	t, err := req.nodeType()
	if err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	typ := warmap.TypeInsight
	if t != nil {
		typ = *t
	}
	folder := ""
	if req.FolderID != nil {
		folder = *req.FolderID
	}
	var content, notes string
	if req.Content != nil {
		content = *req.Content
	}
	if req.Notes != nil {
		notes = *req.Notes
	}

	canvas := warmap.NewCanvas(s.store, folder, nil)
	n, err := canvas.CreateNode(typ, content, notes, warmap.Provenance{Author: warmap.UserAuthor})
	if err != nil {
		s.fail(ctx, err)
		return
	}
	if req.X != nil || req.Y != nil || req.Width != nil || req.Height != nil || req.Tags != nil {
		req.FolderID = nil
		req.place(&n)
		if err := s.store.SaveNode(n); err != nil {
			s.fail(ctx, err)
			return
		}
	}
	WriteJSON(ctx, fasthttp.StatusCreated, n)
}

func (s *Server) updateNode(ctx *fasthttp.RequestCtx) {
	n, err := s.store.GetNode(Param(ctx, "id"))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	var req nodeRequest
	if !decode(ctx, &req) {
		return
	}
	t, err := req.nodeType()
	if err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	updated := *n
	if req.Content != nil || req.Notes != nil || t != nil {
		updated = warmap.EditNode(updated, req.Content, req.Notes, t, s.now())
	}
	req.place(&updated)
	if err := s.store.SaveNode(updated); err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, updated)
}

func (s *Server) deleteNode(ctx *fasthttp.RequestCtx) {
	id := Param(ctx, "id")
	if _, err := s.store.GetNode(id); err != nil {
		s.fail(ctx, err)
		return
	}
	if err := s.store.DeleteNode(id); err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) listConnections(ctx *fasthttp.RequestCtx) {
	var conns []db.Connection
	var err error
	if node := string(ctx.QueryArgs().Peek("node")); node != "" {
		conns, err = s.store.ConnectionsForNode(node)
	} else {
		conns, err = s.store.Connections()
	}
	if err != nil {
		s.fail(ctx, err)
		return
	}
	if conns == nil {
		conns = []db.Connection{}
	}
	WriteJSON(ctx, fasthttp.StatusOK, conns)
}

func (s *Server) createConnection(ctx *fasthttp.RequestCtx) {
	var req struct {
		FromID string `json:"fromId"`
		ToID   string `json:"toId"`
	}
	if !decode(ctx, &req) {
		return
	}
	if req.FromID == "" || req.ToID == "" || req.FromID == req.ToID {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "fromId and toId must name two different nodes")
		return
	}
	for _, id := range []string{req.FromID, req.ToID} {
		if _, err := s.store.GetNode(id); err != nil {
			s.fail(ctx, err)
			return
		}
	}
	c := db.Connection{ID: db.NewID(), FromID: req.FromID, ToID: req.ToID}
	if err := s.store.SaveConnection(c); err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusCreated, c)
}

func (s *Server) deleteConnection(ctx *fasthttp.RequestCtx) {
	if err := s.store.DeleteConnection(Param(ctx, "id")); err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) pinMessage(ctx *fasthttp.RequestCtx) {
	m, err := s.store.GetMessage(Param(ctx, "id"))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	var req struct {
		FolderID string `json:"folderId"`
		Type     string `json:"type"`
	}
	if !decode(ctx, &req) {
		return
	}
	typ := warmap.TypeInsight
	if req.Type != "" {
		if typ, err = warmap.ParseNodeType(req.Type); err != nil {
			WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
	}
	s.mu.Lock()
	n, err := warmap.PinMessage(s.store, *m, req.FolderID, typ, s.now(), s.rng)
	s.mu.Unlock()
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusCreated, n)
}

func (s *Server) analyzeMap(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	folder := string(args.Peek("folder"))
	snap, err := graph.SnapshotFromStore(s.store, folder)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	cfg := graph.DefaultConfig()
	cfg.Now = s.now()
	if d := args.GetUintOrZero("stale_days"); d > 0 {
		cfg.StaleDays = int64(d)
	}
	report := graph.Analyze(snap, cfg)
	report.FolderID = folder
	WriteJSON(ctx, fasthttp.StatusOK, report)
}
