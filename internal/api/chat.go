package api

import (
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/NCDesigner/QG-Estrat-gico/internal/council"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/export"
	"github.com/NCDesigner/QG-Estrat-gico/internal/llm"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

func (s *Server) listThreads(ctx *fasthttp.RequestCtx) {
	threads, err := s.store.Threads()
	if err != nil {
		s.fail(ctx, err)
		return
	}
	args := ctx.QueryArgs()
	contact := string(args.Peek("contact"))
	project := string(args.Peek("project"))
	archived := args.GetBool("archived")

	out := make([]db.Thread, 0, len(threads))
	for _, t := range threads {
		if contact != "" && t.ContactID != contact {
			continue
		}
		if project != "" && t.ProjectID != project {
			continue
		}
		if t.IsArchived != archived {
			continue
		}
		out = append(out, t)
	}
	WriteJSON(ctx, fasthttp.StatusOK, out)
}

type threadRequest struct {
	Title      *string   `json:"title"`
	ContactID  string    `json:"contactId"`
	ProjectID  *string   `json:"projectId"`
	Tags       *[]string `json:"tags"`
	IsArchived *bool     `json:"isArchived"`
}

func (s *Server) createThread(ctx *fasthttp.RequestCtx) {
	var req threadRequest
	if !decode(ctx, &req) {
		return
	}
	title := persona.DefaultThreadTitle(req.ContactID)
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		title = strings.TrimSpace(*req.Title)
	}
	project := ""
	if req.ProjectID != nil {
		project = *req.ProjectID
	}
	t := db.NewThread(title, req.ContactID, project, s.now())
	if err := s.store.SaveThread(t); err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusCreated, t)
}

func (s *Server) getThread(ctx *fasthttp.RequestCtx) {
	t, err := s.store.GetThread(Param(ctx, "id"))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, t)
}

func (s *Server) updateThread(ctx *fasthttp.RequestCtx) {
	t, err := s.store.GetThread(Param(ctx, "id"))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	var req threadRequest
	if !decode(ctx, &req) {
		return
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			WriteJSONError(ctx, fasthttp.StatusBadRequest, "title cannot be blank")
			return
		}
		t.Title = title
	}
	if req.ProjectID != nil {
		t.ProjectID = *req.ProjectID
	}
	if req.Tags != nil {
		t.Tags = *req.Tags
	}
	if req.IsArchived != nil {
		t.IsArchived = *req.IsArchived
	}
	if err := s.store.SaveThread(*t); err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, t)
}

func (s *Server) deleteThread(ctx *fasthttp.RequestCtx) {
	id := Param(ctx, "id")
	if _, err := s.store.GetThread(id); err != nil {
		s.fail(ctx, err)
		return
	}
	if err := s.store.DeleteThread(id); err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) listMessages(ctx *fasthttp.RequestCtx) {
	id := Param(ctx, "id")
	if _, err := s.store.GetThread(id); err != nil {
		s.fail(ctx, err)
		return
	}
	msgs, err := s.store.MessagesByThread(id)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, msgs)
}

type messageRequest struct {
	Text        string          `json:"text"`
	Targets     []string        `json:"targets"`
	Attachments []db.Attachment `json:"attachments"`
	Level       string          `json:"level"`
}

func (s *Server) postMessage(ctx *fasthttp.RequestCtx) {
	if s.turns == nil {
		WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "generation is disabled (no Gemini API key)")
		return
	}
	var req messageRequest
	if !decode(ctx, &req) {
		return
	}
	c := council.Compose{
		ThreadID:    Param(ctx, "id"),
		Text:        req.Text,
		Targets:     req.Targets,
		Attachments: req.Attachments,
	}
	if req.Level != "" {
		level, err := llm.ParseLevel(req.Level)
		if err != nil {
			WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
		c.Level = level
	}
	result, err := s.turns.RunTurn(s.base, c)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	if result == nil {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, result)
}

func (s *Server) retryTurn(ctx *fasthttp.RequestCtx) {
	if s.turns == nil {
		WriteJSONError(ctx, fasthttp.StatusServiceUnavailable, "generation is disabled (no Gemini API key)")
		return
	}
	result, err := s.turns.RetryTurn(s.base, Param(ctx, "id"))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, result)
}

func (s *Server) exportThread(ctx *fasthttp.RequestCtx) {
	t, err := s.store.GetThread(Param(ctx, "id"))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	args := ctx.QueryArgs()
	format := export.FormatMarkdown
	if f := string(args.Peek("format")); f != "" {
		if format, err = export.ParseFormat(f); err != nil {
			WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
	}
	sel, err := export.ParseSelection(string(args.Peek("select")))
	if err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}
	msgs, err := s.store.MessagesByThread(t.ID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	now := s.now()
	body, err := export.Render(format, *t, export.Filter(msgs, sel), now, nil)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.Response.Header.SetContentType(format.ContentType())
	ctx.Response.Header.Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.FileName(t.Title, format, now)))
	ctx.SetBody(body)
}

func (s *Server) search(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	limit := args.GetUintOrZero("limit")
	if limit == 0 {
		limit = 50
	}
	hits, err := s.store.SearchMessages(string(args.Peek("q")), limit)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, hits)
}

func (s *Server) listTags(ctx *fasthttp.RequestCtx) {
	tags, err := s.store.Tags()
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, tags)
}

func (s *Server) createTag(ctx *fasthttp.RequestCtx) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !decode(ctx, &req) {
		return
	}
	tag, ok := db.NewTag(req.Name, s.now())
	if !ok {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "tag name cannot be blank")
		return
	}
	if req.Color != "" {
		tag.Color = req.Color
	}
	if err := s.store.SaveTag(tag); err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusCreated, tag)
}

func (s *Server) deleteTag(ctx *fasthttp.RequestCtx) {
	if err := s.store.DeleteTag(Param(ctx, "id")); err != nil {
		s.fail(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) taggedMessages(ctx *fasthttp.RequestCtx) {
	msgs, err := s.store.MessagesByTag(Param(ctx, "id"))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, msgs)
}

func (s *Server) toggleTag(ctx *fasthttp.RequestCtx) {
	tag, err := s.store.GetTag(Param(ctx, "tagId"))
	if err != nil {
		s.fail(ctx, err)
		return
	}
	m, err := s.store.ToggleMessageTag(Param(ctx, "id"), tag.ID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, m)
}
