package api

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

type personaView struct {
	persona.Profile
	Avatar string `json:"avatar,omitempty"`
}

func (s *Server) listPersonas(ctx *fasthttp.RequestCtx) {
	customs, err := s.store.AgentCustoms()
	if err != nil {
		s.fail(ctx, err)
		return
	}
	out := make([]personaView, 0, len(persona.CanonicalOrder))
	for _, p := range persona.All() {
		out = append(out, personaView{Profile: p, Avatar: customs[p.ID].Avatar})
	}
	WriteJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) getProfile(ctx *fasthttp.RequestCtx) {
	p, err := s.store.UserProfile()
	if err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, p)
}

func (s *Server) updateProfile(ctx *fasthttp.RequestCtx) {
	p, err := s.store.UserProfile()
	if err != nil {
		s.fail(ctx, err)
		return
	}
	var req struct {
		Name   *string `json:"name"`
		Avatar *string `json:"avatar"`
	}
	if !decode(ctx, &req) {
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			WriteJSONError(ctx, fasthttp.StatusBadRequest, "name cannot be blank")
			return
		}
		p.Name = name
	}
	if req.Avatar != nil {
		p.Avatar = *req.Avatar
	}
	if err := s.store.SaveUserProfile(p); err != nil {
		s.fail(ctx, err)
		return
	}
	WriteJSON(ctx, fasthttp.StatusOK, p)
}
