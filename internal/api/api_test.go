package api

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/NCDesigner/QG-Estrat-gico/internal/council"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/llm"
	"github.com/NCDesigner/QG-Estrat-gico/internal/metrics"
)

var fixedNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type echoResponder struct{}

func (echoResponder) GenerateResponse(_ context.Context, p llm.Prompt) string {
	return "resposta de " + p.PersonaID
}

func newTestServer(t *testing.T, withTurns bool) (*Server, *db.Store) {
	t.Helper()
	store := db.NewStore(db.NewMemory(), nil)
	var turns Turner
	if withTurns {
		o := council.New(store, echoResponder{}, nil)
		o.Pacer = council.NoPacer{}
		o.Clock = func() time.Time { return fixedNow }
		o.Seed(1)
		turns = o
	}
	s := NewServer(store, turns, nil)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = s.Shutdown() })
	return s, store
}

func do(s *Server, method, uri string, body any) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != nil {
		b, _ := json.Marshal(body)
		ctx.Request.SetBody(b)
	}
	s.Handler()(&ctx)
	return &ctx
}

func decodeBody[T any](t *testing.T, ctx *fasthttp.RequestCtx) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &v), "body: %s", ctx.Response.Body())
	return v
}

func TestRouter_Params(t *testing.T) {
	r := NewRouter()
	var got []string
	r.GET("/v1/messages/{id}/tags/{tagId}", func(ctx *fasthttp.RequestCtx) {
		got = []string{Param(ctx, "id"), Param(ctx, "tagId")}
	})

	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod("GET")
	ctx.Request.SetRequestURI("/v1/messages/m1/tags/t9/")
	r.Handler(&ctx)
	assert.Equal(t, []string{"m1", "t9"}, got)

	var other fasthttp.RequestCtx
	other.Request.Header.SetMethod("DELETE")
	other.Request.SetRequestURI("/v1/messages/m1/tags/t9")
	r.Handler(&other)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, other.Response.StatusCode())

	var missing fasthttp.RequestCtx
	missing.Request.Header.SetMethod("GET")
	missing.Request.SetRequestURI("/v1/nothing")
	r.Handler(&missing)
	assert.Equal(t, fasthttp.StatusNotFound, missing.Response.StatusCode())
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, false)
	ctx := do(s, "GET", "/healthz", nil)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := decodeBody[map[string]any](t, ctx)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["generation"])
}

func TestThreadLifecycle(t *testing.T) {
	s, store := newTestServer(t, false)

	ctx := do(s, "POST", "/v1/threads", map[string]string{"contactId": "diario"})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	created := decodeBody[db.Thread](t, ctx)
	assert.Equal(t, "Sessão de Despejo", created.Title)
	assert.Equal(t, fixedNow.UnixMilli(), created.CreatedAt)

	ctx = do(s, "PUT", "/v1/threads/"+created.ID, map[string]any{"title": "Plano 2026", "isArchived": true})
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	got, err := store.GetThread(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plano 2026", got.Title)
	assert.True(t, got.IsArchived)

	ctx = do(s, "PUT", "/v1/threads/"+created.ID, map[string]any{"title": "  "})
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	// archived threads are listed separately
	active := decodeBody[[]db.Thread](t, do(s, "GET", "/v1/threads", nil))
	assert.Empty(t, active)
	archived := decodeBody[[]db.Thread](t, do(s, "GET", "/v1/threads?archived=true&contact=diario", nil))
	assert.Len(t, archived, 1)

	ctx = do(s, "DELETE", "/v1/threads/"+created.ID, nil)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	ctx = do(s, "GET", "/v1/threads/"+created.ID, nil)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestPostMessage_RunsCouncilTurn(t *testing.T) {
	s, store := newTestServer(t, true)
	th := db.NewThread("Nova Conversa", "council", "", fixedNow.Add(-time.Hour))
	require.NoError(t, store.SaveThread(th))

	ctx := do(s, "POST", "/v1/threads/"+th.ID+"/messages", map[string]any{
		"text":    "Status do funil",
		"targets": []string{"rafa", "flavio"},
		"level":   "leve",
	})
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	result := decodeBody[council.TurnResult](t, ctx)
	assert.Equal(t, db.ModeCouncil, result.Mode)
	assert.Equal(t, []string{"flavio", "rafa"}, result.Order)
	require.Len(t, result.Replies, 2)
	assert.Equal(t, "resposta de flavio", result.Replies[0].Content)

	msgs := decodeBody[[]db.Message](t, do(s, "GET", "/v1/threads/"+th.ID+"/messages", nil))
	assert.Len(t, msgs, 3)
}

func TestPostMessage_Errors(t *testing.T) {
	s, store := newTestServer(t, true)
	th := db.NewThread("t", "council", "", fixedNow)
	require.NoError(t, store.SaveThread(th))

	tests := []struct {
		name   string
		uri    string
		body   any
		status int
	}{
		{"unknown persona", "/v1/threads/" + th.ID + "/messages", map[string]any{"text": "oi", "targets": []string{"zeca"}}, fasthttp.StatusBadRequest},
		{"bad level", "/v1/threads/" + th.ID + "/messages", map[string]any{"text": "oi", "level": "furioso"}, fasthttp.StatusBadRequest},
		{"missing thread", "/v1/threads/nope/messages", map[string]any{"text": "oi"}, fasthttp.StatusNotFound},
		{"empty submission", "/v1/threads/" + th.ID + "/messages", map[string]any{"text": "   "}, fasthttp.StatusNoContent},
		{"bad json", "/v1/threads/" + th.ID + "/messages", "{", fasthttp.StatusBadRequest},
		{"nothing to retry", "/v1/threads/" + th.ID + "/retry", nil, fasthttp.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctx *fasthttp.RequestCtx
			if raw, ok := tt.body.(string); ok {
				var c fasthttp.RequestCtx
				c.Request.Header.SetMethod("POST")
				c.Request.SetRequestURI(tt.uri)
				c.Request.SetBodyString(raw)
				s.Handler()(&c)
				ctx = &c
			} else {
				ctx = do(s, "POST", tt.uri, tt.body)
			}
			assert.Equal(t, tt.status, ctx.Response.StatusCode(), string(ctx.Response.Body()))
		})
	}
}

func TestPostMessage_DisabledWithoutTurner(t *testing.T) {
	s, store := newTestServer(t, false)
	th := db.NewThread("t", "council", "", fixedNow)
	require.NoError(t, store.SaveThread(th))
	ctx := do(s, "POST", "/v1/threads/"+th.ID+"/messages", map[string]any{"text": "oi"})
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
}

func TestExportThread(t *testing.T) {
	s, store := newTestServer(t, false)
	th := db.NewThread("Plano de voo", "council", "", fixedNow)
	require.NoError(t, store.SaveThread(th))
	require.NoError(t, store.SaveMessage(db.Message{ID: "1", ThreadID: th.ID, Role: db.RoleUser, Content: "pergunta", CreatedAt: fixedNow.UnixMilli()}))
	require.NoError(t, store.SaveMessage(db.Message{ID: "2", ThreadID: th.ID, Role: db.RoleAgent, AgentID: "rafa", Content: "resposta", CreatedAt: fixedNow.UnixMilli() + 1}))

	ctx := do(s, "GET", "/v1/threads/"+th.ID+"/export?format=txt&select=rafa", nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.True(t, strings.HasPrefix(body, "PLANO DE VOO\n"))
	assert.Contains(t, body, "Rafa [")
	assert.NotContains(t, body, "pergunta")
	assert.Contains(t, string(ctx.Response.Header.Peek("Content-Disposition")), "QG_Plano_de_voo_2026-03-10.txt")

	ctx = do(s, "GET", "/v1/threads/"+th.ID+"/export?format=pdf", nil)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestTags(t *testing.T) {
	s, store := newTestServer(t, false)
	require.NoError(t, store.SaveMessage(db.Message{ID: "m1", ThreadID: "t1", Role: db.RoleUser, Content: "x"}))

	ctx := do(s, "POST", "/v1/tags", map[string]string{"name": "Urgente"})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	tag := decodeBody[db.Tag](t, ctx)

	// toggling accepts the tag name as well as its id
	ctx = do(s, "POST", "/v1/messages/m1/tags/urgente", nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, []string{tag.ID}, decodeBody[db.Message](t, ctx).TagIDs)

	tagged := decodeBody[[]db.Message](t, do(s, "GET", "/v1/tags/"+tag.ID+"/messages", nil))
	assert.Len(t, tagged, 1)

	ctx = do(s, "POST", "/v1/tags", map[string]string{"name": ""})
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = do(s, "POST", "/v1/messages/nope/tags/"+tag.ID, nil)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestWarMapEndpoints(t *testing.T) {
	s, store := newTestServer(t, false)

	ctx := do(s, "POST", "/v1/folders", map[string]string{"name": "Lançamento"})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	folder := decodeBody[db.Folder](t, ctx)

	ctx = do(s, "POST", "/v1/nodes", map[string]any{"folderId": folder.ID, "type": "Tensão", "content": "preço alto"})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	a := decodeBody[db.Node](t, ctx)
	assert.Equal(t, "tensao", a.Type)
	assert.Equal(t, folder.ID, a.FolderID)

	ctx = do(s, "POST", "/v1/nodes", map[string]any{"folderId": folder.ID, "content": "b", "x": 10, "y": 20})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	b := decodeBody[db.Node](t, ctx)
	assert.Equal(t, "insight", b.Type)
	assert.Equal(t, 10.0, b.X)

	ctx = do(s, "POST", "/v1/connections", map[string]string{"fromId": a.ID, "toId": b.ID})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	ctx = do(s, "POST", "/v1/connections", map[string]string{"fromId": a.ID, "toId": a.ID})
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	ctx = do(s, "POST", "/v1/connections", map[string]string{"fromId": a.ID, "toId": "ghost"})
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	// moving does not count as an edit; editing content does
	ctx = do(s, "PUT", "/v1/nodes/"+a.ID, map[string]any{"x": 99})
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	moved := decodeBody[db.Node](t, ctx)
	assert.Equal(t, 99.0, moved.X)
	assert.Equal(t, a.UpdatedAt, moved.UpdatedAt)

	ctx = do(s, "PUT", "/v1/nodes/"+a.ID, map[string]any{"type": "risco"})
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	inFolder := decodeBody[[]db.Node](t, do(s, "GET", "/v1/nodes?folder="+folder.ID, nil))
	assert.Len(t, inFolder, 2)

	report := decodeBody[map[string]any](t, do(s, "GET", "/v1/map/analysis?folder="+folder.ID, nil))
	topology := report["topology"].(map[string]any)
	assert.EqualValues(t, 2, topology["total_nodes"])
	assert.EqualValues(t, 1, topology["num_clusters"])

	ctx = do(s, "DELETE", "/v1/nodes/"+a.ID, nil)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	conns, err := store.Connections()
	require.NoError(t, err)
	assert.Empty(t, conns, "deleting a node removes its connections")

	ctx = do(s, "DELETE", "/v1/folders/"+folder.ID, nil)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	left, _ := store.GetNode(b.ID)
	assert.Equal(t, db.GeneralFolderID, left.FolderID)
}

func TestPinMessage(t *testing.T) {
	s, store := newTestServer(t, false)
	require.NoError(t, store.SaveMessage(db.Message{ID: "m1", ThreadID: "t1", Role: db.RoleAgent, AgentID: "conrado", Content: "corte o escopo"}))

	ctx := do(s, "POST", "/v1/messages/m1/pin", map[string]string{"type": "acao"})
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	n := decodeBody[db.Node](t, ctx)
	assert.Equal(t, "acao", n.Type)
	assert.Equal(t, "conrado", n.Author)
	assert.Equal(t, "m1", n.SourceMessageID)
	assert.Equal(t, db.GeneralFolderID, n.FolderID)
}

func TestPersonasAndProfile(t *testing.T) {
	s, store := newTestServer(t, false)
	require.NoError(t, store.SaveAgentCustom("rafa", db.AgentCustom{Avatar: "data:image/png;base64,AA=="}))

	personas := decodeBody[[]map[string]any](t, do(s, "GET", "/v1/personas", nil))
	require.Len(t, personas, 5)
	assert.Equal(t, "flavio", personas[0]["id"])
	for _, p := range personas {
		if p["id"] == "rafa" {
			assert.Equal(t, "data:image/png;base64,AA==", p["avatar"])
		}
	}

	profile := decodeBody[db.UserProfile](t, do(s, "GET", "/v1/profile", nil))
	assert.Equal(t, db.DefaultUserName, profile.Name)

	ctx := do(s, "PUT", "/v1/profile", map[string]string{"name": "Nath"})
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	stored, _ := store.UserProfile()
	assert.Equal(t, "Nath", stored.Name)
}

func TestServeAndShutdown(t *testing.T) {
	s, _ := newTestServer(t, false)
	metrics.Turns.WithLabelValues(string(db.ModeNote)).Add(0)

	ln := fasthttputil.NewInmemoryListener()
	served := make(chan error, 1)
	go func() { served <- s.Serve(ln) }()

	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	get := func(path string) (int, string) {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)
		req.SetRequestURI("http://qg" + path)
		require.NoError(t, client.DoTimeout(req, resp, 5*time.Second))
		return resp.StatusCode(), string(resp.Body())
	}

	status, body := get("/healthz")
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Contains(t, body, `"status":"ok"`)

	status, body = get("/metrics")
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Contains(t, body, "qg_turns_total")

	require.NoError(t, s.Shutdown())
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
