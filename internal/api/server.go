// Package api serves the store and the council over a JSON HTTP API.
package api

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/NCDesigner/QG-Estrat-gico/internal/council"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/metrics"
)

// Turner runs council turns. Nil disables the generating endpoints.
type Turner interface {
	RunTurn(ctx context.Context, c council.Compose) (*council.TurnResult, error)
	RetryTurn(ctx context.Context, threadID string) (*council.TurnResult, error)
}

// Server is the HTTP view over a store
type Server struct {
	store  *db.Store
	turns  Turner
	logger *zap.Logger
	now    func() time.Time

	// base is canceled on Shutdown so running turns stop
	base   context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	rng *rand.Rand
	srv *fasthttp.Server
}

// NewServer builds a server. turns may be nil when no API key is configured.
func NewServer(store *db.Store, turns Turner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		store:  store,
		turns:  turns,
		logger: logger,
		now:    time.Now,
		base:   base,
		cancel: cancel,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Routes builds the router
func (s *Server) Routes() *Router {
	r := NewRouter()

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", metrics.Handler())

	r.GET("/v1/threads", s.listThreads)
	r.POST("/v1/threads", s.createThread)
	r.GET("/v1/threads/{id}", s.getThread)
	r.PUT("/v1/threads/{id}", s.updateThread)
	r.DELETE("/v1/threads/{id}", s.deleteThread)
	r.GET("/v1/threads/{id}/messages", s.listMessages)
	r.POST("/v1/threads/{id}/messages", s.postMessage)
	r.POST("/v1/threads/{id}/retry", s.retryTurn)
	r.GET("/v1/threads/{id}/export", s.exportThread)
	r.GET("/v1/search", s.search)

	r.GET("/v1/tags", s.listTags)
	r.POST("/v1/tags", s.createTag)
	r.DELETE("/v1/tags/{id}", s.deleteTag)
	r.GET("/v1/tags/{id}/messages", s.taggedMessages)
	r.POST("/v1/messages/{id}/tags/{tagId}", s.toggleTag)
	r.POST("/v1/messages/{id}/pin", s.pinMessage)

	r.GET("/v1/folders", s.listFolders)
	r.POST("/v1/folders", s.createFolder)
	r.DELETE("/v1/folders/{id}", s.deleteFolder)
	r.GET("/v1/nodes", s.listNodes)
	r.POST("/v1/nodes", s.createNode)
	r.PUT("/v1/nodes/{id}", s.updateNode)
	r.DELETE("/v1/nodes/{id}", s.deleteNode)
	r.GET("/v1/connections", s.listConnections)
	r.POST("/v1/connections", s.createConnection)
	r.DELETE("/v1/connections/{id}", s.deleteConnection)
	r.GET("/v1/map/analysis", s.analyzeMap)

	r.GET("/v1/personas", s.listPersonas)
	r.GET("/v1/profile", s.getProfile)
	r.PUT("/v1/profile", s.updateProfile)

	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	})
	return r
}

// Handler is the full request pipeline
func (s *Server) Handler() fasthttp.RequestHandler {
	h := s.Routes().Handler
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		h(ctx)
		s.logger.Debug("http",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("took", time.Since(start)))
	}
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	const (
		maxRequestBodySize = 20 * 1024 * 1024 // attachments travel inline
		readTimeout        = 30 * time.Second
		// a council turn makes several sequential model calls
		writeTimeout = 5 * time.Minute
		idleTimeout  = 60 * time.Second
	)
	s.mu.Lock()
	s.srv = &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "qg",
		MaxRequestBodySize: maxRequestBodySize,
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
	}
	srv := s.srv
	s.mu.Unlock()
	return srv.Serve(ln)
}

// Shutdown cancels running turns and stops the listener
func (s *Server) Shutdown() error {
	s.cancel()
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown()
}

func (s *Server) healthz(ctx *fasthttp.RequestCtx) {
	WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
		"status":     "ok",
		"generation": s.turns != nil,
	})
}
