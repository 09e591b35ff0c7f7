package api

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/NCDesigner/QG-Estrat-gico/internal/council"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

// WriteJSON writes data as a JSON response with status
func WriteJSON(ctx *fasthttp.RequestCtx, status int, data any) {
	ctx.SetStatusCode(status)
	ctx.Response.Header.SetContentType("application/json")
	_ = json.NewEncoder(ctx).Encode(data)
}

// WriteJSONError writes {"error": message}
func WriteJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	WriteJSON(ctx, status, map[string]string{"error": message})
}

// decode reads the request body into v; an empty body leaves v untouched
func decode(ctx *fasthttp.RequestCtx, v any) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// fail maps domain errors to status codes and logs the unexpected ones
func (s *Server) fail(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, council.ErrThreadNotFound):
		WriteJSONError(ctx, fasthttp.StatusNotFound, err.Error())
	case errors.Is(err, council.ErrUnknownPersona), errors.Is(err, council.ErrNothingToRetry):
		WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Error(err))
		WriteJSONError(ctx, fasthttp.StatusInternalServerError, "internal error")
	}
}
