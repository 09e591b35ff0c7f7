package api

import (
	"strings"

	"github.com/valyala/fasthttp"
)

// Router dispatches by method and path. Path segments written as {name}
// match any single segment and are stored as user values on the ctx.
type Router struct {
	routes   map[string][]route
	notFound fasthttp.RequestHandler
}

type route struct {
	pattern  string
	segments []string
	handler  fasthttp.RequestHandler
}

// NewRouter returns an empty router
func NewRouter() *Router {
	return &Router{routes: make(map[string][]route)}
}

// Handle registers h for method and pattern
func (r *Router) Handle(method, pattern string, h fasthttp.RequestHandler) {
	r.routes[method] = append(r.routes[method], route{
		pattern:  pattern,
		segments: splitPath(pattern),
		handler:  h,
	})
}

func (r *Router) GET(p string, h fasthttp.RequestHandler)    { r.Handle(fasthttp.MethodGet, p, h) }
func (r *Router) POST(p string, h fasthttp.RequestHandler)   { r.Handle(fasthttp.MethodPost, p, h) }
func (r *Router) PUT(p string, h fasthttp.RequestHandler)    { r.Handle(fasthttp.MethodPut, p, h) }
func (r *Router) DELETE(p string, h fasthttp.RequestHandler) { r.Handle(fasthttp.MethodDelete, p, h) }

// NotFound sets the handler for unmatched requests
func (r *Router) NotFound(h fasthttp.RequestHandler) { r.notFound = h }

// Handler is the fasthttp entry point
func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	parts := splitPath(string(ctx.Path()))
	for _, rt := range r.routes[string(ctx.Method())] {
		params, ok := match(rt.segments, parts)
		if !ok {
			continue
		}
		for k, v := range params {
			ctx.SetUserValue(k, v)
		}
		rt.handler(ctx)
		return
	}
	if r.allowed(parts) {
		WriteJSONError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.notFound != nil {
		r.notFound(ctx)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNotFound)
}

// allowed reports whether some other method serves this path
func (r *Router) allowed(parts []string) bool {
	for _, list := range r.routes {
		for _, rt := range list {
			if _, ok := match(rt.segments, parts); ok {
				return true
			}
		}
	}
	return false
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func match(segments, parts []string) (map[string]string, bool) {
	if len(segments) != len(parts) {
		return nil, false
	}
	params := map[string]string{}
	for i, seg := range segments {
		if len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}' {
			params[seg[1:len(seg)-1]] = parts[i]
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// Param returns the path parameter name
func Param(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
