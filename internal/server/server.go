// Package server exposes a shared allocator over HTTP.
//
//	POST /alloc?size=N      -> {"addr": A, "size": N}
//	POST /release?addr=A    -> 204
//	GET  /valid?addr=A      -> {"addr": A, "allocated": bool}
//	GET  /stats             -> allocator.Stats as JSON
//
// Addresses are accepted in decimal or with a 0x prefix. Allocator errors
// map to a status code by kind and carry {"error": "...", "kind": "..."}.
package server

import (
	"errors"
	"log/slog"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/joshuapare/pagezone/internal/logger"
	"github.com/joshuapare/pagezone/pkg/allocator"
	"github.com/joshuapare/pagezone/pkg/types"
)

var jsonConfig = jsoniter.ConfigCompatibleWithStandardLibrary

// Server serves one synchronized allocator.
type Server struct {
	a   *allocator.Synchronized
	log *slog.Logger
}

// New returns a Server for a. A nil log means the global logger.
func New(a *allocator.Synchronized, log *slog.Logger) *Server {
	return &Server{a: a, log: logger.Or(log)}
}

// AllocResponse is the body of a successful /alloc.
type AllocResponse struct {
	Addr uint64 `json:"addr"`
	Size uint64 `json:"size"`
}

// ValidResponse is the body of /valid.
type ValidResponse struct {
	Addr      uint64 `json:"addr"`
	Allocated bool   `json:"allocated"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Handler routes a request.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch {
	case path == "/alloc" && ctx.IsPost():
		s.doAlloc(ctx)
	case path == "/release" && ctx.IsPost():
		s.doRelease(ctx)
	case path == "/valid" && ctx.IsGet():
		s.doValid(ctx)
	case path == "/stats" && ctx.IsGet():
		s.writeJSON(ctx, fasthttp.StatusOK, s.a.Stats())
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) doAlloc(ctx *fasthttp.RequestCtx) {
	size, ok := s.uintArg(ctx, "size")
	if !ok {
		return
	}
	addr, err := s.a.Allocate(uintptr(size))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.log.Debug("server: allocated", "addr", addr, "size", size)
	s.writeJSON(ctx, fasthttp.StatusOK, AllocResponse{Addr: uint64(addr), Size: size})
}

func (s *Server) doRelease(ctx *fasthttp.RequestCtx) {
	addr, ok := s.uintArg(ctx, "addr")
	if !ok {
		return
	}
	if err := s.a.Release(uintptr(addr)); err != nil {
		s.writeError(ctx, err)
		return
	}
	s.log.Debug("server: released", "addr", addr)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) doValid(ctx *fasthttp.RequestCtx) {
	addr, ok := s.uintArg(ctx, "addr")
	if !ok {
		return
	}
	var valid bool
	_ = s.a.Do(func(a *allocator.Allocator) error {
		valid = a.IsAllocated(uintptr(addr))
		return nil
	})
	s.writeJSON(ctx, fasthttp.StatusOK, ValidResponse{Addr: addr, Allocated: valid})
}

// uintArg parses a required query argument, answering 400 when it is
// missing or malformed.
func (s *Server) uintArg(ctx *fasthttp.RequestCtx, name string) (uint64, bool) {
	raw := ctx.QueryArgs().Peek(name)
	if len(raw) == 0 {
		s.writeJSON(ctx, fasthttp.StatusBadRequest, ErrorResponse{Error: "missing " + name})
		return 0, false
	}
	v, err := strconv.ParseUint(string(raw), 0, 64)
	if err != nil {
		s.writeJSON(ctx, fasthttp.StatusBadRequest, ErrorResponse{Error: "invalid " + name + ": " + string(raw)})
		return 0, false
	}
	return v, true
}

// StatusFor maps an allocator error to an HTTP status.
func StatusFor(err error) int {
	var e *types.Error
	if !errors.As(err, &e) {
		return fasthttp.StatusInternalServerError
	}
	switch e.Kind {
	case types.ErrKindInvalidArgument, types.ErrKindInvalidFree:
		return fasthttp.StatusBadRequest
	case types.ErrKindOutOfMemory:
		return fasthttp.StatusInsufficientStorage
	case types.ErrKindInit:
		return fasthttp.StatusServiceUnavailable
	}
	return fasthttp.StatusInternalServerError
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var e *types.Error
	if errors.As(err, &e) {
		resp.Kind = e.Kind.String()
	}
	s.writeJSON(ctx, StatusFor(err), resp)
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := jsonConfig.Marshal(v)
	if err != nil {
		s.log.Error("server: encode response", "error", err)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
