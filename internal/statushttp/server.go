// Package statushttp serves the live run counters over HTTP.
package statushttp

import (
	"encoding/json"
	"net"
	"time"

	"github.com/park285/position-analyzer/internal/stats"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type statusResponse struct {
	RunID string `json:"run_id"`
	stats.Snapshot
}

type Server struct {
	runID    string
	counters *stats.Counters
	logger   *zap.Logger
	srv      *fasthttp.Server
}

func NewServer(runID string, counters *stats.Counters, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{runID: runID, counters: counters, logger: logger}
	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		Name:         "position-analyzer",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Serve blocks until the listener is closed or Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown() error { return s.srv.Shutdown() }

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetContentType("text/plain; charset=utf-8")
		ctx.SetBodyString("ok")
	case "/status":
		body, err := json.Marshal(statusResponse{RunID: s.runID, Snapshot: s.counters.Snapshot()})
		if err != nil {
			ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}
