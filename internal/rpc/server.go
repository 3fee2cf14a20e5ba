// Package rpc serves the node's JSON-RPC surface.
package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/factorn/factord/internal/node"
	"github.com/factorn/factord/internal/utils/logging"
)

// JSON-RPC error codes, matching the historical numbering.
const (
	errMisc            = -1
	errInvalidAddress  = -5
	errInvalidParam    = -8
	errDeserialization = -22
	errMethodNotFound  = -32601
	errParse           = -32700
)

// rpcError is a structured failure with a decodable reason string.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

func rpcErrorf(code int, format string, args ...interface{}) error {
	return &rpcError{Code: code, Message: errors.Errorf(format, args...).Error()}
}

type request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

type response struct {
	Result interface{}     `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     json.RawMessage `json:"id"`
}

type handler func(params []json.RawMessage) (interface{}, error)

// Server dispatches JSON-RPC requests over HTTP.
type Server struct {
	n        *node.Node
	commands map[string]handler
	srv      *http.Server
}

// NewServer builds the server and registers the deadpool command table.
func NewServer(n *node.Node) *Server {
	s := &Server{
		n:        n,
		commands: make(map[string]handler),
	}

	s.registerDeadpoolCommands()

	mux := httptreemux.NewContextMux()
	mux.POST("/", s.handle)
	mux.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// ListenAndServe blocks serving requests on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.srv.Addr = addr
	logging.Infof("rpc listening on %s", addr)

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req request
	resp := response{}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error = &rpcError{Code: errParse, Message: "parse error"}
		writeJSON(w, resp)
		return
	}
	resp.ID = req.ID

	cmd, ok := s.commands[req.Method]
	if !ok {
		resp.Error = &rpcError{Code: errMethodNotFound, Message: "method not found"}
		writeJSON(w, resp)
		return
	}

	start := time.Now()
	result, err := cmd(req.Params)
	logging.WithField("method", req.Method).Debugf("rpc handled in %s", time.Since(start))

	if err != nil {
		if re, ok := err.(*rpcError); ok {
			resp.Error = re
		} else {
			resp.Error = &rpcError{Code: errMisc, Message: err.Error()}
		}
		writeJSON(w, resp)
		return
	}

	resp.Result = result
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WithError(err).Error("writing rpc response")
	}
}
