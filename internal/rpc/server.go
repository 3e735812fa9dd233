// Package rpc exposes the vault over a loopback JSON-RPC 2.0 endpoint.
// Transport concerns live here (body limits, bearer token, rate limiting,
// metrics); domain behavior stays in internal/app and internal/vault.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/certenIO/certen-key-vault/internal/app"
)

const (
	DefaultAddr = "127.0.0.1:8555"

	maxBodyBytes int64 = 1 << 20 // 1 MiB

	// defaultSubmitWait bounds how long a SIGN_* call blocks waiting for
	// out-of-band approval before giving up with a timeout error.
	defaultSubmitWait = 2 * time.Minute
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type Server struct {
	httpServer *http.Server
	svc        *app.Service
	token      string
	limiter    *rateLimiter
	metrics    *metrics
	logger     *slog.Logger
	submitWait time.Duration
}

// Options tune the server. Zero values select defaults; an empty Token
// disables authorization, which is acceptable only on loopback.
type Options struct {
	Addr           string
	Token          string
	RateLimitRPS   float64
	RateLimitBurst int
	SubmitWait     time.Duration
	Logger         *slog.Logger
}

func NewServer(svc *app.Service, opts Options) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	submitWait := opts.SubmitWait
	if submitWait <= 0 {
		submitWait = defaultSubmitWait
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		svc:        svc,
		token:      strings.TrimSpace(opts.Token),
		limiter:    newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		logger:     logger,
		submitWait: submitWait,
	}
	s.metrics = newMetrics(func() float64 {
		return float64(len(svc.Pending()))
	})
	if s.token == "" {
		logger.Warn("rpc token is not set; rpc auth disabled")
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.Handle("/metrics", s.metrics.handler())
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r) {
		return
	}
	if !s.limiter.allow(clientKey(r), time.Now()) {
		s.metrics.limited.Inc()
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	reqID := fmt.Sprintf("rpc_%d", time.Now().UnixNano())
	started := time.Now()
	s.logger.Info("rpc request", "request_id", reqID, "method", req.Method)

	result, rpcErr := s.dispatch(r.Context(), req.Method, req.Params)
	elapsed := time.Since(started)
	if rpcErr != nil {
		s.metrics.observe(req.Method, "error", elapsed.Seconds())
		s.logger.Error("rpc failed",
			"request_id", reqID, "method", req.Method,
			"rpc_code", rpcErr.Code, "latency_ms", elapsed.Milliseconds())
	} else {
		s.metrics.observe(req.Method, "ok", elapsed.Seconds())
		s.logger.Info("rpc response",
			"request_id", reqID, "method", req.Method, "latency_ms", elapsed.Milliseconds())
	}

	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.token == "" {
		return true
	}
	if extractToken(r) != s.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("X-Certen-RPC-Token")); token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: -32600, Message: "invalid request"},
	})
}
