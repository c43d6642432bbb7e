package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"promostaking/archive"
	"promostaking/core"
	"promostaking/core/events"
	"promostaking/observability"
	"promostaking/observability/logging"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultMaxCallAge   = 5 * time.Minute
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	shutdownTimeout     = 10 * time.Second
	requestIDHeader     = "X-Request-ID"
)

// ServerConfig tunes the JSON-RPC server.
type ServerConfig struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxBodyBytes       int64
	// MaxCallAge bounds how far in the future a signed call deadline may lie.
	MaxCallAge   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Auth         AuthConfig
	// History serves events_history. Optional.
	History HistoryStore
}

// HistoryStore lists archived events.
type HistoryStore interface {
	List(ctx context.Context, q archive.Query) ([]archive.Record, error)
}

type requestIDKey struct{}

// RequestID returns the identifier assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type methodHandler func(ctx context.Context, w http.ResponseWriter, req *RPCRequest)

type method struct {
	handler methodHandler
	admin   bool
}

// Server exposes a node over JSON-RPC 2.0.
type Server struct {
	node       *core.Node
	feed       *events.Feed
	history    HistoryStore
	logger     *slog.Logger
	auth       *adminAuth
	limiter    *rateLimiter
	replay     *replayCache
	methods    map[string]method
	maxBody    int64
	maxCallAge time.Duration
	readTO     time.Duration
	writeTO    time.Duration
	now        func() time.Time
}

// NewServer builds a server for node. feed may be nil, in which case the
// websocket event stream is unavailable.
func NewServer(node *core.Node, feed *events.Feed, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:       node,
		feed:       feed,
		history:    cfg.History,
		logger:     logger.With("component", "rpc"),
		auth:       newAdminAuth(cfg.Auth),
		limiter:    newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		replay:     newReplayCache(),
		maxBody:    cfg.MaxBodyBytes,
		maxCallAge: cfg.MaxCallAge,
		readTO:     cfg.ReadTimeout,
		writeTO:    cfg.WriteTimeout,
		now:        time.Now,
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBodyBytes
	}
	if s.maxCallAge <= 0 {
		s.maxCallAge = defaultMaxCallAge
	}
	if s.readTO <= 0 {
		s.readTO = defaultReadTimeout
	}
	if s.writeTO <= 0 {
		s.writeTO = defaultWriteTimeout
	}
	s.methods = map[string]method{
		"promo_initialize":        {handler: s.handlePromoInitialize},
		"promo_stake":             {handler: s.handlePromoStake},
		"promo_unstake":           {handler: s.handlePromoUnstake},
		"promo_emergencyWithdraw": {handler: s.handlePromoEmergencyWithdraw},
		"promo_refresh":           {handler: s.handlePromoRefresh},
		"promo_getProgram":        {handler: s.handlePromoGetProgram},
		"promo_getAccount":        {handler: s.handlePromoGetAccount},
		"promo_getStakedAmount":   {handler: s.handlePromoGetStakedAmount},
		"promo_getPendingTokens":  {handler: s.handlePromoGetPendingTokens},
		"promo_projectPending":    {handler: s.handlePromoProjectPending},
		"promo_audit":             {handler: s.handlePromoAudit},
		"promo_currentTick":       {handler: s.handlePromoCurrentTick},
		"token_register":          {handler: s.handleTokenRegister, admin: true},
		"token_mint":              {handler: s.handleTokenMint, admin: true},
		"token_list":              {handler: s.handleTokenList},
		"token_transfer":          {handler: s.handleTokenTransfer},
		"token_approve":           {handler: s.handleTokenApprove},
		"token_balance":           {handler: s.handleTokenBalance},
		"token_allowance":         {handler: s.handleTokenAllowance},
		"events_history":          {handler: s.handleEventsHistory},
	}
	return s
}

// Handler returns the HTTP routes served by the node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/events", s.handleEventsWS)
	r.Group(func(g chi.Router) {
		if s.limiter != nil {
			g.Use(s.limiter.middleware)
		}
		g.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "jsonrpc"))
	})
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves on an existing listener until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.readTO,
		ReadHeaderTimeout: s.readTO,
		WriteTimeout:      s.writeTO,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", "addr", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// handle decodes a JSON-RPC request and routes it to its method handler.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.maxBody)
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		module, _, _ := strings.Cut(req.Method, "_")
		observability.ModuleMetrics().Observe(module, req.Method, recorder.status, time.Since(started))
		s.logger.Debug("rpc request",
			"requestid", RequestID(r.Context()),
			"method", req.Method,
			"status", recorder.status,
			"duration", time.Since(started))
	}()
	if m.admin {
		if authErr := s.auth.require(r); authErr != nil {
			s.logger.Warn("admin call rejected",
				"requestid", RequestID(r.Context()),
				"method", req.Method,
				"reason", authErr.Message,
				logging.MaskField("authorization", r.Header.Get("Authorization")))
			writeError(recorder, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	m.handler(r.Context(), recorder, req)
}

// writeLedgerError reports a failed node call.
func (s *Server) writeLedgerError(ctx context.Context, w http.ResponseWriter, req *RPCRequest, err error) {
	status, code, message := ledgerError(err)
	if code == codeServerError {
		s.logger.Error("ledger call failed",
			"requestid", RequestID(ctx),
			"method", req.Method,
			"error", err)
		writeError(w, status, req.ID, code, message, nil)
		return
	}
	writeError(w, status, req.ID, code, message, err.Error())
}
