// Package api exposes the dashboard over HTTP: token and action endpoints plus
// a WebSocket stream of view and action updates.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	dashboardApp "github.com/fd1az/savvy-farm/business/dashboard/app"
	"github.com/fd1az/savvy-farm/business/dashboard/domain"
	"github.com/fd1az/savvy-farm/internal/apm"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/logger"
	"github.com/fd1az/savvy-farm/internal/wsconn"
)

// ViewSource provides the current token view.
type ViewSource interface {
	View() dashboardApp.View
	LookupTokenByAddress(addr string) (domain.Token, bool)
}

// ActionService dispatches and reports user actions.
type ActionService interface {
	Dispatch(ctx context.Context, req domain.ActionRequest) (domain.Action, error)
	MaxAmount(kind domain.ActionKind, token string) (string, error)
	Action(id string) (domain.Action, bool)
	Actions() []domain.Action
}

// Config holds server settings.
type Config struct {
	Port           int
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// Event is the envelope pushed on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Server serves the dashboard API. It also implements the dashboard Reporter
// so published views and actions reach stream subscribers.
type Server struct {
	config  Config
	views   ViewSource
	actions ActionService
	hub     *wsconn.Hub
	log     logger.LoggerInterface

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates the API server.
func NewServer(config Config, views ViewSource, actions ActionService, log logger.LoggerInterface) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 16
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	hubCfg := wsconn.DefaultConfig()
	hubCfg.OriginPatterns = config.AllowedOrigins

	s := &Server{
		config:  config,
		views:   views,
		actions: actions,
		hub:     wsconn.New(hubCfg, log),
		log:     log,
	}
	s.hub.OnConnect = func() [][]byte {
		msg, err := encodeEvent("view", s.views.View())
		if err != nil {
			return nil
		}
		return [][]byte{msg}
	}
	return s
}

// Handler returns the routed, CORS-wrapped and traced handler.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/api/tokens", s.handleTokens)
	router.GET("/api/tokens/:address", s.handleToken)
	router.GET("/api/tokens/:address/max", s.handleMaxAmount)
	router.GET("/api/actions", s.handleActions)
	router.POST("/api/actions", s.handleDispatch)
	router.GET("/api/actions/:id", s.handleAction)
	router.Handler(http.MethodGet, "/api/stream", s.hub)
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperror.NotFound(apperror.CodeNotFound, r.URL.Path))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})

	return otelhttp.NewHandler(c.Handler(router), "dashboard-api")
}

// Start begins serving on the configured port.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("api listen "+addr),
		)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.log.Info(ctx, "api server listening", "addr", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(context.Background(), "api server stopped", "error", err)
		}
	}()
	return nil
}

// UpdateView pushes a view to stream subscribers.
func (s *Server) UpdateView(view dashboardApp.View) {
	s.broadcast("view", view)
}

// UpdateAction pushes an action transition to stream subscribers.
func (s *Server) UpdateAction(action domain.Action) {
	s.broadcast("action", action)
}

// UpdateConnectionStatus pushes a connection change to stream subscribers.
func (s *Server) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	s.broadcast("connection", map[string]any{
		"name":      name,
		"connected": connected,
		"latencyMs": latency.Milliseconds(),
	})
}

// Stop closes stream clients and shuts the listener down.
func (s *Server) Stop() error {
	s.hub.Close()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Clients returns the number of connected stream clients.
func (s *Server) Clients() int {
	return s.hub.Count()
}

func (s *Server) broadcast(typ string, data any) {
	msg, err := encodeEvent(typ, data)
	if err != nil {
		s.log.Warn(context.Background(), "encode stream event failed", "type", typ, "error", err)
		return
	}
	s.hub.Broadcast(msg)
}

func encodeEvent(typ string, data any) ([]byte, error) {
	return json.Marshal(Event{Type: typ, Data: data})
}

// GET /api/tokens
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, s.views.View())
}

// GET /api/tokens/:address
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	addr := ps.ByName("address")
	token, ok := s.views.LookupTokenByAddress(addr)
	if !ok {
		s.writeError(w, r, apperror.NotFound(apperror.CodeTokenNotFound, addr))
		return
	}
	s.writeJSON(w, http.StatusOK, token)
}

// GET /api/tokens/:address/max?action=stake
func (s *Server) handleMaxAmount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := domain.ParseActionKind(r.URL.Query().Get("action"))
	if err != nil {
		s.writeError(w, r, apperror.New(apperror.CodeValidationError,
			apperror.WithCause(err),
			apperror.WithContext("action"),
			apperror.WithStatusCode(http.StatusBadRequest),
		))
		return
	}

	addr := ps.ByName("address")
	amount, err := s.actions.MaxAmount(kind, addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"token":  addr,
		"action": string(kind),
		"amount": amount,
	})
}

// GET /api/actions
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, s.actions.Actions())
}

// GET /api/actions/:id
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	action, ok := s.actions.Action(id)
	if !ok {
		s.writeError(w, r, apperror.NotFound(apperror.CodeActionNotFound, id))
		return
	}
	s.writeJSON(w, http.StatusOK, action)
}

// POST /api/actions
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req domain.ActionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContext("request body"),
			apperror.WithStatusCode(http.StatusBadRequest),
		))
		return
	}

	action, err := s.actions.Dispatch(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, action)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn(context.Background(), "write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(err, apperror.CodeInternalError, r.URL.Path)
	}
	if traceID := apm.TraceIDFromContext(r.Context()); traceID != "" {
		appErr = appErr.WithTraceID(traceID)
	}

	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	args := append([]any{"path", r.URL.Path}, appErr.LogArgs()...)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "api request failed", args...)
	} else {
		s.log.Debug(r.Context(), "api request rejected", args...)
	}
	s.writeJSON(w, status, appErr.ToResponse())
}
