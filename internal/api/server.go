// Package api serves the command surface and the push channel over HTTP on
// the loopback interface.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/platform"
	"github.com/stigoleg/nudge/internal/session"
)

// Service is what the server exposes.
type Service interface {
	Config() config.AppConfig
	SetConfig(config.Partial) (config.AppConfig, error)
	State() session.State

	Start(ctx context.Context) (bool, error)
	Stop(ctx context.Context) error
	Toggle(ctx context.Context) (bool, error)

	CheckPermission(ctx context.Context) bool
	RequestPermission(ctx context.Context) bool
	OpenPermissionSettings(ctx context.Context)

	Platform() platform.Info
	Version() string
	Quit()
}

// CommandResult answers start, stop and toggle.
type CommandResult struct {
	Active bool          `json:"active"`
	State  session.State `json:"state"`
}

// PermissionStatus answers the permission routes.
type PermissionStatus struct {
	Granted bool `json:"granted"`
	platform.Info
}

// VersionInfo answers GET /api/version.
type VersionInfo struct {
	Version  string            `json:"version"`
	Platform platform.Platform `json:"platform"`
}

// Options configures a Server.
type Options struct {
	Addr   string
	Token  string
	Logger *zap.Logger
}

// Server is the HTTP front of a Service.
type Server struct {
	svc    Service
	addr   string
	token  string
	logger *zap.Logger
	hub    *Hub
	mux    *http.ServeMux
}

// NewServer creates a Server. Call Run to start serving.
func NewServer(svc Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		svc:    svc,
		addr:   opts.Addr,
		token:  opts.Token,
		logger: opts.Logger.Named("api"),
	}
	s.hub = newHub(s.logger, s.welcome)
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/config", s.handleGetConfig)
	s.mux.HandleFunc("PATCH /api/config", s.handlePatchConfig)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/start", s.handleStart)
	s.mux.HandleFunc("POST /api/stop", s.handleStop)
	s.mux.HandleFunc("POST /api/toggle", s.handleToggle)
	s.mux.HandleFunc("GET /api/permission", s.handlePermission)
	s.mux.HandleFunc("POST /api/permission/request", s.handleRequestPermission)
	s.mux.HandleFunc("POST /api/permission/settings", s.handleOpenSettings)
	s.mux.HandleFunc("GET /api/version", s.handleVersion)
	s.mux.HandleFunc("POST /api/quit", s.handleQuit)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.hub.serveWS)
}

// Handler returns the routed handler with auth and panic recovery applied.
func (s *Server) Handler() http.Handler {
	return s.authMiddleware(s.recoverMiddleware(s.mux))
}

// Broadcast pushes a message to every connected client.
func (s *Server) Broadcast(msgType string, payload any) {
	s.hub.Broadcast(msgType, payload)
}

// Run serves until ctx is done. The hub runs for the same lifetime.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.hub.run(ctx)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// welcome is sent to every new push client.
func (s *Server) welcome() []Message {
	return []Message{
		newMessage(TypeConfigChanged, s.svc.Config()),
		newMessage(TypeStateChanged, s.svc.State()),
	}
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the bearer token when one is configured. Browsers
// cannot set headers on websocket upgrades, so /ws also accepts ?token=.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))

		if s.token == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" && r.URL.Path == "/ws" {
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Config())
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var p config.Partial
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}
	if p.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	cfg, err := s.svc.SetConfig(p)
	if err != nil {
		var cerr *config.Error
		if errors.As(err, &cerr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Warn("set config failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.State())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	active, err := s.svc.Start(r.Context())
	s.writeCommand(w, active, err)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Stop(r.Context())
	s.writeCommand(w, false, err)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	active, err := s.svc.Toggle(r.Context())
	s.writeCommand(w, active, err)
}

func (s *Server) writeCommand(w http.ResponseWriter, active bool, err error) {
	if err != nil {
		s.logger.Warn("command failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CommandResult{Active: active, State: s.svc.State()})
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PermissionStatus{
		Granted: s.svc.CheckPermission(r.Context()),
		Info:    s.svc.Platform(),
	})
}

func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PermissionStatus{
		Granted: s.svc.RequestPermission(r.Context()),
		Info:    s.svc.Platform(),
	})
}

func (s *Server) handleOpenSettings(w http.ResponseWriter, r *http.Request) {
	s.svc.OpenPermissionSettings(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VersionInfo{
		Version:  s.svc.Version(),
		Platform: s.svc.Platform().Platform,
	})
}

func (s *Server) handleQuit(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "quitting"})
	go s.svc.Quit()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
