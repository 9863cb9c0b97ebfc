package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"rollcall/internal/api"
	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/status"
)

const streamWriteTimeout = 5 * time.Second

type apiServer struct {
	bind     string
	token    string
	logger   *slog.Logger
	daemon   *Daemon
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	streams  sync.WaitGroup
	closing  chan struct{}
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(authMiddleware(s.token))
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/status/stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/api/session/{action:start|stop|reset}", s.handleSession).Methods(http.MethodPost)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.closing = make(chan struct{})
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "status API unavailable"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_server_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

// addr returns the bound listener address, or "" before start.
func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	closing := s.closing
	s.closing = nil
	s.listener = nil
	s.mu.Unlock()
	if closing == nil {
		return
	}
	close(closing)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.streams.Wait()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusPayload(s.daemon.Status(r.Context())))
}

func (s *apiServer) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	switch mux.Vars(r)["action"] {
	case "start":
		err = s.daemon.StartSession(ctx)
	case "stop":
		err = s.daemon.StopSession(ctx)
	case "reset":
		s.daemon.ResetSession(ctx)
	}
	resp := api.SessionActionResponse{
		Session: api.FromSessionInfo(s.daemon.SessionInfo()),
		Display: api.FromSnapshot(s.daemon.Board().Current()),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := s.daemon.History(r.Context(), limit)
	if err != nil {
		if errors.Is(err, ErrJournalDisabled) {
			s.writeJSON(w, http.StatusOK, api.HistoryResponse{Entries: []api.ScanEntry{}})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Entries: api.FromEntries(entries)})
}

// handleStream pushes one JSON display per status update until the client
// disconnects or the server shuts down.
func (s *apiServer) handleStream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	s.streams.Add(1)
	defer s.streams.Done()
	defer conn.Close()

	updates, cancel := s.daemon.Board().Subscribe()
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("status stream opened", logging.String("remote", r.RemoteAddr))
	for {
		select {
		case <-gone:
			return
		case <-closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon stopping"),
				time.Now().Add(streamWriteTimeout))
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeSnapshot(conn, snap); err != nil {
				s.logger.Debug("status stream closed", logging.Error(err))
				return
			}
		}
	}
}

func (s *apiServer) writeSnapshot(conn *websocket.Conn, snap status.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(api.FromSnapshot(snap))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

// StatusPayload converts daemon status into its API representation.
func StatusPayload(st Status) api.DaemonStatus {
	var counts map[string]int
	if len(st.OutcomeCounts) > 0 {
		counts = make(map[string]int, len(st.OutcomeCounts))
		for kind, n := range st.OutcomeCounts {
			counts[string(kind)] = n
		}
	}
	return api.DaemonStatus{
		Running:       st.Running,
		PID:           st.PID,
		JournalPath:   st.JournalPath,
		LockFilePath:  st.LockFilePath,
		CameraMonitor: st.CameraMonitor,
		Session:       api.FromSessionInfo(st.Session),
		Display:       api.FromSnapshot(st.Display),
		OutcomeCounts: counts,
		Dependencies:  api.FromDependencies(st.Dependencies),
	}
}
