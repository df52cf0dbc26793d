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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"mediaconv/internal/api"
	"mediaconv/internal/config"
	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
	"mediaconv/internal/services"
)

// requestsPerMinute bounds each client IP.
const requestsPerMinute = 240

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	return &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))

	r.Get("/metrics", s.daemon.metrics.Handler().ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.daemon.cfg.Paths.APIToken))
		r.Get("/status", s.handleStatus)
		r.Get("/queue", s.handleQueue)
		r.Get("/queue/{id}", s.handleQueueItem)
		r.Post("/queue/retry", s.handleRetry)
		r.Delete("/queue/history", s.handleClearHistory)
		r.Post("/process", s.handleProcess)
		r.Get("/assets", s.handleAssets)
		r.Get("/assets/{id}", s.handleAsset)
		r.Post("/assets/{id}/conversions", s.handleEnqueue)
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
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
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

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()).API())
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: unknown status %q", services.ErrInvalidRequest, value))
			return
		}
		statuses = append(statuses, status)
	}
	items := api.FromQueueItems(s.daemon.ListQueue(statuses...))
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.daemon.QueueItem(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, r, http.StatusNotFound, queue.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: api.FromQueueItem(item)})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req api.RetryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: %v", services.ErrInvalidRequest, err))
			return
		}
	}
	result, err := api.RetryFailedItemsByID(s.daemon.Service(), req.IDs)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	removed, persisted, err := s.daemon.ClearHistory(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearHistoryResponse{Removed: removed, Persisted: persisted})
}

func (s *apiServer) handleProcess(w http.ResponseWriter, _ *http.Request) {
	s.daemon.Process()
	w.WriteHeader(http.StatusAccepted)
}

func (s *apiServer) handleAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.daemon.ListAssets(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromAssets(assets))
}

func (s *apiServer) handleAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.assetID(w, r)
	if !ok {
		return
	}
	asset, err := s.daemon.Asset(r.Context(), id)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromAsset(asset))
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	id, ok := s.assetID(w, r)
	if !ok {
		return
	}
	var req api.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: %v", services.ErrInvalidRequest, err))
		return
	}
	kind, valid := queue.ParseKind(req.Kind)
	if !valid {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: unknown kind %q", services.ErrInvalidRequest, req.Kind))
		return
	}
	outcome, err := s.daemon.Enqueue(r.Context(), id, kind)
	if err != nil {
		s.writeError(w, r, statusForError(err), err)
		return
	}
	status := http.StatusOK
	if outcome.Item != nil && outcome.Queued() {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, api.FromOutcome(outcome))
}

func (s *apiServer) assetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: invalid asset id", services.ErrInvalidRequest))
		return 0, false
	}
	return id, true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAssetMissing), errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := api.ErrorResponse{Error: err.Error(), Kind: services.KindOf(err)}
	if errors.Is(err, services.ErrInvalidRequest) {
		resp.Kind = "invalid_request"
	}
	if id, ok := services.RequestIDFromContext(r.Context()); ok {
		resp.RequestID = id
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Warn("api request failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, resp)
}

// API converts the status to its transport representation.
func (status Status) API() api.DaemonStatus {
	available := true
	for _, dep := range status.Encoder {
		if !dep.Available && !dep.Optional {
			available = false
		}
	}
	worker := api.WorkerStatus{Running: status.Running, Workers: status.Workers}
	if !status.Queue.OldestWaiting.IsZero() {
		worker.OldestWaiting = status.Queue.OldestWaiting.UTC().Format(time.RFC3339)
	}
	if !status.Queue.OldestHeartbeat.IsZero() {
		worker.OldestHeartbeat = status.Queue.OldestHeartbeat.UTC().Format(time.RFC3339)
	}
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		SocketPath:   status.SocketPath,
		APIAddress:   status.APIAddress,
		Queue:        api.FromStats(status.Queue.Stats),
		Worker:       worker,
		Encoder: api.EncoderStatus{
			Engine:       status.Engine,
			Available:    available,
			Dependencies: api.FromDependencies(status.Encoder),
		},
		Catalog:  api.FromCatalogHealth(status.Catalog),
		Watching: status.Watching,
	}
}
