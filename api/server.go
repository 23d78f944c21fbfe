package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dataplatform/config"
	"dataplatform/models"
	"dataplatform/services"
	"dataplatform/storage"
	"dataplatform/utils"
)

// Fixed messages surfaced to clients.
const (
	msgItemNotFound = "Elemento non trovato"
	msgIDNotFound   = "ID non trovato"
	msgEmptyDataset = "Dataset vuoto"
)

// Bulk loads block their request, so shutdown waits generously for them.
const defaultShutdownGrace = 5 * time.Minute

// Server exposes the item collection and the ingestion endpoint over HTTP.
type Server struct {
	// ShutdownGrace bounds how long shutdown waits for in-flight requests.
	ShutdownGrace time.Duration

	cfg    *config.Config
	items  storage.ItemStore
	ingest *services.IngestService
	logger *utils.Logger
}

// NewServer wires the handlers to their collaborators.
func NewServer(cfg *config.Config, items storage.ItemStore, ingest *services.IngestService, logger *utils.Logger) *Server {
	return &Server{cfg: cfg, items: items, ingest: ingest, logger: logger}
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items", s.handleListItems)
	mux.HandleFunc("GET /items/{id}", s.handleGetItem)
	mux.HandleFunc("POST /items", s.handleCreateItem)
	mux.HandleFunc("PUT /items/{id}", s.handleUpdateItem)
	mux.HandleFunc("DELETE /items/{id}", s.handleDeleteItem)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.loggingMiddleware(mux)
}

// Start listens on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := ":" + strconv.Itoa(s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is cancelled. It returns only after
// in-flight requests, including bulk loads, have finished or the shutdown
// grace period has run out.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	s.logger.Info("[api] %s listening on %s (project %s, %s)",
		s.cfg.BackendService, ln.Addr(), s.cfg.ProjectID, s.cfg.Environment())

	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info("[api] shutting down, waiting for in-flight requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace())
		defer cancel()
		shutdownDone <- server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	if err := <-shutdownDone; err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

func (s *Server) shutdownGrace() time.Duration {
	if s.ShutdownGrace > 0 {
		return s.ShutdownGrace
	}
	return defaultShutdownGrace
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.items.List(r.Context())
	if err != nil {
		s.upstreamError(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.items.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgItemNotFound)
		return
	}
	if err != nil {
		s.upstreamError(w, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeItemInput(w, r)
	if !ok {
		return
	}

	id, err := s.items.Insert(r.Context(), in)
	if err != nil {
		s.upstreamError(w, "create item", err)
		return
	}
	s.logger.Debug("[api] created item %s", id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "created"})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeItemInput(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if !s.itemExists(w, r, id) {
		return
	}

	err := s.items.Update(r.Context(), id, in)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgIDNotFound)
		return
	}
	if err != nil {
		s.upstreamError(w, "update item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.itemExists(w, r, id) {
		return
	}

	err := s.items.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgIDNotFound)
		return
	}
	if err != nil {
		s.upstreamError(w, "delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// itemExists writes the 404/500 response itself when it returns false.
func (s *Server) itemExists(w http.ResponseWriter, r *http.Request, id string) bool {
	_, err := s.items.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgIDNotFound)
		return false
	}
	if err != nil {
		s.upstreamError(w, "lookup item", err)
		return false
	}
	return true
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Data *[]models.Record `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body: "+err.Error())
		return
	}
	if payload.Data == nil {
		writeError(w, http.StatusUnprocessableEntity, "field required: data")
		return
	}

	rows, err := s.ingest.Ingest(r.Context(), *payload.Data)
	if errors.Is(err, services.ErrEmptyDataset) {
		writeError(w, http.StatusBadRequest, msgEmptyDataset)
		return
	}
	if err != nil {
		s.upstreamError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, models.IngestionResult{Status: "success", Rows: rows})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"project_id":  s.cfg.ProjectID,
		"environment": s.cfg.Environment(),
	})
}

// upstreamError passes the store or sink error text through unchanged.
func (s *Server) upstreamError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("[api] %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeItemInput(w http.ResponseWriter, r *http.Request) (models.ItemInput, bool) {
	var in models.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body: "+err.Error())
		return in, false
	}
	if missing := in.Missing(); len(missing) > 0 {
		writeError(w, http.StatusUnprocessableEntity, "field required: "+strings.Join(missing, ", "))
		return in, false
	}
	return in, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("[api] %s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
