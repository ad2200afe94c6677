// Package server exposes saved analysis runs over a small read-only
// JSON API, so dashboards and CI tooling can query stack history
// without touching the database directly.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lgili/stacklens/internal/store"
	"github.com/lgili/stacklens/internal/su"
)

// Server is the StackLens HTTP server.
type Server struct {
	store      *store.Store
	httpServer *http.Server
	port       int
}

// Config holds server configuration.
type Config struct {
	Port       int
	ProjectDir string
}

// New creates a new server instance.
func New(cfg Config) (*Server, error) {
	st, err := store.Open(cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s := &Server{
		store: st,
		port:  cfg.Port,
	}

	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/runs", s.corsMiddleware(s.handleRuns))
	mux.HandleFunc("/api/runs/", s.corsMiddleware(s.handleRunByID))
	mux.HandleFunc("/api/records", s.corsMiddleware(s.handleRecords))
	mux.HandleFunc("/api/entrypoints", s.corsMiddleware(s.handleEntrypoints))
	mux.HandleFunc("/api/path/", s.corsMiddleware(s.handlePath))
	mux.HandleFunc("/api/stats", s.corsMiddleware(s.handleStats))

	// Health check
	mux.HandleFunc("/api/health", s.corsMiddleware(s.handleHealth))

	// Landing page listing the API
	mux.HandleFunc("/", s.handleStatic)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start() error {
	// Setup graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on http://localhost:%d", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// corsMiddleware adds CORS headers for local development.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats returns store statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.store.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleRuns handles GET /api/runs?limit=N
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}

	writeJSON(w, http.StatusOK, runs)
}

// handleRunByID handles GET /api/runs/:id
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Extract ID from path: /api/runs/<uuid>
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	run, err := s.store.GetRun(store.RunID(id))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	paths, err := s.store.PathsForRun(run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load paths")
		return
	}
	if paths == nil {
		paths = []store.StoredPath{}
	}

	response := struct {
		*store.Run
		Paths []store.StoredPath `json:"paths"`
	}{
		Run:   run,
		Paths: paths,
	}

	writeJSON(w, http.StatusOK, response)
}

// handleRecords handles GET /api/records?run=<id>&limit=N
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	run, ok := s.resolveRun(w, r)
	if !ok {
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	records, err := s.store.RecordsForRun(run, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return
	}
	if records == nil {
		records = []su.Record{}
	}

	response := recordsResponse{RunID: run, Records: records}
	writeJSON(w, http.StatusOK, response)
}

// handleEntrypoints handles GET /api/entrypoints?run=<id>
func (s *Server) handleEntrypoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	run, ok := s.resolveRun(w, r)
	if !ok {
		return
	}

	g, err := s.loadGraph(run)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rebuild graph")
		return
	}

	entries := g.EntryPoints()
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, http.StatusOK, entrypointsResponse{RunID: run, EntryPoints: entries})
}

// handlePath handles GET /api/path/:function?run=<id>
//
// The path is solved on demand from the stored graph, so any function
// can be queried, not only the entries saved with the run.
func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	fn := strings.TrimPrefix(r.URL.Path, "/api/path/")
	if fn == "" || strings.Contains(fn, "/") {
		writeError(w, http.StatusBadRequest, "invalid function name")
		return
	}

	run, ok := s.resolveRun(w, r)
	if !ok {
		return
	}

	g, err := s.loadGraph(run)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rebuild graph")
		return
	}

	path := g.WorstCase(fn)
	writeJSON(w, http.StatusOK, pathResponse{RunID: run, Entry: fn, Path: path})
}

// handleStatic serves a landing page listing the API.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>StackLens</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
               max-width: 800px; margin: 50px auto; padding: 20px; }
        h1 { color: #333; }
        .api-list { background: #f5f5f5; padding: 20px; border-radius: 8px; }
        .api-list a { display: block; margin: 10px 0; color: #0066cc; }
        pre { background: #f0f0f0; padding: 10px; border-radius: 4px; overflow-x: auto; }
    </style>
</head>
<body>
    <h1>StackLens API Server</h1>
    <p>Read-only access to saved stack analysis runs:</p>
    <div class="api-list">
        <h3>Available Endpoints:</h3>
        <a href="/api/stats">GET /api/stats</a> - Store statistics
        <a href="/api/runs">GET /api/runs</a> - List saved runs
        <a href="/api/records">GET /api/records</a> - Largest frames of the latest run
        <a href="/api/entrypoints">GET /api/entrypoints</a> - Entry point candidates
        <a href="/api/health">GET /api/health</a> - Health check
    </div>
    <h3>Example Usage:</h3>
    <pre>
# List saved runs
curl http://localhost:` + strconv.Itoa(s.port) + `/api/runs

# Largest stack frames of the latest run
curl http://localhost:` + strconv.Itoa(s.port) + `/api/records?limit=10

# Worst-case path from an entry point
curl http://localhost:` + strconv.Itoa(s.port) + `/api/path/mb_client_poll
    </pre>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}
