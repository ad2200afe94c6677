package server

import (
	"net/http"

	"github.com/lgili/stacklens/internal/callgraph"
	"github.com/lgili/stacklens/internal/store"
	"github.com/lgili/stacklens/internal/su"
)

// recordsResponse is the payload for /api/records.
type recordsResponse struct {
	RunID   store.RunID `json:"run_id"`
	Records []su.Record `json:"records"`
}

// entrypointsResponse is the payload for /api/entrypoints.
type entrypointsResponse struct {
	RunID       store.RunID `json:"run_id"`
	EntryPoints []string    `json:"entrypoints"`
}

// pathResponse is the payload for /api/path/:function.
type pathResponse struct {
	RunID store.RunID `json:"run_id"`
	Entry string      `json:"entry"`
	callgraph.Path
}

// resolveRun picks the run to serve: the ?run= query parameter when
// present, the latest saved run otherwise. It writes the error
// response itself and reports ok=false when no run can be resolved.
func (s *Server) resolveRun(w http.ResponseWriter, r *http.Request) (store.RunID, bool) {
	if id := r.URL.Query().Get("run"); id != "" {
		run, err := s.store.GetRun(store.RunID(id))
		if err != nil {
			writeError(w, http.StatusNotFound, "run not found")
			return "", false
		}
		return run.ID, true
	}

	run, err := s.store.LatestRun()
	if err != nil {
		writeError(w, http.StatusNotFound, "no runs saved yet")
		return "", false
	}
	return run.ID, true
}

// loadGraph rebuilds the call graph of a saved run from its records
// and edges. Edges come back in first-seen order, so worst-case paths
// solved from the rebuilt graph break ties the same way the original
// analysis did.
func (s *Server) loadGraph(run store.RunID) (*callgraph.Graph, error) {
	records, err := s.store.RecordsForRun(run, 0)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.EdgesForRun(run)
	if err != nil {
		return nil, err
	}

	g := callgraph.New()
	for _, rec := range records {
		g.AddFunction(rec)
	}
	for _, e := range edges {
		g.AddCall(e.Caller, e.Callee)
	}
	return g, nil
}
