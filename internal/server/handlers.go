package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/liftsync/internal/logger"
	"github.com/roach88/liftsync/internal/store"
	"github.com/roach88/liftsync/internal/syncq"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.deps.Status.Status(), http.StatusOK)
}

// statusEvents streams every status change as a server-sent event,
// starting with the current status.
func (s *Server) statusEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := s.deps.Status.Subscribe()
	defer cancel()

	if !writeEvent(w, s.deps.Status.Status()) {
		return
	}
	flusher.Flush()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return
			}
			if !writeEvent(w, st) {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err == nil
}

type syncResponse struct {
	Report syncq.Report `json:"report"`
	Error  string       `json:"error,omitempty"`
}

// sync runs a pull-then-drain cycle, or only a drain with ?drain_only=true.
// A cycle that ran answers 200 even when items failed; the failure summary
// is in the error field.
func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	drainOnly, _ := strconv.ParseBool(r.URL.Query().Get("drain_only"))

	var (
		rep syncq.Report
		err error
	)
	if drainOnly {
		rep, err = s.deps.Syncer.Drain(r.Context())
	} else {
		rep, err = s.deps.Syncer.PullThenDrain(r.Context())
	}

	resp := syncResponse{Report: rep}
	if err != nil {
		resp.Error = err.Error()
		logger.FromContext(r.Context(), s.deps.Logger).Warn("sync finished with errors", "error", err)
	}
	status := http.StatusOK
	if rep.Skipped {
		status = http.StatusAccepted
	}
	respondJSON(w, resp, status)
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	actions, err := s.deps.Queue.Pending(r.Context())
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, actions, http.StatusOK)
}

func (s *Server) deadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := s.deps.Queue.DeadLetters(r.Context())
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, letters, http.StatusOK)
}

func (s *Server) requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := s.deps.Queue.Requeue(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, "dead letter not found", http.StatusNotFound)
		return
	}
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, a, http.StatusOK)
}

func respondJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, msg string, status int) {
	respondJSON(w, map[string]string{"error": msg}, status)
}
