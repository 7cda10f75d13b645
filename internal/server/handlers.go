package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ShayCichocki/proposer/internal/orchestrator"
	"github.com/ShayCichocki/proposer/internal/store"
	"github.com/ShayCichocki/proposer/internal/tracker"
	"github.com/ShayCichocki/proposer/pkg/models"
)

// maxBodyBytes bounds request bodies; briefs are validated separately.
const maxBodyBytes = 1 << 20

type generateRequest struct {
	Brief   string `json:"brief"`
	Workers int    `json:"workers"`
	Wait    bool   `json:"wait"`
}

type generateResponse struct {
	ID     string               `json:"id"`
	Status models.RequestStatus `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	h, err := s.manager.Submit(body.Brief, orchestrator.GenerateOptions{Workers: body.Workers})
	switch {
	case errors.Is(err, orchestrator.ErrInvalidBrief):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, orchestrator.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !body.Wait {
		w.Header().Set("Location", "/requests/"+h.ID())
		s.writeJSON(w, http.StatusAccepted, generateResponse{ID: h.ID(), Status: h.Snapshot().Status})
		return
	}

	// A client that disconnects stops waiting; the request keeps running.
	req, err := h.Wait(r.Context())
	if err != nil {
		return
	}
	s.writeJSON(w, http.StatusOK, newRequestView(req))
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqs := s.manager.List()
	out := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, newRequestView(req))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.manager.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newRequestView(req))
}

func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.manager.Cancel(id)
	switch {
	case errors.Is(err, orchestrator.ErrUnknownRequest):
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, tracker.ErrNotCancellable), errors.Is(err, tracker.ErrSealed):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	req, err := s.manager.Status(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newRequestView(req))
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	var opts store.ListOptions
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "before must be a positive integer")
			return
		}
		opts.BeforeSeq = n
	}

	reports, err := s.reports.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("list reports", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	s.writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("X-Report-Version", strconv.Itoa(report.Version))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Body))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"running":        s.manager.Count(),
		"dropped_events": s.manager.DroppedEventCount(),
	})
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownRequest), errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		s.logger.Error("lookup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
