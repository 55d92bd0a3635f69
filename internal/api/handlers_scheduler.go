package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/address-discovery/internal/errors"
	"github.com/address-discovery/internal/logging"
	"github.com/address-discovery/internal/models"
)

const (
	maxAddressLimit = 100
	snapshotLimit   = 50
)

// handleSchedulerStart handles POST /api/scheduler/start
func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Start(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Auto-scheduler started",
		"status":  s.scheduler.GetStatus(),
	})
}

// handleSchedulerStop handles POST /api/scheduler/stop
func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Stop(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Auto-scheduler stopped",
		"status":  s.scheduler.GetStatus(),
	})
}

// handleSchedulerStatus handles GET /api/scheduler/status
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.scheduler.GetStatus())
}

// handleSchedulerRunNow handles POST /api/scheduler/run-now
func (s *Server) handleSchedulerRunNow(w http.ResponseWriter, r *http.Request) {
	logging.FromContext(r.Context()).Info("Manual scheduler run triggered")
	// a client disconnect must not cut the run short
	results := s.scheduler.RunAll(context.WithoutCancel(r.Context()))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Manual scrape completed",
		"results": results,
	})
}

// handleListAddresses handles GET /api/scheduler/addresses?limit=
func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	limit := maxAddressLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		if n < limit {
			limit = n
		}
	}

	addresses, err := s.ingestion.ListConfirmedAddresses(r.Context(), limit)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("list addresses", err))
		return
	}
	if addresses == nil {
		addresses = []*models.Address{}
	}
	respondJSON(w, http.StatusOK, addresses)
}

// handleScanURL handles POST /api/scheduler/scan-url
func (s *Server) handleScanURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "URL is required", nil)
		return
	}

	result, err := s.ingestion.ScanItem(r.Context(), req.URL)
	if err != nil {
		logging.FromContext(r.Context()).WithField("url", req.URL).WithError(err).Error("URL scan failed")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "URL scan completed",
		"result":  result,
		"url":     req.URL,
	})
}

// handleListSnapshots handles GET /api/scheduler/snapshots
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.ingestion.ListRecentSnapshots(r.Context(), snapshotLimit)
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("list snapshots", err))
		return
	}

	out := make([]models.SnapshotSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.Summary())
	}
	respondJSON(w, http.StatusOK, out)
}

// handleStats handles GET /api/scheduler/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ingestion.Stats(r.Context())
	if err != nil {
		respondServiceError(w, errors.NewDatabaseError("stats", err))
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
