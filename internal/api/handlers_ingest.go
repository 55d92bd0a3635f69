package api

import (
	stderrors "errors"
	"net/http"

	"github.com/address-discovery/internal/errors"
	"github.com/address-discovery/internal/job"
	"github.com/address-discovery/internal/logging"
	"github.com/address-discovery/internal/service"
	"github.com/gorilla/mux"
)

// maxPageSize is the largest listing page the source serves
const maxPageSize = 100

// handleScrapeReddit handles POST /workers/scrape/reddit
func (s *Server) handleScrapeReddit(w http.ResponseWriter, r *http.Request) {
	var req service.CycleInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Channel == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "subreddit required", nil)
		return
	}
	if req.PageSize < 0 || req.PageSize > maxPageSize {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be between 1 and 100", nil)
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), &req)
	if err != nil {
		logging.FromContext(r.Context()).WithField("subreddit", req.Channel).WithError(err).Error("Scrape request failed")
		if errors.IsUserError(err) {
			respondServiceError(w, err)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeProcessingFailed, "processing failed", map[string]interface{}{
			"details": err.Error(),
		})
		return
	}

	if result.Queued {
		respondJSON(w, http.StatusAccepted, result)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleGetJob handles GET /workers/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	j, err := s.dispatcher.JobStatus(r.Context(), id)
	switch {
	case stderrors.Is(err, job.ErrJobNotFound):
		respondServiceError(w, errors.NewNotFoundError("job", id))
		return
	case stderrors.Is(err, job.ErrQueueDisabled):
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Job queue is not enabled", nil)
		return
	case err != nil:
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, j)
}
