package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/storeops/internal/domain"
)

// evaluateRequest is the body of POST /api/decisions/evaluate
type evaluateRequest struct {
	Context  domain.CandidateContext `json:"context"`
	Features domain.FeatureVector    `json:"features"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.cfg.Orchestrator.Run(req.Context, req.Features)
	if err != nil {
		s.log.Error().Err(err).Str("sku", req.Context.SKU).Msg("Decision run failed")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	proposals, err := s.cfg.Proposals.ListRecent(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list proposals")
		writeError(w, http.StatusInternalServerError, "failed to list proposals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"proposals": proposals})
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	proposal, err := s.cfg.Proposals.GetByID(id)
	if err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("Failed to get proposal")
		writeError(w, http.StatusInternalServerError, "failed to get proposal")
		return
	}
	if proposal == nil {
		writeError(w, http.StatusNotFound, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	trace, err := s.cfg.Proposals.GetTrace(id)
	if err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("Failed to get trace")
		writeError(w, http.StatusInternalServerError, "failed to get trace")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trace": trace})
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)

	if subject := r.URL.Query().Get("subject"); subject != "" {
		records, err := s.cfg.Audits.ListBySubject(subject, limit)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to list audit records")
			writeError(w, http.StatusInternalServerError, "failed to list audit records")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}

	records, err := s.cfg.Audits.ListSince(since, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list audit records")
		writeError(w, http.StatusInternalServerError, "failed to list audit records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}
