package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/storeops/internal/domain"
)

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	status := domain.TransferStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.TransferProposed
	}
	limit := queryInt(r, "limit", 50)

	orders, err := s.cfg.Transfers.ListByStatus(status, limit)
	if err != nil {
		s.log.Error().Err(err).Str("status", string(status)).Msg("Failed to list transfers")
		writeError(w, http.StatusInternalServerError, "failed to list transfers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": orders})
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := s.cfg.Transfers.GetByID(id)
	if err != nil {
		s.log.Error().Err(err).Str("transfer", id).Msg("Failed to get transfer")
		writeError(w, http.StatusInternalServerError, "failed to get transfer")
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "transfer not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// transitionRequest is the body of POST /api/transfers/{id}/transition
type transitionRequest struct {
	Target domain.TransferStatus `json:"target"`
}

func (s *Server) handleTransferTransition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := s.cfg.Transfers.Transition(id, req.Target)
	if err != nil {
		s.log.Warn().Err(err).Str("transfer", id).Str("target", string(req.Target)).
			Msg("Transfer transition rejected")
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, order)
}
