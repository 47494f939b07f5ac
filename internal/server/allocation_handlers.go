package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/storeops/internal/domain"
	"github.com/aristath/storeops/internal/events"
)

func (s *Server) handleAllocationPlan(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	plan, err := s.cfg.Allocation.PlanSKU(sku)
	if err != nil {
		s.log.Error().Err(err).Str("sku", sku).Msg("Allocation planning failed")
		writeError(w, http.StatusInternalServerError, "allocation planning failed")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleAllocationCommit plans the sku and persists a proposed transfer
// order per allocated outlet
func (s *Server) handleAllocationCommit(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	plan, err := s.cfg.Allocation.PlanSKU(sku)
	if err != nil {
		s.log.Error().Err(err).Str("sku", sku).Msg("Allocation planning failed")
		writeError(w, http.StatusInternalServerError, "allocation planning failed")
		return
	}
	if len(plan.Rows) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"plan": plan, "transfers": []domain.TransferOrder{}})
		return
	}

	orders, err := s.cfg.Allocation.DraftTransfers(plan)
	if err != nil {
		s.log.Error().Err(err).Str("sku", sku).Msg("Transfer drafting failed")
		writeError(w, http.StatusInternalServerError, "transfer drafting failed")
		return
	}

	for _, order := range orders {
		if err := s.cfg.Transfers.Insert(order); err != nil {
			s.log.Error().Err(err).Str("transfer", order.TransferID).Msg("Transfer insert failed")
			writeError(w, http.StatusInternalServerError, "transfer insert failed")
			return
		}
		if s.cfg.Events != nil {
			s.cfg.Events.Emit(events.TransferDrafted, "server", map[string]interface{}{
				"transfer_id": order.TransferID,
				"sku":         sku,
				"dest_store":  order.DestStore,
			})
		}
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"plan": plan, "transfers": orders})
}
