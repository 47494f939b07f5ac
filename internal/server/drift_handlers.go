package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleDriftMetrics(w http.ResponseWriter, r *http.Request) {
	featureSet := chi.URLParam(r, "featureSet")
	limit := queryInt(r, "limit", 50)

	metrics, err := s.cfg.DriftMetrics.ListRecent(featureSet, limit)
	if err != nil {
		s.log.Error().Err(err).Str("feature_set", featureSet).Msg("Failed to list drift metrics")
		writeError(w, http.StatusInternalServerError, "failed to list drift metrics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"metrics": metrics})
}

func (s *Server) handleDriftCheck(w http.ResponseWriter, r *http.Request) {
	featureSet := chi.URLParam(r, "featureSet")
	limit := queryInt(r, "samples", 500)

	metric, err := s.cfg.DriftMonitor.Check(featureSet, limit)
	if err != nil {
		s.log.Error().Err(err).Str("feature_set", featureSet).Msg("Drift check failed")
		writeError(w, http.StatusInternalServerError, "drift check failed")
		return
	}
	if metric == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"feature_set": featureSet,
			"checked":     false,
			"reason":      "no samples or baseline just seeded",
		})
		return
	}
	writeJSON(w, http.StatusOK, metric)
}

func (s *Server) handleDriftRebase(w http.ResponseWriter, r *http.Request) {
	featureSet := chi.URLParam(r, "featureSet")
	limit := queryInt(r, "samples", 500)

	if err := s.cfg.DriftMonitor.RebaseBaseline(featureSet, limit); err != nil {
		s.log.Error().Err(err).Str("feature_set", featureSet).Msg("Baseline rebase failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"feature_set": featureSet, "rebased": true})
}
