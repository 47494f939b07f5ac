package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var serverStartTime = time.Now()

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime_seconds": int(time.Since(serverStartTime).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		status["cpu_percent"] = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		status["memory_percent"] = memStat.UsedPercent
		status["memory_used_mb"] = memStat.Used / 1024 / 1024
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAgentRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	runs, err := s.cfg.AgentRuns.ListRecent(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list agent runs")
		writeError(w, http.StatusInternalServerError, "failed to list agent runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleAgentRunNow triggers a decision cycle outside its schedule
func (s *Server) handleAgentRunNow(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AgentJob == nil {
		writeError(w, http.StatusServiceUnavailable, "agent is not enabled")
		return
	}

	go func() {
		if err := s.cfg.AgentJob.Run(); err != nil {
			s.log.Error().Err(err).Msg("Manual agent cycle failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cycle started"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
