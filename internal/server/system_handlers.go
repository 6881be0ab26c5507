package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/helixtrade/replay/internal/database"
	"github.com/helixtrade/replay/internal/domain"
)

// SystemHandlers serves system health and resource endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	catalogDB *database.DB
	historyDB *database.DB
	consensus domain.ConsensusProvider
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(
	log zerolog.Logger,
	catalogDB *database.DB,
	historyDB *database.DB,
	consensus domain.ConsensusProvider,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		catalogDB: catalogDB,
		historyDB: historyDB,
		consensus: consensus,
	}
}

// HandleSystemHealth handles GET /api/system/health
func (h *SystemHandlers) HandleSystemHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	databases := map[string]string{}
	healthy := true
	for _, db := range []*database.DB{h.catalogDB, h.historyDB} {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(ctx); err != nil {
			databases[db.Name()] = err.Error()
			healthy = false
		} else {
			databases[db.Name()] = "ok"
		}
	}

	consensusStatus := "unavailable"
	if h.consensus != nil {
		if _, ok := h.consensus.ConsensusScore(); ok {
			consensusStatus = "ok"
		} else {
			consensusStatus = "degraded"
		}
	}

	cpuAvg, memUsed := h.getSystemStats()

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	h.writeJSON(w, status, map[string]interface{}{
		"data": map[string]interface{}{
			"status":    overall,
			"databases": databases,
			"consensus": consensusStatus,
			"resources": map[string]interface{}{
				"cpu_percent": cpuAvg,
				"ram_percent": memUsed,
			},
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{}
	for _, db := range []*database.DB{h.catalogDB, h.historyDB} {
		if db == nil {
			continue
		}
		s, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			stats[db.Name()] = map[string]interface{}{"error": err.Error()}
			continue
		}
		stats[db.Name()] = map[string]interface{}{
			"size_bytes":     s.SizeBytes,
			"wal_size_bytes": s.WALSizeBytes,
			"page_count":     s.PageCount,
			"page_size":      s.PageSize,
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": stats,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// getSystemStats returns CPU and RAM usage percentages. Uses a 100ms CPU
// sampling window to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
