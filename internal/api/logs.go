package api

import (
	"net/http"
	"strconv"
)

const defaultLogLimit = 50

// @Title: Get Logs
// @Route: GET /api/logs?limit=...&tx=...
// @Description: Returns recent program and API log lines, newest first; limit=-1 returns all, tx selects one transaction's lines in order
// @Response: [{"timestamp": "...", "tx_id": "...", "text": "Price Updated!", "level": "info"}]
func (s *Service) HandleLogs(w http.ResponseWriter, r *http.Request) {
	if txID := r.URL.Query().Get("tx"); txID != "" {
		s.writeJSON(w, http.StatusOK, s.logger.ForTx(txID))
		return
	}

	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.logger.GetRecent(limit))
}
