package api

import (
	"net/http"
	"runtime"

	abciapp "pricefeed.mini/pfo/internal/abci"
	"pricefeed.mini/pfo/internal/types"
)

// HealthStatus is the /api/health body.
type HealthStatus struct {
	Status      string `json:"status"` // ok or unavailable
	Height      int64  `json:"height"`
	Initialized bool   `json:"initialized"`
	Error       string `json:"error,omitempty"`
}

// @Title: Get Health
// @Route: GET /api/health
// @Description: Probes the backend; reports the last committed height and whether the price record exists. 503 when the backend does not answer
// @Response: {"status": "ok", "height": 3, "initialized": true}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := s.backend.Query(r.Context(), abciapp.QueryPrice, nil)
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, HealthStatus{Status: "unavailable", Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, HealthStatus{
		Status:      "ok",
		Height:      resp.Height,
		Initialized: resp.Code == abciapp.CodeTypeOK,
	})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns pfo version, node mode and build details
// @Response: {"version": "...", "mode": "local", "go_version": "...", "build_time": "..."}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"version":    types.Version,
		"mode":       s.Mode,
		"go_version": runtime.Version(),
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if types.BuildTime != "" {
		response["build_time"] = types.BuildTime
	}
	s.writeJSON(w, http.StatusOK, response)
}
