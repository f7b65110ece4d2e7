package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pricefeed.mini/pfo/internal/types"
)

func health(t *testing.T, svc *Service) HealthStatus {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	svc.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %d: %s", w.Code, w.Body.String())
	}
	var status HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return status
}

func TestHandleHealth(t *testing.T) {
	svc, node := setupTest(t)

	status := health(t, svc)
	if status.Status != "ok" || status.Initialized || status.Height != 0 {
		t.Errorf("Unexpected health before initialize: %+v", status)
	}

	submit(t, svc, marshalTx(t, signTx(t, newIdentity(t), types.TxInitialize, types.InitializePayload{
		PriceAccount: node.priceAccount(),
		InitialPrice: 5,
	})))

	status = health(t, svc)
	if !status.Initialized || status.Height != 1 {
		t.Errorf("Unexpected health after initialize: %+v", status)
	}
}

func TestHandleVersion(t *testing.T) {
	svc, _ := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	w := httptest.NewRecorder()

	svc.HandleVersion(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["version"] != types.Version {
		t.Errorf("Expected version %s, got %s", types.Version, body["version"])
	}
	if body["mode"] != "local" {
		t.Errorf("Expected mode local, got %s", body["mode"])
	}
}

func TestRoutesRejectWrongMethod(t *testing.T) {
	svc, _ := setupTest(t)
	srv := httptest.NewServer(svc.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/tx")
	if err != nil {
		t.Fatalf("GET /api/tx: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status Method Not Allowed, got %v", resp.Status)
	}
}
