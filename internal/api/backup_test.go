package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pricefeed.mini/pfo/internal/types"
)

func TestHandleCreateBackup(t *testing.T) {
	svc, node := setupTest(t)
	submit(t, svc, marshalTx(t, signTx(t, newIdentity(t), types.TxInitialize, types.InitializePayload{
		PriceAccount: node.priceAccount(),
		InitialPrice: 5,
	})))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/backups", nil)
		w := httptest.NewRecorder()
		svc.HandleCreateBackup(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status OK, got %v: %s", resp.Status, w.Body.String())
		}
		if resp.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", resp.Header.Get("Content-Type"))
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/backups", nil)
	w := httptest.NewRecorder()
	svc.HandleBackupsList(w, req)

	var backups []BackupFile
	if err := json.NewDecoder(w.Result().Body).Decode(&backups); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(backups) != svc.MaxBackups {
		t.Fatalf("Expected %d backups after pruning, got %d", svc.MaxBackups, len(backups))
	}
	for i := 1; i < len(backups); i++ {
		if backups[i].Created.After(backups[i-1].Created) {
			t.Errorf("Backups not newest first: %+v", backups)
		}
	}
	if backups[0].Height != 1 {
		t.Errorf("Expected backups at height 1, got %d", backups[0].Height)
	}
}

func TestHandleBackupsNotConfigured(t *testing.T) {
	svc, _ := setupTest(t)
	svc.Backups = nil

	req := httptest.NewRequest(http.MethodPost, "/api/backups", nil)
	w := httptest.NewRecorder()
	svc.HandleCreateBackup(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status Service Unavailable, got %d", w.Code)
	}
}

func TestHandleCreateBackupBeforeCommit(t *testing.T) {
	svc, _ := setupTest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/backups", nil)
	w := httptest.NewRecorder()
	svc.HandleCreateBackup(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status Conflict, got %d: %s", w.Code, w.Body.String())
	}
}
