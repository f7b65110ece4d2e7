// Package api serves the pfo HTTP API: transaction submission, price
// reads, program logs, a websocket notification stream and the rendered
// documentation.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	abci "github.com/tendermint/tendermint/abci/types"

	"pricefeed.mini/pfo/internal/docs"
	"pricefeed.mini/pfo/internal/logger"
	"pricefeed.mini/pfo/internal/notify"
	"pricefeed.mini/pfo/internal/store"
	"pricefeed.mini/pfo/internal/types"
)

// Backend executes transactions and answers queries. It is the local
// submitter in local mode and the Tendermint RPC client otherwise.
type Backend interface {
	Submit(ctx context.Context, raw []byte) (*types.Receipt, error)
	Query(ctx context.Context, path string, data []byte) (*abci.ResponseQuery, error)
}

// BackupStore creates and lists database backups.
type BackupStore interface {
	BackupCurrent(maxBackups int) (string, error)
	Backups() ([]store.Backup, error)
}

// Service handles API requests
type Service struct {
	backend Backend
	broker  *notify.Broker
	logger  *logger.Logger

	// Docs serves /docs when set.
	Docs *docs.Service
	// Backups serves /api/backups when set.
	Backups    BackupStore
	MaxBackups int
	// Mode is reported by /api/version.
	Mode string
}

// NewService creates a new API service
func NewService(backend Backend, broker *notify.Broker, logger *logger.Logger) *Service {
	return &Service{
		backend: backend,
		broker:  broker,
		logger:  logger,
	}
}

// Routes registers every handler on a new mux.
func (s *Service) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.HandleHealth)
	mux.HandleFunc("GET /api/version", s.HandleVersion)
	mux.HandleFunc("GET /api/address", s.HandleAddress)
	mux.HandleFunc("GET /api/price", s.HandlePrice)
	mux.HandleFunc("GET /api/account", s.HandleAccount)
	mux.HandleFunc("POST /api/tx", s.HandleSubmitTx)
	mux.HandleFunc("GET /api/logs", s.HandleLogs)
	mux.HandleFunc("GET /api/events", s.HandleEvents)
	mux.HandleFunc("POST /api/backups", s.HandleCreateBackup)
	mux.HandleFunc("GET /api/backups", s.HandleBackupsList)
	mux.HandleFunc("GET /docs", s.HandleDocList)
	mux.HandleFunc("GET /docs/{name}", s.HandleDoc)
	return mux
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
