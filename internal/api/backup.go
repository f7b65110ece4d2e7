package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"
)

// @Title: Create Backup
// @Route: POST /api/backups
// @Description: Snapshots the committed-state database into the backups directory
// @Response: {"status": "ok", "path": "..."}
func (s *Service) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	if s.Backups == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Backups not configured")
		return
	}

	backupPath, err := s.Backups.BackupCurrent(s.MaxBackups)
	if err != nil {
		s.logger.Error("", fmt.Sprintf("Failed to create backup: %v", err))
		s.writeError(w, http.StatusInternalServerError, "Failed to create backup")
		return
	}
	if backupPath == "" {
		s.writeError(w, http.StatusConflict, "Nothing committed yet")
		return
	}

	s.logger.Info(fmt.Sprintf("API: Created backup at: %s", backupPath))
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"path":   backupPath,
	})
}

// BackupFile describes one backup on disk.
type BackupFile struct {
	Filename string    `json:"filename"`
	Height   int64     `json:"height"`
	Created  time.Time `json:"created"`
	Size     int64     `json:"size"`
}

// @Title: List Backups
// @Route: GET /api/backups
// @Description: List available database backups with their committed height, newest first
// @Response: [{"filename": "...", "height": 12, "created": "...", "size": ...}]
func (s *Service) HandleBackupsList(w http.ResponseWriter, r *http.Request) {
	if s.Backups == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Backups not configured")
		return
	}

	list, err := s.Backups.Backups()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read backups")
		return
	}

	backups := make([]BackupFile, 0, len(list))
	for _, b := range list {
		backups = append(backups, BackupFile{
			Filename: filepath.Base(b.Path),
			Height:   b.Height,
			Created:  b.Created,
			Size:     b.Size,
		})
	}
	s.writeJSON(w, http.StatusOK, backups)
}
