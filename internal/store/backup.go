package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

var errNoBackups = errors.New("no database backups available")

// Backup is a snapshot of the database taken at a committed height. Files
// are named <db>-h<height>-<unix nanos><ext>, e.g. pfo-h12-1700000000000000000.db.
type Backup struct {
	Path    string    `json:"path"`
	Height  int64     `json:"height"`
	Created time.Time `json:"created"`
	Size    int64     `json:"size"`
}

// BackupCurrent snapshots the database with VACUUM INTO and keeps at most
// maxBackups files. It returns an empty path when nothing has been
// committed yet.
func (s *Store) BackupCurrent(maxBackups int) (string, error) {
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.commitInfo()
	if err != nil {
		return "", err
	}
	if info.Height == 0 {
		return "", nil
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backup directory: %w", err)
	}

	path := s.backupName(info.Height, time.Now())
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	if _, err := s.db.Exec("VACUUM INTO " + quoted); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("vacuum into %s: %w", filepath.Base(path), err)
	}

	backups, err := s.listBackups()
	if err != nil {
		return path, err
	}
	for _, old := range backups[min(maxBackups, len(backups)):] {
		if err := os.Remove(old.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return path, fmt.Errorf("prune %s: %w", filepath.Base(old.Path), err)
		}
	}
	return path, nil
}

// Backups lists the backups on disk, newest first.
func (s *Store) Backups() ([]Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBackups()
}

func (s *Store) backupStem() (string, string) {
	base := filepath.Base(s.file)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

func (s *Store) backupName(height int64, at time.Time) string {
	stem, ext := s.backupStem()
	for ts := at.UnixNano(); ; ts++ {
		path := filepath.Join(s.backupDir, fmt.Sprintf("%s-h%d-%d%s", stem, height, ts, ext))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
	}
}

// parseBackupName returns the height and timestamp encoded in name.
func (s *Store) parseBackupName(name string) (int64, time.Time, bool) {
	stem, ext := s.backupStem()
	rest, ok := strings.CutPrefix(name, stem+"-h")
	if !ok {
		return 0, time.Time{}, false
	}
	if rest, ok = strings.CutSuffix(rest, ext); !ok {
		return 0, time.Time{}, false
	}
	heightPart, tsPart, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, time.Time{}, false
	}
	height, err := strconv.ParseInt(heightPart, 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	return height, time.Unix(0, ts), true
}

func (s *Store) listBackups() ([]Backup, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []Backup
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		height, created, ok := s.parseBackupName(entry.Name())
		if !ok {
			continue
		}
		b := Backup{Path: filepath.Join(s.backupDir, entry.Name()), Height: height, Created: created}
		if info, err := entry.Info(); err == nil {
			b.Size = info.Size()
		}
		backups = append(backups, b)
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Created.After(backups[j].Created)
		}
		return backups[i].Height > backups[j].Height
	})
	return backups, nil
}

// restoreLatestBackup replaces the database files with the newest backup.
func (s *Store) restoreLatestBackup() error {
	backups, err := s.listBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return errNoBackups
	}

	latest := backups[0]
	if err := s.resetDatabaseFiles(); err != nil {
		return err
	}
	if err := copyFile(latest.Path, s.file); err != nil {
		return fmt.Errorf("copy backup %s: %w", filepath.Base(latest.Path), err)
	}
	return s.openDB()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
