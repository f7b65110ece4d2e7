// Package store persists committed ledger state to SQLite. Each commit
// replaces the stored accounts and records the block height and app hash
// in a single transaction, so a restart resumes from the last commit.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pricefeed.mini/pfo/internal/ledger"
	"pricefeed.mini/pfo/internal/types"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile        = "pfo.db"
	defaultBackupDirName = "backups"
	maxBusyTimeoutMs     = 5000
	defaultMaxBackups    = 20
)

// CommitInfo is the last committed block.
type CommitInfo struct {
	Height  int64
	AppHash []byte
}

// Store manages account persistence to a SQLite database file.
type Store struct {
	mu        sync.RWMutex
	db        *sql.DB
	file      string
	backupDir string
}

// NewStore opens (or creates) the database at filePath. A database that
// fails to open is restored from the newest backup, or recreated empty when
// there is none.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	s := &Store{
		file:      absPath,
		backupDir: filepath.Join(filepath.Dir(absPath), defaultBackupDirName),
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	if err := s.tryOpenOrRecover(); err != nil {
		return nil, err
	}

	if err := s.ensureSchema(); err != nil {
		_ = s.closeDB()
		return nil, err
	}

	return s, nil
}

// Path returns the absolute database path.
func (s *Store) Path() string {
	return s.file
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeDB()
}

func (s *Store) tryOpenOrRecover() error {
	if err := s.openDB(); err != nil {
		if recErr := s.recoverDatabase(err); recErr != nil {
			return recErr
		}
	}
	return nil
}

func (s *Store) openDB() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", filepath.Clean(s.file))

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}

	// A file that is not a database only fails on first read.
	if _, err := db.Exec("SELECT count(*) FROM sqlite_master"); err != nil {
		db.Close()
		return fmt.Errorf("read sqlite schema: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) recoverDatabase(openErr error) error {
	if err := s.restoreLatestBackup(); err != nil {
		if errors.Is(err, errNoBackups) {
			if cleanErr := s.resetDatabaseFiles(); cleanErr != nil {
				return fmt.Errorf("reset database after %v: %w", openErr, cleanErr)
			}
			if err := s.openDB(); err != nil {
				return fmt.Errorf("create fresh database after %v: %w", openErr, err)
			}
			return nil
		}
		return fmt.Errorf("restore database after %v: %w", openErr, err)
	}
	return nil
}

func (s *Store) closeDB() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) resetDatabaseFiles() error {
	_ = s.closeDB()

	var firstErr error
	for _, path := range []string{s.file, s.file + "-wal", s.file + "-shm"} {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", filepath.Base(path), err)
			}
		}
	}
	return firstErr
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS accounts (
		address TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		lamports INTEGER NOT NULL,
		data BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}

	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS commit_info (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		height INTEGER NOT NULL,
		app_hash BLOB NOT NULL,
		committed_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create commit_info table: %w", err)
	}

	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS delivered_txs (
		digest TEXT PRIMARY KEY,
		height INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create delivered_txs table: %w", err)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	return nil
}

// LoadAccounts returns every stored account.
func (s *Store) LoadAccounts() ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT address, owner, lamports, data FROM accounts ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// LoadDelivered returns every recorded transaction digest.
func (s *Store) LoadDelivered() ([]ledger.DeliveredTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT digest, height FROM delivered_txs ORDER BY height, digest`)
	if err != nil {
		return nil, fmt.Errorf("query delivered txs: %w", err)
	}
	defer rows.Close()

	var txs []ledger.DeliveredTx
	for rows.Next() {
		var (
			hexDigest string
			height    int64
		)
		if err := rows.Scan(&hexDigest, &height); err != nil {
			return nil, fmt.Errorf("scan delivered tx: %w", err)
		}
		digest, err := types.ParseTxDigest(hexDigest)
		if err != nil {
			return nil, fmt.Errorf("delivered tx %q: %w", hexDigest, err)
		}
		txs = append(txs, ledger.DeliveredTx{Digest: digest, Height: height})
	}
	return txs, rows.Err()
}

// LoadCommitInfo returns the last commit, or a zero CommitInfo for a fresh
// database.
func (s *Store) LoadCommitInfo() (CommitInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commitInfo()
}

func (s *Store) commitInfo() (CommitInfo, error) {
	var info CommitInfo
	err := s.db.QueryRow(`SELECT height, app_hash FROM commit_info WHERE id = 1`).Scan(&info.Height, &info.AppHash)
	if errors.Is(err, sql.ErrNoRows) {
		return CommitInfo{}, nil
	}
	if err != nil {
		return CommitInfo{}, fmt.Errorf("query commit info: %w", err)
	}
	return info, nil
}

// SaveCommit atomically replaces the stored accounts and commit info and
// adds the transactions delivered since the previous successful save.
func (s *Store) SaveCommit(info CommitInfo, accounts []ledger.Account, delivered []ledger.DeliveredTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO accounts (address, owner, lamports, data, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, acct := range accounts {
		data := acct.Data
		if data == nil {
			data = []byte{}
		}
		// SQLite integers are signed; lamports round-trip through int64 bits.
		if _, err := stmt.Exec(acct.Address.String(), acct.Owner.String(), int64(acct.Lamports), data, now); err != nil {
			return fmt.Errorf("insert account %s: %w", acct.Address, err)
		}
	}

	for _, d := range delivered {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO delivered_txs (digest, height) VALUES (?, ?)`, d.Digest.String(), d.Height); err != nil {
			return fmt.Errorf("record delivered tx %s: %w", d.Digest, err)
		}
	}

	_, err = tx.Exec(`INSERT INTO commit_info (id, height, app_hash, committed_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET height = excluded.height, app_hash = excluded.app_hash, committed_at = excluded.committed_at`,
		info.Height, info.AppHash, now)
	if err != nil {
		return fmt.Errorf("write commit info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanAccount(scanner interface{ Scan(dest ...any) error }) (ledger.Account, error) {
	var (
		addr, owner string
		lamports    int64
		data        []byte
	)
	if err := scanner.Scan(&addr, &owner, &lamports, &data); err != nil {
		return ledger.Account{}, fmt.Errorf("scan account: %w", err)
	}

	address, err := types.ParsePubkey(addr)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("stored address %q: %w", addr, err)
	}
	ownerKey, err := types.ParsePubkey(owner)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("stored owner %q: %w", owner, err)
	}

	return ledger.Account{
		Address:  address,
		Owner:    ownerKey,
		Lamports: uint64(lamports),
		Data:     data,
	}, nil
}
