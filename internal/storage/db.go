package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kbservice/internal/config"

	_ "modernc.org/sqlite"
)

// ErrBackupUnsupported is returned by backup helpers when the configured driver has no file to snapshot.
var ErrBackupUnsupported = errors.New("backup is only supported for the sqlite driver")

// Open opens the SQLite catalog named by cfg.Database.Path with a pool capped at
// cfg.Database.MaxConnections.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := "file:" + filepath.ToSlash(cfg.Database.Path) + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	maxConns := cfg.Database.MaxConnections
	if maxConns <= 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if cfg.Database.WALMode {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set wal mode: %w", err)
		}
	}
	return db, nil
}

// BackupFile writes a consistent snapshot of db into backupDir and returns its path.
func BackupFile(ctx context.Context, db *sql.DB, backupDir string) (string, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir backup dir: %w", err)
	}
	ts := time.Now().UTC().Format("20060102T150405.000000000Z")
	dst := filepath.Join(backupDir, "kbservice-"+ts+".db")
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return "", fmt.Errorf("write backup db: %w", err)
	}
	return dst, nil
}

// Backuper snapshots one SQLite database into a fixed directory.
type Backuper struct {
	DB  *sql.DB
	Dir string
}

func (b Backuper) Backup(ctx context.Context) (string, error) {
	if b.DB == nil {
		return "", ErrBackupUnsupported
	}
	return BackupFile(ctx, b.DB, b.Dir)
}
