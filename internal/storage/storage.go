// Package storage persists session context snapshots. Each backend stores one
// whole-context record per session id and overwrites it on every save.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bowerhall/conductor/internal/config"
	"github.com/bowerhall/conductor/internal/session"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshots is the persistence port used by the context manager.
type Snapshots interface {
	Save(ctx context.Context, c *session.Context) error
	// Load returns ErrNotFound when no snapshot exists for the session.
	Load(ctx context.Context, sessionID string) (*session.Context, error)
	Delete(ctx context.Context, sessionID string) error
}

// PersistenceError reports a failed snapshot read, write or delete.
type PersistenceError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s snapshot %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op, sessionID string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, SessionID: sessionID, Err: err}
}

// New builds the backend selected by cfg. db is only used by the sqlite backend.
func New(ctx context.Context, cfg config.StorageConfig, db *sql.DB) (Snapshots, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		if db == nil {
			return nil, errors.New("sqlite snapshot backend needs a database")
		}
		return NewSQLiteStore(db)
	case "minio":
		store, err := NewMinioStore(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session storage backend: %s", cfg.Backend)
	}
}
