package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bowerhall/conductor/internal/session"
)

// FileStore keeps one indented JSON file per session: {dir}/{sessionID}.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "sessions"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func (s *FileStore) Save(ctx context.Context, c *session.Context) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return persistErr("save", c.SessionID, err)
	}

	tmp, err := os.CreateTemp(s.dir, c.SessionID+".*.tmp")
	if err != nil {
		return persistErr("save", c.SessionID, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return persistErr("save", c.SessionID, err)
	}
	if err := tmp.Close(); err != nil {
		return persistErr("save", c.SessionID, err)
	}

	return persistErr("save", c.SessionID, os.Rename(tmp.Name(), s.path(c.SessionID)))
}

func (s *FileStore) Load(ctx context.Context, sessionID string) (*session.Context, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("load", sessionID, err)
	}

	return decode(sessionID, data)
}

func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	err := os.Remove(s.path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return persistErr("delete", sessionID, err)
}

// decode fills the fields an older or hand-edited snapshot may lack.
func decode(sessionID string, data []byte) (*session.Context, error) {
	c := session.NewContext(sessionID)
	if err := json.Unmarshal(data, c); err != nil {
		return nil, persistErr("load", sessionID, err)
	}

	if c.SessionID == "" {
		c.SessionID = sessionID
	}
	if c.ActiveFiles == nil {
		c.ActiveFiles = make(map[string]string)
	}
	if c.RecentTurns == nil {
		c.RecentTurns = []session.Turn{}
	}
	if c.TaskHistory == nil {
		c.TaskHistory = []string{}
	}

	return c, nil
}
