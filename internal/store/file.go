package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mohammad-safakhou/dockagent/config"
	core "github.com/mohammad-safakhou/dockagent/internal/agent/core"
)

// FileStorage persists sessions as flat files under
// <data_dir>/agentic_sessions/<session_id>/: a memory.json snapshot plus the
// rendered <session_id>_trace.txt next to it. It is the fallback backend when
// Postgres is unreachable. Only the session snapshot is durable; the
// incremental hooks are accepted and dropped because the flat layout has
// nowhere to put them that the terminal snapshot would not overwrite.
type FileStorage struct {
	root string
}

// NewFileStorage roots the session layout at cfg.DataDir, defaulting to
// ./data when unset.
func NewFileStorage(cfg config.FileConfig) *FileStorage {
	root := cfg.DataDir
	if root == "" {
		root = "./data"
	}
	return &FileStorage{root: root}
}

func (f *FileStorage) sessionDir(sessionID string) string {
	return filepath.Join(f.root, "agentic_sessions", sessionID)
}

// CreateSession writes the initial snapshot so a crashed run still leaves a
// record of having started.
func (f *FileStorage) CreateSession(ctx context.Context, rec core.SessionRecord) error {
	return f.writeRecord(rec)
}

// UpdateStatus is a no-op for the file backend.
func (f *FileStorage) UpdateStatus(ctx context.Context, sessionID, status string, progress float64) error {
	return nil
}

// AppendStep is a no-op for the file backend; steps land in the terminal
// snapshot.
func (f *FileStorage) AppendStep(ctx context.Context, sessionID string, step core.Step) error {
	return nil
}

// SaveRefinement is a no-op for the file backend; the proposal also lives in
// the session's results map, which the snapshot carries.
func (f *FileStorage) SaveRefinement(ctx context.Context, sessionID string, rec core.RefinementRecord) error {
	return nil
}

// SaveSession writes both terminal artifacts: memory.json and the rendered
// trace file.
func (f *FileStorage) SaveSession(ctx context.Context, rec core.SessionRecord, trace string) error {
	if err := f.writeRecord(rec); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_trace.txt", rec.SessionID)
	return os.WriteFile(filepath.Join(f.sessionDir(rec.SessionID), name), []byte(trace), 0o644)
}

func (f *FileStorage) writeRecord(rec core.SessionRecord) error {
	if rec.SessionID == "" {
		return fmt.Errorf("session id required")
	}
	dir := f.sessionDir(rec.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", rec.SessionID, err)
	}
	return os.WriteFile(filepath.Join(dir, "memory.json"), data, 0o644)
}
