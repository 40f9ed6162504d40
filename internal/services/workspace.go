package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// WorkspaceManager creates and removes isolated per-job temp directories.
// Each workspace gets a random name, so concurrent jobs never collide on
// the filesystem.
type WorkspaceManager struct {
	root string
}

// NewWorkspaceManager creates a workspace manager rooted under dir
func NewWorkspaceManager(dir string) *WorkspaceManager {
	return &WorkspaceManager{root: filepath.Join(dir, "doc-convert")}
}

// Create makes a new uniquely named workspace directory
func (m *WorkspaceManager) Create() (string, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace root: %w", err)
	}

	ws := filepath.Join(m.root, "job-"+uuid.NewString())
	if err := os.Mkdir(ws, 0o700); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}

	return ws, nil
}

// Destroy removes a workspace recursively. Best-effort and idempotent:
// a missing directory is not an error, and removal failures are logged
// rather than propagated so they never mask a pipeline error.
func (m *WorkspaceManager) Destroy(ws string) {
	if ws == "" || !strings.HasPrefix(ws, m.root+string(os.PathSeparator)) {
		return
	}
	if err := os.RemoveAll(ws); err != nil {
		log.Printf("Warning: Failed to remove workspace %s: %v", ws, err)
	}
}

// Stage writes upload bytes into a workspace under the upload's base
// filename and returns the staged path.
func (m *WorkspaceManager) Stage(ws, filename string, data []byte) (string, error) {
	name := filepath.Base(filename)
	if name == "" || name == "." || name == string(os.PathSeparator) {
		name = "input"
	}

	path := filepath.Join(ws, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}

	return path, nil
}
