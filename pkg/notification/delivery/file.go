package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileDeliveryService appends each Notification as a JSON file under dir,
// forming an on-disk audit trail independent of whatever else is watching
// logs. It writes to a temp file and renames into place so a reader never
// sees a half-written notification.
type FileDeliveryService struct {
	dir string
}

func NewFileDeliveryService(dir string) *FileDeliveryService {
	return &FileDeliveryService{dir: dir}
}

func (s *FileDeliveryService) Deliver(ctx context.Context, n *Notification) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &RetryableError{Op: "failed to create output directory", Err: err}
	}

	payload, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", time.Now().UTC().Format("20060102T150405.000000000"), uuid.New().String())
	tmpPath := filepath.Join(s.dir, "."+name+".tmp")
	finalPath := filepath.Join(s.dir, name)

	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return &RetryableError{Op: "failed to write temporary file", Err: err}
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return &RetryableError{Op: "failed to finalize notification file", Err: err}
	}
	return nil
}
