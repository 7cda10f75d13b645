package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/proposer/pkg/models"
)

// Export writes the report body to dir as <Title>-v<version>.md and returns
// the written path. An existing file with the same name is replaced.
func Export(r *models.Report, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, r.FileName())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(r.Body), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize report: %w", err)
	}
	return path, nil
}
