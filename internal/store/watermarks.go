package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vaerksted/ffsync/models"
)

type fileWatermarkStore struct {
	path string
}

// NewFileWatermarkStore persists watermarks as a small JSON file. A
// missing file reads as an empty map so the first cycle pulls everything.
func NewFileWatermarkStore(path string) WatermarkStore {
	return &fileWatermarkStore{path: path}
}

func (s *fileWatermarkStore) Load() (models.Watermarks, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Watermarks{}, nil
		}
		return nil, fmt.Errorf("read watermark file: %w", err)
	}

	var marks models.Watermarks
	if err = json.Unmarshal(data, &marks); err != nil {
		return nil, fmt.Errorf("decode watermark file: %w", err)
	}
	if marks == nil {
		marks = models.Watermarks{}
	}
	return marks, nil
}

func (s *fileWatermarkStore) Save(marks models.Watermarks) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create watermark dir: %w", err)
		}
	}

	payload, err := json.MarshalIndent(marks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode watermarks: %w", err)
	}

	if err = os.WriteFile(s.path, payload, 0o600); err != nil {
		return fmt.Errorf("write watermark file: %w", err)
	}
	return nil
}
