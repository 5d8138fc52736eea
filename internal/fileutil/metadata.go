package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExportMetadata is the sidecar written next to exported subtitle files.
type ExportMetadata struct {
	Version    string    `json:"version"`
	Title      string    `json:"title"`
	Language   string    `json:"language"`
	Strategy   string    `json:"strategy"`
	Segments   int       `json:"segments"`
	Duration   string    `json:"duration"`
	DurationMs int64     `json:"duration_ms"`
	Measured   bool      `json:"measured"` // duration taken from synthesized audio
	Backend    string    `json:"backend,omitempty"`
	Model      string    `json:"model,omitempty"`
	Voice      string    `json:"voice,omitempty"`
	Formats    []string  `json:"formats"`
	ExportedAt time.Time `json:"exported_at"`
}

// MetadataPath returns <basePath>.meta.json.
func MetadataPath(basePath string) string {
	return basePath + ".meta.json"
}

// WriteMetadata writes the sidecar for basePath using atomic write (temp +
// rename).
func WriteMetadata(basePath string, meta *ExportMetadata) error {
	metaPath := MetadataPath(basePath)
	dir := filepath.Dir(metaPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "meta-*.tmp")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close metadata temp: %w", err)
	}
	success = true

	if err := os.Rename(tmpPath, metaPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads the sidecar for basePath.
func ReadMetadata(basePath string) (*ExportMetadata, error) {
	data, err := os.ReadFile(MetadataPath(basePath))
	if err != nil {
		return nil, err
	}
	var meta ExportMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}
