package utils

import (
	"os"
	"path/filepath"
)

// EnsureExportDir creates the local exports directory if it doesn't exist
func EnsureExportDir() error {
	return os.MkdirAll("exports", os.ModePerm)
}

// SaveExport writes an export payload under the local exports directory and
// returns its path. Fallback for deployments without R2 configured.
func SaveExport(key string, payload []byte) (string, error) {
	destPath := filepath.Join("exports", filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(destPath, payload, 0o644); err != nil {
		return "", err
	}
	return destPath, nil
}
