package utils

import (
	"fmt"
	"os"
)

// CreateFolder creates the directory (and parents) if it does not exist yet.
func CreateFolder(folderPath string) error {
	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", folderPath, err)
	}
	return nil
}

// DeleteFile removes the file at path, ignoring files that are already gone.
func DeleteFile(filePath string) error {
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
