package config

import (
	"os"
	"path/filepath"
)

const (
	SessionBackendFile   = "file"
	SessionBackendSQLite = "sqlite"
)

type StorageConfig interface {
	GetDataFolder() string
	GetSessionBackend() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetDataFolder defaults to ~/.medscan, falling back to ./data when there is no home directory.
func (Storage) GetDataFolder() string {
	if folder := os.Getenv("DATA_FOLDER"); folder != "" {
		return folder
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".medscan")
}

func (Storage) GetSessionBackend() string {
	return GetEnv("SESSION_BACKEND", SessionBackendFile)
}
