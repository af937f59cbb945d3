package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// FileStore is a MemoryStore persisted to a single JSON file after
// every mutation. Collections survive restarts; time values come back
// as RFC 3339 strings, which the query layer and the model codecs
// both accept.
type FileStore struct {
	*MemoryStore
	path string
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	fs := &FileStore{
		MemoryStore: NewMemoryStore(),
		path:        filepath.Join(dataDir, "documents.json"),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	fs.MemoryStore.afterWrite = fs.saveLocked
	return fs, nil
}

func (fs *FileStore) load() error {
	b, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var cols map[string]map[string]map[string]any
	if err := json.Unmarshal(b, &cols); err != nil {
		return err
	}
	if cols == nil {
		cols = map[string]map[string]map[string]any{}
	}
	fs.MemoryStore.cols = cols
	return nil
}

// saveLocked runs under the MemoryStore write lock via afterWrite.
func (fs *FileStore) saveLocked() error {
	b, err := json.MarshalIndent(fs.MemoryStore.cols, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}
