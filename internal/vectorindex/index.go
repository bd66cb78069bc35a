// Package vectorindex owns one embedding index per user, persisted under
// the user's directory and loaded, appended and rewritten on each write.
package vectorindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	// DirName is the index directory inside a user's directory.
	DirName = "index"
	// FileName is the serialized index inside DirName.
	FileName = "index.json"

	formatVersion = 1
)

// Entry is one indexed document.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	AddedAt   time.Time `json:"added_at"`
}

// Index is the on-disk form of a user's index.
type Index struct {
	Version   int     `json:"version"`
	Model     string  `json:"model,omitempty"`
	Dimension int     `json:"dimension"`
	Entries   []Entry `json:"entries"`
}

func (ix *Index) has(id string) bool {
	for _, e := range ix.Entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

var errNoIndex = errors.New("no index")

// readIndex returns errNoIndex when the file does not exist.
func readIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if ix.Version != formatVersion {
		return nil, fmt.Errorf("decode %s: unsupported version %d", path, ix.Version)
	}
	for i, e := range ix.Entries {
		if len(e.Embedding) != ix.Dimension {
			return nil, fmt.Errorf("decode %s: entry %d has dimension %d, index has %d", path, i, len(e.Embedding), ix.Dimension)
		}
	}
	return &ix, nil
}

// writeIndex replaces the file atomically: readers see either the old
// index or the new one, never a partial write.
func writeIndex(path string, ix *Index) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	data, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
