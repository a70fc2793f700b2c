package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Meta describes one archived cycle document.
type Meta struct {
	ID          string    `json:"id"`
	CycleID     string    `json:"cycle_id"`
	Format      string    `json:"format"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int       `json:"size_bytes"`
	Products    int       `json:"products"`
	Expirations []string  `json:"expirations,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m Meta) ext() string {
	if m.Format == "raw" {
		return "txt"
	}
	return m.Format
}

// Archive keeps every exported document with a JSON metadata sidecar.
type Archive struct {
	dir string
	mu  sync.RWMutex
}

// NewArchive creates an Archive and ensures the directory exists.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export archive: mkdir %s: %w", dir, err)
	}
	return &Archive{dir: dir}, nil
}

func (a *Archive) validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Save writes the document and its sidecar.
func (a *Archive) Save(meta Meta, body []byte) error {
	if err := a.validateID(meta.ID); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	docPath := filepath.Join(a.dir, meta.ID+"."+meta.ext())
	jsonPath := filepath.Join(a.dir, meta.ID+".json")

	if err := os.WriteFile(docPath, body, 0o644); err != nil {
		return fmt.Errorf("export archive: write document: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(docPath)
		return fmt.Errorf("export archive: marshal meta: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		_ = os.Remove(docPath)
		return fmt.Errorf("export archive: write meta: %w", err)
	}
	return nil
}

// Get reads metadata by ID.
func (a *Archive) Get(id string) (Meta, error) {
	if err := a.validateID(id); err != nil {
		return Meta{}, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(a.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Meta{}, fmt.Errorf("export archive: read meta: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("export archive: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all documents, newest first.
func (a *Archive) List() ([]Meta, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(a.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("export archive: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Debug("export archive skipping unreadable meta", "path", path, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// Read returns the document bytes and metadata.
func (a *Archive) Read(id string) ([]byte, Meta, error) {
	meta, err := a.Get(id)
	if err != nil {
		return nil, Meta{}, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(a.dir, id+"."+meta.ext()))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, fmt.Errorf("%w: document %s", ErrNotFound, id)
		}
		return nil, Meta{}, fmt.Errorf("export archive: read document: %w", err)
	}
	return data, meta, nil
}

// Delete removes both files.
func (a *Archive) Delete(id string) error {
	meta, err := a.Get(id)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.Remove(filepath.Join(a.dir, id+"."+meta.ext())); err != nil {
		slog.Debug("export document cleanup failed", "id", id, "error", err)
	}
	if err := os.Remove(filepath.Join(a.dir, id+".json")); err != nil {
		slog.Debug("export meta cleanup failed", "id", id, "error", err)
	}
	return nil
}

// Prune keeps the newest keep documents.
func (a *Archive) Prune(keep int) error {
	if keep <= 0 {
		return nil
	}
	metas, err := a.List()
	if err != nil {
		return err
	}
	for _, m := range metas[min(keep, len(metas)):] {
		if err := a.Delete(m.ID); err != nil {
			return err
		}
	}
	return nil
}
