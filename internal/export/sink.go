// Package export persists flushed cycle documents. The live document is
// written under the file name downstream viewers poll for; every document is
// also archived with a metadata sidecar so past cycles can be served.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/dgnsrekt/odax_crawler/internal/assemble"
)

// ErrNotFound is returned for an unknown archived document.
var ErrNotFound = errors.New("export not found")

// ErrInvalidID is returned for an id that is not a UUID.
var ErrInvalidID = errors.New("invalid export id")

// Sink receives each cycle document exactly once.
type Sink interface {
	Export(ctx context.Context, doc assemble.Document) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, doc assemble.Document) error

func (f SinkFunc) Export(ctx context.Context, doc assemble.Document) error { return f(ctx, doc) }

// MultiSink hands the document to every sink and joins their errors. A
// failing sink does not stop the others.
type MultiSink []Sink

func (m MultiSink) Export(ctx context.Context, doc assemble.Document) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Export(ctx, doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileSink writes the live document to OutDir and archives a copy.
type FileSink struct {
	OutDir  string
	Archive *Archive
	// Keep bounds the archive; zero keeps everything.
	Keep int

	mu   sync.Mutex
	last Meta
}

func NewFileSink(outDir string, archive *Archive, keep int) (*FileSink, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("export: mkdir %s: %w", outDir, err)
	}
	return &FileSink{OutDir: outDir, Archive: archive, Keep: keep}, nil
}

// Export replaces the live document atomically, then archives it.
func (s *FileSink) Export(ctx context.Context, doc assemble.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.OutDir, doc.Name)
	if err := writeAtomic(path, doc.Body); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	slog.Info("cycle document written", "path", path, "cycle_id", doc.CycleID, "products", doc.Products, "bytes", len(doc.Body))

	if s.Archive == nil {
		return nil
	}
	meta := Meta{
		ID:          uuid.NewString(),
		CycleID:     doc.CycleID,
		Format:      string(doc.Format),
		Name:        doc.Name,
		ContentType: doc.ContentType,
		SizeBytes:   len(doc.Body),
		Products:    doc.Products,
		Expirations: doc.Expirations,
		CreatedAt:   doc.CreatedAt,
	}
	if err := s.Archive.Save(meta, doc.Body); err != nil {
		return err
	}
	s.mu.Lock()
	s.last = meta
	s.mu.Unlock()
	if err := s.Archive.Prune(s.Keep); err != nil {
		slog.Warn("export archive prune failed", "error", err)
	}
	return nil
}

// Last returns the most recently archived document.
func (s *FileSink) Last() (Meta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last.ID != ""
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
