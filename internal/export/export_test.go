package export

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/odax_crawler/internal/assemble"
)

func testDoc(created time.Time) assemble.Document {
	return assemble.Document{
		CycleID:     "cycle-1",
		Format:      assemble.FormatRaw,
		Name:        assemble.FormatRaw.FileName(),
		ContentType: assemble.FormatRaw.ContentType(),
		Body:        []byte("EUREX_ODAX_PAGE\r\n"),
		Products:    1,
		Expirations: []string{"19/12/2025"},
		CreatedAt:   created,
	}
}

func TestFileSinkWritesLiveDocumentAndArchive(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("NewArchive() error = %v", err)
	}
	sink, err := NewFileSink(filepath.Join(dir, "out"), archive, 0)
	if err != nil {
		t.Fatalf("NewFileSink() error = %v", err)
	}

	doc := testDoc(time.Now())
	if err := sink.Export(context.Background(), doc); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	live, err := os.ReadFile(filepath.Join(dir, "out", "DT-DL1odaxtoday.txt"))
	if err != nil {
		t.Fatalf("read live document: %v", err)
	}
	if !bytes.Equal(live, doc.Body) {
		t.Fatalf("live document = %q; want %q", live, doc.Body)
	}

	meta, ok := sink.Last()
	if !ok {
		t.Fatal("Last() ok = false; want true")
	}
	body, got, err := archive.Read(meta.ID)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(body, doc.Body) || got.CycleID != "cycle-1" || got.Products != 1 {
		t.Fatalf("archived = %q %+v", body, got)
	}
}

func TestArchiveListNewestFirstAndPrune(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	if err != nil {
		t.Fatalf("NewArchive() error = %v", err)
	}
	sink := &FileSink{OutDir: t.TempDir(), Archive: archive, Keep: 2}

	base := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := sink.Export(context.Background(), testDoc(base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Export(%d) error = %v", i, err)
		}
	}

	metas, err := archive.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("List() len = %d; want 2", len(metas))
	}
	if !metas[0].CreatedAt.After(metas[1].CreatedAt) {
		t.Fatalf("List() not newest first: %v, %v", metas[0].CreatedAt, metas[1].CreatedAt)
	}
	if metas[1].CreatedAt.Equal(base) {
		t.Fatal("oldest document survived pruning")
	}
}

func TestArchiveRejectsInvalidID(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewArchive() error = %v", err)
	}
	if _, err := archive.Get("../etc/passwd"); err == nil || !strings.Contains(err.Error(), "invalid export id") {
		t.Fatalf("Get() error = %v; want invalid export id", err)
	}
	_, err = archive.Get("123e4567-e89b-12d3-a456-426614174000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(unknown) error = %v; want ErrNotFound", err)
	}
}

func TestDeleteLogsDocumentCleanupFailure(t *testing.T) {
	dir := t.TempDir()
	archive := &Archive{dir: dir}
	id := "123e4567-e89b-12d3-a456-426614174000"
	if err := os.WriteFile(filepath.Join(dir, id+".json"), []byte(`{"id":"`+id+`","format":"html"}`), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	if err := archive.Delete(id); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}
	if !strings.Contains(buf.String(), "export document cleanup failed") {
		t.Fatalf("expected cleanup debug log, got %q", buf.String())
	}
}

func TestMultiSinkContinuesAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	var calls []string
	m := MultiSink{
		SinkFunc(func(context.Context, assemble.Document) error { calls = append(calls, "a"); return boom }),
		nil,
		SinkFunc(func(context.Context, assemble.Document) error { calls = append(calls, "b"); return nil }),
	}
	err := m.Export(context.Background(), testDoc(time.Now()))
	if !errors.Is(err, boom) {
		t.Fatalf("Export() error = %v; want boom", err)
	}
	if strings.Join(calls, ",") != "a,b" {
		t.Fatalf("calls = %v; want a,b", calls)
	}
}
