package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dgnsrekt/odax_crawler/internal/surface"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TickInterval != 500*time.Millisecond {
		t.Fatalf("TickInterval = %v; want 500ms", cfg.TickInterval)
	}
	if diff := cmp.Diff([]int{20, 21, 22}, cfg.EndIndices); diff != "" {
		t.Fatalf("EndIndices mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetCDPURL() != "http://127.0.0.1:9220" {
		t.Fatalf("GetCDPURL() = %q", cfg.GetCDPURL())
	}
	if cfg.LockKey != 1234567890 {
		t.Fatalf("LockKey = %d; want 1234567890", cfg.LockKey)
	}
	if cfg.RetryTicks != 4 || cfg.SettleTicks != 4 {
		t.Fatalf("RetryTicks/SettleTicks = %d/%d; want 4/4", cfg.RetryTicks, cfg.SettleTicks)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ODAX_END_INDICES", "7, 8")
	t.Setenv("ODAX_TICK_MS", "250")
	t.Setenv("ODAX_WARM_START", "true")
	t.Setenv("ODAX_SESSION_MICS", "xfra")
	t.Setenv("ODAX_RETRY_TICKS", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]int{7, 8}, cfg.EndIndices); diff != "" {
		t.Fatalf("EndIndices mismatch (-want +got):\n%s", diff)
	}
	if cfg.TickInterval != 250*time.Millisecond || !cfg.WarmStart {
		t.Fatalf("TickInterval/WarmStart = %v/%v", cfg.TickInterval, cfg.WarmStart)
	}
	if diff := cmp.Diff([]string{"xfra"}, cfg.SessionMICs); diff != "" {
		t.Fatalf("SessionMICs mismatch (-want +got):\n%s", diff)
	}
	if cfg.RetryTicks != 9 {
		t.Fatalf("RetryTicks = %d; want 9", cfg.RetryTicks)
	}
}

func TestLoadRejectsBadEndIndices(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ODAX_END_INDICES", "20,x")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil; want error")
	}
}

func TestLoadSelectorsOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	content := "arrow_top: ._arrow_new._arrow_top_new\nfilter_container_index: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	got, err := LoadSelectors(path)
	if err != nil {
		t.Fatalf("LoadSelectors() error = %v", err)
	}
	want := surface.DefaultSelectors()
	want.ArrowTop = "._arrow_new._arrow_top_new"
	want.FilterContainerIndex = 2
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("selectors mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSelectorsRejectsEmptyHook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	if err := os.WriteFile(path, []byte("strike_rows: \"\"\n"), 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}
	if _, err := LoadSelectors(path); err == nil {
		t.Fatal("LoadSelectors() error = nil; want error")
	}
}

func TestLoadSelectorsDefault(t *testing.T) {
	got, err := LoadSelectors("")
	if err != nil {
		t.Fatalf("LoadSelectors(\"\") error = %v", err)
	}
	if diff := cmp.Diff(surface.DefaultSelectors(), got); diff != "" {
		t.Fatalf("selectors mismatch (-want +got):\n%s", diff)
	}
}
