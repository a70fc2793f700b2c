package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/odax_crawler/internal/api"
	"github.com/dgnsrekt/odax_crawler/internal/assemble"
	"github.com/dgnsrekt/odax_crawler/internal/browser"
	"github.com/dgnsrekt/odax_crawler/internal/cdpsurface"
	"github.com/dgnsrekt/odax_crawler/internal/config"
	"github.com/dgnsrekt/odax_crawler/internal/controller"
	"github.com/dgnsrekt/odax_crawler/internal/events"
	"github.com/dgnsrekt/odax_crawler/internal/export"
	"github.com/dgnsrekt/odax_crawler/internal/ingest"
	"github.com/dgnsrekt/odax_crawler/internal/netutil"
	"github.com/dgnsrekt/odax_crawler/internal/notify"
	"github.com/dgnsrekt/odax_crawler/internal/pager"
	"github.com/dgnsrekt/odax_crawler/internal/recordlog"
	"github.com/dgnsrekt/odax_crawler/internal/schedule"
	"github.com/dgnsrekt/odax_crawler/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		return 1
	}

	slog.Info("crawler config loaded",
		"cdp_url", cfg.GetCDPURL(),
		"quotes_url", cfg.QuotesURL,
		"format", cfg.Format,
		"end_indices", cfg.EndIndices,
		"warm_start", cfg.WarmStart,
		"store_path", cfg.StorePath,
		"session_gate", cfg.SessionGate,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sel, err := config.LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		slog.Error("failed to load selectors", "error", err)
		return 1
	}
	format, err := assemble.ParseFormat(cfg.Format)
	if err != nil {
		slog.Error("invalid document format", "error", err)
		return 1
	}
	window, err := schedule.ParseWindow(cfg.SessionWindow)
	if err != nil {
		slog.Error("invalid session window", "error", err)
		return 1
	}
	session := schedule.NewSession(cfg.SessionMICs, window)

	st, err := store.Open(ctx, cfg.StorePath)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.StorePath, "error", err)
		return 1
	}
	defer st.Close()
	if err := st.SetMode(ctx, store.ModeOpen); err != nil {
		slog.Error("failed to reset mode", "error", err)
		return 1
	}

	var sinks export.MultiSink
	if cfg.DatabaseURL != "" {
		db, err := ingest.Connect(ctx, cfg.DatabaseURL, 4)
		if err != nil {
			slog.Error("failed to connect database", "error", err)
			return 1
		}
		defer db.Close()
		lock, err := ingest.TryLock(ctx, db, cfg.LockKey)
		if errors.Is(err, ingest.ErrLocked) {
			slog.Info("another crawler is running, exiting", "lock_key", cfg.LockKey)
			return 0
		}
		if err != nil {
			slog.Error("failed to take advisory lock", "error", err)
			return 1
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				slog.Warn("advisory lock release failed", "error", err)
			}
		}()
		if err := ingest.EnsureSchema(ctx, db); err != nil {
			slog.Error("failed to ensure schema", "error", err)
			return 1
		}
		sinks = append(sinks, ingest.New(db, session.Location(), 0))
	}

	archive, err := export.NewArchive(cfg.ArchiveDir)
	if err != nil {
		slog.Error("failed to open export archive", "error", err)
		return 1
	}
	files, err := export.NewFileSink(cfg.OutDir, archive, cfg.ArchiveKeep)
	if err != nil {
		slog.Error("failed to prepare output dir", "error", err)
		return 1
	}
	// The live document goes first so downstream readers see it before the
	// database catches up.
	sinks = append(export.MultiSink{files}, sinks...)
	if cfg.NtfyURL != "" {
		sinks = append(sinks, notify.Notifier{Client: &http.Client{Timeout: 10 * time.Second}, Endpoint: cfg.NtfyURL})
	}

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.QuotesURL,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			return 1
		}
		if launcher.Running() {
			defer launcher.Stop()
		}
	}

	client := cdpsurface.NewClient(cfg.GetCDPURL(), cfg.TabURLFilter, time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	defer func() { _ = client.Close() }()
	page := browser.NewPage(cfg.GetCDPURL(), cfg.QuotesURL, client, 0)
	defer page.Close()

	if err := client.Connect(ctx); err != nil {
		var coded *cdpsurface.CodedError
		if !errors.As(err, &coded) || coded.Code != cdpsurface.CodeTabNotFound {
			slog.Error("failed to connect CDP", "cdp_url", cfg.GetCDPURL(), "error", err)
			return 1
		}
		slog.Info("no quotes tab open, opening one", "url", cfg.QuotesURL)
		if err := page.Open(ctx); err != nil {
			slog.Error("failed to open quotes tab", "error", err)
			return 1
		}
		if err := client.Connect(ctx); err != nil {
			slog.Error("failed to connect CDP", "cdp_url", cfg.GetCDPURL(), "error", err)
			return 1
		}
	}

	var journal controller.RecordWriter
	if cfg.JournalDir != "" {
		j := recordlog.New(cfg.JournalDir, cfg.JournalBuffer, cfg.JournalMaxSizeMB)
		defer j.Close()
		journal = j
	}

	var gate schedule.Gate = schedule.Always{}
	if cfg.SessionGate {
		gate = session
	}

	broker := events.NewBroker()
	ctl := controller.New(controller.Config{
		Selectors: sel,
		Pager: pager.Config{
			PageSize:    cfg.PageSize,
			EdgeClicks:  cfg.EdgeClicks,
			SettleTicks: cfg.SettleTicks,
		},
		Format:          format,
		Location:        session.Location(),
		EndIndices:      cfg.EndIndices,
		WarmStart:       cfg.WarmStart,
		TickInterval:    cfg.TickInterval,
		AwaitLimit:      cfg.AwaitLimit,
		OpenWaitTicks:   cfg.OpenWaitTicks,
		ReloadWaitTicks: cfg.ReloadWaitTicks,
		RetryTicks:      cfg.RetryTicks,
	}, controller.Deps{
		Driver:   client,
		Reloader: page,
		Store:    st,
		Sink:     sinks,
		Gate:     gate,
		Journal:  journal,
		Events:   broker,
	})

	var srv *http.Server
	if cfg.APIEnabled {
		ln, err := netutil.Listen(cfg.BindAddr, cfg.BindFallbacks, cfg.BindFallback)
		if err != nil {
			slog.Error("failed to bind control API", "preferred", cfg.BindAddr, "error", err)
			return 1
		}
		svc := controller.NewService(ctl, st, archive, client)
		srv = &http.Server{Handler: api.NewServer(svc, broker)}
		go func() {
			addr := ln.Addr().String()
			slog.Info("control API listening", "addr", addr, "docs", "http://"+addr+"/docs")
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				slog.Error("control API failed", "error", err)
				stop()
			}
		}()
	}

	err = ctl.Run(ctx)
	code := 0
	switch {
	case errors.Is(err, controller.ErrCloseRequested):
		slog.Info("crawler closed by mode flag")
	case errors.Is(err, context.Canceled):
		slog.Info("crawler interrupted")
	case err != nil:
		slog.Error("crawler stopped", "error", err)
		code = 1
	}
	if last, ok := files.Last(); ok {
		slog.Info("last archived document", "export_id", last.ID, "cycle_id", last.CycleID, "name", last.Name)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("control API shutdown failed", "error", err)
		}
	}
	return code
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
