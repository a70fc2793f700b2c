// Command odax_close asks every crawler sharing the store to terminate at its
// next product boundary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/odax_crawler/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
	defaultPath := os.Getenv("ODAX_STORE_PATH")
	if defaultPath == "" {
		defaultPath = "./state/odax.db"
	}
	path := flag.String("store", defaultPath, "path of the shared store")
	mode := flag.String("mode", string(store.ModeClose), "mode to set: open or close")
	flag.Parse()

	m, err := store.ParseMode(*mode)
	if err != nil {
		slog.Error("invalid mode", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := store.Open(ctx, *path)
	if err != nil {
		slog.Error("failed to open store", "path", *path, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.SetMode(ctx, m); err != nil {
		slog.Error("failed to set mode", "error", err)
		os.Exit(1)
	}
	slog.Info("mode set", "mode", m, "store", *path)
}
