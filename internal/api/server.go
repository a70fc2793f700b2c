package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/odax_crawler/internal/assemble"
	"github.com/dgnsrekt/odax_crawler/internal/cdpsurface"
	"github.com/dgnsrekt/odax_crawler/internal/controller"
	"github.com/dgnsrekt/odax_crawler/internal/events"
	"github.com/dgnsrekt/odax_crawler/internal/export"
	"github.com/dgnsrekt/odax_crawler/internal/store"
)

type Service interface {
	Status(ctx context.Context) (controller.Status, error)
	Tab(ctx context.Context) (cdpsurface.TabInfo, error)
	Mode(ctx context.Context) (store.Mode, error)
	SetMode(ctx context.Context, mode string) (store.Mode, error)
	ListExports(ctx context.Context) ([]export.Meta, error)
	GetExport(ctx context.Context, id string) (export.Meta, error)
	ReadExport(ctx context.Context, id string) ([]byte, export.Meta, error)
	ExportEntries(ctx context.Context, id string) ([]assemble.Entry, error)
}

// NewServer builds the control API. broker may be nil, in which case the
// event stream is not mounted.
func NewServer(svc Service, broker *events.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("ODAX Crawler API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	if broker != nil {
		router.Get("/api/v1/events", events.SSEHandler(broker))
	}

	registerCrawlerHandlers(api, svc)
	registerExportHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *cdpsurface.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdpsurface.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdpsurface.CodeTabNotFound, cdpsurface.CodeExportNotFound, cdpsurface.CodeElementNotFound:
			return huma.Error404NotFound(coded.Message)
		case cdpsurface.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdpsurface.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
