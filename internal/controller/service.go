package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/odax_crawler/internal/assemble"
	"github.com/dgnsrekt/odax_crawler/internal/cdpsurface"
	"github.com/dgnsrekt/odax_crawler/internal/export"
	"github.com/dgnsrekt/odax_crawler/internal/store"
)

// ModeFlag reads and writes the cross-instance flag.
type ModeFlag interface {
	Mode(ctx context.Context) (store.Mode, error)
	SetMode(ctx context.Context, m store.Mode) error
}

// TabSource reports the attached quotes tab.
type TabSource interface {
	Tab(ctx context.Context) (cdpsurface.TabInfo, error)
}

// Service exposes the crawler to the control API.
type Service struct {
	ctl     *Controller
	flags   ModeFlag
	archive *export.Archive
	tabs    TabSource
}

func NewService(ctl *Controller, flags ModeFlag, archive *export.Archive, tabs TabSource) *Service {
	return &Service{ctl: ctl, flags: flags, archive: archive, tabs: tabs}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &cdpsurface.CodedError{Code: cdpsurface.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	return s.ctl.Status(), nil
}

func (s *Service) Tab(ctx context.Context) (cdpsurface.TabInfo, error) {
	if s.tabs == nil {
		return cdpsurface.TabInfo{}, &cdpsurface.CodedError{Code: cdpsurface.CodeCDPUnavailable, Message: "no browser attached"}
	}
	return s.tabs.Tab(ctx)
}

func (s *Service) Mode(ctx context.Context) (store.Mode, error) {
	return s.flags.Mode(ctx)
}

// SetMode writes the flag. Setting close makes every running crawler
// terminate at its next product boundary.
func (s *Service) SetMode(ctx context.Context, mode string) (store.Mode, error) {
	if err := s.requireNonEmpty(mode, "mode"); err != nil {
		return "", err
	}
	m, err := store.ParseMode(mode)
	if err != nil {
		return "", &cdpsurface.CodedError{Code: cdpsurface.CodeValidation, Message: err.Error()}
	}
	if err := s.flags.SetMode(ctx, m); err != nil {
		return "", err
	}
	return m, nil
}

func (s *Service) ListExports(ctx context.Context) ([]export.Meta, error) {
	return s.archive.List()
}

func (s *Service) GetExport(ctx context.Context, id string) (export.Meta, error) {
	if err := s.requireNonEmpty(id, "export_id"); err != nil {
		return export.Meta{}, err
	}
	meta, err := s.archive.Get(id)
	return meta, exportErr(err)
}

func (s *Service) ReadExport(ctx context.Context, id string) ([]byte, export.Meta, error) {
	if err := s.requireNonEmpty(id, "export_id"); err != nil {
		return nil, export.Meta{}, err
	}
	body, meta, err := s.archive.Read(id)
	return body, meta, exportErr(err)
}

// ExportEntries parses an archived document back into its entries.
func (s *Service) ExportEntries(ctx context.Context, id string) ([]assemble.Entry, error) {
	body, meta, err := s.ReadExport(ctx, id)
	if err != nil {
		return nil, err
	}
	format, err := assemble.ParseFormat(meta.Format)
	if err != nil {
		return nil, err
	}
	entries, err := assemble.Import(format, body)
	if err != nil {
		return nil, fmt.Errorf("import export %s: %w", id, err)
	}
	return entries, nil
}

func exportErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, export.ErrNotFound):
		return &cdpsurface.CodedError{Code: cdpsurface.CodeExportNotFound, Message: err.Error()}
	case errors.Is(err, export.ErrInvalidID):
		return &cdpsurface.CodedError{Code: cdpsurface.CodeValidation, Message: err.Error()}
	}
	return err
}
