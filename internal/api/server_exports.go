package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/odax_crawler/internal/assemble"
	"github.com/dgnsrekt/odax_crawler/internal/export"
)

func registerExportHandlers(api huma.API, svc Service) {
	type listExportsOutput struct {
		Body struct {
			Exports []export.Meta `json:"exports"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-exports", Method: http.MethodGet, Path: "/api/v1/exports", Summary: "List archived cycle documents", Tags: []string{"Exports"}},
		func(ctx context.Context, input *struct{}) (*listExportsOutput, error) {
			metas, err := svc.ListExports(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listExportsOutput{}
			out.Body.Exports = metas
			if out.Body.Exports == nil {
				out.Body.Exports = []export.Meta{}
			}
			return out, nil
		})

	type exportIDInput struct {
		ExportID string `path:"export_id"`
	}
	type getExportOutput struct {
		Body export.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "get-export", Method: http.MethodGet, Path: "/api/v1/exports/{export_id}", Summary: "Get export metadata", Tags: []string{"Exports"}},
		func(ctx context.Context, input *exportIDInput) (*getExportOutput, error) {
			meta, err := svc.GetExport(ctx, input.ExportID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getExportOutput{Body: meta}, nil
		})

	type documentOutput struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-export-document",
		Method:      http.MethodGet,
		Path:        "/api/v1/exports/{export_id}/document",
		Summary:     "Download an archived cycle document",
		Tags:        []string{"Exports"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Cycle document",
				Content: map[string]*huma.MediaType{
					"text/html":  {Schema: &huma.Schema{Type: "string"}},
					"text/plain": {Schema: &huma.Schema{Type: "string"}},
				},
			},
		},
	}, func(ctx context.Context, input *exportIDInput) (*documentOutput, error) {
		data, meta, err := svc.ReadExport(ctx, input.ExportID)
		if err != nil {
			return nil, mapErr(err)
		}
		ct := meta.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		return &documentOutput{
			ContentType:        ct,
			ContentDisposition: `inline; filename="` + meta.Name + `"`,
			Body:               data,
		}, nil
	})

	type entriesOutput struct {
		Body struct {
			Entries []assemble.Entry `json:"entries"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-export-entries", Method: http.MethodGet, Path: "/api/v1/exports/{export_id}/entries", Summary: "Parse an archived document into strike entries", Tags: []string{"Exports"}},
		func(ctx context.Context, input *exportIDInput) (*entriesOutput, error) {
			entries, err := svc.ExportEntries(ctx, input.ExportID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &entriesOutput{}
			out.Body.Entries = entries
			if out.Body.Entries == nil {
				out.Body.Entries = []assemble.Entry{}
			}
			return out, nil
		})
}
