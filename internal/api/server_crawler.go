package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/odax_crawler/internal/cdpsurface"
	"github.com/dgnsrekt/odax_crawler/internal/controller"
	"github.com/dgnsrekt/odax_crawler/internal/store"
)

func registerCrawlerHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
			State  string `json:"state"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			st, err := svc.Status(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.State = st.State
			return out, nil
		})

	type statusOutput struct {
		Body controller.Status
	}
	huma.Register(api, huma.Operation{OperationID: "get-status", Method: http.MethodGet, Path: "/api/v1/status", Summary: "Crawler state and counters", Tags: []string{"Crawler"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			st, err := svc.Status(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: st}, nil
		})

	type tabOutput struct {
		Body cdpsurface.TabInfo
	}
	huma.Register(api, huma.Operation{OperationID: "get-tab", Method: http.MethodGet, Path: "/api/v1/tab", Summary: "Attached quotes tab", Tags: []string{"Crawler"}},
		func(ctx context.Context, input *struct{}) (*tabOutput, error) {
			tab, err := svc.Tab(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &tabOutput{Body: tab}, nil
		})

	type modeOutput struct {
		Body struct {
			Mode store.Mode `json:"mode"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-mode", Method: http.MethodGet, Path: "/api/v1/mode", Summary: "Get the cross-instance mode", Tags: []string{"Crawler"}},
		func(ctx context.Context, input *struct{}) (*modeOutput, error) {
			m, err := svc.Mode(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &modeOutput{}
			out.Body.Mode = m
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-mode", Method: http.MethodPut, Path: "/api/v1/mode", Summary: "Set the cross-instance mode", Description: "Setting close terminates every crawler sharing the store at its next product boundary.", Tags: []string{"Crawler"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Mode string `json:"mode" doc:"open or close" example:"close"`
			}
		}) (*modeOutput, error) {
			m, err := svc.SetMode(ctx, input.Body.Mode)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &modeOutput{}
			out.Body.Mode = m
			return out, nil
		})
}
