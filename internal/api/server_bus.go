package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/lunashim/internal/bus"
)

func registerBusHandlers(api huma.API, svc Service) {
	type callInput struct {
		Body struct {
			URL    string `json:"url" doc:"Service URL, e.g. palm://com.palm.systemservice/time/getSystemTime"`
			Params any    `json:"params,omitempty" doc:"JSON object passed to the service"`
		}
	}
	type callOutput struct {
		Body struct {
			ID       string `json:"id"`
			Response any    `json:"response"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "bus-call", Method: http.MethodPost, Path: "/api/v1/bus/call", Summary: "Route a bus call and return its first response", Tags: []string{"Bus"}},
		func(ctx context.Context, input *callInput) (*callOutput, error) {
			params, err := encodeParams(input.Body.Params)
			if err != nil {
				return nil, huma.Error400BadRequest("params must be JSON")
			}
			res, err := svc.Call(ctx, input.Body.URL, params)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &callOutput{}
			out.Body.ID = res.ID
			if err := json.Unmarshal(res.Response, &out.Body.Response); err != nil {
				out.Body.Response = string(res.Response)
			}
			return out, nil
		})

	type pendingOutput struct {
		Body struct {
			Calls []bus.CallInfo `json:"calls"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-pending-calls", Method: http.MethodGet, Path: "/api/v1/bus/pending", Summary: "List pending calls and live subscriptions", Tags: []string{"Bus"}},
		func(ctx context.Context, input *struct{}) (*pendingOutput, error) {
			out := &pendingOutput{}
			out.Body.Calls = svc.Pending()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "cancel-call", Method: http.MethodDelete, Path: "/api/v1/bus/pending/{id}", Summary: "Cancel a pending call", Tags: []string{"Bus"}},
		func(ctx context.Context, input *idInput) (*struct{}, error) {
			if err := svc.CancelCall(input.ID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	type refreshInput struct {
		Body struct {
			Prefix string `json:"prefix,omitempty" doc:"Only subscriptions whose URL starts with this prefix"`
		}
	}
	type refreshOutput struct {
		Body struct {
			Refreshed int `json:"refreshed"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "refresh-subscriptions", Method: http.MethodPost, Path: "/api/v1/bus/refresh", Summary: "Re-deliver fresh responses to live subscriptions", Tags: []string{"Bus"}},
		func(ctx context.Context, input *refreshInput) (*refreshOutput, error) {
			out := &refreshOutput{}
			out.Body.Refreshed = svc.Refresh(input.Body.Prefix)
			return out, nil
		})

	type servicesOutput struct {
		Body struct {
			Services []string `json:"services"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-services", Method: http.MethodGet, Path: "/api/v1/bus/services", Summary: "List emulated services", Tags: []string{"Bus"}},
		func(ctx context.Context, input *struct{}) (*servicesOutput, error) {
			out := &servicesOutput{}
			out.Body.Services = svc.Services()
			return out, nil
		})
}
