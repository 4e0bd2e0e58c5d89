package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/lunashim/internal/controller"
	"github.com/dgnsrekt/lunashim/internal/pkgstore"
)

func registerPackageHandlers(api huma.API, svc Service) {
	type installInput struct {
		Body struct {
			Path string `json:"path" doc:"Path of an .ipk archive readable by the host"`
		}
	}
	type packageOutput struct {
		Body pkgstore.PackageMeta
	}
	huma.Register(api, huma.Operation{OperationID: "install-package", Method: http.MethodPost, Path: "/api/v1/packages", Summary: "Extract and install an ipk package", Tags: []string{"Packages"}, DefaultStatus: http.StatusCreated},
		func(ctx context.Context, input *installInput) (*packageOutput, error) {
			meta, err := svc.InstallPackage(input.Body.Path)
			if err != nil {
				return nil, mapErr(err)
			}
			return &packageOutput{Body: meta}, nil
		})

	type listOutput struct {
		Body struct {
			Packages []pkgstore.PackageMeta `json:"packages"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-packages", Method: http.MethodGet, Path: "/api/v1/packages", Summary: "List installed packages", Tags: []string{"Packages"}},
		func(ctx context.Context, input *struct{}) (*listOutput, error) {
			metas, err := svc.ListPackages()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listOutput{}
			out.Body.Packages = metas
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-package", Method: http.MethodGet, Path: "/api/v1/packages/{id}", Summary: "Get installed package metadata", Tags: []string{"Packages"}},
		func(ctx context.Context, input *idInput) (*packageOutput, error) {
			meta, err := svc.GetPackage(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &packageOutput{Body: meta}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-package", Method: http.MethodDelete, Path: "/api/v1/packages/{id}", Summary: "Delete an installed package", Tags: []string{"Packages"}},
		func(ctx context.Context, input *idInput) (*struct{}, error) {
			if err := svc.DeletePackage(input.ID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	type launchOutput struct {
		Body controller.LaunchResult
	}
	huma.Register(api, huma.Operation{OperationID: "launch-package", Method: http.MethodPost, Path: "/api/v1/packages/{id}/launch", Summary: "Load an installed app in the host page", Tags: []string{"Packages"}},
		func(ctx context.Context, input *idInput) (*launchOutput, error) {
			res, err := svc.LaunchPackage(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &launchOutput{Body: res}, nil
		})
}
