package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/lunashim/internal/bus"
	"github.com/dgnsrekt/lunashim/internal/controller"
	"github.com/dgnsrekt/lunashim/internal/journal"
	"github.com/dgnsrekt/lunashim/internal/pkgstore"
)

type Service interface {
	Call(ctx context.Context, url, params string) (controller.CallResult, error)
	Stream(ctx context.Context, url, params string) (string, <-chan string, error)
	Pending() []bus.CallInfo
	CancelCall(id string) error
	Refresh(prefix string) int
	Services() []string
	InstallPackage(path string) (pkgstore.PackageMeta, error)
	ListPackages() ([]pkgstore.PackageMeta, error)
	GetPackage(id string) (pkgstore.PackageMeta, error)
	DeletePackage(id string) error
	LaunchPackage(ctx context.Context, id string) (controller.LaunchResult, error)
	AppFile(id, reqPath string) (string, error)
	FrameworkFile(reqPath string) (string, error)
}

// Options carries the optional surfaces mounted next to the REST API.
type Options struct {
	Events  *journal.Broker
	Metrics http.Handler
	// WSRate limits client frames per second on each /bus connection.
	// Zero or less disables the limit.
	WSRate  float64
	WSBurst int
}

func (o Options) wsLimit() (rate.Limit, int) {
	if o.WSRate <= 0 {
		return rate.Inf, 0
	}
	burst := o.WSBurst
	if burst < 1 {
		burst = 1
	}
	return rate.Limit(o.WSRate), burst
}

type idInput struct {
	ID string `path:"id"`
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Luna Bus Host API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	docs := docsPage{Services: svc.Services(), Events: opts.Events != nil, Metrics: opts.Metrics != nil}
	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if err := renderDocs(w, docs); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/bus", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(busDocsHTML)); err != nil {
			slog.Debug("bus docs response write failed", "error", err)
		}
	})

	registerBusHandlers(api, svc)
	registerPackageHandlers(api, svc)
	registerMiscHandlers(api, svc)

	router.Get("/apps/{id}/*", appFileHandler(svc))
	router.Get("/usr/palm/frameworks/*", frameworkFileHandler(svc))

	limit, burst := opts.wsLimit()
	router.Get("/bus", busSocketHandler(svc, limit, burst))
	if opts.Events != nil {
		router.Get("/events", journal.SSEHandler(opts.Events))
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *controller.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case controller.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case controller.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case controller.CodeExtractFailed:
			return huma.Error422UnprocessableEntity(coded.Message, coded.Cause)
		case controller.CodeTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case controller.CodeHostUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}

// encodeParams turns a decoded JSON params value back into the string form
// the bus expects. Absent params become an empty object.
func encodeParams(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
