package luna

import (
	"fmt"
	"log/slog"
	"sort"
)

// Service handles every method of one bus service.
type Service interface {
	Name() string
	Handle(method string, p Params) (any, error)
}

// Router maps service names to handlers. It holds no per-call state and is
// safe for concurrent use once built.
type Router struct {
	services map[string]Service
}

// NewRouter registers services by name. A later service with the same name
// replaces an earlier one.
func NewRouter(services ...Service) *Router {
	r := &Router{services: make(map[string]Service, len(services))}
	for _, s := range services {
		r.services[s.Name()] = s
	}
	return r
}

// Services returns the registered service names in sorted order.
func (r *Router) Services() []string {
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Route resolves url and returns the JSON response. It never panics and
// never returns an empty string.
func (r *Router) Route(url, params string) (resp string) {
	addr, err := ParseAddress(url)
	if err != nil {
		slog.Warn("luna route rejected", "url", url, "error", err)
		return EncodeError(err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("luna handler panic", "service", addr.Service, "method", addr.Method, "panic", rec)
			resp = EncodeError(fmt.Errorf("%s/%s: internal error: %v", addr.Service, addr.Method, rec))
		}
	}()

	svc, ok := r.services[addr.Service]
	if !ok {
		slog.Debug("luna service stubbed", "service", addr.Service, "method", addr.Method)
		return Encode(NewStub(addr.Service, addr.Method))
	}

	result, err := svc.Handle(addr.Method, ParseParams(params))
	if err != nil {
		slog.Debug("luna handler failed", "service", addr.Service, "method", addr.Method, "error", err)
		return EncodeError(err)
	}
	if stub, ok := result.(Stub); ok && stub.Service == "" {
		stub.Service = addr.Service
		result = stub
	}
	return Encode(result)
}
