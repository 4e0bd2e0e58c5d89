// Package controller is the facade the HTTP and WebSocket surfaces use to
// drive the bus, the package store and the page host.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgnsrekt/lunashim/internal/bus"
	"github.com/dgnsrekt/lunashim/internal/ipk"
	"github.com/dgnsrekt/lunashim/internal/luna"
	"github.com/dgnsrekt/lunashim/internal/pkgstore"
	"github.com/dgnsrekt/lunashim/internal/resources"
)

const defaultCallTimeout = 10 * time.Second

// Host loads app pages. The Chromium page bridge implements it.
type Host interface {
	Navigate(ctx context.Context, url string) error
}

// CallResult is the first response to a bus call.
type CallResult struct {
	ID       string          `json:"id"`
	Response json.RawMessage `json:"response"`
}

// LaunchResult describes a package loaded into the host page.
type LaunchResult struct {
	PackageID string `json:"package_id"`
	AppID     string `json:"app_id"`
	URL       string `json:"url"`
}

// Service wraps bus, package and host operations.
type Service struct {
	bridge      *bus.Bridge
	router      *luna.Router
	packages    *pkgstore.Store
	frameworks  *resources.Resolver
	host        Host
	appBaseURL  string
	callTimeout time.Duration
}

// NewService builds the facade. host may be nil when no browser is attached.
func NewService(bridge *bus.Bridge, router *luna.Router, packages *pkgstore.Store, frameworks *resources.Resolver, host Host) *Service {
	return &Service{
		bridge:      bridge,
		router:      router,
		packages:    packages,
		frameworks:  frameworks,
		host:        host,
		callTimeout: defaultCallTimeout,
	}
}

// SetHost attaches the page host once it is available.
func (s *Service) SetHost(h Host) { s.host = h }

// SetAppBaseURL sets the origin app pages are served from, e.g.
// http://127.0.0.1:8290.
func (s *Service) SetAppBaseURL(u string) { s.appBaseURL = strings.TrimRight(u, "/") }

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return newError(CodeValidation, fieldName+" is required", nil)
	}
	return nil
}

// Call routes a bus call and waits for its first response. Subscriptions
// are cancelled once that response arrives.
func (s *Service) Call(ctx context.Context, url, params string) (CallResult, error) {
	if err := s.requireNonEmpty(url, "url"); err != nil {
		return CallResult{}, err
	}
	if _, err := luna.ParseAddress(url); err != nil {
		return CallResult{}, newError(CodeValidation, "invalid service url", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	id, ch := s.bridge.Call(callCtx, url, params)
	select {
	case resp, ok := <-ch:
		if !ok {
			return CallResult{}, newError(CodeTimeout, fmt.Sprintf("call %s cancelled before a response", id), callCtx.Err())
		}
		return CallResult{ID: id, Response: json.RawMessage(resp)}, nil
	case <-callCtx.Done():
		return CallResult{}, newError(CodeTimeout, fmt.Sprintf("call %s timed out", id), callCtx.Err())
	}
}

// Stream begins a call whose responses arrive on the returned channel until
// ctx ends or the call is cancelled.
func (s *Service) Stream(ctx context.Context, url, params string) (string, <-chan string, error) {
	if err := s.requireNonEmpty(url, "url"); err != nil {
		return "", nil, err
	}
	if _, err := luna.ParseAddress(url); err != nil {
		return "", nil, newError(CodeValidation, "invalid service url", err)
	}
	id, ch := s.bridge.Call(ctx, url, params)
	return id, ch, nil
}

// Pending lists live calls.
func (s *Service) Pending() []bus.CallInfo {
	calls := s.bridge.Transport().Pending()
	out := make([]bus.CallInfo, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Info())
	}
	return out
}

// CancelCall cancels a live call.
func (s *Service) CancelCall(id string) error {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return err
	}
	if !s.bridge.CancelServiceCall(id) {
		return newError(CodeNotFound, "call not found: "+id, nil)
	}
	return nil
}

// Refresh re-routes live subscriptions whose URL starts with prefix.
func (s *Service) Refresh(prefix string) int {
	return s.bridge.Refresh(prefix)
}

// Services lists the registered bus services.
func (s *Service) Services() []string {
	return s.router.Services()
}

// InstallPackage extracts the archive at path into the package store.
func (s *Service) InstallPackage(path string) (pkgstore.PackageMeta, error) {
	if err := s.requireNonEmpty(path, "path"); err != nil {
		return pkgstore.PackageMeta{}, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return pkgstore.PackageMeta{}, newError(CodeNotFound, "archive not found: "+path, err)
		}
		return pkgstore.PackageMeta{}, newError(CodeValidation, "archive unreadable: "+path, err)
	}

	meta, err := s.packages.Install(path)
	if err != nil {
		var xerr *ipk.ExtractError
		switch {
		case errors.As(err, &xerr):
			return pkgstore.PackageMeta{}, newError(CodeExtractFailed, fmt.Sprintf("extract failed at %s", xerr.Stage), err)
		case errors.Is(err, pkgstore.ErrNoApp):
			return pkgstore.PackageMeta{}, newError(CodeExtractFailed, "package contains no app", err)
		default:
			return pkgstore.PackageMeta{}, err
		}
	}
	return meta, nil
}

func (s *Service) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, pkgstore.ErrInvalidID):
		return newError(CodeValidation, err.Error(), err)
	case errors.Is(err, pkgstore.ErrNotFound):
		return newError(CodeNotFound, err.Error(), err)
	default:
		return err
	}
}

func (s *Service) ListPackages() ([]pkgstore.PackageMeta, error) {
	return s.packages.List()
}

func (s *Service) GetPackage(id string) (pkgstore.PackageMeta, error) {
	meta, err := s.packages.Get(strings.TrimSpace(id))
	if err != nil {
		return pkgstore.PackageMeta{}, s.mapStoreErr(err)
	}
	return meta, nil
}

func (s *Service) DeletePackage(id string) error {
	if err := s.packages.Delete(strings.TrimSpace(id)); err != nil {
		return s.mapStoreErr(err)
	}
	return nil
}

// AppFile resolves a request path inside an installed app to a local file.
// Framework paths resolve against the framework tree first.
func (s *Service) AppFile(id, reqPath string) (string, error) {
	if s.frameworks != nil {
		if path, ok := s.frameworks.Resolve(reqPath); ok {
			return path, nil
		}
	}
	path, err := s.packages.Resolve(strings.TrimSpace(id), reqPath)
	if err != nil {
		return "", s.mapStoreErr(err)
	}
	return path, nil
}

// FrameworkFile resolves a legacy framework path outside any app.
func (s *Service) FrameworkFile(reqPath string) (string, error) {
	if s.frameworks != nil {
		if path, ok := s.frameworks.Resolve(reqPath); ok {
			return path, nil
		}
	}
	return "", newError(CodeNotFound, "no framework mapping for "+reqPath, nil)
}

// AppURL is the address the host loads for an installed package.
func (s *Service) AppURL(meta pkgstore.PackageMeta) string {
	return fmt.Sprintf("%s/apps/%s/%s", s.appBaseURL, meta.ID, strings.TrimLeft(meta.App.EntryPoint(), "/"))
}

// LaunchPackage loads an installed package into the host page.
func (s *Service) LaunchPackage(ctx context.Context, id string) (LaunchResult, error) {
	meta, err := s.GetPackage(id)
	if err != nil {
		return LaunchResult{}, err
	}
	if s.host == nil {
		return LaunchResult{}, newError(CodeHostUnavailable, "no page host attached", nil)
	}
	url := s.AppURL(meta)
	if err := s.host.Navigate(ctx, url); err != nil {
		return LaunchResult{}, newError(CodeHostUnavailable, "navigate failed", err)
	}
	slog.Info("package launched", "package_id", meta.ID, "app_id", meta.App.ID, "url", url)
	return LaunchResult{PackageID: meta.ID, AppID: meta.App.ID, URL: url}, nil
}
