package controller

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/lunashim/internal/bus"
	"github.com/dgnsrekt/lunashim/internal/ipk"
	"github.com/dgnsrekt/lunashim/internal/luna"
	"github.com/dgnsrekt/lunashim/internal/pkgstore"
	"github.com/dgnsrekt/lunashim/internal/resources"
)

type fakeHost struct {
	urls []string
	err  error
}

func (f *fakeHost) Navigate(_ context.Context, url string) error {
	f.urls = append(f.urls, url)
	return f.err
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	router := luna.NewRouter(luna.DefaultServices(luna.Env{})...)
	bridge := bus.NewBridge(bus.NewTransport(bus.Noop{}), router, nil)
	store, err := pkgstore.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	svc := NewService(bridge, router, store, resources.NewResolver(t.TempDir(), nil), nil)
	svc.SetAppBaseURL("http://127.0.0.1:8290/")
	return svc
}

func buildArchive(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	app := filepath.Join(src, "usr/palm/applications/com.example.hello")
	if err := os.MkdirAll(app, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(app, "index.html"), []byte("<html>hello</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(app, "appinfo.json"), []byte(`{"id":"com.example.hello","main":"index.html"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "hello.ipk")
	if err := ipk.PackFile(src, ipk.Control{Package: "com.example.hello", Version: "1.0.0"}, out); err != nil {
		t.Fatalf("PackFile() error = %v", err)
	}
	return out
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var coded *CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("error = %v (%T); want *CodedError", err, err)
	}
	if coded.Code != code {
		t.Fatalf("code = %q; want %q (%v)", coded.Code, code, err)
	}
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("palm://com.palm.db/find", "url"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}
	err := s.requireNonEmpty("   ", "url")
	requireCode(t, err, CodeValidation)
	if got := err.(*CodedError).Message; got != "url is required" {
		t.Fatalf("requireNonEmpty() message = %q; want %q", got, "url is required")
	}
}

func TestCall(t *testing.T) {
	svc := newTestService(t)
	res, err := svc.Call(context.Background(), "palm://com.palm.power/com/palm/power/batteryStatus", `{"subscribe":true}`)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.HasPrefix(res.ID, bus.IDPrefix) {
		t.Fatalf("Call() id = %q", res.ID)
	}
	var out struct {
		ReturnValue bool `json:"returnValue"`
		Percent     int  `json:"percent"`
	}
	if err := json.Unmarshal(res.Response, &out); err != nil {
		t.Fatalf("response %s: %v", res.Response, err)
	}
	if !out.ReturnValue || out.Percent != 100 {
		t.Fatalf("response = %s", res.Response)
	}

	// The subscription ends with the request.
	for i := 0; i < 1000 && len(svc.Pending()) > 0; i++ {
		time.Sleep(time.Millisecond)
	}
	if n := len(svc.Pending()); n != 0 {
		t.Fatalf("Pending() = %d after Call; want 0", n)
	}
}

func TestCallValidation(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Call(context.Background(), "", "{}")
	requireCode(t, err, CodeValidation)
	_, err = svc.Call(context.Background(), "palm://", "{}")
	requireCode(t, err, CodeValidation)
}

func TestCallCancelledContext(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Call(ctx, "palm://com.palm.audio/x", "{}")
	if err == nil {
		// The response may still win the race against cancellation.
		return
	}
	requireCode(t, err, CodeTimeout)
}

func TestCancelCallUnknown(t *testing.T) {
	svc := newTestService(t)
	requireCode(t, svc.CancelCall("psb-999"), CodeNotFound)
	requireCode(t, svc.CancelCall(" "), CodeValidation)
}

func TestServices(t *testing.T) {
	svc := newTestService(t)
	names := svc.Services()
	if len(names) != 8 {
		t.Fatalf("Services() = %v; want 8 services", names)
	}
}

func TestPackageLifecycle(t *testing.T) {
	svc := newTestService(t)
	host := &fakeHost{}

	meta, err := svc.InstallPackage(buildArchive(t))
	if err != nil {
		t.Fatalf("InstallPackage() error = %v", err)
	}

	path, err := svc.AppFile(meta.ID, "/index.html")
	if err != nil {
		t.Fatalf("AppFile() error = %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "<html>hello</html>" {
		t.Fatalf("AppFile() content = %q", data)
	}

	_, err = svc.LaunchPackage(context.Background(), meta.ID)
	requireCode(t, err, CodeHostUnavailable)

	svc.SetHost(host)
	res, err := svc.LaunchPackage(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("LaunchPackage() error = %v", err)
	}
	want := "http://127.0.0.1:8290/apps/" + meta.ID + "/index.html"
	if res.URL != want || len(host.urls) != 1 || host.urls[0] != want {
		t.Fatalf("LaunchPackage() url = %q, navigated %v; want %q", res.URL, host.urls, want)
	}

	host.err = errors.New("target closed")
	_, err = svc.LaunchPackage(context.Background(), meta.ID)
	requireCode(t, err, CodeHostUnavailable)

	if err := svc.DeletePackage(meta.ID); err != nil {
		t.Fatalf("DeletePackage() error = %v", err)
	}
	_, err = svc.GetPackage(meta.ID)
	requireCode(t, err, CodeNotFound)
	_, err = svc.GetPackage("nope")
	requireCode(t, err, CodeValidation)
}

func TestInstallPackageErrors(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.InstallPackage("")
	requireCode(t, err, CodeValidation)

	_, err = svc.InstallPackage(filepath.Join(t.TempDir(), "missing.ipk"))
	requireCode(t, err, CodeNotFound)

	bad := filepath.Join(t.TempDir(), "bad.ipk")
	if err := os.WriteFile(bad, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = svc.InstallPackage(bad)
	requireCode(t, err, CodeExtractFailed)
	var xerr *ipk.ExtractError
	if !errors.As(err, &xerr) || xerr.Stage != ipk.StageValidate {
		t.Fatalf("InstallPackage() cause = %v; want validate-stage ExtractError", err)
	}
}

func TestFrameworkFile(t *testing.T) {
	svc := newTestService(t)
	path, err := svc.FrameworkFile("/usr/palm/frameworks/mojo/mojo.js")
	if err != nil {
		t.Fatalf("FrameworkFile() error = %v", err)
	}
	if !strings.HasSuffix(filepath.ToSlash(path), "frameworks/mojo/mojo.js") {
		t.Fatalf("FrameworkFile() = %q", path)
	}
	_, err = svc.FrameworkFile("/other/file.js")
	requireCode(t, err, CodeNotFound)
}
