//go:build integration

package integration

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgnsrekt/lunashim/internal/ipk"
)

type packageMeta struct {
	ID  string `json:"id"`
	App struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"app"`
}

// buildPackage writes a one-page app as an ipk readable by a host on the
// same machine.
func buildPackage(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	appDir := filepath.Join(src, "usr", "palm", "applications", "com.example.integration")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"appinfo.json": `{
  // legacy apps ship comments
  "id": "com.example.integration",
  "title": "Integration",
  "version": "1.0.0",
  "main": "index.html",
}`,
		"index.html": `<html><script>new PalmServiceBridge();</script></html>`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(appDir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	out := filepath.Join(t.TempDir(), "integration.ipk")
	if err := ipk.PackFile(src, ipk.Control{Package: "com.example.integration", Version: "1.0.0"}, out); err != nil {
		t.Fatalf("pack: %v", err)
	}
	return out
}

func TestPackageLifecycle(t *testing.T) {
	archive := buildPackage(t)

	resp := env.POST(t, "/api/v1/packages", map[string]any{"path": archive})
	requireStatus(t, resp, http.StatusCreated)
	meta := decodeJSON[packageMeta](t, resp)
	requireField(t, meta.App.ID, "com.example.integration", "app.id")
	t.Cleanup(func() {
		resp := env.DELETE(t, "/api/v1/packages/"+meta.ID)
		resp.Body.Close()
	})

	resp = env.GET(t, "/apps/"+meta.ID+"/index.html")
	requireStatus(t, resp, http.StatusOK)
	requireField(t, resp.Header.Get("Content-Type"), "text/html", "content-type")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(body) == 0 {
		t.Fatal("empty index.html")
	}

	resp = env.POST(t, "/api/v1/packages/"+meta.ID+"/launch", nil)
	if !env.HasPage {
		requireStatus(t, resp, http.StatusBadGateway)
		resp.Body.Close()
		return
	}
	requireStatus(t, resp, http.StatusOK)
	result := decodeJSON[struct {
		URL string `json:"url"`
	}](t, resp)
	if result.URL == "" {
		t.Fatal("launch returned no url")
	}
}

func TestInstallMissingArchive(t *testing.T) {
	resp := env.POST(t, "/api/v1/packages", map[string]any{"path": "/nonexistent/missing.ipk"})
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
