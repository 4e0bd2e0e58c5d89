package pkgstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFindAppRoot(t *testing.T) {
	t.Run("applications dir", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"usr/palm/applications/com.example.a/index.html": "a"})
		writeTree(t, root, map[string]string{"other/index.html": "b"})
		got, err := FindAppRoot(root)
		if err != nil {
			t.Fatalf("FindAppRoot() error = %v", err)
		}
		if want := filepath.Join(root, "usr/palm/applications/com.example.a"); got != want {
			t.Fatalf("FindAppRoot() = %q; want %q", got, want)
		}
	})

	t.Run("index fallback", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"opt/b/deep/index.html": "b",
			"opt/a/readme.txt":      "a",
		})
		got, err := FindAppRoot(root)
		if err != nil {
			t.Fatalf("FindAppRoot() error = %v", err)
		}
		if want := filepath.Join(root, "opt/b/deep"); got != want {
			t.Fatalf("FindAppRoot() = %q; want %q", got, want)
		}
	})

	t.Run("empty applications dir falls back", func(t *testing.T) {
		root := t.TempDir()
		if err := os.MkdirAll(filepath.Join(root, "usr/palm/applications"), 0o755); err != nil {
			t.Fatal(err)
		}
		writeTree(t, root, map[string]string{"index.html": "top"})
		got, err := FindAppRoot(root)
		if err != nil || got != root {
			t.Fatalf("FindAppRoot() = %q, %v; want %q", got, err, root)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		if _, err := FindAppRoot(t.TempDir()); !errors.Is(err, ErrNoApp) {
			t.Fatalf("FindAppRoot() error = %v; want ErrNoApp", err)
		}
	})
}

func TestReadAppInfo(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"appinfo.json": "/* header */\n{\"id\": \"com.example.x\", \"vendor\": \"Example\", \"icon\": \"icon.png\",}\n",
	})
	info, err := ReadAppInfo(dir)
	if err != nil {
		t.Fatalf("ReadAppInfo() error = %v", err)
	}
	if info.ID != "com.example.x" || info.Vendor != "Example" || info.Icon != "icon.png" {
		t.Fatalf("ReadAppInfo() = %+v", info)
	}
	if info.EntryPoint() != "index.html" {
		t.Fatalf("EntryPoint() = %q; want index.html", info.EntryPoint())
	}
	if (AppInfo{Main: "main.html"}).EntryPoint() != "main.html" {
		t.Fatalf("EntryPoint() ignored main")
	}

	if _, err := ReadAppInfo(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ReadAppInfo(missing) error = %v; want not exist", err)
	}
}
