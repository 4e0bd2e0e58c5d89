package pkgstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/jsonc"
)

// ErrNoApp is returned when an extracted tree holds no recognizable app.
var ErrNoApp = errors.New("no app found in package")

const (
	applicationsDir = "usr/palm/applications"
	indexFile       = "index.html"
	appInfoFile     = "appinfo.json"
)

// AppInfo is the subset of appinfo.json the host uses.
type AppInfo struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
	Vendor  string `json:"vendor,omitempty"`
	Type    string `json:"type,omitempty"`
	Main    string `json:"main,omitempty"`
	Icon    string `json:"icon,omitempty"`
}

// ReadAppInfo parses appinfo.json in dir. Comments and trailing commas,
// common in hand-edited packages, are accepted.
func ReadAppInfo(dir string) (AppInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, appInfoFile))
	if err != nil {
		return AppInfo{}, err
	}
	var info AppInfo
	if err := json.Unmarshal(jsonc.ToJSON(data), &info); err != nil {
		return AppInfo{}, fmt.Errorf("parse %s: %w", appInfoFile, err)
	}
	return info, nil
}

// EntryPoint is the file the host loads first: appinfo main, else index.html.
func (a AppInfo) EntryPoint() string {
	if a.Main != "" {
		return a.Main
	}
	return indexFile
}

// FindAppRoot locates the app directory inside an extracted package: the
// first directory under usr/palm/applications, else the first directory
// holding index.html.
func FindAppRoot(root string) (string, error) {
	apps := filepath.Join(root, filepath.FromSlash(applicationsDir))
	if entries, err := os.ReadDir(apps); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				return filepath.Join(apps, e.Name()), nil
			}
		}
	}
	if dir, ok := findIndex(root); ok {
		return dir, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoApp, root)
}

func findIndex(dir string) (string, bool) {
	if info, err := os.Stat(filepath.Join(dir, indexFile)); err == nil && !info.IsDir() {
		return dir, true
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink != 0 || !e.IsDir() {
			continue
		}
		if found, ok := findIndex(filepath.Join(dir, e.Name())); ok {
			return found, true
		}
	}
	return "", false
}
