// Package pkgstore installs extracted packages under a data directory and
// keeps a JSON sidecar describing each install.
package pkgstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/lunashim/internal/ipk"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var (
	ErrInvalidID = errors.New("invalid package id")
	ErrNotFound  = errors.New("package not found")
)

// PackageMeta describes an installed package.
type PackageMeta struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Payload     string          `json:"payload"`
	AppDir      string          `json:"app_dir"`
	App         AppInfo         `json:"app"`
	Stats       ipk.ReplayStats `json:"stats"`
	InstalledAt time.Time       `json:"installed_at"`
}

// Store manages installed package trees on disk.
type Store struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("package store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir is the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (s *Store) treePath(id string) string { return filepath.Join(s.dir, id) }
func (s *Store) metaPath(id string) string { return filepath.Join(s.dir, id+".json") }

// Install extracts the archive at archivePath into a fresh package
// directory and records its metadata. A failed install leaves nothing behind.
func (s *Store) Install(archivePath string) (PackageMeta, error) {
	id := uuid.NewString()
	tree := s.treePath(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := ipk.Extract(archivePath, tree)
	if err != nil {
		return PackageMeta{}, err
	}

	appRoot, err := FindAppRoot(res.Root)
	if err != nil {
		s.cleanupTree(id)
		return PackageMeta{}, fmt.Errorf("package store: %w", err)
	}
	info, err := ReadAppInfo(appRoot)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("appinfo unreadable", "package_id", id, "error", err)
	}
	if info.ID == "" {
		info.ID = filepath.Base(appRoot)
	}
	rel, err := filepath.Rel(res.Root, appRoot)
	if err != nil {
		s.cleanupTree(id)
		return PackageMeta{}, fmt.Errorf("package store: %w", err)
	}

	meta := PackageMeta{
		ID:          id,
		Source:      archivePath,
		Payload:     res.Payload,
		AppDir:      filepath.ToSlash(rel),
		App:         info,
		Stats:       res.Stats,
		InstalledAt: s.now().UTC(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.cleanupTree(id)
		return PackageMeta{}, fmt.Errorf("package store: marshal meta: %w", err)
	}
	if err := os.WriteFile(s.metaPath(id), data, 0o644); err != nil {
		s.cleanupTree(id)
		return PackageMeta{}, fmt.Errorf("package store: write meta: %w", err)
	}

	slog.Info("package installed", "package_id", id, "app_id", info.ID, "app_dir", meta.AppDir)
	return meta, nil
}

func (s *Store) cleanupTree(id string) {
	if err := os.RemoveAll(s.treePath(id)); err != nil {
		slog.Debug("package tree cleanup failed", "package_id", id, "error", err)
	}
}

// Get reads package metadata by ID.
func (s *Store) Get(id string) (PackageMeta, error) {
	if err := s.validateID(id); err != nil {
		return PackageMeta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(id)
}

func (s *Store) readMeta(id string) (PackageMeta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return PackageMeta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return PackageMeta{}, fmt.Errorf("package store: read meta: %w", err)
	}
	var meta PackageMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return PackageMeta{}, fmt.Errorf("package store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all installed packages sorted by install time (newest first).
func (s *Store) List() ([]PackageMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("package store: glob: %w", err)
	}

	metas := make([]PackageMeta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta PackageMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Debug("skipping unreadable package meta", "path", path, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].InstalledAt.After(metas[j].InstalledAt)
	})
	return metas, nil
}

// AppRoot returns the absolute app directory of an installed package.
func (s *Store) AppRoot(id string) (string, error) {
	meta, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.treePath(id), filepath.FromSlash(meta.AppDir)), nil
}

// Resolve maps a request path inside an installed app to a file on disk.
// Paths that leave the app directory are rejected.
func (s *Store) Resolve(id, reqPath string) (string, error) {
	root, err := s.AppRoot(id)
	if err != nil {
		return "", err
	}
	rel := filepath.Clean(filepath.FromSlash("/" + strings.TrimPrefix(reqPath, "/")))
	full := filepath.Join(root, rel)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, reqPath)
	}
	return full, nil
}

// Delete removes the package tree and its metadata.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupTree(id)
	if err := os.Remove(s.metaPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("package store: remove meta: %w", err)
	}
	slog.Info("package deleted", "package_id", id)
	return nil
}
