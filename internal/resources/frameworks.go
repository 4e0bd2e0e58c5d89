// Package resources maps legacy on-device framework paths onto a local
// framework tree and names the content types served for app files.
package resources

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mapping redirects requests containing Prefix to Target under the
// framework directory.
type Mapping struct {
	Prefix string `yaml:"prefix"`
	Target string `yaml:"target"`
}

// MapConfig is the top-level YAML configuration for framework mappings.
type MapConfig struct {
	Mappings []Mapping `yaml:"mappings"`
}

// DefaultMappings covers the enyo and mojo framework locations used by
// packaged apps.
func DefaultMappings() []Mapping {
	return []Mapping{
		{Prefix: "/usr/palm/frameworks/enyo/0.10/framework/", Target: "frameworks/enyo/"},
		{Prefix: "/usr/palm/frameworks/enyo/1.0/framework/", Target: "frameworks/enyo/"},
		{Prefix: "/usr/palm/frameworks/mojo/", Target: "frameworks/mojo/"},
	}
}

// LoadMappings reads and validates a framework mapping YAML file.
func LoadMappings(path string) ([]Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("framework map: %w", err)
	}
	var cfg MapConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("framework map: %w", err)
	}
	for i, m := range cfg.Mappings {
		if m.Prefix == "" {
			return nil, fmt.Errorf("framework map: mapping[%d] missing prefix", i)
		}
		if m.Target == "" {
			return nil, fmt.Errorf("framework map: mapping[%d] (%s) missing target", i, m.Prefix)
		}
	}
	return cfg.Mappings, nil
}

// Resolver turns request paths into files under a framework directory.
type Resolver struct {
	root     string
	mappings []Mapping
}

// NewResolver returns a Resolver serving from root. Longer prefixes are
// tried first; an empty mapping list selects DefaultMappings.
func NewResolver(root string, mappings []Mapping) *Resolver {
	if len(mappings) == 0 {
		mappings = DefaultMappings()
	}
	sorted := append([]Mapping(nil), mappings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Resolver{root: root, mappings: sorted}
}

// Mappings returns the active mappings in match order.
func (r *Resolver) Mappings() []Mapping {
	return append([]Mapping(nil), r.mappings...)
}

// Rewrite returns the framework-relative path for reqPath. The prefix may
// appear anywhere in reqPath, so file:// URLs resolve too.
func (r *Resolver) Rewrite(reqPath string) (string, bool) {
	for _, m := range r.mappings {
		i := strings.Index(reqPath, m.Prefix)
		if i < 0 {
			continue
		}
		rest := reqPath[i+len(m.Prefix):]
		if q := strings.IndexAny(rest, "?#"); q >= 0 {
			rest = rest[:q]
		}
		rel := path.Clean("/" + m.Target + rest)
		return strings.TrimPrefix(rel, "/"), true
	}
	return "", false
}

// Resolve returns the local file for reqPath, or false when no mapping
// applies or the resolver has no root.
func (r *Resolver) Resolve(reqPath string) (string, bool) {
	if r.root == "" {
		return "", false
	}
	rel, ok := r.Rewrite(reqPath)
	if !ok {
		return "", false
	}
	return filepath.Join(r.root, filepath.FromSlash(rel)), true
}
