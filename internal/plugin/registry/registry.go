// Package registry implements the C9 plugin discovery and registry
// (spec.md §4.8): a non-recursive directory scan, content-addressed
// (SHA-256) discovery caching, and a semver-sorted per-plugin version
// list.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blang/semver/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nexusshell/nexusshell/internal/plugin/metadata"
)

// ValidationConfig gates which files the scanner even considers,
// mirroring dynamic_loader.rs's ValidationConfig.
type ValidationConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
	BlockedPatterns   []string
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxFileSize:       50 * 1024 * 1024,
		AllowedExtensions: []string{"wasm", "wat"},
	}
}

// DiscoveredPlugin is one scan hit, before it has been assigned to a
// plugin id's version list.
type DiscoveredPlugin struct {
	FilePath     string
	Metadata     metadata.Metadata
	FileHash     string
	FileSize     int64
	DiscoveredAt time.Time
}

// DiscoveryError records a file the scanner could not process.
type DiscoveryError struct {
	FilePath string
	Err      error
}

// DiscoveryResult is Discover's return value.
type DiscoveryResult struct {
	Discovered []DiscoveredPlugin
	Failed     []DiscoveryError
}

// PluginVersion is one concrete version of a registered plugin.
type PluginVersion struct {
	Version      semver.Version
	FilePath     string
	Metadata     metadata.Metadata
	FileHash     string
	DiscoveredAt time.Time
}

type cachedInfo struct {
	metadata metadata.Metadata
	fileHash string
}

// Registry stores every discovered plugin version, keyed by plugin id
// and sorted ascending by semver, plus an alias map and a bounded LRU
// discovery cache keyed by content hash (spec.md §4.8's "registry
// cache", resolved as a bounded LRU in SPEC_FULL.md §16).
type Registry struct {
	mu      sync.RWMutex
	plugins map[string][]PluginVersion
	aliases map[string]string
	cache   *lru.Cache[string, cachedInfo]
}

// New builds a Registry whose discovery cache holds up to cacheSize
// entries.
func New(cacheSize int) (*Registry, error) {
	cache, err := lru.New[string, cachedInfo](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("registry: build discovery cache: %w", err)
	}
	return &Registry{
		plugins: map[string][]PluginVersion{},
		aliases: map[string]string{},
		cache:   cache,
	}, nil
}

// AddVersion parses the discovered plugin's semver and inserts it into
// its plugin id's version list, keeping the list sorted ascending.
func (r *Registry) AddVersion(d DiscoveredPlugin) error {
	v, err := semver.Parse(d.Metadata.Version)
	if err != nil {
		return fmt.Errorf("registry: invalid version %q for %q: %w", d.Metadata.Version, d.Metadata.Name, err)
	}

	pv := PluginVersion{
		Version:      v,
		FilePath:     d.FilePath,
		Metadata:     d.Metadata,
		FileHash:     d.FileHash,
		DiscoveredAt: d.DiscoveredAt,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.plugins[d.Metadata.Name]
	list = append(list, pv)
	sort.Slice(list, func(i, j int) bool { return list[i].Version.LT(list[j].Version) })
	r.plugins[d.Metadata.Name] = list
	return nil
}

// Versions returns the known versions of a plugin id, ascending.
func (r *Registry) Versions(id string) ([]PluginVersion, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, ok := r.plugins[r.resolveAliasLocked(id)]
	return list, ok
}

// Latest returns the highest known version of a plugin id.
func (r *Registry) Latest(id string) (PluginVersion, bool) {
	list, ok := r.Versions(id)
	if !ok || len(list) == 0 {
		return PluginVersion{}, false
	}
	return list[len(list)-1], true
}

// Alias registers alias as another name for id.
func (r *Registry) Alias(alias, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = id
}

func (r *Registry) resolveAliasLocked(id string) string {
	if target, ok := r.aliases[id]; ok {
		return target
	}
	return id
}

// Discover walks each directory non-recursively, filters by extension
// and size, hashes each candidate, consults the cache, extracts
// metadata for cache misses (C10), and registers a version for every
// file that parses (spec.md §4.8).
func Discover(dirs []string, cfg ValidationConfig, reg *Registry) DiscoveryResult {
	var result DiscoveryResult

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			result.Failed = append(result.Failed, DiscoveryError{FilePath: dir, Err: err})
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			ext := strings.TrimPrefix(filepath.Ext(path), ".")
			if !containsFold(cfg.AllowedExtensions, ext) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				result.Failed = append(result.Failed, DiscoveryError{FilePath: path, Err: err})
				continue
			}
			if info.Size() > cfg.MaxFileSize {
				continue
			}
			if matchesAny(path, cfg.BlockedPatterns) {
				continue
			}

			plugin, err := discoverOne(path, reg)
			if err != nil {
				result.Failed = append(result.Failed, DiscoveryError{FilePath: path, Err: err})
				continue
			}
			result.Discovered = append(result.Discovered, plugin)
			if err := reg.AddVersion(plugin); err != nil {
				result.Failed = append(result.Failed, DiscoveryError{FilePath: path, Err: err})
			}
		}
	}
	return result
}

func discoverOne(path string, reg *Registry) (DiscoveredPlugin, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return DiscoveredPlugin{}, fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	if cached, ok := reg.cache.Get(hash); ok {
		return DiscoveredPlugin{
			FilePath:     path,
			Metadata:     cached.metadata,
			FileHash:     hash,
			FileSize:     int64(len(content)),
			DiscoveredAt: time.Now(),
		}, nil
	}

	md := metadata.Extract(content, path)
	reg.cache.Add(hash, cachedInfo{metadata: md, fileHash: hash})

	return DiscoveredPlugin{
		FilePath:     path,
		Metadata:     md,
		FileHash:     hash,
		FileSize:     int64(len(content)),
		DiscoveredAt: time.Now(),
	}, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}
