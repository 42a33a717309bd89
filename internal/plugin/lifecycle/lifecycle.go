// Package lifecycle implements the C12 plugin lifecycle manager
// (spec.md §4.11): Load (semaphore-bounded, dependency-resolved,
// validated, delegated to the runtime), Unload (recursing through
// dependents first), Hot Reload (before/after/failed callbacks), and a
// debounced filesystem watcher that drives both from file events.
package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/nexusshell/nexusshell/internal/nxerrors"
	"github.com/nexusshell/nexusshell/internal/plugin/registry"
	"github.com/nexusshell/nexusshell/internal/plugin/resolver"
	"github.com/nexusshell/nexusshell/internal/plugin/runtime"
)

// Status mirrors dynamic_loader.rs's LoadStatus enum.
type Status int

const (
	StatusLoading Status = iota
	StatusLoaded
	StatusFailed
	StatusReloading
	StatusUnloading
	StatusDependencyFailed
)

// LoadedInfo is one entry of the loaded-plugins table.
type LoadedInfo struct {
	PluginID     string
	FilePath     string
	FileHash     string
	LoadTime     time.Time
	LastReload   time.Time
	ReloadCount  int
	Status       Status
	FailureMsg   string
	LoadDuration time.Duration
}

// Callbacks are the hot-reload hooks spec.md §4.11 names. AfterReload
// receives the old and new loads' file content hashes
// (LoadedInfo.FileHash) as oldVersion and newVersion.
type Callbacks struct {
	BeforeReload func(id string)
	AfterReload  func(id, oldVersion, newVersion string)
	ReloadFailed func(id string, err error)
}

// dependencyGraph is the reverse-dependency index Unload walks to find
// transitive dependents, grounded on dynamic_loader.rs's
// DependencyGraph (dependencies/dependents maps).
type dependencyGraph struct {
	mu         sync.RWMutex
	dependents map[string]map[string]struct{}
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{dependents: map[string]map[string]struct{}{}}
}

func (g *dependencyGraph) addEdge(dependencyID, dependentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.dependents[dependencyID]
	if !ok {
		set = map[string]struct{}{}
		g.dependents[dependencyID] = set
	}
	set[dependentID] = struct{}{}
}

func (g *dependencyGraph) dependentsOf(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.dependents[id]
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	return out
}

func (g *dependencyGraph) remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.dependents, id)
	for _, set := range g.dependents {
		delete(set, id)
	}
}

// Manager owns the loaded-plugin table, the dependency graph, and the
// permit semaphore bounding concurrent loads. A buffered channel of
// permits is the idiom the teacher repository uses to bound concurrent
// work, used here instead of golang.org/x/sync/semaphore.
type Manager struct {
	Registry *registry.Registry
	Engine   runtime.Engine
	Policy   resolver.Policy
	Validation registry.ValidationConfig
	Callbacks  Callbacks

	permits chan struct{}

	mu     sync.RWMutex
	loaded map[string]*LoadedInfo
	graph  *dependencyGraph

	watchMu sync.Mutex
	watchCh chan string // closes to stop the watcher goroutine
}

// New builds a Manager whose Load bounds concurrency to maxConcurrent
// simultaneous loads.
func New(reg *registry.Registry, engine runtime.Engine, maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Manager{
		Registry:   reg,
		Engine:     engine,
		Policy:     resolver.DefaultPolicy(),
		Validation: registry.DefaultValidationConfig(),
		permits:    make(chan struct{}, maxConcurrent),
		loaded:     map[string]*LoadedInfo{},
		graph:      newDependencyGraph(),
	}
}

// LoadedInfo returns a copy of the loaded info for id, if present.
func (m *Manager) LoadedInfo(id string) (LoadedInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.loaded[id]
	if !ok {
		return LoadedInfo{}, false
	}
	return *info, true
}

// Load runs the full C12 load sequence: acquire a permit, short-circuit
// if already loaded, resolve dependencies via C11, validate, delegate
// to the runtime, and record the result (spec.md §4.11 Load).
func (m *Manager) Load(ctx context.Context, id, versionReq string) error {
	select {
	case m.permits <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.permits }()

	m.mu.RLock()
	if info, ok := m.loaded[id]; ok && info.Status == StatusLoaded {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	order, err := resolver.Resolve(m.Registry, id, versionReq, m.Policy)
	if err != nil {
		m.recordFailure(id, err)
		return err
	}

	for i, depID := range order {
		if depID == id {
			continue
		}
		if err := m.loadOne(ctx, depID, ""); err != nil {
			return nxerrors.NewDependencyFailed(id, depID, err.Error())
		}
		m.graph.addEdge(depID, id)
		_ = i
	}

	return m.loadOne(ctx, id, versionReq)
}

// loadOne loads exactly one plugin id without touching its dependency
// order (Load has already resolved and loaded those).
func (m *Manager) loadOne(ctx context.Context, id, versionReq string) error {
	m.mu.RLock()
	if info, ok := m.loaded[id]; ok && info.Status == StatusLoaded {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	version, ok := bestVersion(m.Registry, id, versionReq)
	if !ok {
		err := fmt.Errorf("plugin %s not found in registry", id)
		m.recordFailure(id, err)
		return err
	}

	if errs := validate(version, m.Validation); len(errs) > 0 {
		err := fmt.Errorf("plugin validation failed: %s", strings.Join(errs, "; "))
		m.recordFailure(id, err)
		return err
	}

	start := time.Now()
	if _, err := m.Engine.LoadPlugin(ctx, version.FilePath, id); err != nil {
		m.recordFailure(id, err)
		return err
	}

	m.mu.Lock()
	m.loaded[id] = &LoadedInfo{
		PluginID:     id,
		FilePath:     version.FilePath,
		FileHash:     version.FileHash,
		LoadTime:     time.Now(),
		Status:       StatusLoaded,
		LoadDuration: time.Since(start),
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) recordFailure(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded[id] = &LoadedInfo{PluginID: id, Status: StatusFailed, FailureMsg: err.Error()}
}

// Unload recurses through dependents first, then tears the plugin down
// via the runtime and drops it from both tables (spec.md §4.11 Unload).
func (m *Manager) Unload(ctx context.Context, id string) error {
	for _, dependent := range m.graph.dependentsOf(id) {
		if dependent == id {
			continue
		}
		if err := m.Unload(ctx, dependent); err != nil {
			return err
		}
	}

	m.mu.Lock()
	info, ok := m.loaded[id]
	if ok {
		info.Status = StatusUnloading
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if err := m.Engine.UnloadPlugin(ctx, id); err != nil {
		return fmt.Errorf("unload %s from runtime: %w", id, err)
	}

	m.mu.Lock()
	delete(m.loaded, id)
	m.mu.Unlock()
	m.graph.remove(id)
	return nil
}

// Reload hot-reloads id: it first resolves and validates the current
// best version of id *without touching the loaded one*, then only
// unloads the old version once the new one is known resolvable, and
// finally loads the new version, invoking Callbacks around the
// transition (spec.md §4.11 Hot Reload). A cycle (or any other
// resolution/validation failure) is therefore caught before the old
// version is torn down, so it stays loaded and the callback fired is
// reload_failed, not a blank unload — spec.md §7 ("plugin reload
// failures preserve the last-successfully-loaded version") and §9's
// cycle tie-break ("reject the new version and leave the previous
// version loaded"). If the new version's load still fails for a
// reason that only surfaces after the unload (an engine-level load
// error), Reload makes a best-effort attempt to restore the old
// version from its known file path before reporting failure.
func (m *Manager) Reload(ctx context.Context, id string) error {
	oldInfo, hadOld := m.LoadedInfo(id)

	if m.Callbacks.BeforeReload != nil {
		m.Callbacks.BeforeReload(id)
	}

	if _, err := resolver.Resolve(m.Registry, id, "", m.Policy); err != nil {
		if m.Callbacks.ReloadFailed != nil {
			m.Callbacks.ReloadFailed(id, err)
		}
		return err
	}
	candidate, ok := bestVersion(m.Registry, id, "")
	if !ok {
		err := fmt.Errorf("plugin %s not found in registry", id)
		if m.Callbacks.ReloadFailed != nil {
			m.Callbacks.ReloadFailed(id, err)
		}
		return err
	}
	if errs := validate(candidate, m.Validation); len(errs) > 0 {
		err := fmt.Errorf("plugin validation failed: %s", strings.Join(errs, "; "))
		if m.Callbacks.ReloadFailed != nil {
			m.Callbacks.ReloadFailed(id, err)
		}
		return err
	}

	if hadOld {
		if err := m.Unload(ctx, id); err != nil {
			if m.Callbacks.ReloadFailed != nil {
				m.Callbacks.ReloadFailed(id, err)
			}
			return err
		}
	}

	if err := m.Load(ctx, id, ""); err != nil {
		if hadOld {
			m.restorePrevious(ctx, oldInfo)
		}
		if m.Callbacks.ReloadFailed != nil {
			m.Callbacks.ReloadFailed(id, err)
		}
		return err
	}

	m.mu.Lock()
	newInfo := m.loaded[id]
	if newInfo != nil {
		newInfo.ReloadCount = oldVersionReloadCount(oldInfo, hadOld) + 1
		newInfo.LastReload = time.Now()
	}
	m.mu.Unlock()

	if m.Callbacks.AfterReload != nil {
		oldVersion, newVersion := "", ""
		if hadOld {
			oldVersion = oldInfo.FileHash
		}
		if newInfo != nil {
			newVersion = newInfo.FileHash
		}
		m.Callbacks.AfterReload(id, oldVersion, newVersion)
	}
	return nil
}

// restorePrevious re-loads a version already known good (oldInfo) into
// the runtime after an unexpected post-unload Load failure, so a
// reload's dependency/validation pre-checks passing still leaves the
// shell with a working plugin if the engine-level load itself fails.
func (m *Manager) restorePrevious(ctx context.Context, oldInfo LoadedInfo) {
	if _, err := m.Engine.LoadPlugin(ctx, oldInfo.FilePath, oldInfo.PluginID); err != nil {
		return
	}
	restored := oldInfo
	restored.Status = StatusLoaded
	m.mu.Lock()
	m.loaded[oldInfo.PluginID] = &restored
	m.mu.Unlock()
}

func oldVersionReloadCount(info LoadedInfo, had bool) int {
	if !had {
		return 0
	}
	return info.ReloadCount
}

func bestVersion(reg *registry.Registry, id, versionReq string) (registry.PluginVersion, bool) {
	if versionReq == "" {
		return reg.Latest(id)
	}
	versions, ok := reg.Versions(id)
	if !ok {
		return registry.PluginVersion{}, false
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Version.String() == versionReq {
			return versions[i], true
		}
	}
	return registry.PluginVersion{}, false
}

// Watch starts a debounced filesystem watcher over dirs: each
// create/write event re-discovers the affected file into the registry
// and hot-reloads (or loads, if not yet loaded) the plugin id it
// produces; each remove/rename event unloads that plugin id. Events
// for the same path within debounce of each other collapse into one
// action, grounded on dynamic_loader.rs's start_file_watcher /
// handle_file_event debounce-by-path loop. Watch returns once the
// watcher goroutine has started; call StopWatch to tear it down.
func (m *Manager) Watch(ctx context.Context, dirs []string, cfg registry.ValidationConfig, debounce time.Duration) error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watchCh != nil {
		return fmt.Errorf("lifecycle: watcher already running")
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	events := make(chan notify.EventInfo, 64)
	for _, dir := range dirs {
		if err := notify.Watch(filepath.Join(dir, "..."), events, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
			return fmt.Errorf("lifecycle: watch %s: %w", dir, err)
		}
	}

	stop := make(chan string)
	m.watchCh = stop

	go m.watchLoop(ctx, events, stop, cfg, debounce)
	return nil
}

// StopWatch tears down the filesystem watcher started by Watch, if any.
func (m *Manager) StopWatch() {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watchCh == nil {
		return
	}
	close(m.watchCh)
	m.watchCh = nil
}

func (m *Manager) watchLoop(ctx context.Context, events chan notify.EventInfo, stop chan string, cfg registry.ValidationConfig, debounce time.Duration) {
	defer notify.Stop(events)

	pending := map[string]*time.Timer{}
	var mu sync.Mutex
	fire := make(chan string, 64)

	for {
		select {
		case <-stop:
			mu.Lock()
			for _, timer := range pending {
				timer.Stop()
			}
			mu.Unlock()
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			path := ev.Path()
			action := classifyEvent(ev.Event())

			mu.Lock()
			if timer, exists := pending[path]; exists {
				timer.Stop()
			}
			pending[path] = time.AfterFunc(debounce, func() {
				fire <- path + "|" + action
			})
			mu.Unlock()
		case tagged := <-fire:
			parts := strings.SplitN(tagged, "|", 2)
			path, action := parts[0], parts[1]
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			m.handleFileEvent(ctx, path, action, cfg)
		}
	}
}

func classifyEvent(e notify.Event) string {
	switch e {
	case notify.Remove, notify.Rename:
		return "remove"
	default:
		return "change"
	}
}

func (m *Manager) handleFileEvent(ctx context.Context, path, action string, cfg registry.ValidationConfig) {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch action {
	case "remove":
		_ = m.Unload(ctx, id)
	case "change":
		result := registry.Discover([]string{filepath.Dir(path)}, cfg, m.Registry)
		for _, failure := range result.Failed {
			if failure.FilePath == path {
				return
			}
		}
		if _, ok := m.LoadedInfo(id); ok {
			_ = m.Reload(ctx, id)
		} else {
			_ = m.Load(ctx, id, "")
		}
	}
}

func validate(version registry.PluginVersion, cfg registry.ValidationConfig) []string {
	var errs []string
	ext := strings.TrimPrefix(filepath.Ext(version.FilePath), ".")
	allowed := false
	for _, a := range cfg.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		errs = append(errs, "plugin file extension not allowed")
	}
	for _, pattern := range cfg.BlockedPatterns {
		if strings.Contains(version.FilePath, pattern) {
			errs = append(errs, fmt.Sprintf("plugin path matches blocked pattern: %s", pattern))
		}
	}
	return errs
}
