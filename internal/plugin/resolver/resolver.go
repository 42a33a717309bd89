// Package resolver implements the C11 dependency resolver (spec.md
// §4.10): a depth-first traversal over the plugin registry that
// produces a load order with dependencies before dependents, detecting
// cycles and unresolved version requirements.
package resolver

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/nexusshell/nexusshell/internal/nxerrors"
	"github.com/nexusshell/nexusshell/internal/plugin/registry"
)

// Policy carries the version-compatibility flags spec.md §4.10 names.
// Overrides lets a specific plugin id pin its own requirement string
// regardless of what its dependent asked for. Resolve consults only
// Overrides; StrictSemver, AllowMajorUpgrades and AllowDowngrades are
// carried but do not affect which version is chosen.
type Policy struct {
	StrictSemver       bool
	AllowMajorUpgrades bool
	AllowDowngrades    bool
	Overrides          map[string]string
}

func DefaultPolicy() Policy {
	return Policy{StrictSemver: true, Overrides: map[string]string{}}
}

// versionMatcher abstracts registry.PluginVersion lookup so the DFS
// below doesn't need to know about registry.Registry's locking.
type versionMatcher interface {
	Versions(id string) ([]registry.PluginVersion, bool)
}

// Resolve produces a post-order load list (dependencies before
// dependents) for rootID, per spec.md §4.10's DFS-with-visited/visiting
// algorithm. requirement, if non-empty, pins the root's version;
// otherwise the highest known version is used.
func Resolve(reg versionMatcher, rootID string, requirement string, policy Policy) ([]string, error) {
	root, err := findBestVersion(reg, rootID, requirement)
	if err != nil {
		return nil, nxerrors.NewDependencyFailed(rootID, rootID, err.Error())
	}

	visited := mapset.NewSet[string]()
	visiting := mapset.NewSet[string]()
	var order []string

	if err := visit(reg, rootID, root, policy, visited, visiting, &order); err != nil {
		return nil, err
	}
	return order, nil
}

func visit(
	reg versionMatcher,
	id string,
	version registry.PluginVersion,
	policy Policy,
	visited, visiting mapset.Set[string],
	order *[]string,
) error {
	if visiting.Contains(id) {
		return nxerrors.NewDependencyFailed(id, id, "circular dependency detected")
	}
	if visited.Contains(id) {
		return nil
	}
	visiting.Add(id)

	for depID, req := range version.Metadata.Dependencies {
		if override, ok := policy.Overrides[depID]; ok {
			req = override
		}
		depVersion, err := findBestVersion(reg, depID, req)
		if err != nil {
			return nxerrors.NewDependencyFailed(id, depID, err.Error())
		}
		if err := visit(reg, depID, depVersion, policy, visited, visiting, order); err != nil {
			return err
		}
	}

	visiting.Remove(id)
	visited.Add(id)
	*order = append(*order, id)
	return nil
}

// findBestVersion returns the highest version of id satisfying
// requirement (empty requirement means "highest available").
func findBestVersion(reg versionMatcher, id, requirement string) (registry.PluginVersion, error) {
	versions, ok := reg.Versions(id)
	if !ok || len(versions) == 0 {
		return registry.PluginVersion{}, fmt.Errorf("plugin %s not found in registry", id)
	}

	if requirement == "" {
		return versions[len(versions)-1], nil
	}

	rangeFn, err := parseRange(requirement)
	if err != nil {
		return registry.PluginVersion{}, fmt.Errorf("invalid version requirement %q: %w", requirement, err)
	}

	var best *registry.PluginVersion
	for i := range versions {
		v := versions[i]
		if rangeFn(v.Version) && (best == nil || v.Version.GT(best.Version)) {
			best = &v
		}
	}
	if best == nil {
		return registry.PluginVersion{}, fmt.Errorf("no version of %s satisfies %q", id, requirement)
	}
	return *best, nil
}
