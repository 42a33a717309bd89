package resolver

import "github.com/blang/semver/v4"

// parseRange resolves SPEC_FULL.md §16's open question on semver range
// syntax: whatever blang/semver/v4 accepts (caret, comparison operators,
// comma-separated ranges), rather than a hand-rolled comparator.
func parseRange(requirement string) (semver.Range, error) {
	return semver.ParseRange(requirement)
}
