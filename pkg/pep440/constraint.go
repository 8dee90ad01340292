package pep440

import (
	"fmt"
	"strings"
)

// Constraint is a single comparator + version, e.g. ">=0.5".
type Constraint struct {
	Op      string
	Version Version
}

// ConstraintSet is a comma-joined list of Constraints, all of which must
// hold for a candidate version to match (PEP 440's specifier-set AND
// semantics, and the semantics mapping configs use for
// "&gt;=0.5,&lt;0.7"-style version_range selectors).
type ConstraintSet []Constraint

var comparators = []string{"===", "~=", ">=", "<=", "==", "!=", ">", "<"}

// ParseConstraintSet parses a comma-separated specifier set. A bare "*"
// (the wildcard mapping configs use for "any version") yields an empty,
// always-matching set.
func ParseConstraintSet(s string) (ConstraintSet, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return ConstraintSet{}, nil
	}

	clauses := strings.Split(s, ",")
	out := make(ConstraintSet, 0, len(clauses))
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		op, verStr, err := splitComparator(clause)
		if err != nil {
			return nil, fmt.Errorf("pep440: %w", err)
		}

		ver, err := Parse(verStr)
		if err != nil {
			return nil, fmt.Errorf("pep440: constraint %q: %w", clause, err)
		}

		out = append(out, Constraint{Op: op, Version: ver})
	}

	return out, nil
}

func splitComparator(clause string) (op, version string, err error) {
	for _, c := range comparators {
		if strings.HasPrefix(clause, c) {
			return c, strings.TrimSpace(clause[len(c):]), nil
		}
	}
	return "", "", fmt.Errorf("unrecognized comparator in constraint %q", clause)
}

// Matches reports whether v satisfies every clause in the set. An empty
// set (wildcard) matches everything.
func (cs ConstraintSet) Matches(v Version) bool {
	for _, c := range cs {
		cmp := Compare(v, c.Version)
		var ok bool
		switch c.Op {
		case "==":
			ok = cmp == 0
		case "!=":
			ok = cmp != 0
		case ">=":
			ok = cmp >= 0
		case "<=":
			ok = cmp <= 0
		case ">":
			ok = cmp > 0
		case "<":
			ok = cmp < 0
		case "~=":
			ok = compatibleRelease(v, c.Version)
		case "===":
			ok = v.raw == c.Version.raw
		}
		if !ok {
			return false
		}
	}
	return true
}

// compatibleRelease implements PEP 440's "~=" compatible-release clause:
// ~=X.Y.Z means >=X.Y.Z, ==X.Y.* (the last release segment floats, every
// segment before it is pinned).
func compatibleRelease(v, floor Version) bool {
	if Compare(v, floor) < 0 {
		return false
	}
	if len(floor.Release) < 2 {
		return true
	}
	prefix := floor.Release[:len(floor.Release)-1]
	if len(v.Release) < len(prefix) {
		return false
	}
	return compareReleases(v.Release[:len(prefix)], prefix) == 0
}

// IsExactPin reports whether spec is a single "==" clause with no wildcard
// or range — the only form the resolver accepts for required pins — and
// returns the pinned version string (including any local build tag).
func IsExactPin(spec string) (exact string, ok bool) {
	spec = strings.TrimSpace(spec)
	if !strings.HasPrefix(spec, "==") {
		return "", false
	}
	if strings.ContainsAny(spec, ",") {
		return "", false
	}
	rest := strings.TrimSpace(spec[2:])
	if rest == "" || strings.ContainsAny(rest, "*") {
		return "", false
	}
	if _, err := Parse(rest); err != nil {
		return "", false
	}
	return rest, true
}

// MatchesVersionTag supports the Mapper's "version": "*" wildcard and
// exact/range app-version selectors against a concrete app version tag.
func MatchesVersionTag(selector, versionTag string) bool {
	selector = strings.TrimSpace(selector)
	if selector == "*" || selector == "" {
		return true
	}

	cs, err := ParseConstraintSet(selector)
	if err != nil {
		return selector == versionTag
	}

	v, err := Parse(versionTag)
	if err != nil {
		return selector == versionTag
	}

	return cs.Matches(v)
}
