// Package pep440 parses and compares the subset of PEP 440 version and
// specifier syntax the dependency resolver needs: exact pins ("==2.5.1"),
// release segments with pre/dev/local qualifiers, and comma-joined range
// constraints (">=0.5,<0.7") used by mapping-config version selectors.
package pep440

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed PEP 440 release, e.g. "2.5.1.dev3+cu121".
type Version struct {
	Release []uint64 // numeric release segments, e.g. [2,5,1]
	Pre     string   // "a3", "b1", "rc2", or ""
	Dev     string   // "dev3" or ""
	Local   string   // "+cu121" local segment, without the leading "+"
	raw     string
}

func (v Version) String() string { return v.raw }

// Parse parses a PEP-440-shaped release string. It accepts the common
// subset actually emitted by Python package metadata: numeric release
// segments, an optional pre-release (a/b/rc + number), an optional
// ".devN", and an optional "+local" segment. It does not implement epochs
// ("1!2.0") or post-releases, neither of which this library's profiles use.
func Parse(s string) (Version, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("pep440: empty version string")
	}

	local := ""
	if i := strings.IndexByte(s, '+'); i != -1 {
		local = s[i+1:]
		s = s[:i]
		if local == "" {
			return Version{}, fmt.Errorf("pep440: empty local segment in %q", raw)
		}
	}

	dev := ""
	if i := strings.Index(s, ".dev"); i != -1 {
		dev = s[i+1:]
		s = s[:i]
	}

	pre := ""
	if i := strings.Index(strings.ToLower(s), "rc"); i != -1 {
		pre = s[i:]
		s = s[:i]
	} else if i := strings.IndexAny(s, "aAbBcC"); i != -1 && looksLikePre(s[i:]) {
		pre = s[i:]
		s = s[:i]
	}

	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return Version{}, fmt.Errorf("pep440: no release segment in %q", raw)
	}

	parts := strings.Split(s, ".")
	release := make([]uint64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return Version{}, fmt.Errorf("pep440: empty release segment in %q", raw)
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("pep440: invalid release segment %q in %q: %w", p, raw, err)
		}
		release = append(release, n)
	}

	return Version{Release: release, Pre: pre, Dev: dev, Local: local, raw: raw}, nil
}

func looksLikePre(s string) bool {
	lower := strings.ToLower(s)
	for _, prefix := range []string{"a", "b", "rc", "c"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if rest == "" {
				return true
			}
			if _, err := strconv.ParseUint(rest, 10, 64); err == nil {
				return true
			}
		}
	}
	return false
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b,
// using release-segment comparison first, then pre/dev precedence (a
// pre/dev release sorts before the corresponding final release), then the
// local segment as a final, purely lexical tiebreaker.
func Compare(a, b Version) int {
	if c := compareReleases(a.Release, b.Release); c != 0 {
		return c
	}
	if c := comparePre(a.Pre, b.Pre); c != 0 {
		return c
	}
	if c := comparePre(a.Dev, b.Dev); c != 0 {
		return c
	}
	return strings.Compare(a.Local, b.Local)
}

func compareReleases(a, b []uint64) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv uint64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// comparePre treats "" (no pre/dev qualifier, i.e. a final release) as
// greater than any non-empty qualifier, matching PEP 440 precedence
// (1.0a1 < 1.0.dev1 < 1.0 in the cases this resolver needs to tell apart;
// exact pre/dev ordering relative to each other is not required by any
// resolver rule, only "qualified sorts before final").
func comparePre(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return 1
	}
	if b == "" {
		return -1
	}
	return strings.Compare(a, b)
}

// Equal reports whether two version strings denote the same release,
// parsing both first; if either fails to parse it falls back to plain
// string equality (not an error) since callers use it for best-effort
// dedup checks.
func Equal(a, b string) bool {
	av, err1 := Parse(a)
	bv, err2 := Parse(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return Compare(av, bv) == 0
}
