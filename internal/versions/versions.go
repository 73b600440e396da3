// Package versions orders the free-form version strings used by recipes.
package versions

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Compare returns -1, 0 or +1 as a is less than, equal to or greater than b.
//
// When both strings are semantic versions (with or without the leading "v")
// semver precedence applies. Anything else falls back to Debian-style
// ordering: non-digit runs compare character by character, with letters
// before other characters and "~" before everything, and digit runs compare
// numerically.
func Compare(a, b string) int {
	if sa, sb := canonical(a), canonical(b); sa != "" && sb != "" {
		return semver.Compare(sa, sb)
	}
	return debCompare(a, b)
}

// Select returns the greatest candidate that is not above target. It is
// how a recipe picks the patch set declared "from" some version.
func Select(candidates []string, target string) (string, bool) {
	best, found := "", false
	for _, c := range candidates {
		if Compare(c, target) > 0 {
			continue
		}
		if !found || Compare(c, best) > 0 {
			best, found = c, true
		}
	}
	return best, found
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

func debCompare(a, b string) int {
	for a != "" || b != "" {
		var pa, pb string
		pa, a = splitRun(a, false)
		pb, b = splitRun(b, false)
		if c := compareText(pa, pb); c != 0 {
			return c
		}
		pa, a = splitRun(a, true)
		pb, b = splitRun(b, true)
		if c := compareNumber(pa, pb); c != 0 {
			return c
		}
	}
	return 0
}

// splitRun splits the leading run of digits (or non-digits) off s.
func splitRun(s string, digits bool) (run, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:]
}

func compareText(a, b string) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		wa, wb := weight(a, i), weight(b, i)
		if wa != wb {
			return sign(wa - wb)
		}
	}
	return 0
}

// weight ranks the i-th character of s; the end of s ranks 0.
func weight(s string, i int) int {
	if i >= len(s) {
		return 0
	}
	switch c := s[i]; {
	case c == '~':
		return -1
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return int(c)
	default:
		return int(c) + 256
	}
}

func compareNumber(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return sign(len(a) - len(b))
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
