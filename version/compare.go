package version

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

var ErrMalformed = errors.New("malformed version")

// Release is a parsed release tag such as v0.4.0 or 0.5.0-rc.1. Build
// metadata after a "+" is dropped.
type Release struct {
	Major, Minor, Patch int
	Prerelease          string
}

// Parse reads a release tag. Missing minor and patch numbers count as zero.
func Parse(tag string) (Release, error) {
	s, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(tag), "v"), "+")
	core, pre, _ := strings.Cut(s, "-")

	parts := strings.Split(core, ".")
	if core == "" || len(parts) > 3 {
		return Release{}, fmt.Errorf("%w: %q", ErrMalformed, tag)
	}

	numbers := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Release{}, fmt.Errorf("%w: %q", ErrMalformed, tag)
		}
		numbers[i] = n
	}

	return Release{Major: numbers[0], Minor: numbers[1], Patch: numbers[2], Prerelease: pre}, nil
}

func (r Release) String() string {
	s := fmt.Sprintf("%d.%d.%d", r.Major, r.Minor, r.Patch)
	if r.Prerelease != "" {
		s += "-" + r.Prerelease
	}
	return s
}

// Compare orders r against other. A prerelease sorts before its release.
func (r Release) Compare(other Release) int {
	if c := cmp.Or(
		cmp.Compare(r.Major, other.Major),
		cmp.Compare(r.Minor, other.Minor),
		cmp.Compare(r.Patch, other.Patch),
	); c != 0 {
		return c
	}

	switch {
	case r.Prerelease == other.Prerelease:
		return 0
	case r.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	}

	return comparePrerelease(strings.Split(r.Prerelease, "."), strings.Split(other.Prerelease, "."))
}

// comparePrerelease compares dot separated identifiers, numerically where both are numbers.
func comparePrerelease(a, b []string) int {
	for i := range min(len(a), len(b)) {
		x, xErr := strconv.Atoi(a[i])
		y, yErr := strconv.Atoi(b[i])

		var c int
		switch {
		case xErr == nil && yErr == nil:
			c = cmp.Compare(x, y)
		case xErr == nil:
			c = -1
		case yErr == nil:
			c = 1
		default:
			c = strings.Compare(a[i], b[i])
		}

		if c != 0 {
			return c
		}
	}

	return cmp.Compare(len(a), len(b))
}

// Compare parses both tags and orders a against b.
func Compare(a, b string) (int, error) {
	ra, err := Parse(a)
	if err != nil {
		return 0, err
	}

	rb, err := Parse(b)
	if err != nil {
		return 0, err
	}

	return ra.Compare(rb), nil
}

// Newer reports whether latest is a later release than current. Tags that
// do not parse are never newer.
func Newer(latest, current string) bool {
	c, err := Compare(latest, current)
	return lo.Ternary(err == nil, c > 0, false)
}
