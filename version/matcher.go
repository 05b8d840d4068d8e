// Package version decides whether a concrete installed package version
// falls inside a heterogeneous set of advisory ranges.
package version

import (
	"context"
	"strings"

	"github.com/Masterminds/semver"
	apkversion "github.com/knqyf263/go-apk-version"
	debversion "github.com/knqyf263/go-deb-version"
	rpmversion "github.com/knqyf263/go-rpm-version"
	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
)

// zeroVersion is the sentinel meaning "from the beginning of time".
const zeroVersion = "0"

// IsAffected reports whether version falls inside any of ranges.
//
// A SEMVER range whose Version argument fails to parse is a hard error;
// callers may choose to treat that as "not affected".
func IsAffected(ctx context.Context, version string, ranges []bazbom.VersionRange) (bool, error) {
	r, err := MatchingRange(ctx, version, ranges)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

// MatchingRange is IsAffected, but returns a pointer into ranges at the
// specific range that matched (nil if none did) so the caller can record
// which advisory range applies to the installed version.
func MatchingRange(ctx context.Context, version string, ranges []bazbom.VersionRange) (*bazbom.VersionRange, error) {
	for i := range ranges {
		ok, err := rangeContains(ctx, version, ranges[i])
		if err != nil {
			return nil, err
		}
		if ok {
			return &ranges[i], nil
		}
	}
	return nil, nil
}

func rangeContains(ctx context.Context, version string, r bazbom.VersionRange) (bool, error) {
	introduced, fixed, lastAffected := collectEvents(r)

	switch r.Type {
	case bazbom.RangeSemver:
		return semverInterval(version, introduced, fixed, lastAffected)
	case bazbom.RangeEcosystem:
		return ecosystemInterval(ctx, version, introduced, fixed, lastAffected, "")
	case bazbom.RangeGit:
		return gitInterval(version, introduced, fixed, lastAffected), nil
	default:
		zlog.Info(ctx).Str("range_type", r.Type.String()).
			Msg("version: unknown range kind, conservatively reporting affected")
		return true, nil
	}
}

// IsAffectedForEcosystem lets a caller that knows the concrete OS-package
// ecosystem (apk/dpkg/rpm) route RangeEcosystem comparisons whose version
// SEMVER cannot parse through the matching knqyf263 comparator, before
// falling back to string comparison.
func IsAffectedForEcosystem(ctx context.Context, ecosystem, version string, ranges []bazbom.VersionRange) (bool, error) {
	r, err := MatchingRangeForEcosystem(ctx, ecosystem, version, ranges)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

// MatchingRangeForEcosystem is IsAffectedForEcosystem, but returns a pointer
// into ranges at the range that matched (nil if none did).
func MatchingRangeForEcosystem(ctx context.Context, ecosystem, version string, ranges []bazbom.VersionRange) (*bazbom.VersionRange, error) {
	for i := range ranges {
		r := ranges[i]
		if r.Type != bazbom.RangeEcosystem {
			ok, err := rangeContains(ctx, version, r)
			if err != nil {
				return nil, err
			}
			if ok {
				return &ranges[i], nil
			}
			continue
		}
		introduced, fixed, lastAffected := collectEvents(r)
		ok, err := ecosystemInterval(ctx, version, introduced, fixed, lastAffected, ecosystem)
		if err != nil {
			return nil, err
		}
		if ok {
			return &ranges[i], nil
		}
	}
	return nil, nil
}

// collectEvents picks the most recent Introduced/Fixed/LastAffected event
// from a range's (ordered) event list. A missing Introduced defaults to the
// zero sentinel.
func collectEvents(r bazbom.VersionRange) (introduced, fixed, lastAffected string) {
	introduced = zeroVersion
	for _, ev := range r.Events {
		switch ev.Kind {
		case bazbom.EventIntroduced:
			introduced = ev.Value
		case bazbom.EventFixed:
			fixed = ev.Value
		case bazbom.EventLastAffected:
			lastAffected = ev.Value
		}
	}
	return introduced, fixed, lastAffected
}

func semverInterval(version, introduced, fixed, lastAffected string) (bool, error) {
	v, err := parseSemver(version)
	if err != nil {
		return false, &bazbom.Error{Op: "version.IsAffected", Kind: bazbom.ErrKindVersionParse,
			Message: "invalid version " + version, Inner: err}
	}

	in, err := parseSemver(introduced)
	if err != nil {
		// A malformed introduced bound in advisory data is not the
		// caller's version failing to parse; treat conservatively.
		return true, nil
	}
	if v.LessThan(in) {
		return false, nil
	}
	if fixed != "" {
		f, err := parseSemver(fixed)
		if err != nil {
			return true, nil
		}
		return v.LessThan(f), nil
	}
	if lastAffected != "" {
		la, err := parseSemver(lastAffected)
		if err != nil {
			return true, nil
		}
		return !v.GreaterThan(la), nil
	}
	return true, nil
}

func parseSemver(s string) (*semver.Version, error) {
	if s == zeroVersion || s == "" {
		return semver.NewVersion("0.0.0")
	}
	return semver.NewVersion(strings.TrimPrefix(s, "v"))
}

// ecosystemInterval tries SEMVER first; when the installed version fails to
// parse as SEMVER it falls back to an ecosystem-specific comparator when one
// is named, and finally to plain string comparison. A bound that fails to
// parse while the version parses is reported as affected by the SEMVER path.
func ecosystemInterval(ctx context.Context, version, introduced, fixed, lastAffected, ecosystem string) (bool, error) {
	if ok, err := semverInterval(version, introduced, fixed, lastAffected); err == nil {
		return ok, nil
	}

	switch ecosystem {
	case "alpine", "apk":
		return apkInterval(version, introduced, fixed, lastAffected)
	case "debian", "ubuntu", "dpkg":
		return debInterval(version, introduced, fixed, lastAffected)
	case "rhel", "fedora", "rpm":
		return rpmInterval(version, introduced, fixed, lastAffected)
	}

	zlog.Debug(ctx).Str("ecosystem", ecosystem).Msg("version: falling back to string comparison")
	return stringInterval(version, introduced, fixed, lastAffected), nil
}

func apkInterval(version, introduced, fixed, lastAffected string) (bool, error) {
	v, err := apkversion.NewVersion(version)
	if err != nil {
		return stringInterval(version, introduced, fixed, lastAffected), nil
	}
	in, errIn := apkversion.NewVersion(normalizeZero(introduced))
	if errIn == nil && v.LessThan(in) {
		return false, nil
	}
	if fixed != "" {
		f, err := apkversion.NewVersion(fixed)
		if err == nil {
			return v.LessThan(f), nil
		}
	}
	if lastAffected != "" {
		la, err := apkversion.NewVersion(lastAffected)
		if err == nil {
			return !v.GreaterThan(la), nil
		}
	}
	return true, nil
}

func debInterval(version, introduced, fixed, lastAffected string) (bool, error) {
	v, err := debversion.NewVersion(version)
	if err != nil {
		return stringInterval(version, introduced, fixed, lastAffected), nil
	}
	if in, err := debversion.NewVersion(normalizeZero(introduced)); err == nil && v.LessThan(in) {
		return false, nil
	}
	if fixed != "" {
		if f, err := debversion.NewVersion(fixed); err == nil {
			return v.LessThan(f), nil
		}
	}
	if lastAffected != "" {
		if la, err := debversion.NewVersion(lastAffected); err == nil {
			return v.LessThan(la) || v.Equal(la), nil
		}
	}
	return true, nil
}

func rpmInterval(version, introduced, fixed, lastAffected string) (bool, error) {
	v := rpmversion.NewVersion(version)
	if in := rpmversion.NewVersion(normalizeZero(introduced)); v.LessThan(in) {
		return false, nil
	}
	if fixed != "" {
		f := rpmversion.NewVersion(fixed)
		return v.LessThan(f), nil
	}
	if lastAffected != "" {
		la := rpmversion.NewVersion(lastAffected)
		return !v.GreaterThan(la), nil
	}
	return true, nil
}

// gitInterval compares commit-ish strings lexicographically. Commit SHAs
// have no real order, so the result is an approximation that can
// over-match or under-match.
func gitInterval(version, introduced, fixed, lastAffected string) bool {
	return stringInterval(version, introduced, fixed, lastAffected)
}

func stringInterval(version, introduced, fixed, lastAffected string) bool {
	if introduced != zeroVersion && version < introduced {
		return false
	}
	if fixed != "" {
		return version < fixed
	}
	if lastAffected != "" {
		return version <= lastAffected
	}
	return true
}

func normalizeZero(s string) string {
	if s == "" {
		return zeroVersion
	}
	return s
}
