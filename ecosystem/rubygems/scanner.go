// Package rubygems scans Ruby projects: Gemfile is the manifest,
// Gemfile.lock's `GEM`/`specs:` block is the lockfile.
package rubygems

import (
	"bufio"
	"context"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
)

const (
	manifestName = "Gemfile"
	lockfileName = "Gemfile.lock"
)

// Scanner implements ecosystem.Scanner for RubyGems.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.RubyGems }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	m := path.Join(dir, manifestName)
	if _, err := fs.Stat(fsys, m); err != nil {
		return "", "", false
	}
	l := path.Join(dir, lockfileName)
	if _, err := fs.Stat(fsys, l); err != nil {
		l = ""
	}
	return m, l, true
}

var (
	gemLine      = regexp.MustCompile(`^gem\s+['"]([^'"]+)['"](?:\s*,\s*['"]([^'"]+)['"])?`)
	specLine     = regexp.MustCompile(`^    ([A-Za-z0-9_.-]+) \(([^)]+)\)`)
)

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/rubygems.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.RubyGems), Root: dir}

	if lockfile != "" {
		pkgs, err := parseLock(fsys, lockfile)
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("unparseable Gemfile.lock, falling back to manifest")
		} else {
			result.Packages = pkgs
		}
	}

	if result.Packages == nil {
		pkgs, err := parseGemfile(fsys, manifest)
		if err != nil {
			return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "rubygems.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
		}
		result.Packages = pkgs
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}

func parseGemfile(fsys fs.FS, manifest string) ([]bazbom.Package, error) {
	f, err := fsys.Open(manifest)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []bazbom.Package
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		m := gemLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, bazbom.Package{
			Ecosystem: string(ecosystem.RubyGems),
			Name:      m[1],
			Version:   ecosystem.StripOperator(m[2]),
			Scope:     bazbom.ScopeDirect,
		})
	}
	return out, sc.Err()
}

func parseLock(fsys fs.FS, lockfile string) ([]bazbom.Package, error) {
	f, err := fsys.Open(lockfile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []bazbom.Package
	inSpecs := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "specs:":
			inSpecs = true
			continue
		case trimmed == "" || strings.HasPrefix(trimmed, "GEM") || strings.HasPrefix(trimmed, "PLATFORMS") || strings.HasPrefix(trimmed, "DEPENDENCIES"):
			inSpecs = false
			continue
		case !inSpecs:
			continue
		}
		m := specLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, bazbom.Package{
			Ecosystem: string(ecosystem.RubyGems),
			Name:      m[1],
			Version:   m[2],
			Scope:     bazbom.ScopeTransitive,
		})
	}
	return out, sc.Err()
}
