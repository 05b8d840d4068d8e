// Package cargo scans Rust crates: Cargo.toml is the manifest,
// Cargo.lock (TOML `[[package]]` tables) is the lockfile.
package cargo

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
	manifestName = "Cargo.toml"
	lockfileName = "Cargo.lock"
)

// Scanner implements ecosystem.Scanner for Rust's cargo.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Cargo }

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
	depLine  = regexp.MustCompile(`^([A-Za-z0-9_-]+)\s*=\s*"([^"]+)"`)
	pkgName  = regexp.MustCompile(`^name\s*=\s*"([^"]+)"`)
	pkgVer   = regexp.MustCompile(`^version\s*=\s*"([^"]+)"`)
)

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/cargo.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Cargo), Root: dir}

	if lockfile != "" {
		pkgs, err := parseLock(fsys, lockfile)
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("unparseable Cargo.lock, falling back to manifest")
		} else {
			result.Packages = pkgs
		}
	}

	if result.Packages == nil {
		pkgs, err := parseManifest(fsys, manifest)
		if err != nil {
			return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "cargo.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
		}
		result.Packages = pkgs
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}

func parseManifest(fsys fs.FS, manifest string) ([]bazbom.Package, error) {
	f, err := fsys.Open(manifest)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []bazbom.Package
	inDeps := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "[dependencies]":
			inDeps = true
			continue
		case strings.HasPrefix(line, "["):
			inDeps = false
			continue
		case !inDeps:
			continue
		}
		m := depLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, bazbom.Package{
			Ecosystem: string(ecosystem.Cargo),
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
	var name, version string
	flush := func() {
		if name != "" && version != "" {
			out = append(out, bazbom.Package{
				Ecosystem: string(ecosystem.Cargo),
				Name:      name,
				Version:   version,
				Scope:     bazbom.ScopeTransitive,
			})
		}
		name, version = "", ""
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "[[package]]":
			flush()
		case pkgName.MatchString(line):
			name = pkgName.FindStringSubmatch(line)[1]
		case pkgVer.MatchString(line):
			version = pkgVer.FindStringSubmatch(line)[1]
		}
	}
	flush()
	return out, sc.Err()
}
