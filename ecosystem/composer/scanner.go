// Package composer scans PHP projects: composer.json is the manifest,
// composer.lock (JSON, "packages"/"packages-dev" arrays) is the lockfile.
package composer

import (
	"context"
	"encoding/json"
	"io/fs"
	"path"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
)

const (
	manifestName = "composer.json"
	lockfileName = "composer.lock"
)

// Scanner implements ecosystem.Scanner for PHP's Composer.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Composer }

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

type composerJSON struct {
	Require    map[string]string `json:"require"`
	RequireDev map[string]string `json:"require-dev"`
}

type composerLock struct {
	Packages    []composerPackage `json:"packages"`
	PackagesDev []composerPackage `json:"packages-dev"`
}

type composerPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/composer.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Composer), Root: dir}

	if lockfile != "" {
		data, err := fs.ReadFile(fsys, lockfile)
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("lockfile present but unreadable, falling back to manifest")
		} else {
			var lock composerLock
			if err := json.Unmarshal(data, &lock); err != nil {
				zlog.Info(ctx).Err(err).Msg("unparseable composer.lock, falling back to manifest")
			} else {
				for _, p := range lock.Packages {
					result.Packages = append(result.Packages, bazbom.Package{
						Ecosystem: string(ecosystem.Composer),
						Name:      p.Name,
						Version:   trimV(p.Version),
						Scope:     bazbom.ScopeTransitive,
					})
				}
				for _, p := range lock.PackagesDev {
					result.Packages = append(result.Packages, bazbom.Package{
						Ecosystem: string(ecosystem.Composer),
						Name:      p.Name,
						Version:   trimV(p.Version),
						Scope:     bazbom.ScopeDev,
					})
				}
			}
		}
	}

	if result.Packages == nil {
		data, err := fs.ReadFile(fsys, manifest)
		if err != nil {
			return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "composer.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
		}
		var pkg composerJSON
		if err := json.Unmarshal(data, &pkg); err != nil {
			return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "composer.Scan", Kind: bazbom.ErrKindParse, Inner: err}
		}
		for name, spec := range pkg.Require {
			if name == "php" {
				continue
			}
			result.Packages = append(result.Packages, bazbom.Package{
				Ecosystem: string(ecosystem.Composer),
				Name:      name,
				Version:   ecosystem.StripOperator(spec),
				Scope:     bazbom.ScopeDirect,
			})
		}
		for name, spec := range pkg.RequireDev {
			result.Packages = append(result.Packages, bazbom.Package{
				Ecosystem: string(ecosystem.Composer),
				Name:      name,
				Version:   ecosystem.StripOperator(spec),
				Scope:     bazbom.ScopeDev,
			})
		}
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}

func trimV(version string) string {
	return ecosystem.StripOperator(version)
}
