// Package npm scans Node.js projects: find package.json (and, if present,
// package-lock.json for exact pinned versions), record dependency names,
// versions, and declared license.
package npm

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
	manifestName = "package.json"
	lockfileName = "package-lock.json"
)

// Scanner implements ecosystem.Scanner for npm.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Npm }

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

type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	License         json.RawMessage   `json:"license"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

type packageLockV2 struct {
	Packages map[string]lockPackage `json:"packages"`
}

type lockPackage struct {
	Version string `json:"version"`
	Dev     bool   `json:"dev"`
}

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/npm.Scanner.Scan", "root", dir)

	data, err := fs.ReadFile(fsys, manifest)
	if err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "npm.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "npm.Scan", Kind: bazbom.ErrKindParse, Inner: err}
	}

	license := parseLicense(pkg.License)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Npm), Root: dir}

	if lockfile != "" {
		lockData, err := fs.ReadFile(fsys, lockfile)
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("lockfile present but unreadable, falling back to manifest")
		} else {
			var lock packageLockV2
			if err := json.Unmarshal(lockData, &lock); err != nil {
				zlog.Info(ctx).Err(err).Msg("unparseable package-lock.json, falling back to manifest")
			} else if len(lock.Packages) > 0 {
				// A resolved (name, version) pair can appear at multiple
				// node_modules paths (hoisted + nested); package identity
				// is (name, version) alone, so dedupe before appending.
				seen := make(map[[2]string]bool)
				for key, p := range lock.Packages {
					if key == "" || p.Version == "" {
						continue
					}
					name := path.Base(key)
					k := [2]string{name, p.Version}
					if seen[k] {
						continue
					}
					seen[k] = true
					scope := bazbom.ScopeTransitive
					if p.Dev {
						scope = bazbom.ScopeDev
					}
					result.Packages = append(result.Packages, bazbom.Package{
						Ecosystem: string(ecosystem.Npm),
						Name:      name,
						Version:   p.Version,
						Scope:     scope,
						License:   license,
					})
				}
				if err := result.Validate(); err != nil {
					return bazbom.EcosystemScanResult{}, err
				}
				return result, nil
			}
		}
	}

	for name, spec := range pkg.Dependencies {
		result.Packages = append(result.Packages, bazbom.Package{
			Ecosystem: string(ecosystem.Npm),
			Name:      name,
			Version:   ecosystem.StripOperator(spec),
			Scope:     bazbom.ScopeDirect,
			License:   license,
		})
	}
	for name, spec := range pkg.DevDependencies {
		result.Packages = append(result.Packages, bazbom.Package{
			Ecosystem: string(ecosystem.Npm),
			Name:      name,
			Version:   ecosystem.StripOperator(spec),
			Scope:     bazbom.ScopeDev,
			License:   license,
		})
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}

// parseLicense handles both "license": "MIT" and the older
// "license": {"type": "MIT"} shapes.
func parseLicense(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Type
	}
	return ""
}
