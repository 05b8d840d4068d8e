// Package python scans Python projects: a requirements.txt manifest, or a
// poetry.lock/Pipfile.lock for exact pinned versions when present, walking
// a source tree's manifests rather than installed wheel/egg metadata in a
// built container layer.
package python

import (
	"bufio"
	"context"
	"encoding/json"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
)

const (
	requirementsName = "requirements.txt"
	pipfileLockName  = "Pipfile.lock"
	poetryLockName   = "poetry.lock"
)

// Scanner implements ecosystem.Scanner for Python's pip/poetry/pipenv
// manifests.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Python }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	m := path.Join(dir, requirementsName)
	if _, err := fs.Stat(fsys, m); err != nil {
		return "", "", false
	}
	for _, name := range []string{pipfileLockName, poetryLockName} {
		l := path.Join(dir, name)
		if _, err := fs.Stat(fsys, l); err == nil {
			return m, l, true
		}
	}
	return m, "", true
}

func (s Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/python.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Python), Root: dir}

	switch {
	case strings.HasSuffix(lockfile, pipfileLockName):
		pkgs, err := parsePipfileLock(fsys, lockfile)
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("unparseable Pipfile.lock, falling back to manifest")
			break
		}
		result.Packages = pkgs
	case strings.HasSuffix(lockfile, poetryLockName):
		pkgs, err := parsePoetryLock(fsys, lockfile)
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("unparseable poetry.lock, falling back to manifest")
			break
		}
		result.Packages = pkgs
	}

	if result.Packages == nil {
		pkgs, err := parseRequirements(fsys, manifest)
		if err != nil {
			return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "python.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
		}
		result.Packages = pkgs
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}

// requirementLine matches "name==version", "name>=version", "name~=version"
// and bare "name" (no version spec).
var requirementLine = regexp.MustCompile(`^([A-Za-z0-9._-]+)\s*(==|>=|<=|~=|>|<|===)?\s*([A-Za-z0-9._*+!-]*)`)

func parseRequirements(fsys fs.FS, manifest string) ([]bazbom.Package, error) {
	f, err := fsys.Open(manifest)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []bazbom.Package
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		m := requirementLine.FindStringSubmatch(line)
		if m == nil || m[1] == "" {
			continue
		}
		out = append(out, bazbom.Package{
			Ecosystem: string(ecosystem.Python),
			Name:      m[1],
			Version:   ecosystem.StripOperator(m[3]),
			Scope:     bazbom.ScopeDirect,
		})
	}
	return out, sc.Err()
}

type pipfileLock struct {
	Default map[string]pipfileEntry `json:"default"`
	Develop map[string]pipfileEntry `json:"develop"`
}

type pipfileEntry struct {
	Version string `json:"version"`
}

func parsePipfileLock(fsys fs.FS, lockfile string) ([]bazbom.Package, error) {
	data, err := fs.ReadFile(fsys, lockfile)
	if err != nil {
		return nil, err
	}
	var lock pipfileLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, err
	}
	var out []bazbom.Package
	add := func(entries map[string]pipfileEntry, scope bazbom.Scope) {
		for name, e := range entries {
			out = append(out, bazbom.Package{
				Ecosystem: string(ecosystem.Python),
				Name:      name,
				Version:   strings.TrimPrefix(e.Version, "=="),
				Scope:     scope,
			})
		}
	}
	add(lock.Default, bazbom.ScopeDirect)
	add(lock.Develop, bazbom.ScopeDev)
	return out, nil
}

// poetryPackage and poetryVersion match the name and version lines of a
// `[[package]]` TOML table in poetry.lock.
var (
	poetryPackage = regexp.MustCompile(`^name\s*=\s*"([^"]+)"`)
	poetryVersion = regexp.MustCompile(`^version\s*=\s*"([^"]+)"`)
)

func parsePoetryLock(fsys fs.FS, lockfile string) ([]bazbom.Package, error) {
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
				Ecosystem: string(ecosystem.Python),
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
		case poetryPackage.MatchString(line):
			name = poetryPackage.FindStringSubmatch(line)[1]
		case poetryVersion.MatchString(line):
			version = poetryVersion.FindStringSubmatch(line)[1]
		}
	}
	flush()
	return out, sc.Err()
}
