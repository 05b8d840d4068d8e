// Package golang scans Go modules: go.mod's require block is the manifest,
// go.sum (one entry per resolved module@version) is the lockfile.
package golang

import (
	"bufio"
	"context"
	"io/fs"
	"path"
	"strings"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
)

const (
	goModName = "go.mod"
	goSumName = "go.sum"
)

// Scanner implements ecosystem.Scanner for Go modules.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Golang }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	m := path.Join(dir, goModName)
	if _, err := fs.Stat(fsys, m); err != nil {
		return "", "", false
	}
	l := path.Join(dir, goSumName)
	if _, err := fs.Stat(fsys, l); err != nil {
		l = ""
	}
	return m, l, true
}

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/golang.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Golang), Root: dir}

	direct, indirect, err := parseGoMod(fsys, manifest)
	if err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "golang.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	if lockfile != "" {
		sums, err := parseGoSum(fsys, lockfile)
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("unparseable go.sum, falling back to go.mod versions")
		} else {
			for name := range direct {
				if v, ok := sums[name]; ok {
					direct[name] = v
				}
			}
			for name, v := range sums {
				if _, ok := direct[name]; !ok {
					indirect[name] = v
				}
			}
		}
	}

	for name, version := range direct {
		result.Packages = append(result.Packages, bazbom.Package{
			Ecosystem: string(ecosystem.Golang),
			Name:      name,
			Version:   version,
			Scope:     bazbom.ScopeDirect,
		})
	}
	for name, version := range indirect {
		result.Packages = append(result.Packages, bazbom.Package{
			Ecosystem: string(ecosystem.Golang),
			Name:      name,
			Version:   version,
			Scope:     bazbom.ScopeTransitive,
		})
	}

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}

// parseGoMod reads the require(...) block(s) of a go.mod file. Lines tagged
// "// indirect" go to the indirect map, everything else is direct.
func parseGoMod(fsys fs.FS, manifest string) (direct, indirect map[string]string, err error) {
	f, err := fsys.Open(manifest)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	direct = make(map[string]string)
	indirect = make(map[string]string)

	inBlock := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "require ("):
			inBlock = true
			continue
		case inBlock && line == ")":
			inBlock = false
			continue
		case strings.HasPrefix(line, "require ") && !inBlock:
			line = strings.TrimPrefix(line, "require ")
		case !inBlock:
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, version := fields[0], fields[1]
		if strings.Contains(line, "// indirect") {
			indirect[name] = version
		} else {
			direct[name] = version
		}
	}
	return direct, indirect, sc.Err()
}

// parseGoSum reads go.sum lines ("module version hash") into a map of the
// last version listed per module, skipping the "/go.mod" hash-only lines.
func parseGoSum(fsys fs.FS, lockfile string) (map[string]string, error) {
	f, err := fsys.Open(lockfile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		name, version := fields[0], fields[1]
		if strings.HasSuffix(version, "/go.mod") {
			continue
		}
		out[name] = version
	}
	return out, sc.Err()
}
