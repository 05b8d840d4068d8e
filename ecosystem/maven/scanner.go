// Package maven scans Java/Maven projects by reading pom.xml. Maven has no
// universal resolved-lockfile format (unlike npm/cargo/bundler), so this
// scanner works from the manifest alone: it resolves ${property}
// placeholders, falls back to <dependencyManagement> for dependencies that
// omit <version>, and walks <modules> recursively for multi-module builds.
// It reads pom.xml directly rather than inspecting built JARs, since this
// scans source repositories rather than container layers.
package maven

import (
	"context"
	"encoding/xml"
	"io/fs"
	"path"
	"strings"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/ecosystem"
)

const manifestName = "pom.xml"

// Scanner implements ecosystem.Scanner for Maven.
type Scanner struct{}

func (Scanner) Ecosystem() ecosystem.Type { return ecosystem.Maven }

func (Scanner) Detect(fsys fs.FS, dir string) (manifest, lockfile string, ok bool) {
	m := path.Join(dir, manifestName)
	if _, err := fs.Stat(fsys, m); err != nil {
		return "", "", false
	}
	return m, "", true
}

type pomXML struct {
	XMLName    xml.Name     `xml:"project"`
	GroupID    string       `xml:"groupId"`
	ArtifactID string       `xml:"artifactId"`
	Version    string       `xml:"version"`
	Parent     pomParent    `xml:"parent"`
	Properties pomProps     `xml:"properties"`
	Modules    []string     `xml:"modules>module"`
	DepMgmt    []pomDep     `xml:"dependencyManagement>dependencies>dependency"`
	Deps       []pomDep     `xml:"dependencies>dependency"`
}

type pomParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pomProps struct {
	XML []xmlNameValue `xml:",any"`
}

// xmlNameValue captures arbitrary <properties> children, since their tag
// names are the property keys themselves.
type xmlNameValue struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type pomDep struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
	Optional   string `xml:"optional"`
}

func (Scanner) Scan(ctx context.Context, fsys fs.FS, dir, manifest, lockfile string) (bazbom.EcosystemScanResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "ecosystem/maven.Scanner.Scan", "root", dir)

	result := bazbom.EcosystemScanResult{Ecosystem: string(ecosystem.Maven), Root: dir}

	pkgs, err := scanPom(fsys, manifest, make(map[string]bool))
	if err != nil {
		return bazbom.EcosystemScanResult{}, &bazbom.Error{Op: "maven.Scan", Kind: bazbom.ErrKindIngestion, Inner: err}
	}
	result.Packages = pkgs

	if err := result.Validate(); err != nil {
		return bazbom.EcosystemScanResult{}, err
	}
	return result, nil
}

// scanPom parses one pom.xml and recurses into its <modules>. visited
// guards against symlink or module-declaration cycles.
func scanPom(fsys fs.FS, manifestPath string, visited map[string]bool) ([]bazbom.Package, error) {
	if visited[manifestPath] {
		return nil, nil
	}
	visited[manifestPath] = true

	data, err := fs.ReadFile(fsys, manifestPath)
	if err != nil {
		return nil, err
	}
	var pom pomXML
	if err := xml.Unmarshal(data, &pom); err != nil {
		return nil, &bazbom.Error{Op: "maven.scanPom", Kind: bazbom.ErrKindParse, Inner: err}
	}

	props := make(map[string]string, len(pom.Properties.XML)+2)
	for _, p := range pom.Properties.XML {
		props[p.XMLName.Local] = p.Value
	}
	props["project.version"] = pom.Version
	props["project.groupId"] = pom.GroupID
	if pom.Version == "" {
		props["project.version"] = pom.Parent.Version
	}
	if pom.GroupID == "" {
		props["project.groupId"] = pom.Parent.GroupID
	}

	dmVersions := make(map[string]string, len(pom.DepMgmt))
	for _, d := range pom.DepMgmt {
		if d.Version != "" {
			dmVersions[d.GroupID+":"+d.ArtifactID] = resolveProps(d.Version, props)
		}
	}

	var out []bazbom.Package
	for _, d := range pom.Deps {
		version := resolveProps(d.Version, props)
		if version == "" {
			version = dmVersions[d.GroupID+":"+d.ArtifactID]
		}
		if version == "" {
			// No version anywhere in this module's reach; skip rather
			// than emit an unusable empty version.
			continue
		}
		scope := bazbom.ScopeDirect
		if d.Scope == "test" {
			scope = bazbom.ScopeDev
		}
		out = append(out, bazbom.Package{
			Ecosystem: string(ecosystem.Maven),
			Name:      d.GroupID + ":" + d.ArtifactID,
			Version:   version,
			Scope:     scope,
		})
	}

	dir := path.Dir(manifestPath)
	for _, mod := range pom.Modules {
		modPom := path.Join(dir, mod, manifestName)
		sub, err := scanPom(fsys, modPom, visited)
		if err != nil {
			continue
		}
		out = append(out, sub...)
	}

	return out, nil
}

// resolveProps substitutes a single "${key}" reference. Maven supports
// nested/chained property references; this module resolves one level,
// which covers the common case and is documented as a known gap.
func resolveProps(version string, props map[string]string) string {
	version = strings.TrimSpace(version)
	if strings.HasPrefix(version, "${") && strings.HasSuffix(version, "}") {
		key := version[2 : len(version)-1]
		return props[key]
	}
	return version
}
