// Package spdx encodes a scanned dependency graph as an SPDX 2.3 JSON
// document.
package spdx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	spdxjson "github.com/spdx/tools-golang/json"
	v2common "github.com/spdx/tools-golang/spdx/v2/common"
	"github.com/spdx/tools-golang/spdx/v2/v2_3"

	bazbom "github.com/bazbom/bazbom"
)

// Creator identifies who or what produced the document, per the SPDX
// CreationInfo.Creators field (CreatorType is one of "Person",
// "Organization", or "Tool").
type Creator struct {
	Creator     string
	CreatorType string
}

// Encoder renders a set of bazbom.EcosystemScanResult into one SPDX 2.3
// document.
type Encoder struct {
	Creators          []Creator
	DocumentName      string
	DocumentNamespace string
}

// Encode serializes results as SPDX 2.3 JSON.
func (e *Encoder) Encode(ctx context.Context, results []bazbom.EcosystemScanResult) (io.Reader, error) {
	doc, err := e.build(ctx, results)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if err := spdxjson.Write(doc, buf); err != nil {
		return nil, fmt.Errorf("spdx: write: %w", err)
	}
	return buf, nil
}

func (e *Encoder) build(ctx context.Context, results []bazbom.EcosystemScanResult) (*v2_3.Document, error) {
	creators := make([]v2common.Creator, len(e.Creators))
	for i, c := range e.Creators {
		creators[i] = v2common.Creator{Creator: c.Creator, CreatorType: c.CreatorType}
	}

	doc := &v2_3.Document{
		SPDXVersion:       v2_3.Version,
		DataLicense:       v2_3.DataLicense,
		SPDXIdentifier:    "DOCUMENT",
		DocumentName:      e.DocumentName,
		DocumentNamespace: e.DocumentNamespace,
		CreationInfo: &v2_3.CreationInfo{
			Creators: creators,
			Created:  time.Now().Format("2006-01-02T15:04:05Z"),
		},
	}

	var pkgs []*v2_3.Package
	var rels []*v2_3.Relationship
	for _, r := range results {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, p := range r.Packages {
			spdxPkg := newPackage(r.Ecosystem, p)
			pkgs = append(pkgs, spdxPkg)
			for _, dep := range p.Dependencies {
				rels = append(rels, &v2_3.Relationship{
					RefA:         v2common.MakeDocElementID("", string(spdxPkg.PackageSPDXIdentifier)),
					RefB:         v2common.MakeDocElementID("", "Package-"+spdxID(r.Ecosystem, dep, "")),
					Relationship: "DEPENDS_ON",
				})
			}
		}
	}

	sort.Slice(pkgs, func(i, j int) bool {
		return pkgs[i].PackageSPDXIdentifier < pkgs[j].PackageSPDXIdentifier
	})
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].RefA.ElementRefID != rels[j].RefA.ElementRefID {
			return rels[i].RefA.ElementRefID < rels[j].RefA.ElementRefID
		}
		return rels[i].RefB.ElementRefID < rels[j].RefB.ElementRefID
	})

	doc.Packages = pkgs
	doc.Relationships = rels
	return doc, nil
}

func newPackage(ecosystem string, p bazbom.Package) *v2_3.Package {
	var extRefs []*v2_3.PackageExternalReference
	extRefs = append(extRefs, &v2_3.PackageExternalReference{
		Category: "PACKAGE-MANAGER",
		RefType:  "purl",
		Locator:  p.PURL(),
	})

	out := &v2_3.Package{
		PackageName:               p.Name,
		PackageVersion:            p.Version,
		PackageSPDXIdentifier:     v2common.ElementID(spdxID(ecosystem, p.Name, p.Version)),
		PackageDownloadLocation:   "NOASSERTION",
		PackageExternalReferences: extRefs,
		PrimaryPackagePurpose:     "LIBRARY",
	}
	if p.License != "" {
		out.PackageLicenseDeclared = p.License
	} else {
		out.PackageLicenseDeclared = "NOASSERTION"
	}
	if p.Description != "" {
		out.PackageSummary = p.Description
	}
	if p.Repository != "" {
		out.PackageHomePage = p.Repository
	}
	return out
}

func spdxID(ecosystem, name, version string) string {
	id := "Package-" + ecosystem + "-" + name
	if version != "" {
		id += "-" + version
	}
	out := make([]byte, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			out = append(out, byte(r))
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
