// Package cyclonedx encodes a scanned dependency graph as a CycloneDX JSON
// document.
package cyclonedx

import (
	"bytes"
	"io"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"

	bazbom "github.com/bazbom/bazbom"
)

// Encoder renders scanned ecosystem results as a CycloneDX BOM.
type Encoder struct {
	// ToolName/ToolVersion identify the generating tool in metadata.tools.
	ToolName    string
	ToolVersion string
}

// Encode serializes results as CycloneDX JSON.
func (e *Encoder) Encode(w io.Writer, results []bazbom.EcosystemScanResult) error {
	bom := cdx.NewBOM()
	bom.SerialNumber = "urn:uuid:" + uuid.NewString()

	bom.Metadata = &cdx.Metadata{
		Tools: &cdx.ToolsChoice{
			Components: &[]cdx.Component{{
				Type:    cdx.ComponentTypeApplication,
				Name:    e.ToolName,
				Version: e.ToolVersion,
			}},
		},
	}

	var components []cdx.Component
	var deps []cdx.Dependency
	for _, r := range results {
		for _, p := range r.Packages {
			purl := p.PURL()
			c := cdx.Component{
				Type:       componentType(p.Scope),
				Name:       p.Name,
				Version:    p.Version,
				PackageURL: purl,
				BOMRef:     purl,
			}
			if p.Description != "" {
				c.Description = p.Description
			}
			if p.License != "" {
				c.Licenses = &cdx.Licenses{{License: &cdx.License{ID: p.License}}}
			}
			components = append(components, c)

			if len(p.Dependencies) > 0 {
				refs := make([]string, 0, len(p.Dependencies))
				for _, dep := range p.Dependencies {
					refs = append(refs, "pkg:"+r.Ecosystem+"/"+dep)
				}
				deps = append(deps, cdx.Dependency{Ref: purl, Dependencies: &refs})
			}
		}
	}

	bom.Components = &components
	bom.Dependencies = &deps

	var buf bytes.Buffer
	enc := cdx.NewBOMEncoder(&buf, cdx.BOMFileFormatJSON)
	enc.SetPretty(true)
	if err := enc.Encode(bom); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func componentType(s bazbom.Scope) cdx.ComponentType {
	switch s {
	case bazbom.ScopeBuild:
		return cdx.ComponentTypeApplication
	default:
		return cdx.ComponentTypeLibrary
	}
}
