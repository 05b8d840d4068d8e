package maven

import (
	"encoding/xml"
	"fmt"
	"strings"

	"lukechampine.com/blake3"
)

// RelocationMapping is one <relocation> entry from a maven-shade-plugin or
// gradle-shadow configuration: classes under Pattern get repackaged under
// ShadedPattern in the final uber-JAR.
type RelocationMapping struct {
	Pattern       string
	ShadedPattern string
	Includes      []string
	Excludes      []string
}

// Matches reports whether className falls under this relocation's original
// namespace, honoring Includes/Excludes narrowing.
func (r RelocationMapping) Matches(className string) bool {
	if !strings.HasPrefix(className, r.Pattern) {
		return false
	}
	if len(r.Includes) > 0 {
		ok := false
		for _, inc := range r.Includes {
			if strings.HasPrefix(className, inc) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, exc := range r.Excludes {
		if strings.HasPrefix(className, exc) {
			return false
		}
	}
	return true
}

// ReverseRelocate maps a shaded class name back to its pre-relocation name,
// or returns "", false if shadedClassName isn't under this mapping's
// ShadedPattern.
func (r RelocationMapping) ReverseRelocate(shadedClassName string) (string, bool) {
	suffix, ok := strings.CutPrefix(shadedClassName, r.ShadedPattern)
	if !ok {
		return "", false
	}
	return r.Pattern + suffix, true
}

// ShadingConfiguration is the set of relocations declared by a single build
// file (pom.xml's maven-shade-plugin, or build.gradle's shadow plugin).
type ShadingConfiguration struct {
	Source      string // "maven-shade-plugin" or "gradle-shadow"
	Relocations []RelocationMapping
}

// ParseMavenShadeConfig extracts maven-shade-plugin <relocation> entries
// from a pom.xml's <build><plugins> section. Returns ok=false if the plugin
// isn't configured in this document.
func ParseMavenShadeConfig(pomData []byte) (ShadingConfiguration, bool) {
	if !strings.Contains(string(pomData), "maven-shade-plugin") {
		return ShadingConfiguration{}, false
	}

	var doc struct {
		Build struct {
			Plugins []struct {
				ArtifactID string `xml:"artifactId"`
				Executions []struct {
					Configuration struct {
						Relocations []struct {
							Pattern       string   `xml:"pattern"`
							ShadedPattern string   `xml:"shadedPattern"`
							Includes      []string `xml:"includes>include"`
							Excludes      []string `xml:"excludes>exclude"`
						} `xml:"relocation"`
					} `xml:"configuration"`
				} `xml:"executions>execution"`
			} `xml:"plugins>plugin"`
		} `xml:"build"`
	}
	if err := xml.Unmarshal(pomData, &doc); err != nil {
		return ShadingConfiguration{}, false
	}

	var cfg ShadingConfiguration
	cfg.Source = "maven-shade-plugin"
	for _, p := range doc.Build.Plugins {
		if p.ArtifactID != "maven-shade-plugin" {
			continue
		}
		for _, ex := range p.Executions {
			for _, r := range ex.Configuration.Relocations {
				cfg.Relocations = append(cfg.Relocations, RelocationMapping{
					Pattern:       r.Pattern,
					ShadedPattern: r.ShadedPattern,
					Includes:      r.Includes,
					Excludes:      r.Excludes,
				})
			}
		}
	}
	if len(cfg.Relocations) == 0 {
		return ShadingConfiguration{}, false
	}
	return cfg, true
}

// parseGradleRelocateLine matches Groovy/Kotlin DSL calls of the shadow plugin's
// relocate(), e.g. `relocate 'org.apache', 'myapp.shaded.apache'` or
// `relocate("org.apache", "myapp.shaded.apache")`.
func parseGradleRelocateLine(line string) (pattern, shaded string, ok bool) {
	if !strings.Contains(line, "relocate") {
		return "", "", false
	}
	cleaned := strings.NewReplacer(
		"relocate", "", "(", "", ")", "", "'", "", `"`, "",
	).Replace(strings.TrimSpace(line))
	parts := strings.Split(cleaned, ",")
	if len(parts) < 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// ParseGradleShadowConfig extracts shadow-plugin relocate() calls from a
// build.gradle or build.gradle.kts file's raw text.
func ParseGradleShadowConfig(buildFile []byte) (ShadingConfiguration, bool) {
	content := string(buildFile)
	if !strings.Contains(content, "shadow") && !strings.Contains(content, "com.github.johnrengelman.shadow") {
		return ShadingConfiguration{}, false
	}

	var cfg ShadingConfiguration
	cfg.Source = "gradle-shadow"
	for _, line := range strings.Split(content, "\n") {
		pattern, shaded, ok := parseGradleRelocateLine(line)
		if !ok {
			continue
		}
		cfg.Relocations = append(cfg.Relocations, RelocationMapping{Pattern: pattern, ShadedPattern: shaded})
	}
	if len(cfg.Relocations) == 0 {
		return ShadingConfiguration{}, false
	}
	return cfg, true
}

// ClassFingerprint identifies a compiled class well enough to match it back
// to a known-good artifact release regardless of shading/relocation: the
// name is unreliable once relocated, so the bytecode hash is the real key.
type ClassFingerprint struct {
	ClassName    string
	MethodSigs   []string
	FieldSigs    []string
	BytecodeHash string
}

// FingerprintClass hashes a class file's raw bytes with BLAKE3. A full
// fingerprint would also parse the constant pool for method/field
// signatures (requires a JVM classfile parser, which this module doesn't
// have); the bytecode hash alone is what MatchShadedClass uses below.
func FingerprintClass(classBytes []byte) ClassFingerprint {
	sum := blake3.Sum256(classBytes)
	return ClassFingerprint{BytecodeHash: fmt.Sprintf("%x", sum)}
}

// ShadingMatch is the outcome of matching a shaded class to the original
// artifact that shipped it.
type ShadingMatch struct {
	ShadedClassName   string
	OriginalClassName string
	OriginalArtifact  string // GAV coordinates, "group:artifact:version"
	Confidence        float32
}

// MatchShadedClass looks up shaded's bytecode hash in a table of known
// fingerprints keyed by GAV coordinate. An exact hash match is full
// confidence; there is no partial-similarity scoring without a real
// bytecode diff library.
func MatchShadedClass(shaded ClassFingerprint, known map[string]ClassFingerprint) (ShadingMatch, bool) {
	for gav, orig := range known {
		if shaded.BytecodeHash == orig.BytecodeHash {
			return ShadingMatch{
				ShadedClassName:   shaded.ClassName,
				OriginalClassName: orig.ClassName,
				OriginalArtifact:  gav,
				Confidence:        1.0,
			}, true
		}
	}
	return ShadingMatch{}, false
}
