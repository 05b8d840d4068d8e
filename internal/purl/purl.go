// Package purl derives and parses Package URLs for bazbom.Package records,
// keyed by ecosystem name.
package purl

import (
	"context"
	"fmt"
	"sort"
	"sync"

	packageurl "github.com/package-url/packageurl-go"

	bazbom "github.com/bazbom/bazbom"
)

// NoneNamespace is used when a PURL carries no namespace segment.
const NoneNamespace = "none"

// ErrUnPurlable is returned when no generator is registered for an
// ecosystem.
type ErrUnPurlable struct{ Ecosystem string }

func (e ErrUnPurlable) Error() string {
	return fmt.Sprintf("no PURL generator registered for ecosystem %q", e.Ecosystem)
}

// ErrUnknownPurl is returned when no parser is registered for a PURL type.
type ErrUnknownPurl struct{ Type, Namespace string }

func (e ErrUnknownPurl) Error() string {
	return fmt.Sprintf("no PURL parser registered for type %q namespace %q", e.Type, e.Namespace)
}

// GenerateFunc builds a PackageURL for a bazbom.Package.
type GenerateFunc func(ctx context.Context, p bazbom.Package) (packageurl.PackageURL, error)

// ParseFunc recovers a bazbom.Package from a parsed PackageURL.
type ParseFunc func(ctx context.Context, purl packageurl.PackageURL) (bazbom.Package, error)

// Registry is a thread-safe set of per-ecosystem PURL generators and
// per-type PURL parsers.
type Registry struct {
	mu     sync.RWMutex
	gen    map[string]GenerateFunc
	parse  map[string]ParseFunc
}

// NewRegistry returns a Registry pre-populated with the default generators
// and parsers for every ecosystem this module scans.
func NewRegistry() *Registry {
	r := &Registry{
		gen:   make(map[string]GenerateFunc),
		parse: make(map[string]ParseFunc),
	}
	registerDefaults(r)
	return r
}

// Generate looks up a generator by p.Ecosystem and builds its PURL.
func (r *Registry) Generate(ctx context.Context, p bazbom.Package) (packageurl.PackageURL, error) {
	r.mu.RLock()
	f, ok := r.gen[p.Ecosystem]
	r.mu.RUnlock()
	if !ok {
		return packageurl.PackageURL{}, ErrUnPurlable{Ecosystem: p.Ecosystem}
	}
	return f(ctx, p)
}

// Parse looks up a parser by purl's (type, namespace) and recovers a
// Package.
func (r *Registry) Parse(ctx context.Context, raw string) (bazbom.Package, error) {
	p, err := packageurl.FromString(raw)
	if err != nil {
		return bazbom.Package{}, &bazbom.Error{Op: "purl.Parse", Kind: bazbom.ErrKindParse, Inner: err}
	}
	ns := p.Namespace
	if ns == "" {
		ns = NoneNamespace
	}

	r.mu.RLock()
	f, ok := r.parse[key(p.Type, ns)]
	if !ok {
		f, ok = r.parse[key(p.Type, NoneNamespace)]
	}
	r.mu.RUnlock()
	if !ok {
		return bazbom.Package{}, ErrUnknownPurl{Type: p.Type, Namespace: ns}
	}
	return f(ctx, p)
}

// RegisterEcosystem registers a generator for an ecosystem name and a
// parser for a PURL type/namespace pair.
func (r *Registry) RegisterEcosystem(ecosystem, purlType string, gen GenerateFunc, parse ParseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen[ecosystem] = gen
	r.parse[key(purlType, NoneNamespace)] = parse
}

func key(purlType, namespace string) string {
	return purlType + "/" + namespace
}

// ecosystemPurlType maps a bazbom ecosystem name to its PURL type string
// per https://github.com/package-url/purl-spec.
var ecosystemPurlType = map[string]string{
	"npm":       "npm",
	"python":    "pypi",
	"golang":    "golang",
	"cargo":     "cargo",
	"rubygems":  "gem",
	"composer":  "composer",
	"maven":     "maven",
	"gradle":    "maven",
	"bazel":     "generic",
	"sbt":       "maven",
	"apk":       "apk",
	"dpkg":      "deb",
	"rpm":       "rpm",
}

func registerDefaults(r *Registry) {
	for ecosystem, purlType := range ecosystemPurlType {
		ecosystem, purlType := ecosystem, purlType
		r.RegisterEcosystem(ecosystem, purlType,
			func(_ context.Context, p bazbom.Package) (packageurl.PackageURL, error) {
				return packageurl.PackageURL{
					Type:      purlType,
					Namespace: p.Namespace,
					Name:      p.Name,
					Version:   p.Version,
				}, nil
			},
			func(_ context.Context, purl packageurl.PackageURL) (bazbom.Package, error) {
				return bazbom.Package{
					Ecosystem: ecosystem,
					Namespace: purl.Namespace,
					Name:      purl.Name,
					Version:   purl.Version,
				}, nil
			},
		)
	}
}

// Generate is a package-level convenience wrapping a default Registry.
func Generate(ctx context.Context, p bazbom.Package) (string, error) {
	purl, err := defaultRegistry.Generate(ctx, p)
	if err != nil {
		return "", err
	}
	return purl.ToString(), nil
}

var defaultRegistry = NewRegistry()

// Ecosystems reports all ecosystem names with a registered generator in
// the default registry. Deliberately avoids map iteration order by sorting
// the names lexically.
func Ecosystems() []string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	out := make([]string, 0, len(defaultRegistry.gen))
	for k := range defaultRegistry.gen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
