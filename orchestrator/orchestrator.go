// Package orchestrator fans out detected ecosystems into parallel scans. An
// errgroup.Group bounded by SetLimit launches one task per detected
// ecosystem. A single ecosystem's scan failure is logged and dropped rather
// than aborting the others, so task errors are captured per-task and joined
// afterward with hashicorp/go-multierror instead of being returned to the
// errgroup.
package orchestrator

import (
	"context"
	"io/fs"
	"runtime"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/quay/zlog"
	"golang.org/x/sync/errgroup"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/advisory"
	"github.com/bazbom/bazbom/ecosystem"
	"github.com/bazbom/bazbom/reachability"
	"github.com/bazbom/bazbom/reachability/golang"
	"github.com/bazbom/bazbom/reachability/java"
	"github.com/bazbom/bazbom/reachability/javascript"
	"github.com/bazbom/bazbom/reachability/python"
	"github.com/bazbom/bazbom/version"
)

// reachabilityExtractors maps an ecosystem to the source-language Extractor
// that analyzes its project tree. Ecosystems with no available Go parser
// (Cargo, RubyGems, Composer) and OS-package ecosystems (Apk, Dpkg, Rpm,
// which have no application source to walk) are intentionally absent; their
// EcosystemScanResult.Reachable stays nil.
var reachabilityExtractors = map[ecosystem.Type]reachability.Extractor{
	ecosystem.Npm:    javascript.Extractor{},
	ecosystem.Python: python.Extractor{},
	ecosystem.Golang: golang.Extractor{},
	ecosystem.Maven:  java.Extractor{},
	ecosystem.Gradle: java.Extractor{},
}

// Orchestrator runs ecosystem detection and scanning concurrently, bounded
// by MaxConcurrent simultaneous ecosystem scans.
type Orchestrator struct {
	Registry      *ecosystem.Registry
	Store         *advisory.Store
	MaxConcurrent int
	Offline       bool
	// CacheDir is where per-package vulnerability query results are cached
	// (see advisory.Store.QueryBatch). Defaults to "." if empty.
	CacheDir string
}

// New returns an Orchestrator with MaxConcurrent defaulted to the host's
// CPU count.
func New(reg *ecosystem.Registry, store *advisory.Store) *Orchestrator {
	return &Orchestrator{
		Registry:      reg,
		Store:         store,
		MaxConcurrent: runtime.GOMAXPROCS(0),
	}
}

// EcosystemResult is one ecosystem's scan output, paired with any
// vulnerabilities found for its packages.
type EcosystemResult struct {
	Scan            bazbom.EcosystemScanResult
	Vulnerabilities []bazbom.Vulnerability
}

// ScanDirectory implements ParallelOrchestrator.scan_directory: detect every
// ecosystem under root, scan each concurrently (bounded by MaxConcurrent),
// optionally run vulnerability lookup per scanned package, and aggregate
// results. An individual ecosystem's failure is logged and excluded from
// the result rather than aborting the whole run.
func (o *Orchestrator) ScanDirectory(ctx context.Context, fsys fs.FS, root string) ([]EcosystemResult, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "orchestrator.Orchestrator.ScanDirectory", "root", root)

	detected, err := ecosystem.DetectEcosystems(ctx, o.Registry, fsys, root)
	if err != nil {
		return nil, &bazbom.Error{Op: "orchestrator.ScanDirectory", Kind: bazbom.ErrKindIngestion, Inner: err}
	}
	zlog.Info(ctx).Int("count", len(detected)).Msg("ecosystems detected")

	limit := o.MaxConcurrent
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		mu      sync.Mutex
		results []EcosystemResult
		errs    *multierror.Error
	)

	for _, d := range detected {
		d := d
		g.Go(func() error {
			res, scanErr := o.scanOne(gctx, fsys, d)
			mu.Lock()
			defer mu.Unlock()
			if scanErr != nil {
				zlog.Error(gctx).Err(scanErr).Str("ecosystem", string(d.Type)).Str("root", d.Root).Msg("ecosystem scan failed, dropping")
				errs = multierror.Append(errs, scanErr)
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	// g.Wait() only ever returns an error from a task that didn't catch its
	// own (there are none here), or if gctx was cancelled out from under us.
	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, errs.ErrorOrNil()
}

func (o *Orchestrator) scanOne(ctx context.Context, fsys fs.FS, d ecosystem.Detected) (EcosystemResult, error) {
	scanner, ok := o.Registry.Get(d.Type)
	if !ok {
		return EcosystemResult{}, &bazbom.Error{Op: "orchestrator.scanOne", Kind: bazbom.ErrKindIngestion, Message: "no scanner registered for " + string(d.Type)}
	}

	scan, err := scanner.Scan(ctx, fsys, d.Root, d.Manifest, d.Lockfile)
	if err != nil {
		return EcosystemResult{}, err
	}

	var reachResult *reachability.Result
	if extractor, ok := reachabilityExtractors[d.Type]; ok {
		pipeline := &reachability.Pipeline{Extractor: extractor}
		res, rerr := pipeline.Analyze(ctx, fsys, d.Root)
		if rerr != nil {
			zlog.Info(ctx).Err(rerr).Str("ecosystem", string(d.Type)).Msg("reachability analysis failed, continuing without it")
		} else {
			reachResult = res
			scan.Reachable = res.Summary()
		}
	}

	result := EcosystemResult{Scan: scan}
	if o.Store == nil || len(scan.Packages) == 0 {
		return result, nil
	}

	cacheDir := o.CacheDir
	if cacheDir == "" {
		cacheDir = "."
	}
	byPURL, err := o.Store.QueryBatch(ctx, scan.Packages, o.Offline, cacheDir)
	if err != nil {
		zlog.Info(ctx).Err(err).Str("ecosystem", string(d.Type)).Msg("vulnerability lookup failed, continuing without it")
		return result, nil
	}
	for _, p := range scan.Packages {
		vulns := byPURL[p.PURL()]
		result.Vulnerabilities = append(result.Vulnerabilities, vulns...)
		for _, v := range vulns {
			aff := matchingAffected(v.Affected, d.Type, p.Name)
			if aff == nil {
				continue
			}
			rng, err := version.MatchingRangeForEcosystem(ctx, string(d.Type), p.Version, aff.Ranges)
			if err != nil {
				zlog.Info(ctx).Err(err).Str("package", p.Name).Str("vulnerability", v.ID).Msg("version match failed, dropping finding")
				continue
			}
			if rng == nil {
				continue
			}
			finding := bazbom.Finding{
				Package:       p,
				Vulnerability: v,
				MatchedRange:  rng,
			}
			if reachResult != nil {
				reachable, chain := reachResult.AnnotateFinding(d.Root, p.Name, aff.Symbol)
				rb := reachable
				finding.IsReachable = &rb
				finding.CallChain = chain
			}
			result.Scan.Findings = append(result.Scan.Findings, finding)
		}
	}
	return result, nil
}

// matchingAffected picks the AffectedPackage entry in affected that
// describes pkgName for eco, preferring an entry whose ecosystem name
// matches and falling back to a name-only match when none does (advisory
// sources don't all tag ecosystem the same way this module does).
func matchingAffected(affected []bazbom.AffectedPackage, eco ecosystem.Type, pkgName string) *bazbom.AffectedPackage {
	var byNameOnly *bazbom.AffectedPackage
	for i := range affected {
		a := &affected[i]
		if !strings.EqualFold(a.Package, pkgName) {
			continue
		}
		if byNameOnly == nil {
			byNameOnly = a
		}
		if ecosystemMatches(eco, a.Ecosystem) {
			return a
		}
	}
	return byNameOnly
}

// ecosystemMatches reports whether osvEcosystem (an OSV-convention
// ecosystem name such as "PyPI" or "crates.io") names the same ecosystem as
// eco (this module's internal Type).
func ecosystemMatches(eco ecosystem.Type, osvEcosystem string) bool {
	switch eco {
	case ecosystem.Npm:
		return strings.EqualFold(osvEcosystem, "npm")
	case ecosystem.Python:
		return strings.EqualFold(osvEcosystem, "PyPI")
	case ecosystem.Golang:
		return strings.EqualFold(osvEcosystem, "Go")
	case ecosystem.Cargo:
		return strings.EqualFold(osvEcosystem, "crates.io")
	case ecosystem.RubyGems:
		return strings.EqualFold(osvEcosystem, "RubyGems")
	case ecosystem.Composer:
		return strings.EqualFold(osvEcosystem, "Packagist")
	case ecosystem.Maven, ecosystem.Gradle, ecosystem.Bazel, ecosystem.Sbt:
		return strings.EqualFold(osvEcosystem, "Maven")
	case ecosystem.Apk:
		return strings.EqualFold(osvEcosystem, "Alpine")
	case ecosystem.Dpkg:
		return strings.EqualFold(osvEcosystem, "Debian") || strings.EqualFold(osvEcosystem, "Ubuntu")
	case ecosystem.Rpm:
		return strings.EqualFold(osvEcosystem, "Red Hat") || strings.EqualFold(osvEcosystem, "rpm") || strings.EqualFold(osvEcosystem, "Rocky Linux")
	default:
		return strings.EqualFold(osvEcosystem, string(eco))
	}
}
