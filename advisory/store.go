package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/time/rate"
	"lukechampine.com/blake3"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/advisory/epss"
	"github.com/bazbom/bazbom/advisory/ghsa"
	"github.com/bazbom/bazbom/advisory/kev"
	"github.com/bazbom/bazbom/advisory/nvd"
	"github.com/bazbom/bazbom/advisory/osv"
	"github.com/bazbom/bazbom/internal/httputil"
)

// DefaultOSVEcosystems is the set of OSV ecosystems Sync pulls by default
// when the caller doesn't narrow it. Kept short: each is a full archive
// download.
var DefaultOSVEcosystems = []string{"npm", "PyPI", "Go", "crates.io", "RubyGems", "Packagist", "Maven"}

const (
	osvFile  = "osv.json"
	kevFile  = "kev.json"
	epssFile = "epss.json"
	nvdFile  = "nvd.json"
	ghsaFile = "ghsa.json"
)

// Store is the single query surface over the local advisory projection:
// Sync pulls upstream feeds into a cache directory, Load parses them back
// into the canonical model, and QueryPackageVulnerabilities/QueryBatch serve
// online lookups against the OSV query API.
type Store struct {
	CacheDir      string
	OSVEcosystems []string

	OSV  *osv.Fetcher
	KEV  *kev.Fetcher
	EPSS *epss.Fetcher
	// GHSA is nil unless a caller supplies a token (see NewStore); Sync
	// falls back to a placeholder for SourceGHSA when nil.
	GHSA *ghsa.Fetcher
	NVD  *nvd.Fetcher

	// QueryClient is used by query_package_vulnerabilities/query_batch. If
	// nil, a client with httputil.DefaultAdvisoryTimeout is built lazily.
	QueryClient *http.Client
	QueryURL    string
}

// NewStore builds a Store with the default fetchers and OSV query endpoint.
// ghsaToken may be empty (GHSA ingestion falls back to a placeholder); an
// NVD API key is optional and may also be empty.
func NewStore(cacheDir string, ghsaToken, nvdAPIKey string) *Store {
	s := &Store{
		CacheDir:      cacheDir,
		OSVEcosystems: DefaultOSVEcosystems,
		OSV:           osv.NewFetcher(),
		KEV:           kev.NewFetcher(),
		EPSS:          epss.NewFetcher(),
		NVD:           nvd.NewFetcher(nvdAPIKey),
		QueryURL:      "https://api.osv.dev/v1/query",
	}
	if ghsaToken != "" {
		s.GHSA = ghsa.NewFetcher(ghsaToken)
	}
	return s
}

// Sync implements db_sync: for each of OSV/NVD/GHSA/KEV/EPSS, either
// download (falling back to a deterministic placeholder on any fetch error,
// including GHSA with no token configured) or use offline's forced
// placeholder, then write the result under CacheDir and
// record a Manifest for reproducibility.
func (s *Store) Sync(ctx context.Context, offline bool) (Manifest, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "advisory/Store.Sync")

	if err := os.MkdirAll(s.CacheDir, 0o755); err != nil {
		return Manifest{}, &bazbom.Error{Op: "advisory.Sync", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	var files []ManifestFile
	for _, source := range []Source{SourceOSV, SourceNVD, SourceGHSA, SourceKEV, SourceEPSS} {
		data, err := s.fetchSource(ctx, source, offline)
		if err != nil {
			zlog.Info(ctx).Err(err).Str("source", string(source)).Msg("sync fell back to placeholder")
			data = placeholderFor(source)
		}
		path := filepath.Join(s.CacheDir, filenameFor(source))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return Manifest{}, &bazbom.Error{Op: "advisory.Sync", Kind: bazbom.ErrKindIngestion, Message: string(source), Inner: err}
		}
		sum := blake3.Sum256(data)
		files = append(files, ManifestFile{
			Source: source,
			Path:   path,
			Bytes:  int64(len(data)),
			BLAKE3: fmt.Sprintf("%x", sum),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Source < files[j].Source })
	return Manifest{GeneratedAt: time.Now(), Files: files}, nil
}

func (s *Store) fetchSource(ctx context.Context, source Source, offline bool) ([]byte, error) {
	if offline {
		return nil, fmt.Errorf("offline mode")
	}
	switch source {
	case SourceOSV:
		var all []bazbom.Vulnerability
		for _, eco := range s.OSVEcosystems {
			vulns, err := s.OSV.FetchEcosystem(ctx, eco)
			if err != nil {
				return nil, err
			}
			all = append(all, vulns...)
		}
		return json.Marshal(all)
	case SourceKEV:
		entries, err := s.KEV.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entries)
	case SourceEPSS:
		scores, err := s.EPSS.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(scores)
	case SourceNVD:
		vulns, err := s.NVD.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(vulns)
	case SourceGHSA:
		if s.GHSA == nil {
			return nil, fmt.Errorf("GHSA ingestion requires a token; none configured")
		}
		vulns, err := s.GHSA.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(vulns)
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

func filenameFor(s Source) string {
	switch s {
	case SourceOSV:
		return osvFile
	case SourceKEV:
		return kevFile
	case SourceEPSS:
		return epssFile
	case SourceNVD:
		return nvdFile
	case SourceGHSA:
		return ghsaFile
	default:
		return string(s) + ".json"
	}
}

// placeholderFor returns the deterministic empty-but-valid payload written
// in place of a source that could not be fetched (offline mode, network
// failure, or GHSA without a token).
func placeholderFor(s Source) []byte {
	switch s {
	case SourceOSV, SourceNVD, SourceGHSA:
		return []byte("[]")
	default:
		return []byte("{}")
	}
}

// Load implements load_advisories: parse each cached feed file back into
// canonical Vulnerability records. Placeholder files parse to an empty
// result; individual bad records are skipped with a warning rather than
// failing the whole load.
func (s *Store) Load(ctx context.Context) ([]bazbom.Vulnerability, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "advisory/Store.Load")

	var out []bazbom.Vulnerability

	for _, f := range []string{osvFile, nvdFile, ghsaFile} {
		p := filepath.Join(s.CacheDir, f)
		data, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, &bazbom.Error{Op: "advisory.Load", Kind: bazbom.ErrKindIngestion, Inner: err}
		}
		var vulns []bazbom.Vulnerability
		if err := json.Unmarshal(data, &vulns); err != nil {
			zlog.Info(ctx).Err(err).Str("file", p).Msg("skipping unparseable cache file")
			continue
		}
		out = append(out, vulns...)
	}

	return out, nil
}

// LoadEnrichment reads the cached KEV and EPSS maps written by Sync, for
// use with Enrich.
func (s *Store) LoadEnrichment(ctx context.Context) (map[string]bazbom.KEVEntry, map[string]bazbom.EPSS, error) {
	kevMap := make(map[string]bazbom.KEVEntry)
	if data, err := os.ReadFile(filepath.Join(s.CacheDir, kevFile)); err == nil {
		_ = json.Unmarshal(data, &kevMap)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, nil, &bazbom.Error{Op: "advisory.LoadEnrichment", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	epssMap := make(map[string]bazbom.EPSS)
	if data, err := os.ReadFile(filepath.Join(s.CacheDir, epssFile)); err == nil {
		_ = json.Unmarshal(data, &epssMap)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, nil, &bazbom.Error{Op: "advisory.LoadEnrichment", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	return kevMap, epssMap, nil
}

// Enrich attaches KEV/EPSS data to each vulnerability (matching on ID or
// any alias) and computes its Priority.
func Enrich(vulns []bazbom.Vulnerability, kevMap map[string]bazbom.KEVEntry, epssMap map[string]bazbom.EPSS) {
	for i := range vulns {
		v := &vulns[i]
		for _, id := range append([]string{v.ID}, v.Aliases...) {
			if entry, ok := kevMap[id]; ok {
				e := entry
				v.KEV = &e
			}
			if score, ok := epssMap[id]; ok {
				sc := score
				v.EPSS = &sc
			}
		}
		v.Priority = CalculatePriority(v.Severity, v.KEV, v.EPSS)
	}
}

// osvQueryRequest/osvQueryResponse mirror the OSV HTTP query API's request
// and response envelopes (POST https://api.osv.dev/v1/query).
type osvQueryRequest struct {
	Package osvQueryPackage `json:"package"`
}

type osvQueryPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvQueryResponse struct {
	Vulns []json.RawMessage `json:"vulns"`
}

// QueryPackageVulnerabilities implements query_package_vulnerabilities:
// online, POSTs to the OSV query endpoint with a 10s timeout; offline,
// returns an empty slice.
func (s *Store) QueryPackageVulnerabilities(ctx context.Context, name, ecosystem string, offline bool) ([]bazbom.Vulnerability, error) {
	if offline {
		return nil, nil
	}
	ctx = zlog.ContextWithValues(ctx, "component", "advisory/Store.QueryPackageVulnerabilities")

	client := s.QueryClient
	if client == nil {
		client = httputil.NewClient(httputil.DefaultAdvisoryTimeout)
	}

	body, err := json.Marshal(osvQueryRequest{Package: osvQueryPackage{Name: name, Ecosystem: ecosystem}})
	if err != nil {
		return nil, &bazbom.Error{Op: "advisory.QueryPackageVulnerabilities", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.queryURL(), bytes.NewReader(body))
	if err != nil {
		return nil, &bazbom.Error{Op: "advisory.QueryPackageVulnerabilities", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, &bazbom.Error{Op: "advisory.QueryPackageVulnerabilities", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	defer resp.Body.Close()
	if err := httputil.CheckResponse(resp, http.StatusOK); err != nil {
		return nil, &bazbom.Error{Op: "advisory.QueryPackageVulnerabilities", Kind: bazbom.ErrKindNetwork, Inner: err}
	}

	var envelope osvQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &bazbom.Error{Op: "advisory.QueryPackageVulnerabilities", Kind: bazbom.ErrKindParse, Inner: err}
	}

	out := make([]bazbom.Vulnerability, 0, len(envelope.Vulns))
	for _, raw := range envelope.Vulns {
		v, err := osv.Parse(bytes.NewReader(raw))
		if err != nil {
			zlog.Info(ctx).Err(err).Msg("skipping unparseable query result")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) queryURL() string {
	if s.QueryURL != "" {
		return s.QueryURL
	}
	return "https://api.osv.dev/v1/query"
}

// batchKey identifies one (ecosystem, name) pair queried by QueryBatch.
type batchKey struct {
	Ecosystem string
	Name      string
}

func (k batchKey) cacheFile(dir string) string {
	return filepath.Join(dir, "query", k.Ecosystem+"_"+k.Name+".json")
}

// QueryBatch implements query_batch: iterates packages sequentially with a
// rate limiter enforcing a 500ms pause every 10 requests, caching non-empty
// results per (ecosystem, name) under cacheDir/query; offline, it only
// reads from that cache.
func (s *Store) QueryBatch(ctx context.Context, packages []bazbom.Package, offline bool, cacheDir string) (map[string][]bazbom.Vulnerability, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "advisory/Store.QueryBatch")

	if err := os.MkdirAll(filepath.Join(cacheDir, "query"), 0o755); err != nil {
		return nil, &bazbom.Error{Op: "advisory.QueryBatch", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	limiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 1)
	out := make(map[string][]bazbom.Vulnerability, len(packages))

	for i, p := range packages {
		key := batchKey{Ecosystem: p.Ecosystem, Name: p.Name}
		cacheFile := key.cacheFile(cacheDir)

		if offline {
			if data, err := os.ReadFile(cacheFile); err == nil {
				var vulns []bazbom.Vulnerability
				if err := json.Unmarshal(data, &vulns); err == nil {
					out[p.PURL()] = vulns
				}
			}
			continue
		}

		if i > 0 && i%10 == 0 {
			if err := limiter.Wait(ctx); err != nil {
				return out, err
			}
		}

		vulns, err := s.QueryPackageVulnerabilities(ctx, p.Name, p.Ecosystem, false)
		if err != nil {
			zlog.Info(ctx).Err(err).Str("package", p.PURL()).Msg("batch query failed for package")
			continue
		}
		out[p.PURL()] = vulns

		if len(vulns) > 0 {
			if data, err := json.Marshal(vulns); err == nil {
				_ = os.WriteFile(cacheFile, data, 0o644)
			}
		}
	}

	return out, nil
}
