// Package nvd ingests the NVD CVE 2.0 API
// (https://services.nvd.nist.gov/rest/json/cves/2.0) and canonicalizes
// records into bazbom.Vulnerability.
package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/internal/httputil"
)

const baseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// resultsPerPage is the NVD API's own page size cap.
const resultsPerPage = 2000

// Fetcher pulls CVE records from the NVD REST API. An API key is optional
// but strongly recommended by NIST to avoid its unauthenticated rate limit
// (5 requests/30s vs. 50 requests/30s with a key).
type Fetcher struct {
	Client *http.Client
	APIKey string
}

// NewFetcher builds a Fetcher carrying the package's default advisory
// timeout.
func NewFetcher(apiKey string) *Fetcher {
	return &Fetcher{Client: httputil.NewClient(httputil.DefaultAdvisoryTimeout), APIKey: apiKey}
}

type cveResponse struct {
	ResultsPerPage int            `json:"resultsPerPage"`
	StartIndex     int            `json:"startIndex"`
	TotalResults   int            `json:"totalResults"`
	Vulnerabilities []cveWrapper  `json:"vulnerabilities"`
}

type cveWrapper struct {
	CVE cveRecord `json:"cve"`
}

type cveRecord struct {
	ID           string            `json:"id"`
	Published    string            `json:"published"`
	LastModified string            `json:"lastModified"`
	Descriptions []cveDescription  `json:"descriptions"`
	Metrics      cveMetrics        `json:"metrics"`
	References   []cveReference    `json:"references"`
	Configurations []cveConfig     `json:"configurations"`
}

type cveDescription struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type cveMetrics struct {
	CvssMetricV31 []cvssMetric `json:"cvssMetricV31"`
	CvssMetricV30 []cvssMetric `json:"cvssMetricV30"`
	CvssMetricV2  []cvssMetric `json:"cvssMetricV2"`
}

type cvssMetric struct {
	CvssData struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssData"`
}

type cveReference struct {
	URL string `json:"url"`
}

// cveConfig is read only for CPE match strings, which this module does not
// currently translate into AffectedPackage entries: NVD's CPE dictionary
// has no stable mapping onto the ecosystem/package-name model the rest of
// bazbom uses (a CPE like cpe:2.3:a:apache:log4j:2.14.0 names a vendor and
// product, not a package registry coordinate), so CVE records from this
// ingestion path carry no Affected entries — they exist for enrichment
// (aliasing a GHSA/OSV ID to its CVE, carrying an independent CVSS score),
// not as an Affected source on their own.
type cveConfig struct{}

// FetchAll pages through the full NVD CVE catalog. NIST recommends at most
// one request per 6 seconds unauthenticated / 0.6 seconds with an API key;
// this loop does not itself throttle, leaving rate control to the caller.
func (f *Fetcher) FetchAll(ctx context.Context) ([]bazbom.Vulnerability, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "advisory/nvd/FetchAll")

	var out []bazbom.Vulnerability
	startIndex := 0
	for {
		page, total, err := f.fetchPage(ctx, startIndex)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		startIndex += len(page)
		if len(page) == 0 || startIndex >= total {
			break
		}
	}
	zlog.Info(ctx).Int("count", len(out)).Msg("parsed NVD CVE records")
	return out, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, startIndex int) ([]bazbom.Vulnerability, int, error) {
	q := url.Values{}
	q.Set("resultsPerPage", fmt.Sprintf("%d", resultsPerPage))
	q.Set("startIndex", fmt.Sprintf("%d", startIndex))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, &bazbom.Error{Op: "nvd.fetchPage", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	if f.APIKey != "" {
		req.Header.Set("apiKey", f.APIKey)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, 0, &bazbom.Error{Op: "nvd.fetchPage", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	defer resp.Body.Close()
	if err := httputil.CheckResponse(resp, http.StatusOK); err != nil {
		return nil, 0, &bazbom.Error{Op: "nvd.fetchPage", Kind: bazbom.ErrKindNetwork, Inner: err}
	}

	var cr cveResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, 0, &bazbom.Error{Op: "nvd.fetchPage", Kind: bazbom.ErrKindParse, Inner: err}
	}

	out := make([]bazbom.Vulnerability, 0, len(cr.Vulnerabilities))
	for _, w := range cr.Vulnerabilities {
		out = append(out, toVulnerability(w.CVE))
	}
	return out, cr.TotalResults, nil
}

func toVulnerability(rec cveRecord) bazbom.Vulnerability {
	v := bazbom.Vulnerability{ID: rec.ID}
	for _, d := range rec.Descriptions {
		if d.Lang == "en" {
			v.Details = d.Value
			break
		}
	}
	for _, r := range rec.References {
		v.References = append(v.References, bazbom.Reference{URL: r.URL})
	}
	if t, err := time.Parse(time.RFC3339, rec.Published); err == nil {
		v.Published = &t
	}
	if t, err := time.Parse(time.RFC3339, rec.LastModified); err == nil {
		v.Modified = &t
	}
	v.Severity = bestSeverity(rec.Metrics)
	return v
}

// bestSeverity prefers CVSS v3.1, then v3.0, then v2, matching NVD's own
// display precedence.
func bestSeverity(m cveMetrics) *bazbom.Severity {
	var score float64
	switch {
	case len(m.CvssMetricV31) > 0:
		score = m.CvssMetricV31[0].CvssData.BaseScore
	case len(m.CvssMetricV30) > 0:
		score = m.CvssMetricV30[0].CvssData.BaseScore
	case len(m.CvssMetricV2) > 0:
		score = m.CvssMetricV2[0].CvssData.BaseScore
	default:
		return nil
	}
	s := score
	return &bazbom.Severity{CVSSv3: &s, Level: levelFor(score)}
}

func levelFor(score float64) bazbom.SeverityLevel {
	switch {
	case score >= 9.0:
		return bazbom.SeverityCritical
	case score >= 7.0:
		return bazbom.SeverityHigh
	case score >= 4.0:
		return bazbom.SeverityMedium
	case score > 0:
		return bazbom.SeverityLow
	default:
		return bazbom.SeverityUnknown
	}
}
