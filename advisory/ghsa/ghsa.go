// Package ghsa ingests GitHub Security Advisories via the GitHub GraphQL
// API and canonicalizes them into bazbom.Vulnerability. No GraphQL client
// is wired in (github.com/google/go-github is REST-only), so this module
// POSTs the query body directly with encoding/json, the same approach
// advisory/store.go already uses for OSV's query endpoint.
package ghsa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
	"github.com/bazbom/bazbom/internal/httputil"
)

const graphQLEndpoint = "https://api.github.com/graphql"

// advisoriesQuery fetches a page of security advisories together with each
// advisory's affected-package vulnerabilities.
const advisoriesQuery = `
query($after: String) {
  securityAdvisories(first: 50, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes {
      ghsaId
      summary
      description
      severity
      publishedAt
      updatedAt
      identifiers { type value }
      references { url }
      vulnerabilities(first: 20) {
        nodes {
          package { ecosystem name }
          vulnerableVersionRange
          firstPatchedVersion { identifier }
        }
      }
    }
  }
}`

// Fetcher pulls GHSA advisories using a GitHub personal access or app
// token; GitHub's GraphQL advisory API requires authentication.
type Fetcher struct {
	Client *http.Client
	Token  string
}

// NewFetcher builds a Fetcher carrying the package's default advisory
// timeout. Token must be set by the caller before Fetch is used; an empty
// token causes GitHub to reject the request with 401, surfaced as a
// bazbom.ErrKindNetwork error rather than silently returning no data.
func NewFetcher(token string) *Fetcher {
	return &Fetcher{Client: httputil.NewClient(httputil.DefaultAdvisoryTimeout), Token: token}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data struct {
		SecurityAdvisories struct {
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Nodes []advisoryNode `json:"nodes"`
		} `json:"securityAdvisories"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type advisoryNode struct {
	GhsaID      string `json:"ghsaId"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	PublishedAt string `json:"publishedAt"`
	UpdatedAt   string `json:"updatedAt"`
	Identifiers []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"identifiers"`
	References []struct {
		URL string `json:"url"`
	} `json:"references"`
	Vulnerabilities struct {
		Nodes []struct {
			Package struct {
				Ecosystem string `json:"ecosystem"`
				Name      string `json:"name"`
			} `json:"package"`
			VulnerableVersionRange string `json:"vulnerableVersionRange"`
			FirstPatchedVersion   *struct {
				Identifier string `json:"identifier"`
			} `json:"firstPatchedVersion"`
		} `json:"nodes"`
	} `json:"vulnerabilities"`
}

// FetchAll pages through every published security advisory. GitHub's
// GraphQL rate limit (5000 points/hour for an authenticated request) is not
// separately throttled here; a caller ingesting the full catalog should
// expect this to take several minutes.
func (f *Fetcher) FetchAll(ctx context.Context) ([]bazbom.Vulnerability, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "advisory/ghsa/FetchAll")

	var out []bazbom.Vulnerability
	cursor := ""
	for {
		page, hasNext, next, err := f.fetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if !hasNext {
			break
		}
		cursor = next
	}
	zlog.Info(ctx).Int("count", len(out)).Msg("parsed GHSA advisories")
	return out, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, after string) ([]bazbom.Vulnerability, bool, string, error) {
	var vars map[string]any
	if after == "" {
		vars = map[string]any{"after": nil}
	} else {
		vars = map[string]any{"after": after}
	}
	body, err := json.Marshal(graphQLRequest{Query: advisoriesQuery, Variables: vars})
	if err != nil {
		return nil, false, "", &bazbom.Error{Op: "ghsa.fetchPage", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphQLEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, "", &bazbom.Error{Op: "ghsa.fetchPage", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "bearer "+f.Token)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, false, "", &bazbom.Error{Op: "ghsa.fetchPage", Kind: bazbom.ErrKindNetwork, Inner: err}
	}
	defer resp.Body.Close()
	if err := httputil.CheckResponse(resp, http.StatusOK); err != nil {
		return nil, false, "", &bazbom.Error{Op: "ghsa.fetchPage", Kind: bazbom.ErrKindNetwork, Inner: err}
	}

	var gr graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, false, "", &bazbom.Error{Op: "ghsa.fetchPage", Kind: bazbom.ErrKindParse, Inner: err}
	}
	if len(gr.Errors) > 0 {
		return nil, false, "", &bazbom.Error{Op: "ghsa.fetchPage", Kind: bazbom.ErrKindIngestion, Message: gr.Errors[0].Message}
	}

	out := make([]bazbom.Vulnerability, 0, len(gr.Data.SecurityAdvisories.Nodes))
	for _, n := range gr.Data.SecurityAdvisories.Nodes {
		out = append(out, toVulnerability(n))
	}
	pi := gr.Data.SecurityAdvisories.PageInfo
	return out, pi.HasNextPage, pi.EndCursor, nil
}

func toVulnerability(n advisoryNode) bazbom.Vulnerability {
	v := bazbom.Vulnerability{
		ID:      n.GhsaID,
		Summary: n.Summary,
		Details: n.Description,
	}
	for _, id := range n.Identifiers {
		if id.Type == "CVE" {
			v.Aliases = append(v.Aliases, id.Value)
		}
	}
	for _, r := range n.References {
		v.References = append(v.References, bazbom.Reference{URL: r.URL})
	}
	if t, err := time.Parse(time.RFC3339, n.PublishedAt); err == nil {
		v.Published = &t
	}
	if t, err := time.Parse(time.RFC3339, n.UpdatedAt); err == nil {
		v.Modified = &t
	}
	if level := severityLevel(n.Severity); level != bazbom.SeverityUnknown {
		v.Severity = &bazbom.Severity{Level: level}
	}

	for _, vn := range n.Vulnerabilities.Nodes {
		rng := ParseVersionRange(vn.VulnerableVersionRange)
		if vn.FirstPatchedVersion != nil && vn.FirstPatchedVersion.Identifier != "" {
			hasFixed := false
			for _, e := range rng.Events {
				if e.Kind == bazbom.EventFixed {
					hasFixed = true
				}
			}
			if !hasFixed {
				rng.Events = append(rng.Events, bazbom.VersionEvent{Kind: bazbom.EventFixed, Value: vn.FirstPatchedVersion.Identifier})
			}
		}
		ap := bazbom.AffectedPackage{
			Ecosystem: vn.Package.Ecosystem,
			Package:   vn.Package.Name,
			Ranges:    []bazbom.VersionRange{rng},
		}
		v.Affected = append(v.Affected, ap)
	}
	return v
}

func severityLevel(s string) bazbom.SeverityLevel {
	switch s {
	case "CRITICAL":
		return bazbom.SeverityCritical
	case "HIGH":
		return bazbom.SeverityHigh
	case "MODERATE":
		return bazbom.SeverityMedium
	case "LOW":
		return bazbom.SeverityLow
	default:
		return bazbom.SeverityUnknown
	}
}

// geOp and ltOp match GHSA's "vulnerableVersionRange" clauses, e.g.
// ">= 1.2.0, < 1.5.0" or "< 2.0.0".
var (
	geOp = regexp.MustCompile(`>=\s*([0-9][0-9A-Za-z.\-+]*)`)
	ltOp = regexp.MustCompile(`<\s*([0-9][0-9A-Za-z.\-+]*)`)
)

// ParseVersionRange has a known limitation: the GHSA version-range grammar
// in the wild uses npm-style comparator
// syntax (">=", "<", "~", "^", exact versions, "||" disjunctions), but this
// parser recognizes only ">=" and "<". Everything else — "~1.2.0", "^2.0.0",
// an exact "1.2.3", or a range this regexp simply fails to match — yields a
// range holding only an "introduced 0" event. toVulnerability then adds the
// advisory's firstPatchedVersion as the fixed event of any range that has
// none, so such a clause becomes the "[0, fixed)" interval (or "[0, ∞)" when
// no patched version is published).
func ParseVersionRange(raw string) bazbom.VersionRange {
	var events []bazbom.VersionEvent
	if m := geOp.FindStringSubmatch(raw); m != nil {
		events = append(events, bazbom.VersionEvent{Kind: bazbom.EventIntroduced, Value: m[1]})
	}
	if m := ltOp.FindStringSubmatch(raw); m != nil {
		events = append(events, bazbom.VersionEvent{Kind: bazbom.EventFixed, Value: m[1]})
	}
	if len(events) == 0 {
		// No recognized operator: unbounded below; the upper bound, if any,
		// comes from firstPatchedVersion in toVulnerability.
		events = append(events, bazbom.VersionEvent{Kind: bazbom.EventIntroduced, Value: "0"})
	}
	return bazbom.VersionRange{Type: bazbom.RangeEcosystem, Events: events}
}
