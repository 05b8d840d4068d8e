package bazbom

import "time"

// Priority is the derived urgency bucket for a Vulnerability, computed by
// advisory.CalculatePriority from severity, KEV presence, and EPSS score.
type Priority uint8

const (
	P4 Priority = iota
	P3
	P2
	P1
	P0
)

func (p Priority) String() string {
	switch p {
	case P0:
		return "P0"
	case P1:
		return "P1"
	case P2:
		return "P2"
	case P3:
		return "P3"
	default:
		return "P4"
	}
}

// SeverityLevel is a coarse severity bucket, independent of any particular
// CVSS version.
type SeverityLevel uint8

const (
	SeverityUnknown SeverityLevel = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s SeverityLevel) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	case SeverityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Severity bundles the CVSS vectors a record carries alongside the coarse
// Level bucket a policy can threshold against.
type Severity struct {
	CVSSv3 *float64      `json:"cvss_v3,omitempty"`
	CVSSv4 *float64      `json:"cvss_v4,omitempty"`
	Level  SeverityLevel `json:"level"`
}

// CVSS returns the score this Severity should be judged by: CVSSv3 if
// present, else CVSSv4, else 0.
func (s *Severity) CVSS() float64 {
	if s == nil {
		return 0
	}
	if s.CVSSv3 != nil {
		return *s.CVSSv3
	}
	if s.CVSSv4 != nil {
		return *s.CVSSv4
	}
	return 0
}

// EPSS is the Exploit Prediction Scoring System estimate for one CVE.
type EPSS struct {
	Score      float64 `json:"score"`
	Percentile float64 `json:"percentile"`
}

// KEVEntry records that a vulnerability appears in CISA's Known Exploited
// Vulnerabilities catalog. Presence alone (a non-nil *KEVEntry on a
// Vulnerability) means "actively exploited".
type KEVEntry struct {
	DateAdded   time.Time `json:"date_added"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// Reference is a single external link attached to a Vulnerability.
type Reference struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// VersionEventKind tags a VersionEvent's variant. OSV's "limit" events are
// dropped during normalization and so have no kind here.
type VersionEventKind uint8

const (
	EventIntroduced VersionEventKind = iota
	EventFixed
	EventLastAffected
)

// VersionEvent is one tagged point in a VersionRange's interval
// description.
type VersionEvent struct {
	Kind  VersionEventKind
	Value string
}

// RangeType selects how a VersionRange's events are compared against a
// concrete version.
type RangeType uint8

const (
	RangeSemver RangeType = iota
	RangeEcosystem
	RangeGit
)

func (t RangeType) String() string {
	switch t {
	case RangeSemver:
		return "SEMVER"
	case RangeEcosystem:
		return "ECOSYSTEM"
	case RangeGit:
		return "GIT"
	default:
		return "UNKNOWN"
	}
}

// VersionRange is one disjunct of an AffectedPackage's range set. Events
// preserve the order they were observed in the source feed: an implementer
// must preserve the order in which events appear within one range.
type VersionRange struct {
	Type   RangeType      `json:"range_type"`
	Events []VersionEvent `json:"events"`
}

// AffectedPackage names one (ecosystem, package) pair a Vulnerability
// affects, together with the ranges that decide which concrete versions are
// in scope.
type AffectedPackage struct {
	Ecosystem string         `json:"ecosystem"`
	Package   string         `json:"package"`
	Ranges    []VersionRange `json:"ranges"`
	// Symbol is the specific vulnerable function/method an advisory may
	// name. Feeds carry no standardized field for it and no ingestion
	// package in this module sets it, so it stays empty unless a caller
	// fills it in. Reachability's finding
	// annotation uses it when present to synthesize a vulnerable-function ID
	// more specific than the package as a whole.
	Symbol string `json:"symbol,omitempty"`
}

// Vulnerability is the canonical, source-agnostic vulnerability record
// produced by advisory ingestion after enrichment and merge.
type Vulnerability struct {
	ID        string            `json:"id"`
	Aliases   []string          `json:"aliases,omitempty"`
	Affected  []AffectedPackage `json:"affected,omitempty"`
	Severity  *Severity         `json:"severity,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Details   string            `json:"details,omitempty"`
	References []Reference      `json:"references,omitempty"`
	Published *time.Time        `json:"published,omitempty"`
	Modified  *time.Time        `json:"modified,omitempty"`
	EPSS      *EPSS             `json:"epss,omitempty"`
	KEV       *KEVEntry         `json:"kev,omitempty"`
	Priority  Priority          `json:"priority"`
}

// Finding is a (Package, Vulnerability) pair plus the fields derived by
// later pipeline stages (reachability, policy).
type Finding struct {
	Package         Package       `json:"package"`
	Vulnerability   Vulnerability `json:"vulnerability"`
	IsReachable     *bool         `json:"is_reachable,omitempty"`
	MatchedRange    *VersionRange `json:"matched_range,omitempty"`
	SuppressedByVEX bool          `json:"suppressed_by_vex,omitempty"`
	CallChain       []string      `json:"call_chain,omitempty"`
}
