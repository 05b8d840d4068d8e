package policy

import (
	bazbom "github.com/bazbom/bazbom"
)

// ViolationKind classifies why a finding failed policy.
type ViolationKind uint8

const (
	ViolationKEV ViolationKind = iota
	ViolationSeverity
	ViolationEPSS
	ViolationLicense
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationKEV:
		return "kev"
	case ViolationSeverity:
		return "severity"
	case ViolationEPSS:
		return "epss"
	case ViolationLicense:
		return "license"
	default:
		return "unknown"
	}
}

// Violation is one reason a Finding failed policy evaluation.
type Violation struct {
	Kind    ViolationKind
	Finding bazbom.Finding
	Message string
}

// Result is the outcome of evaluating one Finding, or a batch, against a
// Config.
type Result struct {
	Passed     bool
	Violations []Violation
}

// Evaluate applies cfg to finding. A finding suppressed by VEX, or shown
// unreachable when cfg.ReachabilityRequired is set, passes with no
// violations; otherwise the KEV gate, severity threshold and EPSS threshold
// each add a violation when they trip.
// vexStatements is consulted for suppression; pass nil if none apply.
func Evaluate(cfg Config, finding bazbom.Finding, vexStatements []VEXApplicability) Result {
	if suppressed(finding, vexStatements) {
		return Result{Passed: true}
	}
	if cfg.ReachabilityRequired && finding.IsReachable != nil && !*finding.IsReachable {
		return Result{Passed: true}
	}

	var violations []Violation

	if cfg.KEVGate && finding.Vulnerability.KEV != nil {
		violations = append(violations, Violation{Kind: ViolationKEV, Finding: finding,
			Message: "vulnerability " + finding.Vulnerability.ID + " is in the CISA KEV catalog"})
	}
	if cfg.SeverityThreshold != nil && finding.Vulnerability.Severity != nil &&
		finding.Vulnerability.Severity.Level >= *cfg.SeverityThreshold {
		violations = append(violations, Violation{Kind: ViolationSeverity, Finding: finding,
			Message: "severity " + finding.Vulnerability.Severity.Level.String() + " meets or exceeds threshold " + cfg.SeverityThreshold.String()})
	}
	if cfg.EPSSThreshold != nil && finding.Vulnerability.EPSS != nil &&
		finding.Vulnerability.EPSS.Score >= *cfg.EPSSThreshold {
		violations = append(violations, Violation{Kind: ViolationEPSS, Finding: finding,
			Message: "EPSS score meets or exceeds threshold"})
	}

	return Result{Passed: len(violations) == 0, Violations: violations}
}

// EvaluateAll evaluates a batch of findings, returning one Result per
// finding in input order, suppressed findings included (as passing).
// There is no overall verdict; the caller examines each element's own
// Passed.
func EvaluateAll(cfg Config, findings []bazbom.Finding, vexStatements []VEXApplicability) []Result {
	out := make([]Result, len(findings))
	for i, f := range findings {
		out[i] = Evaluate(cfg, f, vexStatements)
	}
	return out
}

// VEXApplicability is the minimal shape of a VEX statement policy needs:
// which CVE, which PURLs (empty = all products), and the resulting status.
type VEXApplicability struct {
	VulnerabilityID string
	Products        []string
	Status          string
}

func suppressed(finding bazbom.Finding, statements []VEXApplicability) bool {
	purl := finding.Package.PURL()
	for _, s := range statements {
		if s.VulnerabilityID != finding.Vulnerability.ID {
			continue
		}
		if len(s.Products) != 0 && !contains(s.Products, purl) {
			continue
		}
		switch s.Status {
		case "not_affected", "fixed":
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
