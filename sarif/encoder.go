// Package sarif renders findings as a SARIF 2.x log.
package sarif

import (
	"io"

	gosarif "github.com/owenrumney/go-sarif/v2/sarif"

	bazbom "github.com/bazbom/bazbom"
)

// ToolName/ToolInformationURI describe the analyzer in the SARIF run.
const (
	ToolName            = "bazbom"
	ToolInformationURI  = "https://github.com/bazbom/bazbom"
)

// Encode renders findings as one SARIF run and writes it to w.
func Encode(w io.Writer, findings []bazbom.Finding) error {
	report, err := gosarif.New(gosarif.Version210)
	if err != nil {
		return err
	}
	run := gosarif.NewRunWithInformationURI(ToolName, ToolInformationURI)

	seenRules := make(map[string]bool)
	for _, f := range findings {
		ruleID := f.Vulnerability.ID
		if !seenRules[ruleID] {
			seenRules[ruleID] = true
			rule := run.AddRule(ruleID)
			if f.Vulnerability.Summary != "" {
				rule.WithDescription(f.Vulnerability.Summary)
			}
		}

		level := sarifLevel(f)
		result := run.CreateResultForRule(ruleID).
			WithLevel(level).
			WithMessage(gosarif.NewTextMessage(resultMessage(f)))
		result.WithProperties(gosarif.Properties{
			"component":  f.Package.Name,
			"version":    f.Package.Version,
			"priority":   f.Vulnerability.Priority.String(),
			"epss_score": epssScore(f),
			"cisa_kev":   f.Vulnerability.KEV != nil,
		})
	}

	report.AddRun(run)
	return report.PrettyWrite(w)
}

func sarifLevel(f bazbom.Finding) string {
	if f.Vulnerability.Severity == nil {
		return "warning"
	}
	switch f.Vulnerability.Severity.Level {
	case bazbom.SeverityCritical, bazbom.SeverityHigh:
		return "error"
	case bazbom.SeverityMedium:
		return "warning"
	case bazbom.SeverityLow:
		return "note"
	default:
		return "none"
	}
}

func resultMessage(f bazbom.Finding) string {
	return f.Vulnerability.ID + " affects " + f.Package.Name + "@" + f.Package.Version
}

func epssScore(f bazbom.Finding) float64 {
	if f.Vulnerability.EPSS == nil {
		return 0
	}
	return f.Vulnerability.EPSS.Score
}
