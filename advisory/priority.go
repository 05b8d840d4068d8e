package advisory

import bazbom "github.com/bazbom/bazbom"

// CalculatePriority derives a Priority from severity, KEV presence, and
// EPSS score, with these boundaries: cvss=9.0 is P0; 8.9 with no KEV/EPSS is
// P2; 7.0 with KEV is P0; 3.9 is P4.
func CalculatePriority(severity *bazbom.Severity, kev *bazbom.KEVEntry, epss *bazbom.EPSS) bazbom.Priority {
	cvss := severity.CVSS()
	hasKEV := kev != nil
	var epssScore float64
	if epss != nil {
		epssScore = epss.Score
	}

	switch {
	case (hasKEV && cvss >= 7.0) || cvss >= 9.0 || epssScore >= 0.9:
		return bazbom.P0
	case cvss >= 7.0 && (hasKEV || epssScore >= 0.5):
		return bazbom.P1
	case cvss >= 7.0 || (cvss >= 4.0 && epssScore >= 0.1):
		return bazbom.P2
	case cvss >= 4.0:
		return bazbom.P3
	default:
		return bazbom.P4
	}
}
