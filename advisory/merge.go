package advisory

import (
	"sort"

	bazbom "github.com/bazbom/bazbom"
)

// Merge folds a set of Vulnerability records that describe the same
// logical issue (observed from different sources, sharing an alias) into
// one canonical record: union of aliases (sorted), union of affected
// packages keyed by (ecosystem, package), highest CVSS, longest non-null
// description, references deduplicated by URL.
//
// Merge is commutative and associative on the combined identifier set (ID
// plus aliases) and the set of affected (ecosystem, package) keys: both are
// accumulated as sets before being flattened back to sorted slices. The
// primary ID is taken from the first record, and the order of ranges,
// references and the chosen Summary follow input order.
func Merge(vulns []bazbom.Vulnerability) (bazbom.Vulnerability, error) {
	if len(vulns) == 0 {
		return bazbom.Vulnerability{}, bazbom.ErrEmptyMergeSet
	}
	if len(vulns) == 1 {
		return vulns[0], nil
	}

	out := bazbom.Vulnerability{ID: vulns[0].ID}

	aliasSet := make(map[string]bool)
	affectedByKey := make(map[affectedKey]bazbom.AffectedPackage)
	var affectedOrder []affectedKey
	refSet := make(map[string]bazbom.Reference)
	var refOrder []string

	for _, v := range vulns {
		aliasSet[v.ID] = true
		for _, a := range v.Aliases {
			aliasSet[a] = true
		}

		for _, ap := range v.Affected {
			k := affectedKey{Ecosystem: ap.Ecosystem, Package: ap.Package}
			if existing, ok := affectedByKey[k]; ok {
				existing.Ranges = append(existing.Ranges, ap.Ranges...)
				affectedByKey[k] = existing
			} else {
				affectedByKey[k] = ap
				affectedOrder = append(affectedOrder, k)
			}
		}

		if v.Severity != nil {
			out.Severity = higherSeverity(out.Severity, v.Severity)
		}
		if len(v.Details) > len(out.Details) {
			out.Details = v.Details
		}
		if out.Summary == "" {
			out.Summary = v.Summary
		}
		if out.Published == nil || (v.Published != nil && v.Published.Before(*out.Published)) {
			out.Published = v.Published
		}
		if out.Modified == nil || (v.Modified != nil && v.Modified.After(*out.Modified)) {
			out.Modified = v.Modified
		}
		if v.KEV != nil {
			out.KEV = v.KEV
		}
		if v.EPSS != nil {
			out.EPSS = v.EPSS
		}

		for _, r := range v.References {
			if _, ok := refSet[r.URL]; !ok {
				refSet[r.URL] = r
				refOrder = append(refOrder, r.URL)
			}
		}
	}

	delete(aliasSet, out.ID)
	aliases := make([]string, 0, len(aliasSet))
	for a := range aliasSet {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	out.Aliases = aliases

	sort.Slice(affectedOrder, func(i, j int) bool {
		if affectedOrder[i].Ecosystem != affectedOrder[j].Ecosystem {
			return affectedOrder[i].Ecosystem < affectedOrder[j].Ecosystem
		}
		return affectedOrder[i].Package < affectedOrder[j].Package
	})
	affected := make([]bazbom.AffectedPackage, 0, len(affectedOrder))
	for _, k := range affectedOrder {
		affected = append(affected, affectedByKey[k])
	}
	out.Affected = affected

	refs := make([]bazbom.Reference, 0, len(refOrder))
	for _, u := range refOrder {
		refs = append(refs, refSet[u])
	}
	out.References = refs

	return out, nil
}

type affectedKey struct {
	Ecosystem string
	Package   string
}

func higherSeverity(a, b *bazbom.Severity) *bazbom.Severity {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.CVSS() > a.CVSS() {
		return b
	}
	return a
}
