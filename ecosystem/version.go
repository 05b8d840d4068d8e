package ecosystem

import "strings"

// StripOperator derives a best-effort concrete version by stripping the
// leading operator, for use when no lockfile pinned an exact version.
func StripOperator(spec string) string {
	s := strings.TrimSpace(spec)
	for _, op := range []string{">=", "<=", "~>", "^", "~", ">", "<", "=", "v"} {
		if strings.HasPrefix(s, op) {
			s = strings.TrimSpace(strings.TrimPrefix(s, op))
			break
		}
	}
	// Range specs like "1.2.3 - 2.0.0" or "1.x || 2.x": take the first
	// token, which is the best-effort concrete version this rule allows.
	if i := strings.IndexAny(s, " |"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
