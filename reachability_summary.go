package bazbom

// ReachabilitySummary is the per-ecosystem-root roll-up a reachability
// analyzer attaches to an EcosystemScanResult: how many functions were
// discovered, how many were reached from some entry point, and whether the
// coarse dynamic-dispatch escalation fired.
type ReachabilitySummary struct {
	TotalFunctions      int  `json:"total_functions"`
	ReachableFunctions  int  `json:"reachable_functions"`
	EntryPoints         int  `json:"entry_points"`
	DynamicDispatchFired bool `json:"dynamic_dispatch_fired"`
}
