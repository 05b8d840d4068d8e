package reachability

import (
	"context"
	"io/fs"
	"path"
	"strings"

	"github.com/quay/zlog"

	bazbom "github.com/bazbom/bazbom"
)

// ignoredDirs are the vendored/cache directories excluded from file
// discovery.
var ignoredDirs = map[string]bool{
	"venv": true, ".venv": true, "__pycache__": true, "node_modules": true,
	"target": true, "build": true, "dist": true, ".git": true,
	".tox": true, ".pytest_cache": true, ".mypy_cache": true,
}

// Result is the completed analysis for one language's pipeline run.
type Result struct {
	Graph           *Graph
	EntryPoints     []EntryPoint
	Reachable       map[string]bool
	DynamicDispatch bool
	FileStates      map[string]FileState
}

// Pipeline runs the 7-step per-language reachability pipeline over a file
// tree using a single Extractor.
type Pipeline struct {
	Extractor Extractor
}

// Analyze discovers files matching the Extractor's extensions under root,
// extracts each, builds the call graph, and runs DFS reachability from
// every detected entry point — escalating to "every function reachable" if
// any dynamic-dispatch signal fired anywhere in the tree.
func (p *Pipeline) Analyze(ctx context.Context, fsys fs.FS, root string) (*Result, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "reachability/Pipeline.Analyze", "language", p.Extractor.Language())

	graph := NewGraph()
	states := make(map[string]FileState)
	var entryPoints []EntryPoint
	var calls []CallEdge
	dynamicDispatch := false

	err := fs.WalkDir(fsys, root, func(p2 string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if base := path.Base(p2); base != "." && ignoredDirs[base] {
				return fs.SkipDir
			}
			return nil
		}
		if !hasAnyExt(p2, p.Extractor.Extensions()) {
			return nil
		}
		states[p2] = StateDiscovered

		src, err := fs.ReadFile(fsys, p2)
		if err != nil {
			zlog.Info(ctx).Err(err).Str("file", p2).Msg("unreadable, leaving at Discovered")
			return nil
		}

		extraction, err := p.Extractor.Extract(ctx, p2, src)
		if err != nil {
			zlog.Info(ctx).Err(err).Str("file", p2).Msg("parse failed, leaving at Discovered")
			return nil
		}
		states[p2] = StateParsed

		for _, fn := range extraction.Functions {
			graph.AddNode(fn)
		}
		calls = append(calls, extraction.Calls...)
		entryPoints = append(entryPoints, extraction.EntryPoints...)
		if extraction.DynamicDispatch {
			dynamicDispatch = true
		}
		states[p2] = StateGraphBuilt
		return nil
	})
	if err != nil {
		return nil, &bazbom.Error{Op: "reachability.Analyze", Kind: bazbom.ErrKindIngestion, Inner: err}
	}

	for _, c := range calls {
		if c.Caller == "" {
			continue
		}
		callee := resolveCallee(graph, c.CalleeExpr)
		if callee == "" {
			continue
		}
		graph.AddEdge(c.Caller, callee)
	}

	entryIDs := make([]string, 0, len(entryPoints))
	for _, ep := range entryPoints {
		if id := findNodeID(graph, ep.File, ep.FunctionName); id != "" {
			entryIDs = append(entryIDs, id)
		}
	}

	var reachable map[string]bool
	if dynamicDispatch {
		// Step 6: abandon the refined result under dynamic dispatch,
		// since refinement is unsound once exec/eval/getattr/reflect-style
		// calls are in play.
		reachable = make(map[string]bool, len(graph.Nodes))
		for id := range graph.Nodes {
			reachable[id] = true
		}
	} else {
		reachable = graph.Reachable(entryIDs)
	}

	for f, s := range states {
		if s == StateGraphBuilt {
			states[f] = StateAnalyzed
		}
	}

	return &Result{
		Graph:           graph,
		EntryPoints:     entryPoints,
		Reachable:       reachable,
		DynamicDispatch: dynamicDispatch,
		FileStates:      states,
	}, nil
}

// resolveCallee applies a simple module-path heuristic: an exact node-ID
// match, else a match on the trailing ".Name"/"Name" suffix of some node's
// ID. Ambiguous or unresolved callee expressions are dropped, which
// under-approximates the graph — compensated for by the dynamic-dispatch
// escalation.
func resolveCallee(g *Graph, calleeExpr string) string {
	if _, ok := g.Nodes[calleeExpr]; ok {
		return calleeExpr
	}
	short := calleeExpr
	if i := strings.LastIndexByte(calleeExpr, '.'); i >= 0 {
		short = calleeExpr[i+1:]
	}
	var match string
	for id, n := range g.Nodes {
		if n.DisplayName == short || strings.HasSuffix(id, "."+short) {
			if match != "" && match != id {
				return "" // ambiguous, drop rather than guess wrong
			}
			match = id
		}
	}
	return match
}

func findNodeID(g *Graph, file, functionName string) string {
	for id, n := range g.Nodes {
		if n.File == file && (n.DisplayName == functionName || strings.HasSuffix(n.ID, "."+functionName)) {
			return id
		}
	}
	return ""
}

func hasAnyExt(p string, exts []string) bool {
	for _, e := range exts {
		if strings.HasSuffix(p, e) {
			return true
		}
	}
	return false
}

// AnnotateFinding synthesizes the presumed vulnerable-function ID for one
// (package, affected) pair, checks it against the reachable set, and builds
// a witness call chain (BFS shortest path) when reachable.
func (r *Result) AnnotateFinding(vendorPath, packageName, symbol string) (reachable bool, callChain []string) {
	id := vendorPath + "/" + packageName
	if symbol != "" {
		id += ":" + symbol
	}
	if r.Reachable[id] {
		entryIDs := make([]string, 0, len(r.EntryPoints))
		for _, ep := range r.EntryPoints {
			if nid := findNodeID(r.Graph, ep.File, ep.FunctionName); nid != "" {
				entryIDs = append(entryIDs, nid)
			}
		}
		return true, r.Graph.ShortestPath(entryIDs, id)
	}
	// The synthesized ID might not be a literal node ID (vendored packages
	// aren't walked by Extract), but package-level reachability still
	// counts: if any node whose ID carries this vendor path prefix is
	// reachable, treat the finding as reachable too.
	for nodeID := range r.Reachable {
		if strings.HasPrefix(nodeID, vendorPath+"/"+packageName) {
			return true, nil
		}
	}
	return false, nil
}

// Summary reduces a Result to the compact per-ecosystem-root roll-up
// attached to an EcosystemScanResult.
func (r *Result) Summary() *bazbom.ReachabilitySummary {
	reached := 0
	for id := range r.Reachable {
		if _, ok := r.Graph.Nodes[id]; ok {
			reached++
		}
	}
	return &bazbom.ReachabilitySummary{
		TotalFunctions:       len(r.Graph.Nodes),
		ReachableFunctions:   reached,
		EntryPoints:          len(r.EntryPoints),
		DynamicDispatchFired: r.DynamicDispatch,
	}
}
