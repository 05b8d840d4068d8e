// Package reachability implements a per-language pipeline: discover files,
// extract an AST-derived function/call graph, detect entry points, build a
// call graph, run DFS reachability, escalate conservatively under dynamic
// dispatch, and annotate findings. It follows the rest of this module's
// conventions (context-scoped zlog, *bazbom.Error) where those apply.
package reachability

// FunctionNode is one function/method discovered by AST extraction.
type FunctionNode struct {
	ID          string // "{file}:{qualifier}.{name}"
	DisplayName string
	File        string
	Line        int
	Column      int
	Class       string // enclosing type/class name, if any
	IsAsync     bool
	Decorators  []string
	IsExported  bool
}

// CallEdge is one call site observed during AST extraction.
type CallEdge struct {
	Caller            string // FunctionNode.ID of the enclosing function, if known
	CalleeExpr        string // the raw callee expression text
	File              string
	Line              int
	Column            int
	CallerContext     string
	IsGoroutineOrTask bool
}

// EntryPointType classifies why a function was recognized as an entry
// point.
type EntryPointType string

const (
	EntryMain       EntryPointType = "main"
	EntryTest       EntryPointType = "test"
	EntryRoute      EntryPointType = "route"
	EntryTask       EntryPointType = "task"
	EntryExplicit   EntryPointType = "explicit"
)

// EntryPoint is one recognized program entry point.
type EntryPoint struct {
	File         string
	FunctionName string
	Type         EntryPointType
	Metadata     map[string]string
}

// FileState is the per-file analysis state machine: Discovered -> Parsed ->
// GraphBuilt -> Analyzed, monotonic, stalling at Discovered for files that
// fail to parse.
type FileState uint8

const (
	StateDiscovered FileState = iota
	StateParsed
	StateGraphBuilt
	StateAnalyzed
)

func (s FileState) String() string {
	switch s {
	case StateParsed:
		return "Parsed"
	case StateGraphBuilt:
		return "GraphBuilt"
	case StateAnalyzed:
		return "Analyzed"
	default:
		return "Discovered"
	}
}

// FileExtraction is what one language Extractor emits for a single source
// file.
type FileExtraction struct {
	Functions       []FunctionNode
	Calls           []CallEdge
	DynamicDispatch bool // true if any dynamic-dispatch signal was observed
	EntryPoints     []EntryPoint
}
