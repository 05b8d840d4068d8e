package reachability

import "context"

// Extractor parses one source file into the functions/calls/dynamic-
// dispatch signals the pipeline needs. Shaped like tree-sitter's query API
// (one pass over a file producing captures) so a real tree-sitter grammar
// binding can implement this interface without changing Pipeline. The Go
// analyzer instead wraps go/parser+go/ast directly (see reachability/golang),
// since nothing parses Go source better than the standard library's own
// compiler frontend.
type Extractor interface {
	// Language names the language this Extractor handles, for logging and
	// for FunctionNode.ID namespacing.
	Language() string

	// Extensions lists the file extensions (with leading dot) this
	// Extractor's files use, for file discovery filtering.
	Extensions() []string

	// Extract parses one file's contents into a FileExtraction. A parse
	// failure is returned as an error; the caller leaves that file at
	// StateDiscovered rather than failing the run.
	Extract(ctx context.Context, path string, src []byte) (FileExtraction, error)
}
