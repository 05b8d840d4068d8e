// Package javascript implements reachability.Extractor for JavaScript and
// TypeScript using the same regexp-based approximation python/extractor.go
// uses, for the same reason: no JS/TS parser is available in Go.
// Recognizes function declarations, arrow-function
// assignments, class methods, Express/Koa-style route registration, and
// require/dynamic-import as the dynamic-dispatch signal.
package javascript

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bazbom/bazbom/reachability"
)

// Extractor implements reachability.Extractor for JavaScript/TypeScript.
type Extractor struct{}

func (Extractor) Language() string { return "javascript" }

func (Extractor) Extensions() []string { return []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"} }

var (
	funcDeclRe  = regexp.MustCompile(`\b(async\s+)?function\s*\*?\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
	arrowFnRe   = regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(async\s*)?\(?[^=]*\)?\s*=>`)
	methodRe    = regexp.MustCompile(`^\s*(async\s+)?(?:static\s+)?([A-Za-z_$][A-Za-z0-9_$]*)\s*\([^)]*\)\s*\{`)
	classRe     = regexp.MustCompile(`\bclass\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	routeRe     = regexp.MustCompile(`\b([A-Za-z_$][A-Za-z0-9_$.]*)\.(get|post|put|delete|patch|use|all)\s*\(\s*['"\x60]([^'"\x60]*)['"\x60]`)
	callRe      = regexp.MustCompile(`([A-Za-z_$][A-Za-z0-9_$.]*)\s*\(`)
	dynamicWords = []string{"eval(", "new Function(", "require(", "import(", "Reflect.get", "Reflect.apply"}
)

func (Extractor) Extract(ctx context.Context, path string, src []byte) (reachability.FileExtraction, error) {
	var out reachability.FileExtraction

	braceDepth := 0
	type frame struct {
		depth int
		id    string
	}
	var stack []frame
	currentClass := ""
	classDepth := -1

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}

		if classDepth >= 0 && braceDepth <= classDepth {
			currentClass = ""
			classDepth = -1
		}
		if m := classRe.FindStringSubmatch(trimmed); m != nil {
			currentClass = m[1]
			classDepth = braceDepth
		}

		var name string
		var isAsync bool
		switch {
		case funcDeclRe.MatchString(trimmed):
			m := funcDeclRe.FindStringSubmatch(trimmed)
			name, isAsync = m[2], m[1] != ""
		case arrowFnRe.MatchString(trimmed):
			m := arrowFnRe.FindStringSubmatch(trimmed)
			name, isAsync = m[1], m[2] != ""
		case currentClass != "" && methodRe.MatchString(line):
			m := methodRe.FindStringSubmatch(line)
			if m[2] != "if" && m[2] != "for" && m[2] != "while" && m[2] != "switch" && m[2] != "catch" {
				name, isAsync = m[2], m[1] != ""
			}
		}

		if name != "" {
			qualifier := path + ":"
			if currentClass != "" {
				qualifier += currentClass + "." + name
			} else {
				qualifier += name
			}
			out.Functions = append(out.Functions, reachability.FunctionNode{
				ID:          qualifier,
				DisplayName: name,
				File:        path,
				Line:        lineNo,
				Class:       currentClass,
				IsAsync:     isAsync,
				IsExported:  strings.Contains(trimmed, "export"),
			})
			stack = append(stack, frame{depth: braceDepth, id: qualifier})
		}

		if m := routeRe.FindStringSubmatch(trimmed); m != nil {
			out.EntryPoints = append(out.EntryPoints, reachability.EntryPoint{
				File: path, FunctionName: m[1] + "." + m[2], Type: reachability.EntryRoute,
				Metadata: map[string]string{"method": m[2], "path": m[3]},
			})
		}
		if strings.HasPrefix(trimmed, "describe(") || strings.HasPrefix(trimmed, "it(") || strings.HasPrefix(trimmed, "test(") {
			out.EntryPoints = append(out.EntryPoints, reachability.EntryPoint{
				File: path, FunctionName: trimmed, Type: reachability.EntryTest,
			})
		}

		for _, w := range dynamicWords {
			if strings.Contains(trimmed, w) {
				out.DynamicDispatch = true
			}
		}

		if len(stack) > 0 {
			caller := stack[len(stack)-1].id
			for _, m := range callRe.FindAllStringSubmatch(trimmed, -1) {
				out.Calls = append(out.Calls, reachability.CallEdge{
					Caller:            caller,
					CalleeExpr:        m[1],
					File:              path,
					Line:              lineNo,
					IsGoroutineOrTask: strings.Contains(trimmed, "setTimeout(") || strings.Contains(trimmed, "queueMicrotask("),
				})
			}
		}

		braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
		for len(stack) > 0 && braceDepth <= stack[len(stack)-1].depth {
			stack = stack[:len(stack)-1]
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("javascript: scan %s: %w", path, err)
	}
	return out, nil
}
