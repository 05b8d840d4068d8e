// Package python implements reachability.Extractor for Python source using
// a regexp-based approximation of tree-sitter's query API — no Python
// parser is available in Go, so this extractor trades precision for
// breadth the way a grep-based scanner would, documented in DESIGN.md as
// the justified stdlib fallback for this language. It recognizes
// def/async def/class statements by indentation, Flask/FastAPI/Click/Celery
// decorators, unittest/pytest test naming, and Python's dynamic-dispatch
// builtins.
package python

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bazbom/bazbom/reachability"
)

// Extractor implements reachability.Extractor for Python.
type Extractor struct{}

func (Extractor) Language() string { return "python" }

func (Extractor) Extensions() []string { return []string{".py"} }

var (
	defLine      = regexp.MustCompile(`^(\s*)(async\s+def|def)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	classLine    = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_][A-Za-z0-9_]*)\s*[(:]`)
	decoratorRe  = regexp.MustCompile(`^(\s*)@([A-Za-z_][A-Za-z0-9_.]*)`)
	callRe       = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.]*)\s*\(`)
	mainGuardRe  = regexp.MustCompile(`^if\s+__name__\s*==\s*['"]__main__['"]\s*:`)
	dynamicWords = []string{"exec(", "eval(", "getattr(", "setattr(", "__import__(", "importlib.import_module("}
)

func (Extractor) Extract(ctx context.Context, path string, src []byte) (reachability.FileExtraction, error) {
	var out reachability.FileExtraction

	type frame struct {
		indent int
		id     string
		class  string
	}
	var stack []frame
	var pendingDecorators []string
	classStack := []struct {
		indent int
		name   string
	}{}

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))

		for len(classStack) > 0 && indent <= classStack[len(classStack)-1].indent {
			classStack = classStack[:len(classStack)-1]
		}
		for len(stack) > 0 && indent <= stack[len(stack)-1].indent {
			stack = stack[:len(stack)-1]
		}

		if m := decoratorRe.FindStringSubmatch(trimmed); m != nil {
			pendingDecorators = append(pendingDecorators, m[2])
			continue
		}

		if m := classLine.FindStringSubmatch(trimmed); m != nil {
			classStack = append(classStack, struct {
				indent int
				name   string
			}{indent, m[2]})
			pendingDecorators = nil
			continue
		}

		if m := defLine.FindStringSubmatch(trimmed); m != nil {
			name := m[3]
			isAsync := strings.HasPrefix(strings.TrimSpace(m[2]), "async")
			class := ""
			if len(classStack) > 0 {
				class = classStack[len(classStack)-1].name
			}
			qualifier := path
			if class != "" {
				qualifier += ":" + class + "." + name
			} else {
				qualifier += ":" + name
			}
			decorators := pendingDecorators
			pendingDecorators = nil

			out.Functions = append(out.Functions, reachability.FunctionNode{
				ID:          qualifier,
				DisplayName: name,
				File:        path,
				Line:        lineNo,
				Column:      indent + 1,
				Class:       class,
				IsAsync:     isAsync,
				Decorators:  decorators,
				IsExported:  !strings.HasPrefix(name, "_"),
			})
			stack = append(stack, frame{indent: indent, id: qualifier, class: class})

			if ep, ok := entryPointFor(path, name, decorators); ok {
				out.EntryPoints = append(out.EntryPoints, ep)
			}
			continue
		}

		pendingDecorators = nil

		if mainGuardRe.MatchString(strings.TrimSpace(trimmed)) {
			out.EntryPoints = append(out.EntryPoints, reachability.EntryPoint{
				File: path, FunctionName: "__main__", Type: reachability.EntryMain,
			})
			continue
		}

		for _, w := range dynamicWords {
			if strings.Contains(trimmed, w) {
				out.DynamicDispatch = true
			}
		}

		if len(stack) == 0 {
			continue
		}
		caller := stack[len(stack)-1].id
		for _, m := range callRe.FindAllStringSubmatch(trimmed, -1) {
			out.Calls = append(out.Calls, reachability.CallEdge{
				Caller:            caller,
				CalleeExpr:        m[1],
				File:              path,
				Line:              lineNo,
				IsGoroutineOrTask: strings.Contains(trimmed, ".delay(") || strings.Contains(trimmed, ".apply_async("),
			})
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("python: scan %s: %w", path, err)
	}
	return out, nil
}

// entryPointFor recognizes pytest/unittest test functions, Flask/FastAPI
// routes, Click commands, and Celery tasks by name or decorator.
func entryPointFor(path, name string, decorators []string) (reachability.EntryPoint, bool) {
	if strings.HasPrefix(name, "test_") || strings.HasPrefix(name, "Test") {
		return reachability.EntryPoint{File: path, FunctionName: name, Type: reachability.EntryTest}, true
	}
	for _, d := range decorators {
		switch {
		case strings.HasSuffix(d, ".route"), strings.HasSuffix(d, ".get"), strings.HasSuffix(d, ".post"),
			strings.HasSuffix(d, ".put"), strings.HasSuffix(d, ".delete"), strings.HasSuffix(d, ".patch"):
			return reachability.EntryPoint{
				File: path, FunctionName: name, Type: reachability.EntryRoute,
				Metadata: map[string]string{"decorator": d},
			}, true
		case strings.HasSuffix(d, ".task"), strings.Contains(d, "shared_task"):
			return reachability.EntryPoint{
				File: path, FunctionName: name, Type: reachability.EntryTask,
				Metadata: map[string]string{"decorator": d},
			}, true
		case strings.HasSuffix(d, ".command"):
			return reachability.EntryPoint{
				File: path, FunctionName: name, Type: reachability.EntryExplicit,
				Metadata: map[string]string{"decorator": d},
			}, true
		}
	}
	return reachability.EntryPoint{}, false
}
