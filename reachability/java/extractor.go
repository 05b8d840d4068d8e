// Package java implements reachability.Extractor for Java source, using the
// same regexp-based approximation as reachability/python and
// reachability/javascript since no Java parser is available in Go.
// Recognizes method declarations, annotations
// (@Test, Spring's @GetMapping/@PostMapping/@RequestMapping family), public
// static void main, and reflection-based dynamic dispatch
// (Class.forName, Method.invoke).
package java

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bazbom/bazbom/reachability"
)

// Extractor implements reachability.Extractor for Java.
type Extractor struct{}

func (Extractor) Language() string { return "java" }

func (Extractor) Extensions() []string { return []string{".java"} }

var (
	classRe     = regexp.MustCompile(`\b(?:class|interface|enum)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	methodRe    = regexp.MustCompile(`(?:public|private|protected)\s+(?:static\s+)?(?:final\s+)?(?:<[^>]*>\s*)?[A-Za-z_$][A-Za-z0-9_$<>\[\],. ]*\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\([^;{]*\)\s*(?:throws[^{]*)?\{`)
	mainRe      = regexp.MustCompile(`public\s+static\s+void\s+main\s*\(`)
	annotationRe = regexp.MustCompile(`^\s*@([A-Za-z_$][A-Za-z0-9_$.]*)`)
	callRe      = regexp.MustCompile(`([A-Za-z_$][A-Za-z0-9_$.]*)\s*\(`)
	dynamicWords = []string{"Class.forName(", ".invoke(", "Method.invoke", "newInstance("}
)

func (Extractor) Extract(ctx context.Context, path string, src []byte) (reachability.FileExtraction, error) {
	var out reachability.FileExtraction

	braceDepth := 0
	type classFrame struct {
		depth int
		name  string
	}
	var classStack []classFrame
	type methodFrame struct {
		depth int
		id    string
	}
	var methodStack []methodFrame
	var pendingAnnotations []string

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}

		if m := annotationRe.FindStringSubmatch(trimmed); m != nil {
			pendingAnnotations = append(pendingAnnotations, m[1])
		}

		if m := classRe.FindStringSubmatch(trimmed); m != nil {
			classStack = append(classStack, classFrame{depth: braceDepth, name: m[1]})
		}

		currentClass := ""
		if len(classStack) > 0 {
			currentClass = classStack[len(classStack)-1].name
		}

		if mainRe.MatchString(trimmed) {
			out.EntryPoints = append(out.EntryPoints, reachability.EntryPoint{
				File: path, FunctionName: "main", Type: reachability.EntryMain,
			})
		}

		if m := methodRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			qualifier := path + ":"
			if currentClass != "" {
				qualifier += currentClass + "." + name
			} else {
				qualifier += name
			}
			annotations := pendingAnnotations
			pendingAnnotations = nil

			out.Functions = append(out.Functions, reachability.FunctionNode{
				ID:          qualifier,
				DisplayName: name,
				File:        path,
				Line:        lineNo,
				Class:       currentClass,
				Decorators:  annotations,
				IsExported:  strings.Contains(line, "public"),
			})
			methodStack = append(methodStack, methodFrame{depth: braceDepth, id: qualifier})

			if ep, ok := entryPointFor(path, name, annotations); ok {
				out.EntryPoints = append(out.EntryPoints, ep)
			}
		} else if !strings.HasPrefix(trimmed, "@") {
			pendingAnnotations = nil
		}

		for _, w := range dynamicWords {
			if strings.Contains(trimmed, w) {
				out.DynamicDispatch = true
			}
		}

		if len(methodStack) > 0 {
			caller := methodStack[len(methodStack)-1].id
			for _, m := range callRe.FindAllStringSubmatch(trimmed, -1) {
				out.Calls = append(out.Calls, reachability.CallEdge{
					Caller:     caller,
					CalleeExpr: m[1],
					File:       path,
					Line:       lineNo,
				})
			}
		}

		braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
		for len(methodStack) > 0 && braceDepth <= methodStack[len(methodStack)-1].depth {
			methodStack = methodStack[:len(methodStack)-1]
		}
		for len(classStack) > 0 && braceDepth <= classStack[len(classStack)-1].depth {
			classStack = classStack[:len(classStack)-1]
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("java: scan %s: %w", path, err)
	}
	return out, nil
}

func entryPointFor(path, name string, annotations []string) (reachability.EntryPoint, bool) {
	for _, a := range annotations {
		switch {
		case a == "Test", strings.HasSuffix(a, ".Test"):
			return reachability.EntryPoint{File: path, FunctionName: name, Type: reachability.EntryTest}, true
		case strings.Contains(a, "Mapping"):
			return reachability.EntryPoint{
				File: path, FunctionName: name, Type: reachability.EntryRoute,
				Metadata: map[string]string{"annotation": a},
			}, true
		case a == "Scheduled", a == "Async", a == "KafkaListener", a == "RabbitListener":
			return reachability.EntryPoint{
				File: path, FunctionName: name, Type: reachability.EntryTask,
				Metadata: map[string]string{"annotation": a},
			}, true
		}
	}
	return reachability.EntryPoint{}, false
}
