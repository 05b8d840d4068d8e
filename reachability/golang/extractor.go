// Package golang implements reachability.Extractor for Go source files,
// wrapping go/parser and go/ast directly rather than a tree-sitter grammar —
// nothing parses Go better than the standard library's own frontend. Entry
// points are func main, func TestXxx(*testing.T), and
// exported functions reachable from nowhere else are NOT treated as entry
// points (unlike a library's public API, which a caller elsewhere in the
// dependency graph reaches through its own main/test entry points).
package golang

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/bazbom/bazbom/reachability"
)

// Extractor implements reachability.Extractor for Go.
type Extractor struct{}

func (Extractor) Language() string { return "go" }

func (Extractor) Extensions() []string { return []string{".go"} }

func (Extractor) Extract(ctx context.Context, path string, src []byte) (reachability.FileExtraction, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return reachability.FileExtraction{}, fmt.Errorf("golang: parse %s: %w", path, err)
	}

	var out reachability.FileExtraction
	pkgName := file.Name.Name

	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		pos := fset.Position(fd.Pos())
		recv := receiverName(fd)
		display := fd.Name.Name
		qualifier := pkgName
		if recv != "" {
			qualifier = pkgName + "." + recv
		}
		id := fmt.Sprintf("%s:%s.%s", path, qualifier, fd.Name.Name)

		node := reachability.FunctionNode{
			ID:          id,
			DisplayName: display,
			File:        path,
			Line:        pos.Line,
			Column:      pos.Column,
			Class:       recv,
			IsExported:  fd.Name.IsExported(),
		}
		out.Functions = append(out.Functions, node)

		if fd.Name.Name == "main" && recv == "" && pkgName == "main" {
			out.EntryPoints = append(out.EntryPoints, reachability.EntryPoint{
				File: path, FunctionName: fd.Name.Name, Type: reachability.EntryMain,
			})
		}
		if strings.HasPrefix(fd.Name.Name, "Test") && isTestSignature(fd) {
			out.EntryPoints = append(out.EntryPoints, reachability.EntryPoint{
				File: path, FunctionName: fd.Name.Name, Type: reachability.EntryTest,
			})
		}

		if fd.Body == nil {
			continue
		}
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			callPos := fset.Position(call.Pos())
			expr := calleeExprString(call.Fun)
			if expr == "" {
				return true
			}
			out.Calls = append(out.Calls, reachability.CallEdge{
				Caller:     id,
				CalleeExpr: expr,
				File:       path,
				Line:       callPos.Line,
				Column:     callPos.Column,
			})
			if isDynamicDispatch(expr) {
				out.DynamicDispatch = true
			}
			return true
		})

		ast.Inspect(fd.Body, func(n ast.Node) bool {
			if _, ok := n.(*ast.GoStmt); ok {
				out.Calls = append(out.Calls, reachability.CallEdge{
					Caller: id, IsGoroutineOrTask: true,
				})
			}
			return true
		})
	}

	return out, nil
}

func receiverName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	switch t := fd.Recv.List[0].Type.(type) {
	case *ast.StarExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func isTestSignature(fd *ast.FuncDecl) bool {
	if fd.Type.Params == nil || len(fd.Type.Params.List) != 1 {
		return false
	}
	star, ok := fd.Type.Params.List[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	return sel.Sel.Name == "T" || sel.Sel.Name == "M" || sel.Sel.Name == "B"
}

func calleeExprString(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		if x, ok := e.X.(*ast.Ident); ok {
			return x.Name + "." + e.Sel.Name
		}
		return e.Sel.Name
	default:
		return ""
	}
}

// isDynamicDispatch flags reflect-based dynamic dispatch (reflect.Value.Call,
// MethodByName, FieldByName) alongside plugin.Open.
func isDynamicDispatch(expr string) bool {
	switch {
	case strings.HasSuffix(expr, ".Call"),
		strings.HasSuffix(expr, ".MethodByName"),
		strings.HasSuffix(expr, ".FieldByName"),
		strings.HasSuffix(expr, "plugin.Open"):
		return true
	default:
		return false
	}
}
