package javascript

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/bazbom/bazbom/reachability"
)

const sampleSource = `const express = require('express')
const app = express()

function helper() {
  return 1
}

const arrowHelper = (x) => {
  return x + 1
}

class Service {
  process() {
    helper()
  }
}

app.get('/users', function listUsers() {
  helper()
})

describe('helper', () => {
  it('works', () => {
    helper()
  })
})
`

func TestExtractFunctionKinds(t *testing.T) {
	e := Extractor{}
	out, err := e.Extract(context.Background(), "app.js", []byte(sampleSource))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, fn := range out.Functions {
		names = append(names, fn.DisplayName)
	}
	want := []string{"helper", "arrowHelper", "process", "listUsers"}
	if diff := cmp.Diff(want, names, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("function names mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMethodQualifiedWithClass(t *testing.T) {
	e := Extractor{}
	out, err := e.Extract(context.Background(), "app.js", []byte(sampleSource))
	if err != nil {
		t.Fatal(err)
	}
	for _, fn := range out.Functions {
		if fn.DisplayName == "process" && fn.Class != "Service" {
			t.Errorf("expected process's Class to be Service, got %q", fn.Class)
		}
	}
}

func TestExtractExpressRouteEntryPoint(t *testing.T) {
	e := Extractor{}
	out, err := e.Extract(context.Background(), "app.js", []byte(sampleSource))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, ep := range out.EntryPoints {
		if ep.Type == reachability.EntryRoute && ep.Metadata["path"] == "/users" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected app.get('/users', ...) to register a route entry point")
	}
}

func TestExtractTestBlockEntryPoint(t *testing.T) {
	e := Extractor{}
	out, err := e.Extract(context.Background(), "app.js", []byte(sampleSource))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, ep := range out.EntryPoints {
		if ep.Type == reachability.EntryTest {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a describe(/it( block to register a test entry point")
	}
}

func TestExtractRequireTriggersDynamicDispatch(t *testing.T) {
	e := Extractor{}
	out, err := e.Extract(context.Background(), "app.js", []byte(sampleSource))
	if err != nil {
		t.Fatal(err)
	}
	if !out.DynamicDispatch {
		t.Fatal("expected require( to set DynamicDispatch")
	}
}

func TestExtractNoDynamicDispatchInPlainCode(t *testing.T) {
	e := Extractor{}
	out, err := e.Extract(context.Background(), "plain.js", []byte("function foo() {\n  bar()\n}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if out.DynamicDispatch {
		t.Fatal("plain code should not trigger dynamic dispatch")
	}
}

func TestPipelineAnalyzeEndToEnd(t *testing.T) {
	fsys := fstest.MapFS{"app.js": &fstest.MapFile{Data: []byte(sampleSource)}}
	p := &reachability.Pipeline{Extractor: Extractor{}}
	res, err := p.Analyze(context.Background(), fsys, ".")
	if err != nil {
		t.Fatal(err)
	}
	if !res.DynamicDispatch {
		t.Fatal("expected dynamic dispatch escalation to have fired")
	}
}
