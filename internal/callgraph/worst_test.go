package callgraph

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lgili/stacklens/internal/su"
)

func addFn(g *Graph, name string, bytes int) {
	g.AddFunction(su.Record{Function: name, File: name + ".c", Line: 1, StackBytes: bytes, Qualifier: "static"})
}

func TestWorstCaseLinearChain(t *testing.T) {
	g := New()
	addFn(g, "entry", 32)
	addFn(g, "leaf", 64)
	g.AddCall("entry", "leaf")

	got := g.WorstCase("entry")
	want := Path{TotalBytes: 96, Chain: []string{"entry", "leaf"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WorstCase mismatch (-want +got):\n%s", diff)
	}
}

func TestWorstCaseMutualRecursion(t *testing.T) {
	g := New()
	addFn(g, "a", 10)
	addFn(g, "b", 20)
	g.AddCall("a", "b")
	g.AddCall("b", "a")

	got := g.WorstCase("a")
	want := Path{TotalBytes: 30, Chain: []string{"a", "b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WorstCase mismatch (-want +got):\n%s", diff)
	}
}

func TestWorstCaseSelfRecursion(t *testing.T) {
	g := New()
	addFn(g, "retry", 8)
	g.AddCall("retry", "retry")

	got := g.WorstCase("retry")
	want := Path{TotalBytes: 8, Chain: []string{"retry"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WorstCase mismatch (-want +got):\n%s", diff)
	}
}

func TestWorstCaseUnknownEntry(t *testing.T) {
	g := New()
	got := g.WorstCase("missing_fn")
	want := Path{TotalBytes: 0, Chain: []string{"missing_fn (unknown)"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WorstCase mismatch (-want +got):\n%s", diff)
	}
}

func TestWorstCaseContinuesThroughUnknown(t *testing.T) {
	// A function without a record still passes the walk through to
	// its callees; it contributes zero bytes but the chain beneath it
	// is not lost.
	g := New()
	addFn(g, "entry", 16)
	addFn(g, "deep", 100)
	g.AddCall("entry", "glue")
	g.AddCall("glue", "deep")

	got := g.WorstCase("entry")
	want := Path{TotalBytes: 116, Chain: []string{"entry", "glue (unknown)", "deep"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WorstCase mismatch (-want +got):\n%s", diff)
	}
}

func TestWorstCasePicksHeaviestBranch(t *testing.T) {
	g := New()
	addFn(g, "a", 10)
	addFn(g, "b", 20)
	addFn(g, "c", 30)
	addFn(g, "d", 40)
	g.AddCall("a", "b")
	g.AddCall("a", "c")
	g.AddCall("b", "d")
	g.AddCall("c", "d")

	got := g.WorstCase("a")
	want := Path{TotalBytes: 80, Chain: []string{"a", "c", "d"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WorstCase mismatch (-want +got):\n%s", diff)
	}
}

func TestWorstCaseTieBreaksOnFirstEdge(t *testing.T) {
	g := New()
	addFn(g, "a", 10)
	addFn(g, "x", 50)
	addFn(g, "y", 50)
	g.AddCall("a", "x")
	g.AddCall("a", "y")

	got := g.WorstCase("a")
	want := Path{TotalBytes: 60, Chain: []string{"a", "x"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WorstCase mismatch (-want +got):\n%s", diff)
	}
}

func TestWorstCaseDeterministic(t *testing.T) {
	g := New()
	names := []string{"e", "f1", "f2", "f3", "f4"}
	for i, n := range names {
		addFn(g, n, (i+1)*8)
	}
	g.AddCall("e", "f1")
	g.AddCall("e", "f2")
	g.AddCall("f1", "f3")
	g.AddCall("f2", "f3")
	g.AddCall("f3", "f4")
	g.AddCall("f4", "e")

	first := g.WorstCase("e")
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, g.WorstCase("e")); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}

func TestWorstCaseAdditivity(t *testing.T) {
	g := New()
	addFn(g, "root", 24)
	addFn(g, "mid", 40)
	addFn(g, "tip", 56)
	g.AddCall("root", "mid")
	g.AddCall("mid", "tip")

	got := g.WorstCase("root")
	sum := 0
	for _, fn := range got.Chain {
		if rec, ok := g.Function(fn); ok {
			sum += rec.StackBytes
		}
	}
	if got.TotalBytes != sum {
		t.Errorf("TotalBytes = %d, sum of chain frames = %d", got.TotalBytes, sum)
	}
}

func TestWorstCaseMonotonicUnderNewEdges(t *testing.T) {
	g := New()
	addFn(g, "a", 10)
	addFn(g, "b", 20)
	addFn(g, "c", 5)
	g.AddCall("a", "b")

	before := g.WorstCase("a").TotalBytes
	g.AddCall("b", "c")
	after := g.WorstCase("a").TotalBytes
	if after < before {
		t.Errorf("total decreased after adding an edge: %d -> %d", before, after)
	}
}
