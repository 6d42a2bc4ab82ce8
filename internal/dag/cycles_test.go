package dag

import (
	"reflect"
	"testing"
)

func TestGraph_StronglyConnectedComponents(t *testing.T) {
	g := newGraph("A", "B", "C", "D", "E")
	_ = g.AddEdge("A", "B")
	_ = g.AddEdge("B", "A")
	_ = g.AddEdge("B", "C")
	_ = g.AddEdge("C", "D")
	_ = g.AddEdge("D", "E")
	_ = g.AddEdge("E", "C")

	got := g.StronglyConnectedComponents()
	want := [][]string{{"A", "B"}, {"C", "D", "E"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("components = %v, want %v", got, want)
	}
}

func TestGraph_StronglyConnectedComponents_Acyclic(t *testing.T) {
	g := newGraph("A", "B")
	_ = g.AddEdge("A", "B")

	if got := g.StronglyConnectedComponents(); len(got) != 0 {
		t.Errorf("expected no cyclic components, got %v", got)
	}
}

func TestGraph_SimpleCycles_TwoNode(t *testing.T) {
	g := newGraph("X", "Y")
	_ = g.AddEdge("X", "Y")
	_ = g.AddEdge("Y", "X")

	got := g.SimpleCycles(0)
	if !reflect.DeepEqual(got, [][]string{{"X", "Y"}}) {
		t.Errorf("cycles = %v", got)
	}
}

func TestGraph_SimpleCycles_Overlapping(t *testing.T) {
	// A->B->A and A->B->C->A share the A->B edge.
	g := newGraph("A", "B", "C", "D")
	_ = g.AddEdge("A", "B")
	_ = g.AddEdge("B", "A")
	_ = g.AddEdge("B", "C")
	_ = g.AddEdge("C", "A")
	_ = g.AddEdge("C", "D")

	got := g.SimpleCycles(0)
	want := [][]string{{"A", "B"}, {"A", "B", "C"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cycles = %v, want %v", got, want)
	}

	members := map[string]bool{}
	for _, c := range got {
		for _, id := range c {
			members[id] = true
		}
	}
	if members["D"] {
		t.Error("D is not on any cycle")
	}
}

func TestGraph_SimpleCycles_Limit(t *testing.T) {
	g := newGraph("A", "B", "C")
	_ = g.AddEdge("A", "B")
	_ = g.AddEdge("B", "A")
	_ = g.AddEdge("B", "C")
	_ = g.AddEdge("C", "B")

	if got := g.SimpleCycles(1); len(got) != 1 {
		t.Errorf("expected 1 cycle with limit, got %d", len(got))
	}
	if got := g.SimpleCycles(0); len(got) != 2 {
		t.Errorf("expected 2 cycles without limit, got %d", len(got))
	}
}
