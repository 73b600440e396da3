// Package attrs computes the transitive build attributes of components:
// the defines, system libraries and libraries a consumer needs to compile
// and link against a component.
package attrs

import (
	"fmt"
	"slices"
	"sort"

	"github.com/goplus/llrecipe/internal/graph"
)

// Attributes are the merged attributes of a component and everything it
// requires.
type Attributes struct {
	Defines    []string // a set, sorted
	SystemLibs []string // first occurrence wins
	Libs       []string // own libs first, then requirements in declared order
}

// UnknownComponentError reports a query for a component the graph does not
// contain.
type UnknownComponentError struct {
	Name string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component %s", e.Name)
}

// Merger walks a validated graph. Results are memoized per node, so
// querying every component of a graph costs time linear in its size.
type Merger struct {
	g    *graph.Graph
	memo map[string]*closure
}

// closure is the ordered attribute closure of one node.
type closure struct {
	defines    []string
	systemLibs []string
	libs       []string
}

// New returns a Merger over g.
func New(g *graph.Graph) *Merger {
	return &Merger{g: g, memo: make(map[string]*closure)}
}

// Transitive returns the merged attributes of the named component.
func (m *Merger) Transitive(name string) (Attributes, error) {
	if _, ok := m.g.Component(name); !ok {
		return Attributes{}, &UnknownComponentError{Name: name}
	}
	c := m.walk(name)
	defines := slices.Clone(c.defines)
	sort.Strings(defines)
	return Attributes{
		Defines:    defines,
		SystemLibs: slices.Clone(c.systemLibs),
		Libs:       slices.Clone(c.libs),
	}, nil
}

// Transitive is a shorthand for New(g).Transitive(name).
func Transitive(g *graph.Graph, name string) (Attributes, error) {
	return New(g).Transitive(name)
}

// walk computes the closure of a node: its own attributes followed by the
// closures of its requirements in declared order, skipping anything already
// emitted. The graph is acyclic, so the recursion terminates.
func (m *Merger) walk(name string) *closure {
	if c, ok := m.memo[name]; ok {
		return c
	}
	n, _ := m.g.Node(name)
	acc := newAccumulator()
	if e := n.External; e != nil {
		acc.libs.add(e.Target)
	} else {
		comp := n.Component
		acc.defines.add(comp.Defines...)
		acc.systemLibs.add(comp.SystemLibs...)
		acc.libs.add(comp.Libs...)
		for _, dep := range comp.Requires {
			d := m.walk(dep)
			acc.defines.add(d.defines...)
			acc.systemLibs.add(d.systemLibs...)
			acc.libs.add(d.libs...)
		}
	}
	c := &closure{
		defines:    acc.defines.list,
		systemLibs: acc.systemLibs.list,
		libs:       acc.libs.list,
	}
	m.memo[name] = c
	return c
}

type accumulator struct {
	defines, systemLibs, libs orderedSet
}

func newAccumulator() *accumulator {
	return &accumulator{
		defines:    orderedSet{seen: make(map[string]bool)},
		systemLibs: orderedSet{seen: make(map[string]bool)},
		libs:       orderedSet{seen: make(map[string]bool)},
	}
}

type orderedSet struct {
	seen map[string]bool
	list []string
}

func (s *orderedSet) add(vals ...string) {
	for _, v := range vals {
		if !s.seen[v] {
			s.seen[v] = true
			s.list = append(s.list, v)
		}
	}
}
