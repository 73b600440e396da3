package graph

import (
	"slices"
	"strings"

	"github.com/goplus/llrecipe/internal/settings"
)

// Build instantiates one node per component declaration and one external
// leaf per distinct external reference, links the requires edges and
// validates the result: the graph must be acyclic and every edge target must
// exist. The returned Graph carries a topological order in which ties are
// broken by declaration order.
//
// m resolves settings-dependent attributes (per-os system libraries and the
// sub-options of external packages); it may be nil.
func Build(decls Declarations, m *settings.Matrix) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node)}

	for _, d := range decls.Components {
		if d.Name == "" || strings.Contains(d.Name, "::") {
			return nil, &GraphError{Invalid: d.Name}
		}
		if _, dup := g.nodes[d.Name]; dup {
			return nil, &GraphError{Duplicate: d.Name}
		}
		g.nodes[d.Name] = &Node{Component: newComponent(d, m)}
		g.decl = append(g.decl, d.Name)
	}

	externals := make(map[string]ExternalDecl, len(decls.Externals))
	for _, e := range decls.Externals {
		if e.Name == "" {
			return nil, &GraphError{Invalid: e.Name}
		}
		if _, dup := externals[e.Name]; dup {
			return nil, &GraphError{Duplicate: e.Name}
		}
		externals[e.Name] = e
	}

	// Requirements naming neither a component nor a declared package are left
	// dangling here and reported by the reachability check.
	for _, name := range g.decl[:len(decls.Components)] {
		for _, ref := range g.nodes[name].Component.Requires {
			if _, ok := g.nodes[ref]; ok {
				continue
			}
			pkg, target := splitRef(ref)
			e, ok := externals[pkg]
			if !ok || target == "" {
				continue
			}
			leaf := &ExternalLeaf{
				Ref:     ref,
				Package: pkg,
				Target:  target,
				Version: e.Version,
			}
			if m != nil {
				leaf.Options = m.SubOptions(pkg)
			}
			g.nodes[ref] = &Node{External: leaf}
			g.decl = append(g.decl, ref)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &GraphError{Cycle: cycle}
	}
	for _, name := range g.decl {
		c := g.nodes[name].Component
		if c == nil {
			continue
		}
		for _, ref := range c.Requires {
			if _, ok := g.nodes[ref]; !ok {
				return nil, &GraphError{Missing: ref, Referrer: name}
			}
		}
	}
	g.topo = g.topoSort()
	return g, nil
}

func newComponent(d ComponentDecl, m *settings.Matrix) *Component {
	c := &Component{
		Name:        d.Name,
		Libs:        dedup(d.Libs),
		Defines:     dedup(d.Defines),
		SystemLibs:  slices.Clone(d.SystemLibs),
		Requires:    dedup(d.Requires),
		IncludeDirs: slices.Clone(d.IncludeDirs),
		TargetName:  d.TargetName,
	}
	if c.TargetName == "" {
		c.TargetName = d.Name
	}
	if m != nil {
		c.SystemLibs = append(c.SystemLibs, d.OSSystemLibs[m.OS()]...)
	}
	c.SystemLibs = dedup(c.SystemLibs)
	return c
}

// findCycle runs a depth-first traversal with a recursion-stack marker and
// returns the first cycle met, closed by repeating its first node, e.g.
// [a b c a]. Edges to unknown nodes are skipped.
func (g *Graph) findCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = onStack
		stack = append(stack, name)
		if c := g.nodes[name].Component; c != nil {
			for _, dep := range c.Requires {
				if _, ok := g.nodes[dep]; !ok {
					continue
				}
				switch state[dep] {
				case onStack:
					i := slices.Index(stack, dep)
					cycle := slices.Clone(stack[i:])
					return append(cycle, dep)
				case unvisited:
					if cycle := visit(dep); cycle != nil {
						return cycle
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, name := range g.decl {
		if state[name] == unvisited {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// topoSort orders nodes so that requirements come first. Among the nodes
// whose requirements are all placed, the earliest declared goes next.
func (g *Graph) topoSort() []string {
	index := make(map[string]int, len(g.decl))
	for i, name := range g.decl {
		index[name] = i
	}
	pending := make(map[string]int, len(g.decl))
	dependents := make(map[string][]string)
	for _, name := range g.decl {
		c := g.nodes[name].Component
		if c == nil {
			continue
		}
		pending[name] = len(c.Requires)
		for _, dep := range c.Requires {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []int
	for i, name := range g.decl {
		if pending[name] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(g.decl))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		name := g.decl[next]
		order = append(order, name)
		for _, d := range dependents[name] {
			pending[d]--
			if pending[d] == 0 {
				i := index[d]
				pos, _ := slices.BinarySearch(ready, i)
				ready = slices.Insert(ready, pos, i)
			}
		}
	}
	return order
}

// dedup returns s without repeated entries, keeping the first occurrence.
func dedup(s []string) []string {
	seen := make(map[string]bool, len(s))
	ret := make([]string, 0, len(s))
	for _, v := range s {
		if seen[v] {
			continue
		}
		seen[v] = true
		ret = append(ret, v)
	}
	return ret
}
