// Package graph builds and validates the dependency graph of a recipe's
// components and the external packages they require.
//
// Construction is declare-then-validate: Build takes the full set of
// declarations and either returns a validated, read-only Graph or an error.
// There is no incremental builder.
package graph

import (
	"slices"
	"strings"

	"github.com/goplus/llrecipe/internal/settings"
)

// ComponentDecl is a component as declared by a recipe.
type ComponentDecl struct {
	Name       string
	Libs       []string
	Defines    []string
	SystemLibs []string
	// OSSystemLibs holds extra system libraries keyed by os name.
	OSSystemLibs map[string][]string
	Requires     []string
	IncludeDirs  []string
	// TargetName is the name build systems know the component by; it
	// defaults to Name.
	TargetName string
}

// ExternalDecl is an external package the recipe requires.
type ExternalDecl struct {
	Name    string
	Version string
}

// Declarations is the input of Build.
type Declarations struct {
	Components []ComponentDecl
	Externals  []ExternalDecl
}

// Component is a validated component node.
type Component struct {
	Name        string
	Libs        []string
	Defines     []string
	SystemLibs  []string
	Requires    []string
	IncludeDirs []string
	TargetName  string
}

// ExternalLeaf is a terminal node standing for a target of an external
// package, for example "eigen::eigen".
type ExternalLeaf struct {
	Ref     string
	Package string
	Target  string
	Version string
	Options map[string]settings.Value
}

// Node is a graph vertex. Exactly one of Component and External is set.
type Node struct {
	Component *Component
	External  *ExternalLeaf
}

// Name returns the name edges use to reference n.
func (n *Node) Name() string {
	if n.Component != nil {
		return n.Component.Name
	}
	return n.External.Ref
}

// Graph is a validated, acyclic dependency graph. It is safe for concurrent
// reads.
type Graph struct {
	nodes map[string]*Node
	decl  []string // declaration order: components, then externals by first use
	topo  []string
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Component returns the component with the given name.
func (g *Graph) Component(name string) (*Component, bool) {
	n, ok := g.nodes[name]
	if !ok || n.Component == nil {
		return nil, false
	}
	return n.Component, true
}

// Requires returns the direct requirements of a node in declared order.
// External leaves have none.
func (g *Graph) Requires(name string) []string {
	n, ok := g.nodes[name]
	if !ok || n.Component == nil {
		return nil
	}
	return slices.Clone(n.Component.Requires)
}

// Order returns every node name in topological order: a node always comes
// after everything it requires.
func (g *Graph) Order() []string {
	return slices.Clone(g.topo)
}

// Components returns the components in topological order.
func (g *Graph) Components() []*Component {
	ret := make([]*Component, 0, len(g.topo))
	for _, name := range g.topo {
		if c := g.nodes[name].Component; c != nil {
			ret = append(ret, c)
		}
	}
	return ret
}

// Externals returns the external leaves in first-use order.
func (g *Graph) Externals() []*ExternalLeaf {
	var ret []*ExternalLeaf
	for _, name := range g.decl {
		if e := g.nodes[name].External; e != nil {
			ret = append(ret, e)
		}
	}
	return ret
}

// splitRef splits an external reference "pkg::target" into its package and
// target. A bare "pkg" targets the package of the same name.
func splitRef(ref string) (pkg, target string) {
	if pkg, target, ok := strings.Cut(ref, "::"); ok {
		return pkg, target
	}
	return ref, ref
}
