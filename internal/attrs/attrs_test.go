package attrs

import (
	"errors"
	"testing"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, comps []graph.ComponentDecl, exts ...graph.ExternalDecl) *graph.Graph {
	t.Helper()
	g, err := graph.Build(graph.Declarations{Components: comps, Externals: exts}, nil)
	require.NoError(t, err)
	return g
}

func TestDisplayScenario(t *testing.T) {
	g := build(t, []graph.ComponentDecl{
		{Name: "core", Libs: []string{"core"}},
		{Name: "opengl", Libs: []string{"opengl"}, SystemLibs: []string{"GL"}, Requires: []string{"core", "glew"}},
		{Name: "display", Libs: []string{"display"}, Requires: []string{"core", "opengl"}},
	}, graph.ExternalDecl{Name: "glew", Version: "2.2.0"})

	got, err := Transitive(g, "display")
	require.NoError(t, err)
	assert.Equal(t, []string{"display", "core", "opengl", "glew"}, got.Libs)
	assert.Equal(t, []string{"GL"}, got.SystemLibs)
	assert.Empty(t, got.Defines)
}

func TestDiamond(t *testing.T) {
	// A -> {B, C}, B -> D, C -> D
	g := build(t, []graph.ComponentDecl{
		{Name: "A", Libs: []string{"a"}, Defines: []string{"HAVE_A"}, Requires: []string{"B", "C"}},
		{Name: "B", Libs: []string{"b"}, Defines: []string{"HAVE_B"}, SystemLibs: []string{"m"}, Requires: []string{"D"}},
		{Name: "C", Libs: []string{"c"}, Defines: []string{"HAVE_C"}, SystemLibs: []string{"dl", "m"}, Requires: []string{"D"}},
		{Name: "D", Libs: []string{"d"}, Defines: []string{"HAVE_D"}, SystemLibs: []string{"pthread"}},
	})

	m := New(g)
	first, err := m.Transitive("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"HAVE_A", "HAVE_B", "HAVE_C", "HAVE_D"}, first.Defines)
	assert.Equal(t, []string{"a", "b", "d", "c"}, first.Libs)
	assert.Equal(t, []string{"m", "pthread", "dl"}, first.SystemLibs)

	// idempotent, and independent of which nodes were queried before
	second, err := m.Transitive("A")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	fresh := New(g)
	_, err = fresh.Transitive("C")
	require.NoError(t, err)
	third, err := fresh.Transitive("A")
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestLinkOrdering(t *testing.T) {
	// A -> {B, C}; B -> E; C -> {E, F}; own libs come first, already emitted
	// names are skipped.
	g := build(t, []graph.ComponentDecl{
		{Name: "A", Libs: []string{"a1", "a2"}, Requires: []string{"B", "C"}},
		{Name: "B", Libs: []string{"b"}, Requires: []string{"E"}},
		{Name: "C", Libs: []string{"c", "a1"}, Requires: []string{"E", "F"}},
		{Name: "E", Libs: []string{"e"}},
		{Name: "F", Libs: []string{"f"}},
	})
	got, err := Transitive(g, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b", "e", "c", "f"}, got.Libs)
}

func TestLeafAndExternalTargets(t *testing.T) {
	g := build(t, []graph.ComponentDecl{
		{Name: "geometry", Libs: []string{"pango_geometry"}, Defines: []string{"HAVE_EIGEN"},
			Requires: []string{"tinyobj", "eigen::eigen"}},
		{Name: "tinyobj", Libs: []string{"tinyobj"}},
	}, graph.ExternalDecl{Name: "eigen", Version: "3.4.0"})

	leaf, err := Transitive(g, "tinyobj")
	require.NoError(t, err)
	assert.Equal(t, []string{"tinyobj"}, leaf.Libs)

	got, err := Transitive(g, "geometry")
	require.NoError(t, err)
	assert.Equal(t, []string{"pango_geometry", "tinyobj", "eigen"}, got.Libs)
	assert.Equal(t, []string{"HAVE_EIGEN"}, got.Defines)
}

func TestUnknownComponent(t *testing.T) {
	g := build(t, []graph.ComponentDecl{{Name: "core", Requires: []string{"glew::glew"}}},
		graph.ExternalDecl{Name: "glew", Version: "2.2.0"})

	for _, name := range []string{"nope", "glew::glew"} {
		_, err := Transitive(g, name)
		var unknown *UnknownComponentError
		require.True(t, errors.As(err, &unknown), "%s: err = %v", name, err)
		assert.Equal(t, name, unknown.Name)
	}
}

func TestResultsAreCopies(t *testing.T) {
	g := build(t, []graph.ComponentDecl{{Name: "core", Libs: []string{"core"}}})
	m := New(g)
	got, err := m.Transitive("core")
	require.NoError(t, err)
	got.Libs[0] = "mutated"
	again, _ := m.Transitive("core")
	assert.Equal(t, []string{"core"}, again.Libs)
}
