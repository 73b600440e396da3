package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Build(graph.Declarations{
		Components: []graph.ComponentDecl{
			{Name: "pango_core", Libs: []string{"pango_core"}},
			{Name: "pango_image", Libs: []string{"pango_image"}, Requires: []string{"pango_core"}},
			{Name: "pango_opengl", Libs: []string{"pango_opengl"},
				Defines:    []string{"HAVE_GLEW", "HAVE_EIGEN"},
				SystemLibs: []string{"OpenGL", "GLEW"},
				Requires:   []string{"pango_core", "pango_image", "eigen::eigen", "glew::glew"},
				TargetName: "pangolin::opengl"},
			{Name: "tinyobj", Libs: []string{"tinyobj"}},
		},
		Externals: []graph.ExternalDecl{{Name: "eigen", Version: "3.4.0"}, {Name: "glew", Version: "2.2.0"}},
	}, nil)
	require.NoError(t, err)
	return g
}

func TestNew(t *testing.T) {
	m, err := New(testGraph(t), Info{Package: "pangolin", Version: "0.8"})
	require.NoError(t, err)

	assert.Equal(t, "pangolin", m.FileName)
	require.Len(t, m.Components, 4)
	assert.Equal(t, "pango_core", m.Components[0].Name)

	gl, ok := m.Record("pango_opengl")
	require.True(t, ok)
	assert.Equal(t, []string{"pango_opengl", "pango_core", "pango_image", "eigen", "glew"}, gl.Libs)
	assert.Equal(t, []string{"OpenGL", "GLEW"}, gl.SystemLibs)
	assert.Equal(t, []string{"HAVE_EIGEN", "HAVE_GLEW"}, gl.Defines)
	assert.Equal(t, []string{"pango_core", "pango_image", "eigen::eigen", "glew::glew"}, gl.Requires)

	assert.Equal(t, "pangolin::opengl", m.Targets["pango_opengl"])
	assert.Equal(t, "tinyobj", m.Targets["tinyobj"])

	_, ok = m.Record("eigen::eigen")
	assert.False(t, ok)
}

func TestRecordJSON(t *testing.T) {
	m, err := New(testGraph(t), Info{Package: "pangolin", Version: "0.8"})
	require.NoError(t, err)
	core, _ := m.Record("pango_core")

	data, err := json.Marshal(core)
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"pango_core","libs":["pango_core"],"systemLibs":[],"defines":[],"requires":[]}`,
		string(data))
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	m, err := New(testGraph(t), Info{Package: "pangolin", Version: "0.8", FileName: "Pangolin", Settings: "Linux-x86_64-gcc-Release"})
	require.NoError(t, err)
	require.NoError(t, Write(dir, m))

	got, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = Read(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWritePkgConfig(t *testing.T) {
	root := t.TempDir()
	g := testGraph(t)
	m, err := New(g, Info{Package: "pangolin", Version: "0.8"})
	require.NoError(t, err)
	require.NoError(t, WritePkgConfig(root, g, m))

	entries, err := os.ReadDir(PkgConfigDir(root))
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	data, err := os.ReadFile(filepath.Join(PkgConfigDir(root), "pango_opengl.pc"))
	require.NoError(t, err)
	pc := string(data)
	assert.True(t, strings.HasPrefix(pc, "prefix="+filepath.ToSlash(root)+"\n"))
	assert.Contains(t, pc, "Version: 0.8\n")
	assert.Contains(t, pc, "Requires: pango_core, pango_image\n")
	assert.NotContains(t, pc, "glew,")
	assert.NotContains(t, pc, "eigen")
	assert.Contains(t, pc, "Cflags: -I${includedir} -DHAVE_GLEW -DHAVE_EIGEN\n")
	assert.Contains(t, pc, "Libs: -L${libdir} -lpango_opengl\n")
	assert.Contains(t, pc, "Libs.private: -lOpenGL -lGLEW\n")

	data, err = os.ReadFile(filepath.Join(PkgConfigDir(root), "tinyobj.pc"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Requires:")
	assert.NotContains(t, string(data), "Libs.private:")
}
