// Package layout computes where a component's headers, libraries, sources
// and build outputs live, for consumers building against the source tree
// (editable) and for consumers of the installed package.
package layout

import (
	"os"
	"path/filepath"

	"github.com/goplus/llrecipe/internal/graph"
)

// EditableMarker is the file whose presence in a source root marks it as an
// editable source tree.
const EditableMarker = ".llrecipe-editable"

// Mode selects the path computation rules.
type Mode int

const (
	Editable Mode = iota
	Installed
)

func (m Mode) String() string {
	if m == Editable {
		return "editable"
	}
	return "installed"
}

// DetectMode returns Editable if sourceRoot carries the editable marker and
// Installed otherwise.
func DetectMode(sourceRoot string) Mode {
	if _, err := os.Stat(filepath.Join(sourceRoot, EditableMarker)); err == nil {
		return Editable
	}
	return Installed
}

// Layout is the set of directories of one component.
type Layout struct {
	IncludeDirs   []string
	LibDirs       []string
	SourceRoot    string
	BuildRoot     string // build folder of the current build type
	GeneratorsDir string // where toolchain files are generated
}

// Resolver resolves layouts for one package.
type Resolver struct {
	sourceRoot  string
	buildRoot   string
	packageRoot string
	buildType   string
}

// NewResolver returns a Resolver. buildRoot is the parent of the per build
// type build folders and packageRoot the install prefix.
func NewResolver(sourceRoot, buildRoot, packageRoot, buildType string) *Resolver {
	return &Resolver{
		sourceRoot:  sourceRoot,
		buildRoot:   buildRoot,
		packageRoot: packageRoot,
		buildType:   buildType,
	}
}

// BuildFolder returns <buildRoot>/<build type>.
func (r *Resolver) BuildFolder() string {
	return filepath.Join(r.buildRoot, r.buildType)
}

// GeneratorsDir returns <build folder>/generators, where toolchain files
// are generated.
func (r *Resolver) GeneratorsDir() string {
	return filepath.Join(r.BuildFolder(), "generators")
}

// BuildRoot returns the parent of the per build type build folders.
func (r *Resolver) BuildRoot() string {
	return r.buildRoot
}

// SourceRoot returns the root of the source tree.
func (r *Resolver) SourceRoot() string {
	return r.sourceRoot
}

// PackageRoot returns the install prefix.
func (r *Resolver) PackageRoot() string {
	return r.packageRoot
}

// Resolve returns the layout of c in the given mode.
//
// In editable mode the include dirs are the component's declared source tree
// paths and the single lib dir is the build folder, since consumers link
// against freshly built artifacts. In installed mode both collapse to the
// package's include/ and lib/ and per-component include dirs are ignored.
func (r *Resolver) Resolve(c *graph.Component, mode Mode) Layout {
	l := Layout{
		SourceRoot:    r.sourceRoot,
		BuildRoot:     r.BuildFolder(),
		GeneratorsDir: r.GeneratorsDir(),
	}
	if mode == Installed {
		l.IncludeDirs = []string{filepath.Join(r.packageRoot, "include")}
		l.LibDirs = []string{filepath.Join(r.packageRoot, "lib")}
		return l
	}
	l.IncludeDirs = make([]string, 0, len(c.IncludeDirs))
	for _, dir := range c.IncludeDirs {
		l.IncludeDirs = append(l.IncludeDirs, filepath.Join(r.sourceRoot, filepath.FromSlash(dir)))
	}
	l.LibDirs = []string{r.BuildFolder()}
	return l
}
