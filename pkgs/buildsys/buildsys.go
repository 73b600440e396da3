// Package buildsys defines what the build lifecycle expects from a
// compiler driver such as CMake.
package buildsys

import (
	"context"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/goplus/llrecipe/internal/settings"
)

// Driver generates a toolchain for a settings matrix and compiles
// components with it.
type Driver interface {
	// ConfigureToolchain writes the toolchain files for m into the
	// generators folder of req and describes them.
	ConfigureToolchain(ctx context.Context, m *settings.Matrix, req Request) (*Toolchain, error)

	// Compile builds components, given in topological order, and reports
	// the library files produced for each.
	Compile(ctx context.Context, components []*graph.Component, tc *Toolchain) (ArtifactSet, error)
}

// Request holds the options generated for a build.
type Request struct {
	SourceDir     string
	BuildDir      string
	GeneratorsDir string
	Generator     string

	// Variables are passed to the build system as cache variables.
	Variables map[string]settings.Value
	// Deps maps external package names to their resolved sub-options.
	Deps map[string]map[string]settings.Value
	// Prefixes are install roots of external packages to search.
	Prefixes []string
}

// Toolchain describes a configured toolchain. It is persisted between runs.
type Toolchain struct {
	File      string   `json:"file"`
	Generator string   `json:"generator,omitempty"`
	BuildType string   `json:"buildType"`
	OS        string   `json:"os"`
	SourceDir string   `json:"sourceDir"`
	BuildDir  string   `json:"buildDir"`
	Prefixes  []string `json:"prefixes,omitempty"`
}

// ArtifactSet maps component names to the library files built for them.
type ArtifactSet map[string][]string
