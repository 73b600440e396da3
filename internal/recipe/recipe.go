// Package recipe loads recipe and profile files.
//
// A recipe declares a multi-component native package: its options, the
// external packages it requires, where its sources come from, the patches
// applied to them, toolchain variables and its components. Recipes and
// profiles are HCL files; see testdata/pangolin/recipe.hcl for a complete
// example.
package recipe

import (
	"fmt"
	"path/filepath"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/goplus/llrecipe/internal/settings"
	"github.com/goplus/llrecipe/internal/versions"
)

// DefaultFile is the recipe file name looked up in a directory.
const DefaultFile = "recipe.hcl"

// Recipe is a loaded recipe.
type Recipe struct {
	Name        string
	Version     string
	License     string
	URL         string
	Description string
	// FileName is the name build systems look the package up by; it
	// defaults to Name.
	FileName string

	Options    []settings.OptionDecl
	Requires   []Requirement
	Sources    []Source
	Patches    []PatchSet
	Toolchain  Toolchain
	Components []graph.ComponentDecl

	// Dir is the directory of the recipe file. Patch files are relative to
	// it.
	Dir string
}

// Requirement is an external package the recipe depends on.
type Requirement struct {
	Name    string
	Version string
	// Options are the default sub-options of the package, overridable with
	// "<name>.<option>" keys.
	Options map[string]settings.Value
}

// Source locates the sources of one version.
type Source struct {
	Version string
	URL     string
	SHA256  string
}

// PatchSet is an ordered list of patch files applying to every version
// from FromVersion up to the next patch set.
type PatchSet struct {
	FromVersion string
	Files       []string
}

// Toolchain holds the generator and the extra variables passed to the
// build system.
type Toolchain struct {
	Generator string
	Variables map[string]settings.Value
}

// Schema returns the option schema settings are validated against.
func (r *Recipe) Schema() settings.Schema {
	s := settings.Schema{
		Options:    r.Options,
		SubOptions: make(map[string]map[string]settings.Value, len(r.Requires)),
	}
	for _, req := range r.Requires {
		sub := make(map[string]settings.Value, len(req.Options))
		for k, v := range req.Options {
			sub[k] = v
		}
		s.SubOptions[req.Name] = sub
	}
	return s
}

// Declarations returns the graph declarations of the recipe.
func (r *Recipe) Declarations() graph.Declarations {
	d := graph.Declarations{Components: r.Components}
	for _, req := range r.Requires {
		d.Externals = append(d.Externals, graph.ExternalDecl{Name: req.Name, Version: req.Version})
	}
	return d
}

// Source returns the source entry of the recipe version.
func (r *Recipe) Source() (Source, error) {
	for _, s := range r.Sources {
		if versions.Compare(s.Version, r.Version) == 0 {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("recipe %s: no source for version %s", r.Name, r.Version)
}

// PatchFiles returns the patch files for the recipe version, in application
// order. The patch set used is the one with the greatest from-version not
// above the recipe version.
func (r *Recipe) PatchFiles() []string {
	froms := make([]string, len(r.Patches))
	for i, p := range r.Patches {
		froms[i] = p.FromVersion
	}
	from, ok := versions.Select(froms, r.Version)
	if !ok {
		return nil
	}
	for _, p := range r.Patches {
		if p.FromVersion != from {
			continue
		}
		files := make([]string, len(p.Files))
		for i, f := range p.Files {
			files[i] = filepath.Join(r.Dir, filepath.FromSlash(f))
		}
		return files
	}
	return nil
}

// Requirement returns the requirement with the given package name.
func (r *Recipe) Requirement(name string) (Requirement, bool) {
	for _, req := range r.Requires {
		if req.Name == name {
			return req, true
		}
	}
	return Requirement{}, false
}
