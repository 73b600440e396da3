// Package lifecycle sequences the build of a recipe: materialize and patch
// the sources, configure the toolchain, build, install, and publish the
// package metadata.
//
// The pipeline is a strictly linear state machine. Invoking a transition
// whose state has already been reached is a no-op, invoking one before its
// predecessor state fails with *InvalidStateError. The reached state is
// kept in a journal in the build folder, so a later run over the same
// build folder resumes where the previous one stopped. A failing
// transition never advances the state.
package lifecycle

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/goplus/llrecipe/internal/layout"
	"github.com/goplus/llrecipe/internal/manifest"
	"github.com/goplus/llrecipe/internal/recipe"
	"github.com/goplus/llrecipe/internal/settings"
	"github.com/goplus/llrecipe/pkgs/buildsys"
	"github.com/qiniu/x/log"
)

// Fetcher materializes sources and patches them.
type Fetcher interface {
	Materialize(ctx context.Context, url, checksum string) (string, error)
	ApplyPatch(ctx context.Context, dir, patchFile string) error
}

// Config configures an Orchestrator.
type Config struct {
	Recipe *recipe.Recipe
	Layout *layout.Resolver
	// Mode is Editable when building straight from a source tree that is
	// already in place; sources are then neither fetched nor patched.
	Mode    layout.Mode
	Fetcher Fetcher
	Driver  buildsys.Driver

	// DepRoot returns the install root of an external package, or "" if it
	// isn't installed locally. It may be nil.
	DepRoot func(pkg, version string) string
}

// Orchestrator drives the build of one recipe in one build folder.
type Orchestrator struct {
	cfg Config
	j   *journal
}

// New returns an Orchestrator resuming from the journal in the build
// folder, if any.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Recipe == nil || cfg.Layout == nil {
		return nil, errors.New("lifecycle: recipe and layout are required")
	}
	j, err := loadJournal(cfg.Layout.BuildFolder())
	if err != nil {
		return nil, err
	}
	if j.State != Uninitialized {
		log.Debugf("lifecycle: resuming at %s", j.State)
	}
	return &Orchestrator{cfg: cfg, j: j}, nil
}

// State returns the reached state.
func (o *Orchestrator) State() State {
	return o.j.State
}

// SourceDir returns the materialized source tree, or "" before
// MaterializeSources.
func (o *Orchestrator) SourceDir() string {
	return o.j.SourceDir
}

// Artifacts returns the library files of each component, or nil before
// Build.
func (o *Orchestrator) Artifacts() buildsys.ArtifactSet {
	return o.j.Artifacts
}

// Run invokes every transition in order.
func (o *Orchestrator) Run(ctx context.Context, g *graph.Graph, m *settings.Matrix) error {
	if err := o.MaterializeSources(ctx); err != nil {
		return err
	}
	if err := o.Configure(ctx, g, m); err != nil {
		return err
	}
	if err := o.Build(ctx); err != nil {
		return err
	}
	if err := o.Install(ctx); err != nil {
		return err
	}
	return o.PublishMetadata(ctx, g)
}

// MaterializeSources fetches the sources of the recipe version, applies its
// patch set in order and moves the result to the source root. Patches are
// applied to a staging copy: if one fails, the copy is discarded and the
// source root is left as it was. A build root inside the source root is
// carried over to the new tree, with its journals and lock files.
//
// In editable mode the source root already holds the sources and is used
// as is.
func (o *Orchestrator) MaterializeSources(ctx context.Context) error {
	if done, err := o.check("MaterializeSources", Uninitialized, SourcesMaterialized); done || err != nil {
		return err
	}
	root := o.cfg.Layout.SourceRoot()
	if o.cfg.Mode == layout.Editable {
		log.Debugf("lifecycle: using editable sources at %s", root)
		return o.advance(SourcesMaterialized, func(j *journal) { j.SourceDir = root })
	}

	src, err := o.cfg.Recipe.Source()
	if err != nil {
		return err
	}
	dir, err := o.cfg.Fetcher.Materialize(ctx, src.URL, src.SHA256)
	if err != nil {
		return err
	}

	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(root)+".staging-")
	if err != nil {
		return err
	}
	if err := copyTree(staging, dir); err != nil {
		os.RemoveAll(staging)
		return err
	}
	for _, p := range o.cfg.Recipe.PatchFiles() {
		if err := o.cfg.Fetcher.ApplyPatch(ctx, staging, p); err != nil {
			os.RemoveAll(staging)
			return err
		}
	}
	if err := keepBuildRoot(staging, root, o.cfg.Layout.BuildRoot()); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.RemoveAll(root); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(staging, root); err != nil {
		os.RemoveAll(staging)
		return err
	}
	return o.advance(SourcesMaterialized, func(j *journal) { j.SourceDir = root })
}

// Configure generates the toolchain for m. The shared and fPIC options map
// to BUILD_SHARED_LIBS and CMAKE_POSITION_INDEPENDENT_CODE when present,
// the recipe's toolchain variables are added as is, and every external
// package with sub-options gets its resolved option set.
//
// Configuring again with a different matrix, different external sub-options
// or changed components regenerates the toolchain and drops what was built
// with the previous one.
func (o *Orchestrator) Configure(ctx context.Context, g *graph.Graph, m *settings.Matrix) error {
	inputs, err := inputsDigest(g, m, o.cfg.Recipe.Toolchain)
	if err != nil {
		return err
	}
	if o.j.State >= Configured && o.j.Inputs != inputs {
		log.Debugf("lifecycle: settings or components changed (%s), reconfiguring", m)
	} else if done, err := o.check("Configure", SourcesMaterialized, Configured); done || err != nil {
		return err
	}

	req := buildsys.Request{
		SourceDir:     o.j.SourceDir,
		BuildDir:      o.cfg.Layout.BuildFolder(),
		GeneratorsDir: o.cfg.Layout.GeneratorsDir(),
		Generator:     o.cfg.Recipe.Toolchain.Generator,
		Variables:     make(map[string]settings.Value),
		Deps:          make(map[string]map[string]settings.Value),
	}
	for k, v := range o.cfg.Recipe.Toolchain.Variables {
		req.Variables[k] = v
	}
	for opt, variable := range map[string]string{
		"shared": "BUILD_SHARED_LIBS",
		"fPIC":   "CMAKE_POSITION_INDEPENDENT_CODE",
	} {
		v, err := m.Get(opt)
		var absent *settings.OptionAbsentError
		if errors.As(err, &absent) {
			continue
		}
		if err != nil {
			return err
		}
		req.Variables[variable] = v
	}
	seen := make(map[string]bool)
	for _, leaf := range g.Externals() {
		if seen[leaf.Package] {
			continue
		}
		seen[leaf.Package] = true
		if len(leaf.Options) > 0 {
			req.Deps[leaf.Package] = leaf.Options
		}
		if o.cfg.DepRoot != nil {
			if root := o.cfg.DepRoot(leaf.Package, leaf.Version); root != "" {
				req.Prefixes = append(req.Prefixes, root)
			}
		}
	}

	tc, err := o.cfg.Driver.ConfigureToolchain(ctx, m, req)
	if err != nil {
		return err
	}
	return o.advance(Configured, func(j *journal) {
		j.Settings = m.String()
		j.Inputs = inputs
		j.Toolchain = tc
		j.Components = g.Components()
		j.Artifacts = nil
	})
}

// Build compiles the components in topological order.
func (o *Orchestrator) Build(ctx context.Context) error {
	if done, err := o.check("Build", Configured, Built); done || err != nil {
		return err
	}
	arts, err := o.cfg.Driver.Compile(ctx, o.j.Components, o.j.Toolchain)
	if err != nil {
		return err
	}
	return o.advance(Built, func(j *journal) { j.Artifacts = arts })
}

// Install copies the headers of every component's source include dirs and
// the built libraries into the installed layout. Previously installed
// headers and libraries are replaced.
func (o *Orchestrator) Install(ctx context.Context) error {
	if done, err := o.check("Install", Built, Installed); done || err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	pkgRoot := o.cfg.Layout.PackageRoot()
	includeDir := filepath.Join(pkgRoot, "include")
	libDir := filepath.Join(pkgRoot, "lib")
	for _, dir := range []string{includeDir, libDir} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	src := layout.NewResolver(o.j.SourceDir, "", "", "")
	for _, c := range o.j.Components {
		for _, dir := range src.Resolve(c, layout.Editable).IncludeDirs {
			if err := copyTree(includeDir, dir); err != nil {
				return err
			}
		}
		for _, file := range o.j.Artifacts[c.Name] {
			if err := installFile(filepath.Join(libDir, filepath.Base(file)), file); err != nil {
				return err
			}
		}
	}
	log.Debugf("lifecycle: installed into %s", pkgRoot)
	return o.advance(Installed, nil)
}

// PublishMetadata writes the package manifest and one pkg-config file per
// component into the package root.
func (o *Orchestrator) PublishMetadata(ctx context.Context, g *graph.Graph) error {
	if done, err := o.check("PublishMetadata", Installed, MetadataPublished); done || err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r := o.cfg.Recipe
	m, err := manifest.New(g, manifest.Info{
		Package:  r.Name,
		Version:  r.Version,
		FileName: r.FileName,
		Settings: o.j.Settings,
	})
	if err != nil {
		return err
	}
	pkgRoot := o.cfg.Layout.PackageRoot()
	if err := manifest.Write(pkgRoot, m); err != nil {
		return err
	}
	if err := manifest.WritePkgConfig(pkgRoot, g, m); err != nil {
		return err
	}
	return o.advance(MetadataPublished, nil)
}

// keepBuildRoot moves buildRoot into staging when it lies inside the
// source root, so replacing the source root leaves it in place.
func keepBuildRoot(staging, root, buildRoot string) error {
	rel, err := filepath.Rel(root, buildRoot)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if _, err := os.Lstat(buildRoot); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	dst := filepath.Join(staging, rel)
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	log.Debugf("lifecycle: keeping build root %s", buildRoot)
	return os.Rename(buildRoot, dst)
}

// check reports whether op's target state is already reached, and fails if
// the required predecessor state is not.
func (o *Orchestrator) check(op string, required, target State) (done bool, err error) {
	if o.j.State >= target {
		log.Debugf("lifecycle: %s: already %s", op, o.j.State)
		return true, nil
	}
	if o.j.State < required {
		return false, &InvalidStateError{Op: op, Required: required, Current: o.j.State}
	}
	return false, nil
}

// advance persists the journal at state to, with update applied. The
// in-memory state only changes once the journal is written.
func (o *Orchestrator) advance(to State, update func(*journal)) error {
	next := *o.j
	if update != nil {
		update(&next)
	}
	next.State = to
	if err := saveJournal(o.cfg.Layout.BuildFolder(), &next); err != nil {
		return err
	}
	o.j = &next
	log.Debugf("lifecycle: reached %s", to)
	return nil
}
