package lifecycle

import (
	"context"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/goplus/llrecipe/internal/settings"
	"github.com/goplus/llrecipe/pkgs/buildsys"
)

// mockFetcher implements Fetcher for unit testing.
type mockFetcher struct {
	materializeFunc func(ctx context.Context, url, checksum string) (string, error)
	applyPatchFunc  func(ctx context.Context, dir, patchFile string) error

	materialized int
	patches      []string
}

func (m *mockFetcher) Materialize(ctx context.Context, url, checksum string) (string, error) {
	m.materialized++
	if m.materializeFunc != nil {
		return m.materializeFunc(ctx, url, checksum)
	}
	return "", nil
}

func (m *mockFetcher) ApplyPatch(ctx context.Context, dir, patchFile string) error {
	m.patches = append(m.patches, patchFile)
	if m.applyPatchFunc != nil {
		return m.applyPatchFunc(ctx, dir, patchFile)
	}
	return nil
}

// mockDriver implements buildsys.Driver for unit testing.
type mockDriver struct {
	configureFunc func(ctx context.Context, m *settings.Matrix, req buildsys.Request) (*buildsys.Toolchain, error)
	compileFunc   func(ctx context.Context, components []*graph.Component, tc *buildsys.Toolchain) (buildsys.ArtifactSet, error)

	requests []buildsys.Request
	compiled [][]string
}

func (m *mockDriver) ConfigureToolchain(ctx context.Context, mat *settings.Matrix, req buildsys.Request) (*buildsys.Toolchain, error) {
	m.requests = append(m.requests, req)
	if m.configureFunc != nil {
		return m.configureFunc(ctx, mat, req)
	}
	return &buildsys.Toolchain{
		BuildType: mat.BuildType(),
		OS:        mat.OS(),
		SourceDir: req.SourceDir,
		BuildDir:  req.BuildDir,
	}, nil
}

func (m *mockDriver) Compile(ctx context.Context, components []*graph.Component, tc *buildsys.Toolchain) (buildsys.ArtifactSet, error) {
	var names []string
	for _, c := range components {
		names = append(names, c.Name)
	}
	m.compiled = append(m.compiled, names)
	if m.compileFunc != nil {
		return m.compileFunc(ctx, components, tc)
	}
	return buildsys.ArtifactSet{}, nil
}
