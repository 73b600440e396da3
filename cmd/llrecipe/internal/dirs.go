package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/llrecipe/internal/env"
	"github.com/goplus/llrecipe/internal/layout"
	"github.com/goplus/llrecipe/internal/recipe"
	"github.com/goplus/llrecipe/internal/settings"
	"github.com/spf13/cobra"
)

// dirs are the flags locating the source, build and package roots.
type dirs struct {
	source string
	build  string
	pkg    string
}

func (d *dirs) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.source, "source-dir", "", "Source root (default <home>/build/<name>/<version>/src)")
	cmd.Flags().StringVar(&d.build, "build-dir", "", "Build root (default <home>/build/<name>/<version>/build, or <source root>/build with --source-dir)")
	cmd.Flags().StringVar(&d.pkg, "package-dir", "", "Install prefix (default <home>/packages/<name>/<version>/<build type>)")
}

// resolver returns the layout resolver of r built with m. Relative flags
// are made absolute since the build tools run in other directories.
func (d *dirs) resolver(r *recipe.Recipe, m *settings.Matrix) (*layout.Resolver, error) {
	source, build, pkg := d.source, d.build, d.pkg
	if source == "" {
		workDir, err := env.WorkDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get work dir: %w", err)
		}
		dir := filepath.Join(workDir, "build", r.Name, r.Version)
		source = filepath.Join(dir, "src")
		if build == "" {
			build = filepath.Join(dir, "build")
		}
	}
	if build == "" {
		build = filepath.Join(source, "build")
	}
	if pkg == "" {
		pkgDir, err := env.PackageDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get package dir: %w", err)
		}
		pkg = filepath.Join(pkgDir, r.Name, r.Version, m.BuildType())
	}
	for _, p := range []*string{&source, &build, &pkg} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, err
		}
		*p = abs
	}
	return layout.NewResolver(source, build, pkg, m.BuildType()), nil
}

// depRoot returns a function locating the install roots of external
// packages built by llrecipe with the same build type.
func depRoot(buildType string) func(pkg, version string) string {
	pkgDir, err := env.PackageDir()
	if err != nil {
		return nil
	}
	return func(pkg, version string) string {
		if version == "" || version == "system" {
			return ""
		}
		dir := filepath.Join(pkgDir, pkg, version, buildType)
		if _, err := os.Stat(dir); err != nil {
			return ""
		}
		return dir
	}
}
