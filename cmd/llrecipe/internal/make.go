package internal

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goplus/llrecipe/internal/env"
	"github.com/goplus/llrecipe/internal/layout"
	"github.com/goplus/llrecipe/internal/lifecycle"
	"github.com/goplus/llrecipe/internal/lockedfile"
	"github.com/goplus/llrecipe/internal/manifest"
	"github.com/goplus/llrecipe/internal/source"
	"github.com/goplus/llrecipe/pkgs/buildsys/cmake"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var (
	makeInputs   inputs
	makeDirs     dirs
	makeOutput   string
	makeParallel int
	makeShowLog  bool
)

var makeCmd = &cobra.Command{
	Use:   "make [recipe]",
	Short: "Build and install a recipe",
	Long: `Make fetches and patches the sources of a recipe, configures and builds
every component, installs the artifacts and publishes the package metadata.
An interrupted make resumes from the last completed step.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMake,
}

func init() {
	makeInputs.register(makeCmd)
	makeDirs.register(makeCmd)
	makeCmd.Flags().StringVar(&makeOutput, "output", "", "Output path (directory or .zip file)")
	makeCmd.Flags().IntVarP(&makeParallel, "jobs", "j", runtime.NumCPU(), "Number of parallel build jobs")
	makeCmd.Flags().BoolVar(&makeShowLog, "show-build-log", false, "Show the output of the build tools")
	rootCmd.AddCommand(makeCmd)
}

func runMake(cmd *cobra.Command, args []string) error {
	l, err := makeInputs.load(recipeArg(args))
	if err != nil {
		return err
	}
	res, err := makeDirs.resolver(l.recipe, l.matrix)
	if err != nil {
		return err
	}
	// Resolve output path to absolute before build
	if makeOutput != "" {
		abs, err := filepath.Abs(makeOutput)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		makeOutput = abs
	}

	// Build types share the source root.
	unlock, err := lockedfile.MutexAt(buildLockPath(res)).Lock()
	if err != nil {
		return fmt.Errorf("failed to lock build root: %w", err)
	}
	defer unlock()

	cacheDir, err := env.SourceCacheDir()
	if err != nil {
		return fmt.Errorf("failed to get source cache dir: %w", err)
	}
	driverOpts := []cmake.Option{cmake.WithParallel(makeParallel)}
	if !makeShowLog {
		driverOpts = append(driverOpts, cmake.WithRunner(quietRun))
	}

	mode := layout.DetectMode(res.SourceRoot())
	log.Debugf("make %s %s in %s mode for %s", l.recipe.Name, l.recipe.Version, mode, l.matrix)
	o, err := lifecycle.New(lifecycle.Config{
		Recipe:  l.recipe,
		Layout:  res,
		Mode:    mode,
		Fetcher: source.NewFetcher(cacheDir),
		Driver:  cmake.New(driverOpts...),
		DepRoot: depRoot(l.matrix.BuildType()),
	})
	if err != nil {
		return fmt.Errorf("failed to create build lifecycle: %w", err)
	}
	if state := o.State(); state != lifecycle.Uninitialized {
		log.Debugf("resuming from state %s", state)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := o.Run(ctx, l.graph, l.matrix); err != nil {
		return fmt.Errorf("failed to build %s@%s: %w", l.recipe.Name, l.recipe.Version, err)
	}

	pkgRoot := res.PackageRoot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "installed %s@%s to %s\n", l.recipe.Name, l.recipe.Version, pkgRoot)
	if err := printPkgConfigInfo(out, pkgRoot); err != nil {
		log.Debugf("pkg-config: %v", err)
	}

	if makeOutput != "" {
		if err := outputResult(pkgRoot, makeOutput); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

// buildLockPath returns the lock file serializing builds over the build
// root of res.
func buildLockPath(res *layout.Resolver) string {
	return filepath.Join(res.BuildRoot(), ".lock")
}

// quietRun runs a build tool, keeping its output only to report failures.
func quietRun(ctx context.Context, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w\n%s", err, msg)
		}
		return err
	}
	return nil
}

// printPkgConfigInfo uses pkg-config to print the flags of every component
// published to pkgRoot.
func printPkgConfigInfo(w io.Writer, pkgRoot string) error {
	pkgconfigDir := manifest.PkgConfigDir(pkgRoot)

	entries, err := os.ReadDir(pkgconfigDir)
	if err != nil {
		return err
	}

	// Find all .pc files
	var pkgNames []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".pc") {
			pkgNames = append(pkgNames, strings.TrimSuffix(entry.Name(), ".pc"))
		}
	}
	if len(pkgNames) == 0 {
		return nil
	}

	pkgConfigPath := pkgconfigDir
	if p := os.Getenv("PKG_CONFIG_PATH"); p != "" {
		pkgConfigPath += string(os.PathListSeparator) + p
	}

	for _, pkgName := range pkgNames {
		cmd := exec.Command("pkg-config", "--libs", "--cflags", pkgName)
		cmd.Env = append(os.Environ(), "PKG_CONFIG_PATH="+pkgConfigPath)
		out, err := cmd.Output()
		if err != nil {
			var ee *exec.ExitError
			if errors.As(err, &ee) {
				log.Debugf("pkg-config %s: %v: %s", pkgName, err, strings.TrimSpace(string(ee.Stderr)))
			} else {
				log.Debugf("pkg-config %s: %v", pkgName, err)
			}
			continue
		}
		if result := strings.TrimSpace(string(out)); result != "" {
			fmt.Fprintf(w, "%s: %s\n", pkgName, result)
		}
	}
	return nil
}

// outputResult writes the build output to dest.
// If dest ends with ".zip", creates a zip archive; otherwise copies the directory.
// Symbolic links, such as shared library sonames, are kept as links.
func outputResult(srcDir, dest string) error {
	if strings.HasSuffix(dest, ".zip") {
		return zipDir(srcDir, dest)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return walkOutput(srcDir, func(rel string, info fs.FileInfo, path string) error {
		target := filepath.Join(dest, rel)
		switch {
		case info.IsDir():
			return os.MkdirAll(target, 0o755)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return os.WriteFile(target, data, info.Mode().Perm())
		}
	})
}

// zipDir creates a zip archive at dest from the contents of srcDir.
func zipDir(srcDir, dest string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := zip.NewWriter(f)
	err = walkOutput(srcDir, func(rel string, info fs.FileInfo, path string) error {
		if info.IsDir() {
			return nil
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate
		writer, err := w.CreateHeader(header)
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			_, err = io.WriteString(writer, link)
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(writer, file)
		return err
	})
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// walkOutput calls fn for every entry under root, parents first, without
// following symbolic links.
func walkOutput(root string, fn func(rel string, info fs.FileInfo, path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(rel, info, path)
	})
}
