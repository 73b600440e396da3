// Package cmake is the CMake compiler driver.
package cmake

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/goplus/llrecipe/internal/settings"
	"github.com/goplus/llrecipe/pkgs/buildsys"
	"github.com/qiniu/x/log"
)

// ToolchainFile is the name of the generated toolchain file.
const ToolchainFile = "toolchain.cmake"

// BuildError is returned when a CMake step fails. Component is empty for
// the configure step.
type BuildError struct {
	Step      string
	Component string
	Err       error
}

func (e *BuildError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("cmake %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("cmake %s %s: %v", e.Step, e.Component, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Runner executes a command with the given environment.
type Runner func(ctx context.Context, env []string, name string, args ...string) error

// Driver drives CMake builds.
type Driver struct {
	cmake    string
	parallel int
	run      Runner
}

var _ buildsys.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithCMakePath sets a custom cmake executable path.
func WithCMakePath(path string) Option {
	return func(d *Driver) {
		d.cmake = path
	}
}

// WithParallel sets the number of concurrent build jobs. 0 leaves the
// choice to the generator.
func WithParallel(n int) Option {
	return func(d *Driver) {
		d.parallel = n
	}
}

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(d *Driver) {
		d.run = r
	}
}

// New returns a CMake driver.
func New(opts ...Option) *Driver {
	d := &Driver{cmake: "cmake", run: run}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ConfigureToolchain writes toolchain.cmake into the generators folder. It
// sets CMAKE_BUILD_TYPE, the request variables, one <pkg>_<option>
// variable per dependency sub-option and the dependency prefixes.
func (d *Driver) ConfigureToolchain(ctx context.Context, m *settings.Matrix, req buildsys.Request) (*buildsys.Toolchain, error) {
	if err := os.MkdirAll(req.GeneratorsDir, 0o755); err != nil {
		return nil, err
	}
	file := filepath.Join(req.GeneratorsDir, ToolchainFile)
	if err := os.WriteFile(file, toolchainContent(m, req), 0o644); err != nil {
		return nil, err
	}
	log.Debugf("cmake: wrote %s", file)
	return &buildsys.Toolchain{
		File:      file,
		Generator: req.Generator,
		BuildType: m.BuildType(),
		OS:        m.OS(),
		SourceDir: req.SourceDir,
		BuildDir:  req.BuildDir,
		Prefixes:  req.Prefixes,
	}, nil
}

func toolchainContent(m *settings.Matrix, req buildsys.Request) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Generated by llrecipe for %s\n\n", m)
	b.WriteString(setCache("CMAKE_BUILD_TYPE", settings.String(m.BuildType())))

	keys := make([]string, 0, len(req.Variables))
	for k := range req.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(setCache(k, req.Variables[k]))
	}

	pkgs := make([]string, 0, len(req.Deps))
	for pkg := range req.Deps {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	for _, pkg := range pkgs {
		opts := req.Deps[pkg]
		names := make([]string, 0, len(opts))
		for name := range opts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(setCache(pkg+"_"+name, opts[name]))
		}
	}

	if len(req.Prefixes) > 0 {
		b.WriteString("list(PREPEND CMAKE_PREFIX_PATH")
		for _, p := range req.Prefixes {
			b.WriteString(" " + strconv.Quote(filepath.ToSlash(p)))
		}
		b.WriteString(")\n")
	}
	return b.Bytes()
}

func setCache(key string, v settings.Value) string {
	if on, ok := v.AsBool(); ok {
		return fmt.Sprintf("set(%s %s CACHE BOOL \"\" FORCE)\n", key, onOff(on))
	}
	return fmt.Sprintf("set(%s %s CACHE STRING \"\" FORCE)\n", key, strconv.Quote(v.String()))
}

// Compile configures the build folder with tc, then builds the target of
// every component in order. Errors are *BuildError.
func (d *Driver) Compile(ctx context.Context, components []*graph.Component, tc *buildsys.Toolchain) (buildsys.ArtifactSet, error) {
	c := newCMake(tc)
	for _, p := range tc.Prefixes {
		c.Use(p)
	}
	env := mergeEnv(os.Environ(), c.env)

	log.Debugf("cmake: configure %s", tc.BuildDir)
	if err := os.MkdirAll(tc.BuildDir, 0o755); err != nil {
		return nil, &BuildError{Step: "configure", Err: err}
	}
	if err := d.run(ctx, env, d.cmake, c.configureArgs()...); err != nil {
		return nil, &BuildError{Step: "configure", Err: err}
	}
	for _, comp := range components {
		log.Debugf("cmake: build %s", comp.TargetName)
		if err := d.run(ctx, env, d.cmake, c.buildArgs(comp.TargetName, d.parallel)...); err != nil {
			return nil, &BuildError{Step: "build", Component: comp.Name, Err: err}
		}
	}
	return collect(tc.BuildDir, tc.OS, components)
}

// cmake holds the command line of one build folder.
type cmake struct {
	sourceDir string
	buildDir  string
	generator string
	buildType string
	toolchain string
	defines   map[string]defineValue
	env       map[string]string
}

type defineValue struct {
	value    string
	typeName string
}

func newCMake(tc *buildsys.Toolchain) *cmake {
	c := &cmake{
		sourceDir: tc.SourceDir,
		buildDir:  tc.BuildDir,
		generator: tc.Generator,
		buildType: tc.BuildType,
		toolchain: tc.File,
		defines:   make(map[string]defineValue),
		env:       make(map[string]string),
	}
	if c.toolchain != "" {
		c.define("CMAKE_TOOLCHAIN_FILE", "FILEPATH", c.toolchain)
	}
	if c.buildType != "" {
		c.define("CMAKE_BUILD_TYPE", "STRING", c.buildType)
	}
	return c
}

func (c *cmake) define(key, typeName, value string) {
	c.defines[key] = defineValue{value: value, typeName: typeName}
}

// Use makes headers, libraries and pkg-config files installed at root
// visible to CMake and compilers.
func (c *cmake) Use(root string) {
	includeDir := filepath.Join(root, "include")
	libDir := filepath.Join(root, "lib")
	pkgconfigDir := filepath.Join(libDir, "pkgconfig")

	if _, err := os.Stat(pkgconfigDir); err == nil {
		c.prependPath("PKG_CONFIG_PATH", pkgconfigDir)
	}
	c.prependPath("CMAKE_PREFIX_PATH", root)
	if _, err := os.Stat(includeDir); err == nil {
		c.prependPath("CMAKE_INCLUDE_PATH", includeDir)
	}
	if _, err := os.Stat(libDir); err == nil {
		c.prependPath("CMAKE_LIBRARY_PATH", libDir)
	}

	if runtime.GOOS == "windows" {
		if _, err := os.Stat(includeDir); err == nil {
			c.prependPath("INCLUDE", includeDir)
		}
		if _, err := os.Stat(libDir); err == nil {
			c.prependPath("LIB", libDir)
		}
	} else {
		if _, err := os.Stat(includeDir); err == nil {
			c.appendFlag("CPPFLAGS", "-I"+includeDir)
		}
		if _, err := os.Stat(libDir); err == nil {
			c.appendFlag("LDFLAGS", "-L"+libDir)
		}
	}
}

func (c *cmake) configureArgs() []string {
	args := []string{"-S", c.sourceDir, "-B", c.buildDir}
	if c.generator != "" {
		args = append(args, "-G", c.generator)
	}
	return append(args, c.definesArgs()...)
}

func (c *cmake) buildArgs(target string, parallel int) []string {
	args := []string{"--build", c.buildDir}
	if c.buildType != "" {
		args = append(args, "--config", c.buildType)
	}
	args = append(args, "--target", target)
	if parallel > 0 {
		args = append(args, "--parallel", strconv.Itoa(parallel))
	}
	return args
}

func (c *cmake) definesArgs() []string {
	if len(c.defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.defines))
	for k := range c.defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		d := c.defines[k]
		args = append(args, "-D"+k+":"+d.typeName+"="+d.value)
	}
	return args
}

// prependPath prepends value to a PATH-style variable, starting from the
// process environment.
func (c *cmake) prependPath(key, value string) {
	sep := ":"
	if runtime.GOOS == "windows" {
		sep = ";"
	}
	cur, ok := c.env[key]
	if !ok {
		cur = os.Getenv(key)
	}
	if cur != "" {
		value += sep + cur
	}
	c.env[key] = value
}

// appendFlag appends a space-separated flag to a variable.
func (c *cmake) appendFlag(key, flag string) {
	cur, ok := c.env[key]
	if !ok {
		cur = os.Getenv(key)
	}
	if cur != "" {
		flag = cur + " " + flag
	}
	c.env[key] = flag
}

// collect finds the library files of every component under buildDir.
func collect(buildDir, osName string, components []*graph.Component) (buildsys.ArtifactSet, error) {
	byName := make(map[string][]string)
	err := filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "CMakeFiles" {
				return filepath.SkipDir
			}
			return nil
		}
		byName[d.Name()] = append(byName[d.Name()], path)
		return nil
	})
	if err != nil {
		return nil, &BuildError{Step: "collect", Err: err}
	}

	ret := make(buildsys.ArtifactSet, len(components))
	for _, comp := range components {
		var files []string
		for _, lib := range comp.Libs {
			found := false
			for name, paths := range byName {
				if libraryFile(osName, lib, name) {
					files = append(files, paths...)
					found = true
				}
			}
			if !found {
				return nil, &BuildError{Step: "collect", Component: comp.Name,
					Err: fmt.Errorf("library %s not found in %s", lib, buildDir)}
			}
		}
		sort.Strings(files)
		ret[comp.Name] = files
	}
	return ret, nil
}

// libraryFile reports whether file is a build of library lib on osName.
func libraryFile(osName, lib, file string) bool {
	switch osName {
	case "Windows":
		return file == lib+".lib" || file == lib+".dll" || file == "lib"+lib+".a" || file == "lib"+lib+".dll.a"
	case "Macos", "iOS":
		return file == "lib"+lib+".a" || file == "lib"+lib+".dylib" ||
			strings.HasPrefix(file, "lib"+lib+".") && strings.HasSuffix(file, ".dylib")
	default:
		return file == "lib"+lib+".a" || file == "lib"+lib+".so" || strings.HasPrefix(file, "lib"+lib+".so.")
	}
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func run(ctx context.Context, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	return cmd.Run()
}

func mergeEnv(base []string, override map[string]string) []string {
	if len(override) == 0 {
		return base
	}
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
