package cmake

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/goplus/llrecipe/internal/settings"
	"github.com/goplus/llrecipe/pkgs/buildsys"
)

func matrix(t *testing.T, osName string) *settings.Matrix {
	t.Helper()
	m, err := settings.Load(settings.Raw{OS: osName, Compiler: "gcc", BuildType: "Release", Arch: "x86_64"}, settings.Schema{})
	if err != nil {
		t.Fatalf("settings.Load: %v", err)
	}
	return m
}

// recorder is a Runner that records commands and creates the files in
// outputs when a target is built.
type recorder struct {
	calls   [][]string
	outputs map[string][]string
	fail    string
}

func (r *recorder) run(ctx context.Context, env []string, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	for i, a := range args {
		if a == "--target" {
			target := args[i+1]
			if target == r.fail {
				return errors.New("exit status 2")
			}
			for _, f := range r.outputs[target] {
				os.MkdirAll(filepath.Dir(f), 0o755)
				os.WriteFile(f, nil, 0o644)
			}
		}
	}
	if r.fail == "configure" && args[0] == "-S" {
		return errors.New("exit status 1")
	}
	return nil
}

func TestConfigureToolchain(t *testing.T) {
	tmp := t.TempDir()
	req := buildsys.Request{
		SourceDir:     filepath.Join(tmp, "src"),
		BuildDir:      filepath.Join(tmp, "build", "Release"),
		GeneratorsDir: filepath.Join(tmp, "build", "Release", "generators"),
		Generator:     "Ninja",
		Variables: map[string]settings.Value{
			"BUILD_TOOLS":       settings.Bool(false),
			"BUILD_SHARED_LIBS": settings.Bool(true),
			"PANGO_BACKEND":     settings.String("x11"),
		},
		Deps: map[string]map[string]settings.Value{
			"glew": {"shared": settings.Bool(false)},
		},
		Prefixes: []string{"/opt/glew"},
	}

	tc, err := New().ConfigureToolchain(context.Background(), matrix(t, "Linux"), req)
	if err != nil {
		t.Fatalf("ConfigureToolchain: %v", err)
	}
	if tc.File != filepath.Join(req.GeneratorsDir, ToolchainFile) {
		t.Errorf("File = %s", tc.File)
	}
	if tc.BuildType != "Release" || tc.OS != "Linux" || tc.Generator != "Ninja" {
		t.Errorf("toolchain = %+v", tc)
	}

	data, err := os.ReadFile(tc.File)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"# Generated by llrecipe for Linux-x86_64-gcc-Release\n",
		`set(CMAKE_BUILD_TYPE "Release" CACHE STRING "" FORCE)`,
		`set(BUILD_SHARED_LIBS ON CACHE BOOL "" FORCE)`,
		`set(BUILD_TOOLS OFF CACHE BOOL "" FORCE)`,
		`set(PANGO_BACKEND "x11" CACHE STRING "" FORCE)`,
		`set(glew_shared OFF CACHE BOOL "" FORCE)`,
		`list(PREPEND CMAKE_PREFIX_PATH "/opt/glew")`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("toolchain missing %q:\n%s", want, content)
		}
	}
	if strings.Index(content, "BUILD_SHARED_LIBS") > strings.Index(content, "BUILD_TOOLS") {
		t.Error("variables are not sorted")
	}
}

func TestCompile(t *testing.T) {
	tmp := t.TempDir()
	build := filepath.Join(tmp, "build")
	tc := &buildsys.Toolchain{
		File:      filepath.Join(build, "generators", ToolchainFile),
		BuildType: "Release",
		OS:        "Linux",
		SourceDir: filepath.Join(tmp, "src"),
		BuildDir:  build,
	}
	comps := []*graph.Component{
		{Name: "pango_core", Libs: []string{"pango_core"}, TargetName: "pango_core"},
		{Name: "pango_display", Libs: []string{"pango_display"}, TargetName: "display"},
	}
	rec := &recorder{outputs: map[string][]string{
		"pango_core": {filepath.Join(build, "libpango_core.so"), filepath.Join(build, "libpango_core.so.0.8")},
		"display":    {filepath.Join(build, "components", "libpango_display.a")},
	}}

	arts, err := New(WithRunner(rec.run), WithParallel(4)).Compile(context.Background(), comps, tc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	want := [][]string{
		{"cmake", "-S", tc.SourceDir, "-B", build,
			"-DCMAKE_BUILD_TYPE:STRING=Release", "-DCMAKE_TOOLCHAIN_FILE:FILEPATH=" + tc.File},
		{"cmake", "--build", build, "--config", "Release", "--target", "pango_core", "--parallel", "4"},
		{"cmake", "--build", build, "--config", "Release", "--target", "display", "--parallel", "4"},
	}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %q\nwant %q", rec.calls, want)
	}
	if got := arts["pango_core"]; len(got) != 2 {
		t.Errorf("pango_core artifacts = %v", got)
	}
	if got := arts["pango_display"]; len(got) != 1 || filepath.Base(got[0]) != "libpango_display.a" {
		t.Errorf("pango_display artifacts = %v", got)
	}
}

func TestCompileErrors(t *testing.T) {
	comps := []*graph.Component{
		{Name: "pango_core", Libs: []string{"pango_core"}, TargetName: "pango_core"},
		{Name: "pango_vars", Libs: []string{"pango_vars"}, TargetName: "pango_vars"},
	}
	newTC := func(t *testing.T) *buildsys.Toolchain {
		return &buildsys.Toolchain{BuildType: "Release", OS: "Linux", BuildDir: t.TempDir()}
	}

	t.Run("configure", func(t *testing.T) {
		rec := &recorder{fail: "configure"}
		_, err := New(WithRunner(rec.run)).Compile(context.Background(), comps, newTC(t))
		var be *BuildError
		if !errors.As(err, &be) || be.Step != "configure" || be.Component != "" {
			t.Fatalf("err = %v, want configure BuildError", err)
		}
	})

	t.Run("target", func(t *testing.T) {
		tc := newTC(t)
		rec := &recorder{fail: "pango_vars", outputs: map[string][]string{
			"pango_core": {filepath.Join(tc.BuildDir, "libpango_core.a")},
		}}
		_, err := New(WithRunner(rec.run)).Compile(context.Background(), comps, tc)
		var be *BuildError
		if !errors.As(err, &be) || be.Step != "build" || be.Component != "pango_vars" {
			t.Fatalf("err = %v, want build BuildError for pango_vars", err)
		}
	})

	t.Run("missing library", func(t *testing.T) {
		rec := &recorder{}
		_, err := New(WithRunner(rec.run)).Compile(context.Background(), comps, newTC(t))
		var be *BuildError
		if !errors.As(err, &be) || be.Step != "collect" || be.Component != "pango_core" {
			t.Fatalf("err = %v, want collect BuildError", err)
		}
	})
}

func TestLibraryFile(t *testing.T) {
	tests := []struct {
		os, file string
		want     bool
	}{
		{"Linux", "libpango_core.a", true},
		{"Linux", "libpango_core.so.0.8.0", true},
		{"Linux", "libpango_core_extra.a", false},
		{"Linux", "pango_core.lib", false},
		{"Windows", "pango_core.lib", true},
		{"Windows", "pango_core.dll", true},
		{"Macos", "libpango_core.0.8.dylib", true},
		{"Macos", "libpango_core.so", false},
	}
	for _, tt := range tests {
		if got := libraryFile(tt.os, "pango_core", tt.file); got != tt.want {
			t.Errorf("libraryFile(%s, %s) = %v, want %v", tt.os, tt.file, got, tt.want)
		}
	}
}

func TestUseSetsEnv(t *testing.T) {
	root := t.TempDir()
	includeDir := filepath.Join(root, "include")
	libDir := filepath.Join(root, "lib")
	pkgconfigDir := filepath.Join(libDir, "pkgconfig")
	for _, d := range []string{includeDir, libDir, pkgconfigDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}

	for _, key := range []string{
		"PKG_CONFIG_PATH", "CMAKE_PREFIX_PATH", "CMAKE_INCLUDE_PATH",
		"CMAKE_LIBRARY_PATH", "INCLUDE", "LIB", "CPPFLAGS", "LDFLAGS",
	} {
		t.Setenv(key, "")
	}

	c := newCMake(&buildsys.Toolchain{})
	c.Use(root)

	for key, want := range map[string]string{
		"PKG_CONFIG_PATH":    pkgconfigDir,
		"CMAKE_PREFIX_PATH":  root,
		"CMAKE_INCLUDE_PATH": includeDir,
		"CMAKE_LIBRARY_PATH": libDir,
	} {
		if got := c.env[key]; got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}

	if runtime.GOOS == "windows" {
		if got := c.env["INCLUDE"]; got != includeDir {
			t.Errorf("INCLUDE = %q, want %q", got, includeDir)
		}
	} else {
		if got := c.env["CPPFLAGS"]; got != "-I"+includeDir {
			t.Errorf("CPPFLAGS = %q, want %q", got, "-I"+includeDir)
		}
		if got := c.env["LDFLAGS"]; got != "-L"+libDir {
			t.Errorf("LDFLAGS = %q, want %q", got, "-L"+libDir)
		}
	}

	// the process environment is left alone
	if got := os.Getenv("CMAKE_PREFIX_PATH"); got != "" {
		t.Errorf("process CMAKE_PREFIX_PATH = %q, want empty", got)
	}
}

func TestUsePrepends(t *testing.T) {
	t.Setenv("CMAKE_PREFIX_PATH", "/existing")
	c := newCMake(&buildsys.Toolchain{})
	c.Use("/a")
	c.Use("/b")

	sep := ":"
	if runtime.GOOS == "windows" {
		sep = ";"
	}
	want := "/b" + sep + "/a" + sep + "/existing"
	if got := c.env["CMAKE_PREFIX_PATH"]; got != want {
		t.Errorf("CMAKE_PREFIX_PATH = %q, want %q", got, want)
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"B=2", "A=1"}, map[string]string{"A": "x", "C": "3"})
	want := []string{"A=x", "B=2", "C=3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergeEnv = %v, want %v", got, want)
	}
}

func TestCompileE2E(t *testing.T) {
	if _, err := exec.LookPath("cmake"); err != nil {
		t.Skip("cmake not found in PATH")
	}
	if runtime.GOOS == "windows" {
		t.Skip("uses the Unix Makefiles generator")
	}

	tmp := t.TempDir()
	src, err := filepath.Abs(filepath.Join("testdata", "project"))
	if err != nil {
		t.Fatal(err)
	}
	req := buildsys.Request{
		SourceDir:     src,
		BuildDir:      filepath.Join(tmp, "Release"),
		GeneratorsDir: filepath.Join(tmp, "Release", "generators"),
		Generator:     "Unix Makefiles",
		Variables:     map[string]settings.Value{"BUILD_EXAMPLES": settings.Bool(false)},
	}
	d := New()
	ctx := context.Background()
	tc, err := d.ConfigureToolchain(ctx, matrix(t, "Linux"), req)
	if err != nil {
		t.Fatalf("ConfigureToolchain: %v", err)
	}
	comps := []*graph.Component{
		{Name: "core", Libs: []string{"demo_core"}, TargetName: "demo_core"},
		{Name: "display", Libs: []string{"demo_display"}, TargetName: "demo_display"},
	}
	arts, err := d.Compile(ctx, comps, tc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	for _, name := range []string{"core", "display"} {
		if len(arts[name]) == 0 {
			t.Errorf("no artifacts for %s", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(req.BuildDir, "CMakeCache.txt"))
	if err != nil {
		t.Fatalf("read CMakeCache.txt: %v", err)
	}
	for _, want := range []string{"BUILD_EXAMPLES:BOOL=OFF", "CMAKE_BUILD_TYPE:STRING=Release"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("cache missing %q", want)
		}
	}
}
