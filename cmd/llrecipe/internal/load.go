package internal

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/goplus/llrecipe/internal/recipe"
	"github.com/goplus/llrecipe/internal/settings"
	"github.com/spf13/cobra"
)

// inputs are the flags selecting the recipe settings, shared by all
// commands.
type inputs struct {
	profile  string
	settings []string
	options  []string
}

func (in *inputs) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.profile, "profile", "", "Profile file with settings and options")
	cmd.Flags().StringArrayVarP(&in.settings, "settings", "s", nil, "Setting override, e.g. -s build_type=Debug")
	cmd.Flags().StringArrayVarP(&in.options, "options", "o", nil, "Option override, e.g. -o shared=False or -o glew.shared=False")
}

// loaded is a recipe resolved against a settings matrix.
type loaded struct {
	recipe *recipe.Recipe
	matrix *settings.Matrix
	graph  *graph.Graph
}

// load reads the recipe at path (a file or a directory holding recipe.hcl)
// and resolves it with the settings selected by in.
func (in *inputs) load(path string) (*loaded, error) {
	r, err := recipe.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	raw, err := in.raw()
	if err != nil {
		return nil, err
	}
	m, err := settings.Load(raw, r.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	g, err := graph.Build(r.Declarations(), m)
	if err != nil {
		return nil, fmt.Errorf("failed to build component graph: %w", err)
	}
	return &loaded{recipe: r, matrix: m, graph: g}, nil
}

// raw merges, from lowest to highest precedence, the host defaults, the
// profile and the command line overrides.
func (in *inputs) raw() (settings.Raw, error) {
	raw := hostSettings()
	if in.profile != "" {
		p, err := recipe.LoadProfile(in.profile)
		if err != nil {
			return raw, fmt.Errorf("failed to load profile: %w", err)
		}
		override(&raw.OS, p.OS)
		override(&raw.Compiler, p.Compiler)
		override(&raw.BuildType, p.BuildType)
		override(&raw.Arch, p.Arch)
		for k, v := range p.Options {
			raw.Options[k] = v
		}
	}

	sets, err := parseAssignments(in.settings)
	if err != nil {
		return raw, err
	}
	for k, v := range sets {
		switch k {
		case "os":
			raw.OS = v
		case "compiler":
			raw.Compiler = v
		case "build_type":
			raw.BuildType = v
		case "arch":
			raw.Arch = v
		default:
			return raw, &settings.ConfigError{Key: k, Reason: "unknown setting"}
		}
	}

	opts, err := parseAssignments(in.options)
	if err != nil {
		return raw, err
	}
	for k, v := range opts {
		raw.Options[k] = settings.ParseValue(v)
	}
	return raw, nil
}

func override(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// hostSettings returns the settings of the machine llrecipe runs on.
func hostSettings() settings.Raw {
	raw := settings.Raw{
		OS:        runtime.GOOS,
		Compiler:  "gcc",
		BuildType: "Release",
		Arch:      runtime.GOARCH,
		Options:   make(map[string]settings.Value),
	}
	switch runtime.GOOS {
	case "linux":
		raw.OS = "Linux"
	case "windows":
		raw.OS, raw.Compiler = "Windows", "msvc"
	case "darwin":
		raw.OS, raw.Compiler = "Macos", "apple-clang"
	case "freebsd":
		raw.OS, raw.Compiler = "FreeBSD", "clang"
	}
	switch runtime.GOARCH {
	case "amd64":
		raw.Arch = "x86_64"
	case "386":
		raw.Arch = "x86"
	case "arm64":
		raw.Arch = "armv8"
	}
	return raw
}

// parseAssignments parses "key=value" arguments.
func parseAssignments(args []string) (map[string]string, error) {
	ret := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q, want key=value", arg)
		}
		ret[k] = strings.TrimSpace(v)
	}
	return ret, nil
}

// recipeArg returns the recipe path argument, defaulting to the current
// directory.
func recipeArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
