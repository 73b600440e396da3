package recipe

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/goplus/llrecipe/internal/settings"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclRecipe is the top-level structure of a recipe file.
type hclRecipe struct {
	Name          string          `hcl:"name"`
	Version       string          `hcl:"version"`
	License       string          `hcl:"license,optional"`
	URL           string          `hcl:"url,optional"`
	Description   string          `hcl:"description,optional"`
	CMakeFileName string          `hcl:"cmake_file_name,optional"`
	Options       []*hclOption    `hcl:"option,block"`
	Requires      []*hclRequire   `hcl:"require,block"`
	Sources       []*hclSource    `hcl:"source,block"`
	Patches       []*hclPatch     `hcl:"patch,block"`
	Toolchain     *hclToolchain   `hcl:"toolchain,block"`
	Components    []*hclComponent `hcl:"component,block"`
}

type hclOption struct {
	Name     string         `hcl:"name,label"`
	Values   hcl.Expression `hcl:"values,optional"`
	Default  hcl.Expression `hcl:"default,optional"`
	RemoveOn []string       `hcl:"remove_on,optional"`
}

type hclRequire struct {
	Name    string         `hcl:"name,label"`
	Version string         `hcl:"version"`
	Options hcl.Expression `hcl:"options,optional"`
}

type hclSource struct {
	Version string `hcl:"version,label"`
	URL     string `hcl:"url"`
	SHA256  string `hcl:"sha256,optional"`
}

type hclPatch struct {
	FromVersion string   `hcl:"from_version,label"`
	Files       []string `hcl:"files"`
}

type hclToolchain struct {
	Generator string         `hcl:"generator,optional"`
	Variables hcl.Expression `hcl:"variables,optional"`
}

type hclComponent struct {
	Name         string              `hcl:"name,label"`
	TargetName   string              `hcl:"cmake_target_name,optional"`
	Libs         []string            `hcl:"libs,optional"`
	Defines      []string            `hcl:"defines,optional"`
	SystemLibs   []string            `hcl:"system_libs,optional"`
	OSSystemLibs map[string][]string `hcl:"os_system_libs,optional"`
	Requires     []string            `hcl:"requires,optional"`
	IncludeDirs  []string            `hcl:"include_dirs,optional"`
}

// Load reads the recipe at path. If path is a directory, the recipe.hcl
// inside it is read.
func Load(path string) (*Recipe, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFile)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(path, src)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	r.Dir = abs
	return r, nil
}

// Parse decodes a recipe from src. filename is used in diagnostics only.
func Parse(filename string, src []byte) (*Recipe, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse recipe %s: %w", filename, diags)
	}
	var raw hclRecipe
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode recipe %s: %w", filename, diags)
	}

	r := &Recipe{
		Name:        raw.Name,
		Version:     raw.Version,
		License:     raw.License,
		URL:         raw.URL,
		Description: raw.Description,
		FileName:    raw.CMakeFileName,
	}
	if r.FileName == "" {
		r.FileName = r.Name
	}

	for _, o := range raw.Options {
		decl := settings.OptionDecl{Name: o.Name, RemoveOn: o.RemoveOn}
		vals, err := evalList(o.Values)
		if err != nil {
			return nil, fmt.Errorf("%s: option %s values: %w", filename, o.Name, err)
		}
		decl.Values = vals
		if decl.Default, err = evalValue(o.Default); err != nil {
			return nil, fmt.Errorf("%s: option %s default: %w", filename, o.Name, err)
		}
		r.Options = append(r.Options, decl)
	}

	seen := make(map[string]bool)
	for _, req := range raw.Requires {
		if seen[req.Name] {
			return nil, fmt.Errorf("%s: package %s is required twice", filename, req.Name)
		}
		seen[req.Name] = true
		opts, err := evalMap(req.Options)
		if err != nil {
			return nil, fmt.Errorf("%s: require %s options: %w", filename, req.Name, err)
		}
		r.Requires = append(r.Requires, Requirement{Name: req.Name, Version: req.Version, Options: opts})
	}

	for _, s := range raw.Sources {
		r.Sources = append(r.Sources, Source{Version: s.Version, URL: s.URL, SHA256: s.SHA256})
	}
	clear(seen)
	for _, p := range raw.Patches {
		if seen[p.FromVersion] {
			return nil, fmt.Errorf("%s: patch set %s declared twice", filename, p.FromVersion)
		}
		seen[p.FromVersion] = true
		r.Patches = append(r.Patches, PatchSet{FromVersion: p.FromVersion, Files: p.Files})
	}

	if tc := raw.Toolchain; tc != nil {
		vars, err := evalMap(tc.Variables)
		if err != nil {
			return nil, fmt.Errorf("%s: toolchain variables: %w", filename, err)
		}
		r.Toolchain = Toolchain{Generator: tc.Generator, Variables: vars}
	}

	for _, c := range raw.Components {
		r.Components = append(r.Components, graph.ComponentDecl{
			Name:         c.Name,
			Libs:         c.Libs,
			Defines:      c.Defines,
			SystemLibs:   c.SystemLibs,
			OSSystemLibs: c.OSSystemLibs,
			Requires:     c.Requires,
			IncludeDirs:  c.IncludeDirs,
			TargetName:   c.TargetName,
		})
	}
	return r, nil
}

func evalExpr(expr hcl.Expression) (cty.Value, error) {
	if expr == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return v, nil
}

func evalValue(expr hcl.Expression) (settings.Value, error) {
	v, err := evalExpr(expr)
	if err != nil {
		return settings.Value{}, err
	}
	return toValue(v)
}

func evalList(expr hcl.Expression) ([]settings.Value, error) {
	v, err := evalExpr(expr)
	if err != nil || v.IsNull() {
		return nil, err
	}
	ty := v.Type()
	if !ty.IsTupleType() && !ty.IsListType() && !ty.IsSetType() {
		return nil, fmt.Errorf("want a list, got %s", ty.FriendlyName())
	}
	var ret []settings.Value
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		sv, err := toValue(ev)
		if err != nil {
			return nil, err
		}
		ret = append(ret, sv)
	}
	return ret, nil
}

func evalMap(expr hcl.Expression) (map[string]settings.Value, error) {
	v, err := evalExpr(expr)
	if err != nil || v.IsNull() {
		return nil, err
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("want an object, got %s", ty.FriendlyName())
	}
	ret := make(map[string]settings.Value)
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		sv, err := toValue(ev)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k.AsString(), err)
		}
		ret[k.AsString()] = sv
	}
	return ret, nil
}

// toValue converts a cty value into an option value. Numbers are kept as
// enum strings.
func toValue(v cty.Value) (settings.Value, error) {
	if v.IsNull() {
		return settings.Value{}, nil
	}
	if !v.IsKnown() {
		return settings.Value{}, fmt.Errorf("value is not known")
	}
	switch ty := v.Type(); {
	case ty.Equals(cty.Bool):
		return settings.Bool(v.True()), nil
	case ty.Equals(cty.String):
		return settings.String(v.AsString()), nil
	case ty.Equals(cty.Number):
		return settings.String(v.AsBigFloat().Text('f', -1)), nil
	default:
		return settings.Value{}, fmt.Errorf("unsupported option value of type %s", ty.FriendlyName())
	}
}
