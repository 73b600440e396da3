// Package settings holds the build-time axes (os, compiler, build type,
// arch) and the option set a recipe is built with.
//
// A Matrix is produced once by Load and is immutable afterwards. Options that
// a recipe declares as removable on the current os are filtered out during
// Load, so every later reader agrees on whether an option exists.
package settings

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/qiniu/x/log"
)

// BuildTypes lists the recognized build types.
var BuildTypes = []string{"Debug", "Release", "RelWithDebInfo", "MinSizeRel"}

// OptionDecl declares an option of a recipe.
type OptionDecl struct {
	Name     string
	Values   []Value // allowed values; empty means any value
	Default  Value
	RemoveOn []string // os names on which the option does not exist
}

// Schema describes which options and sub-options a recipe accepts.
type Schema struct {
	Options []OptionDecl

	// SubOptions maps an external package name to its default sub-options.
	// A package listed here accepts "<pkg>.<option>" keys even when it has
	// no defaults.
	SubOptions map[string]map[string]Value
}

// Raw is the unvalidated input of Load.
type Raw struct {
	OS        string
	Compiler  string
	BuildType string
	Arch      string

	// Options maps option names, or "<pkg>.<option>" for sub-options of an
	// external package, to values.
	Options map[string]Value
}

// Matrix is a validated, immutable set of settings and options.
type Matrix struct {
	os        string
	compiler  string
	buildType string
	arch      string

	options    map[string]Value
	subOptions map[string]map[string]Value
}

// Load validates raw against schema and returns the resulting Matrix.
func Load(raw Raw, schema Schema) (*Matrix, error) {
	if !slices.Contains(BuildTypes, raw.BuildType) {
		return nil, &ConfigError{
			Key:    "build_type",
			Reason: fmt.Sprintf("%q is not one of %s", raw.BuildType, strings.Join(BuildTypes, ", ")),
		}
	}
	for _, s := range []struct{ key, val string }{
		{"os", raw.OS},
		{"compiler", raw.Compiler},
		{"arch", raw.Arch},
	} {
		if !isIdent(s.val) {
			return nil, &ConfigError{Key: s.key, Reason: fmt.Sprintf("%q is not a valid identifier", s.val)}
		}
	}

	m := &Matrix{
		os:         raw.OS,
		compiler:   raw.Compiler,
		buildType:  raw.BuildType,
		arch:       raw.Arch,
		options:    make(map[string]Value),
		subOptions: make(map[string]map[string]Value),
	}

	declared := make(map[string]*OptionDecl, len(schema.Options))
	for i := range schema.Options {
		decl := &schema.Options[i]
		if _, dup := declared[decl.Name]; dup {
			return nil, &ConfigError{Key: decl.Name, Reason: "option declared twice"}
		}
		declared[decl.Name] = decl
	}

	for pkg, defaults := range schema.SubOptions {
		sub := make(map[string]Value, len(defaults))
		for k, v := range defaults {
			sub[k] = v
		}
		m.subOptions[pkg] = sub
	}

	// Apply overrides first so that unknown keys are reported even when the
	// option they name would have been removed.
	overrides := make(map[string]Value)
	for key, val := range raw.Options {
		if pkg, name, ok := strings.Cut(key, "."); ok {
			sub, known := m.subOptions[pkg]
			if !known || name == "" {
				return nil, &ConfigError{Key: key, Reason: fmt.Sprintf("%q is not a declared requirement", pkg)}
			}
			sub[name] = val
			continue
		}
		if _, ok := declared[key]; !ok {
			return nil, &ConfigError{Key: key, Reason: "unknown option"}
		}
		overrides[key] = val
	}

	for _, decl := range schema.Options {
		if slices.Contains(decl.RemoveOn, m.os) {
			if _, ok := overrides[decl.Name]; ok {
				log.Debugf("settings: ignoring option %s, not available on %s", decl.Name, m.os)
			}
			continue
		}
		val, ok := overrides[decl.Name]
		if !ok {
			val = decl.Default
		}
		if val.IsZero() {
			return nil, &ConfigError{Key: decl.Name, Reason: "no value and no default"}
		}
		if len(decl.Values) > 0 && !slices.ContainsFunc(decl.Values, val.Equal) {
			return nil, &ConfigError{
				Key:    decl.Name,
				Reason: fmt.Sprintf("value %s not in %s", val, joinValues(decl.Values)),
			}
		}
		m.options[decl.Name] = val
	}
	return m, nil
}

// OS returns the os setting.
func (m *Matrix) OS() string { return m.os }

// Compiler returns the compiler setting.
func (m *Matrix) Compiler() string { return m.compiler }

// BuildType returns the build type setting.
func (m *Matrix) BuildType() string { return m.buildType }

// Arch returns the arch setting.
func (m *Matrix) Arch() string { return m.arch }

// Get returns the value of the named option. Options removed for the current
// os, and options that were never declared, are reported as absent.
func (m *Matrix) Get(name string) (Value, error) {
	v, ok := m.options[name]
	if !ok {
		return Value{}, &OptionAbsentError{Name: name, OS: m.os}
	}
	return v, nil
}

// Has reports whether the named option exists under the current os.
func (m *Matrix) Has(name string) bool {
	_, ok := m.options[name]
	return ok
}

// Options returns the names of the options present, sorted.
func (m *Matrix) Options() []string {
	names := make([]string, 0, len(m.options))
	for k := range m.options {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SubOptions returns a copy of the resolved sub-options of an external
// package, or nil if the package has none.
func (m *Matrix) SubOptions(pkg string) map[string]Value {
	sub, ok := m.subOptions[pkg]
	if !ok || len(sub) == 0 {
		return nil
	}
	ret := make(map[string]Value, len(sub))
	for k, v := range sub {
		ret[k] = v
	}
	return ret
}

// String returns a stable identifier of the matrix, suitable as a directory
// name. Settings are joined with "-", then options sorted by name are joined
// with "-" and appended after a "|"; sub-options are not part of it.
func (m *Matrix) String() string {
	s := strings.Join([]string{m.os, m.arch, m.compiler, m.buildType}, "-")
	names := m.Options()
	if len(names) == 0 {
		return s
	}
	opts := make([]string, len(names))
	for i, name := range names {
		opts[i] = name + "=" + m.options[name].String()
	}
	return s + "|" + strings.Join(opts, "-")
}

func joinValues(vals []Value) string {
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = v.String()
	}
	return "[" + strings.Join(s, ", ") + "]"
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '.', r == '-', r == '+':
		default:
			return false
		}
	}
	return true
}
