// Package manifest produces the package metadata published for consumers:
// one record per component with its merged link attributes.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/goplus/llrecipe/internal/attrs"
	"github.com/goplus/llrecipe/internal/graph"
)

// File is the metadata file name in the package root.
const File = "metadata.json"

// Record is the metadata of one component. Libs, SystemLibs and Defines are
// transitive; Requires lists the direct requirements only.
type Record struct {
	Name       string   `json:"name"`
	Libs       []string `json:"libs"`
	SystemLibs []string `json:"systemLibs"`
	Defines    []string `json:"defines"`
	Requires   []string `json:"requires"`
}

// Manifest is the metadata of a package.
type Manifest struct {
	Package  string `json:"package"`
	Version  string `json:"version"`
	FileName string `json:"cmakeFileName"`
	Settings string `json:"settings,omitempty"`

	Components []Record `json:"components"`
	// Targets maps component names to their build system target names.
	Targets map[string]string `json:"targets"`
}

// Info describes the package a manifest is generated for.
type Info struct {
	Package  string
	Version  string
	FileName string
	Settings string
}

// New builds the manifest of g, with components in topological order.
func New(g *graph.Graph, info Info) (*Manifest, error) {
	m := &Manifest{
		Package:  info.Package,
		Version:  info.Version,
		FileName: info.FileName,
		Settings: info.Settings,
		Targets:  make(map[string]string),
	}
	if m.FileName == "" {
		m.FileName = m.Package
	}
	merger := attrs.New(g)
	for _, c := range g.Components() {
		a, err := merger.Transitive(c.Name)
		if err != nil {
			return nil, err
		}
		m.Components = append(m.Components, Record{
			Name:       c.Name,
			Libs:       nonNil(a.Libs),
			SystemLibs: nonNil(a.SystemLibs),
			Defines:    nonNil(a.Defines),
			Requires:   nonNil(g.Requires(c.Name)),
		})
		m.Targets[c.Name] = c.TargetName
	}
	return m, nil
}

// Record returns the record of the named component.
func (m *Manifest) Record(name string) (Record, bool) {
	for _, r := range m.Components {
		if r.Name == name {
			return r, true
		}
	}
	return Record{}, false
}

// Write stores m as metadata.json under dir.
func Write(dir string, m *Manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, File), data, 0o644)
}

// Read loads the metadata.json under dir.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, File))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// nonNil keeps empty lists as [] rather than null in the JSON output.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
