package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/llrecipe/internal/graph"
)

// PkgConfigDir returns the pkg-config directory of a package root.
func PkgConfigDir(pkgRoot string) string {
	return filepath.Join(pkgRoot, "lib", "pkgconfig")
}

// WritePkgConfig writes one <component>.pc file per component of g into the
// pkg-config directory of pkgRoot. Each file carries the component's own
// flags and lists the components it requires, so pkg-config resolves the
// closure itself. External packages are left out of Requires: they need not
// ship pkg-config files, and their link names are in the manifest.
func WritePkgConfig(pkgRoot string, g *graph.Graph, m *Manifest) error {
	dir := PkgConfigDir(pkgRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, c := range g.Components() {
		data := pcFile(pkgRoot, g, m, c)
		if err := os.WriteFile(filepath.Join(dir, c.Name+".pc"), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func pcFile(pkgRoot string, g *graph.Graph, m *Manifest, c *graph.Component) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "prefix=%s\n", filepath.ToSlash(pkgRoot))
	b.WriteString("libdir=${prefix}/lib\n")
	b.WriteString("includedir=${prefix}/include\n\n")
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Description: %s component %s\n", m.Package, c.Name)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)

	var requires []string
	for _, ref := range c.Requires {
		if _, ok := g.Component(ref); ok {
			requires = append(requires, ref)
		}
	}
	if len(requires) > 0 {
		fmt.Fprintf(&b, "Requires: %s\n", strings.Join(requires, ", "))
	}

	cflags := []string{"-I${includedir}"}
	for _, d := range c.Defines {
		cflags = append(cflags, "-D"+d)
	}
	fmt.Fprintf(&b, "Cflags: %s\n", strings.Join(cflags, " "))

	libs := []string{"-L${libdir}"}
	for _, l := range c.Libs {
		libs = append(libs, "-l"+l)
	}
	fmt.Fprintf(&b, "Libs: %s\n", strings.Join(libs, " "))
	if len(c.SystemLibs) > 0 {
		var sys []string
		for _, l := range c.SystemLibs {
			sys = append(sys, "-l"+l)
		}
		fmt.Fprintf(&b, "Libs.private: %s\n", strings.Join(sys, " "))
	}
	return b.Bytes()
}
