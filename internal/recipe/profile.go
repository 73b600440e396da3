package recipe

import (
	"fmt"
	"os"

	"github.com/goplus/llrecipe/internal/settings"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

type hclProfile struct {
	Settings *hclSettings   `hcl:"settings,block"`
	Options  hcl.Expression `hcl:"options,optional"`
}

type hclSettings struct {
	OS        string `hcl:"os,optional"`
	Compiler  string `hcl:"compiler,optional"`
	BuildType string `hcl:"build_type,optional"`
	Arch      string `hcl:"arch,optional"`
}

// LoadProfile reads a profile file. A profile fixes the build settings and
// option assignments of a build:
//
//	settings {
//	  os         = "Linux"
//	  compiler   = "gcc"
//	  build_type = "Release"
//	  arch       = "x86_64"
//	}
//	options = {
//	  shared          = false
//	  "glew.shared"   = false
//	}
func LoadProfile(path string) (settings.Raw, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return settings.Raw{}, err
	}
	return ParseProfile(path, src)
}

// ParseProfile decodes a profile from src.
func ParseProfile(filename string, src []byte) (settings.Raw, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return settings.Raw{}, fmt.Errorf("failed to parse profile %s: %w", filename, diags)
	}
	var p hclProfile
	if diags := gohcl.DecodeBody(file.Body, nil, &p); diags.HasErrors() {
		return settings.Raw{}, fmt.Errorf("failed to decode profile %s: %w", filename, diags)
	}
	var raw settings.Raw
	if s := p.Settings; s != nil {
		raw.OS, raw.Compiler, raw.BuildType, raw.Arch = s.OS, s.Compiler, s.BuildType, s.Arch
	}
	opts, err := evalMap(p.Options)
	if err != nil {
		return settings.Raw{}, fmt.Errorf("%s: options: %w", filename, err)
	}
	raw.Options = opts
	return raw, nil
}
