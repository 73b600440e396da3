package lifecycle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goplus/llrecipe/internal/graph"
	"github.com/goplus/llrecipe/internal/recipe"
	"github.com/goplus/llrecipe/internal/settings"
	"github.com/goplus/llrecipe/pkgs/buildsys"
)

// JournalFile is the name of the journal in the build folder.
//
//	<buildRoot>/<build_type>/
//	  .lifecycle.json     # reached state and the outputs of each transition
//	  generators/
//	  ...
const JournalFile = ".lifecycle.json"

// journal records the reached state and what each transition produced, so
// that a later run resumes where the previous one stopped.
type journal struct {
	State      State                `json:"state"`
	SourceDir  string               `json:"sourceDir,omitempty"`
	Settings   string               `json:"settings,omitempty"`
	Inputs     string               `json:"inputs,omitempty"`
	Toolchain  *buildsys.Toolchain  `json:"toolchain,omitempty"`
	Components []*graph.Component   `json:"components,omitempty"`
	Artifacts  buildsys.ArtifactSet `json:"artifacts,omitempty"`
}

// loadJournal reads the journal in dir. A missing journal is an empty one.
func loadJournal(dir string) (*journal, error) {
	data, err := os.ReadFile(filepath.Join(dir, JournalFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &journal{}, nil
	}
	if err != nil {
		return nil, err
	}
	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// saveJournal writes j to dir, replacing the previous journal atomically.
func saveJournal(dir string, j *journal) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, JournalFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, JournalFile))
}

// inputsDigest hashes everything Configure derives the toolchain and the
// build plan from: the matrix, the sub-options and versions of external
// packages, the components and the recipe's toolchain section.
func inputsDigest(g *graph.Graph, m *settings.Matrix, tc recipe.Toolchain) (string, error) {
	data, err := json.Marshal(struct {
		Settings   string
		Externals  []*graph.ExternalLeaf
		Components []*graph.Component
		Toolchain  recipe.Toolchain
	}{m.String(), g.Externals(), g.Components(), tc})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
