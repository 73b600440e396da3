package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// git runs the git executable.
type git struct {
	path string
}

// sync makes dir a shallow checkout of ref from remote. If dir doesn't
// exist, it is initialized first.
func (g *git) sync(ctx context.Context, remote, ref, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); errors.Is(err, fs.ErrNotExist) {
		if err := g.run(ctx, dir, "init", "--quiet"); err != nil {
			return err
		}
	}
	if ref == "" {
		ref = "HEAD"
	}
	if err := g.run(ctx, dir, "fetch", "--depth", "1", remote, ref); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := g.run(ctx, dir, "checkout", "--quiet", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

// apply applies a unified diff to the tree at dir. dir doesn't need to be
// a git repository.
func (g *git) apply(ctx context.Context, dir, patchFile string) error {
	abs, err := filepath.Abs(patchFile)
	if err != nil {
		return err
	}
	return g.run(ctx, dir, "apply", "--whitespace=nowarn", abs)
}

func (g *git) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, g.path, args...)
	cmd.Dir = dir
	// keep git from walking up into an enclosing repository
	cmd.Env = append(os.Environ(), "GIT_CEILING_DIRECTORIES="+filepath.Dir(dir))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.New(msg)
		}
		return err
	}
	return nil
}
