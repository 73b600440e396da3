// Package source materializes recipe sources into local directories and
// applies patches to them.
//
// Three kinds of URLs are understood:
//
//	https://host/path/pkg-1.0.tar.gz   archive downloaded over http(s)
//	file:///path/pkg-1.0.zip           local archive
//	https://host/repo.git#v1.0         git repository at a ref
//
// Archives may be .tar.gz, .tgz, .tar or .zip. Materialized trees are
// cached by URL, so materializing the same source twice is cheap.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"
)

// FetchError is returned when a source can't be materialized.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PatchError is returned when a patch doesn't apply.
type PatchError struct {
	File string
	Err  error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("apply patch %s: %v", filepath.Base(e.File), e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

// ErrChecksum is wrapped by a FetchError when a download doesn't match its
// sha256 checksum.
var ErrChecksum = errors.New("checksum mismatch")

// Fetcher materializes sources under a cache directory.
type Fetcher struct {
	cacheDir string
	client   *http.Client
	git      *git
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for http(s) downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) Option {
	return func(f *Fetcher) {
		f.git.path = path
	}
}

// NewFetcher returns a Fetcher caching sources under cacheDir.
func NewFetcher(cacheDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		cacheDir: cacheDir,
		client:   http.DefaultClient,
		git:      &git{path: "git"},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Materialize makes the source at rawURL available locally and returns its
// root directory. checksum is the hex sha256 of an archive; it is ignored
// for git sources and skipped when empty. Errors are *FetchError.
func (f *Fetcher) Materialize(ctx context.Context, rawURL, checksum string) (string, error) {
	dir, err := f.materialize(ctx, rawURL, checksum)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	return dir, nil
}

func (f *Fetcher) materialize(ctx context.Context, rawURL, checksum string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(f.cacheDir, cacheKey(rawURL, checksum))

	if isGit(u) {
		ref := u.Fragment
		u.Fragment = ""
		if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
			log.Debugf("source: reuse checkout %s", dest)
			return dest, nil
		}
		log.Debugf("source: git %s at %q", u, ref)
		if err := f.git.sync(ctx, u.String(), ref, dest); err != nil {
			os.RemoveAll(dest)
			return "", err
		}
		return dest, nil
	}

	if _, err := os.Stat(dest); err == nil {
		log.Debugf("source: reuse %s", dest)
		return singleRoot(dest)
	}

	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", err
	}
	archive, err := f.download(ctx, u)
	if err != nil {
		return "", err
	}
	defer os.Remove(archive)

	if checksum != "" {
		if err := verify(archive, checksum); err != nil {
			return "", err
		}
	}

	tmp, err := os.MkdirTemp(f.cacheDir, ".extract-")
	if err != nil {
		return "", err
	}
	if err := extract(archive, archiveName(u), tmp); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	return singleRoot(dest)
}

// ApplyPatch applies patchFile to the tree at dir. Errors are *PatchError.
func (f *Fetcher) ApplyPatch(ctx context.Context, dir, patchFile string) error {
	log.Debugf("source: apply %s", patchFile)
	if err := f.git.apply(ctx, dir, patchFile); err != nil {
		return &PatchError{File: patchFile, Err: err}
	}
	return nil
}

// download stores the archive at u in a temporary file and returns its
// path.
func (f *Fetcher) download(ctx context.Context, u *url.URL) (string, error) {
	var r io.ReadCloser
	switch u.Scheme {
	case "file":
		file, err := os.Open(filepath.FromSlash(u.Path))
		if err != nil {
			return "", err
		}
		r = file
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return "", err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return "", err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", fmt.Errorf("unexpected status %s", resp.Status)
		}
		r = resp.Body
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	defer r.Close()

	tmp, err := os.CreateTemp(f.cacheDir, ".download-")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func verify(path, checksum string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return err
	}
	if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, checksum) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksum, got, checksum)
	}
	return nil
}

// singleRoot returns the only directory in dir when dir holds nothing
// else, as archives of a source tree usually do, and dir otherwise.
func singleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

func isGit(u *url.URL) bool {
	return strings.HasSuffix(u.Path, ".git") || u.Scheme == "git" || u.Scheme == "ssh"
}

func archiveName(u *url.URL) string {
	return strings.ToLower(filepath.Base(u.Path))
}

func cacheKey(rawURL, checksum string) string {
	sum := sha256.Sum256([]byte(rawURL + "\x00" + checksum))
	return hex.EncodeToString(sum[:8])
}
