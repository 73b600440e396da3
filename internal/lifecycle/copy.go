package lifecycle

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// copyTree copies the tree at src into dst, merging with what dst already
// holds. Symbolic links are recreated, not followed.
func copyTree(dst, src string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			return copySymlink(target, path)
		default:
			return copyFile(target, path)
		}
	})
}

// installFile copies src to dst like copyFile, except that a symbolic link
// is recreated, so soname links of shared libraries stay links.
func installFile(dst, src string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return copySymlink(dst, src)
	}
	return copyFile(dst, src)
}

func copySymlink(dst, src string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return err
	}
	os.Remove(dst)
	return os.Symlink(link, dst)
}

// copyFile copies the contents and permissions of src to dst, replacing
// dst. src is followed if it is a symbolic link.
func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	os.Remove(dst)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
