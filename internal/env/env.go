// Package env locates the directories llrecipe keeps its state in.
package env

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the root of all llrecipe directories.
const HomeEnv = "LLRECIPE_HOME"

// WorkDir returns the root directory, <UserCacheDir>/.llrecipe unless
// LLRECIPE_HOME is set.
func WorkDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".llrecipe"), nil
}

// SourceCacheDir returns the directory downloaded sources are cached in.
// It is created with 0700 permissions if it doesn't exist.
func SourceCacheDir() (string, error) {
	return subdir("sources")
}

// PackageDir returns the directory installed packages are placed in.
// It is created with 0700 permissions if it doesn't exist.
func PackageDir() (string, error) {
	return subdir("packages")
}

func subdir(name string) (string, error) {
	workDir, err := WorkDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(workDir, name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
