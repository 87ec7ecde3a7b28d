package config

import (
	"os"
	"path"
	"path/filepath"

	"golang.org/x/xerrors"
)

const rootDirName = ".nodeward"

// EnvRoot overrides root discovery when set.
const EnvRoot = "NODEWARD_ROOT"

// Root locates the config root. The NODEWARD_ROOT environment variable wins.
// Otherwise the nearest directory named ".nodeward" is used, starting at the
// current directory and walking up. As a last resort, $HOME/.nodeward is used
// if it exists. If nothing is found, ErrNoRoot is returned.
func Root() (string, error) {
	if root := os.Getenv(EnvRoot); root != "" {
		info, err := os.Stat(root)
		if err != nil {
			return "", xerrors.Errorf("%s=%s: %v: %w", EnvRoot, root, err, ErrNoRoot)
		}
		if !info.Mode().IsDir() {
			return "", xerrors.Errorf("%s=%s not a directory: %w", EnvRoot, root, ErrNoRoot)
		}
		return root, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for lastDir := ""; dir != lastDir; lastDir, dir = dir, path.Dir(dir) {
		filename := dir + "/" + rootDirName
		info, err := os.Stat(filename)
		if err != nil && os.IsNotExist(err) {
			continue
		}
		if err == nil && !info.Mode().IsDir() {
			return "", xerrors.Errorf("%s not a directory: %w", filename, ErrNoRoot)
		}
		return filename, err
	}

	if home, err := os.UserHomeDir(); err == nil {
		filename := filepath.Join(home, rootDirName)
		if info, err := os.Stat(filename); err == nil && info.Mode().IsDir() {
			return filename, nil
		}
	}
	return "", ErrNoRoot
}

// DefaultRoot returns the path where "nodeward init" creates a new root when
// none exists yet: $HOME/.nodeward.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, rootDirName), nil
}
