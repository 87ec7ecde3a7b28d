package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreLoad(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")

	cfg := Default()
	cfg.Control.Address = "127.0.0.1:5031"
	cfg.Control.ServerKey = "tF64W8zV0Ih0XkDB84RCSJ0ZVI3LTLcUQ-kBSdLmYGc"
	cfg.Control.QueryTimeout = Duration(3 * time.Second)
	require.NoError(t, cfg.Store(root))

	got, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, cfg, got)

	key, err := got.Control.ServerPublicKey()
	require.NoError(t, err)
	require.Len(t, []byte(key), 32)
}

func TestLoadMissingAddress(t *testing.T) {
	root := t.TempDir()
	err := os.WriteFile(filepath.Join(root, FileName), []byte("[control]\nserver_key = \"x\"\n"), 0600)
	require.NoError(t, err)

	_, err = Load(root)
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestLoadUnknownKey(t *testing.T) {
	root := t.TempDir()
	data := "[control]\naddress = \"127.0.0.1:5031\"\nsorver_key = \"x\"\n"
	err := os.WriteFile(filepath.Join(root, FileName), []byte(data), 0600)
	require.NoError(t, err)

	_, err = Load(root)
	require.Error(t, err)
	require.Contains(t, err.Error(), "sorver_key")
}

func TestLoadDefaultsTimeout(t *testing.T) {
	root := t.TempDir()
	data := "[control]\naddress = \"127.0.0.1:5031\"\n"
	err := os.WriteFile(filepath.Join(root, FileName), []byte(data), 0600)
	require.NoError(t, err)

	cfg, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, Default().Control.QueryTimeout, cfg.Control.QueryTimeout)
}

func TestServerPublicKeyErrors(t *testing.T) {
	c := Control{}
	_, err := c.ServerPublicKey()
	require.ErrorIs(t, err, ErrIncomplete)

	c.ServerKey = "not base64!!"
	_, err = c.ServerPublicKey()
	require.Error(t, err)
}

func TestRootEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvRoot, dir)

	root, err := Root()
	require.NoError(t, err)
	require.Equal(t, dir, root)
}

func TestRootEnvNotDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0600))
	t.Setenv(EnvRoot, file)

	_, err := Root()
	require.ErrorIs(t, err, ErrNoRoot)
}

func TestRootWalkUp(t *testing.T) {
	t.Setenv(EnvRoot, "")

	base := t.TempDir()
	rootDir := filepath.Join(base, rootDirName)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "a", "b"), 0700))
	require.NoError(t, os.Mkdir(rootDir, 0700))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(filepath.Join(base, "a", "b")))
	t.Cleanup(func() {
		os.Chdir(wd)
	})

	got, err := Root()
	require.NoError(t, err)
	// Resolve symlinks, t.TempDir may live under one on some systems.
	want, err := filepath.EvalSymlinks(rootDir)
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	require.Equal(t, want, gotResolved)
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	require.Equal(t, Duration(90*time.Second), d)
	require.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := Duration(2 * time.Minute).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "2m0s", string(text))
}
