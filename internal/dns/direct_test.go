//go:build unix

package dns

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	return Paths{
		ResolvConf: filepath.Join(dir, "etc", "resolv.conf"),
		Private:    filepath.Join(dir, "run", "resolv.conf"),
	}.WithDefaults()
}

func newTestDirect(t *testing.T, mode Mode, paths Paths) OSConfigurator {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.ResolvConf), 0o755))
	l := zerolog.Nop()
	return NewDirectManager(mode, paths, &l)
}

var testConfig = OSConfig{Nameservers: []string{"8.8.8.8"}, SearchDomains: []string{"corp.example"}}

const testConfigContent = "# Generated by dnsmgr\nsearch corp.example\nnameserver 8.8.8.8\n"

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestDirectFileMode(t *testing.T) {
	paths := testPaths(t)
	m := newTestDirect(t, ModeFile, paths)
	require.NoError(t, m.SetDNS(testConfig))

	assert.Equal(t, testConfigContent, readFile(t, paths.ResolvConf))
	assert.Equal(t, testConfigContent, readFile(t, paths.Private))
	fi, err := os.Lstat(paths.ResolvConf)
	require.NoError(t, err)
	assert.True(t, fi.Mode().IsRegular())
	assert.NoFileExists(t, paths.Private+".tmp")
}

func TestDirectFileModeWriteError(t *testing.T) {
	paths := testPaths(t)
	m := newTestDirect(t, ModeFile, paths)
	// A directory can not be written as a file.
	require.NoError(t, os.Mkdir(paths.ResolvConf, 0o755))

	err := m.SetDNS(testConfig)
	require.Error(t, err)
	var ferr *FileError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, paths.ResolvConf, ferr.Path)
	// The private copy is still written.
	assert.Equal(t, testConfigContent, readFile(t, paths.Private))
}

func TestDirectFileModeBothFail(t *testing.T) {
	paths := testPaths(t)
	m := newTestDirect(t, ModeFile, paths)
	require.NoError(t, os.Mkdir(paths.ResolvConf, 0o755))
	require.NoError(t, os.MkdirAll(paths.Private, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(paths.Private, "busy"), nil, 0o644))

	err := m.SetDNS(testConfig)
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
}

func TestDirectSymlinkMode(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, paths Paths)
		takeOver bool
	}{
		{"missing", func(t *testing.T, paths Paths) {}, true},
		{"own symlink", func(t *testing.T, paths Paths) {
			require.NoError(t, os.Symlink(paths.Private, paths.ResolvConf))
		}, true},
		{"dangling symlink", func(t *testing.T, paths Paths) {
			require.NoError(t, os.Symlink(filepath.Join(filepath.Dir(paths.ResolvConf), "gone"), paths.ResolvConf))
		}, true},
		{"foreign symlink", func(t *testing.T, paths Paths) {
			other := filepath.Join(filepath.Dir(paths.ResolvConf), "other.conf")
			require.NoError(t, os.WriteFile(other, []byte("nameserver 1.1.1.1\n"), 0o644))
			require.NoError(t, os.Symlink(other, paths.ResolvConf))
		}, false},
		{"regular file", func(t *testing.T, paths Paths) {
			require.NoError(t, os.WriteFile(paths.ResolvConf, []byte("nameserver 1.1.1.1\n"), 0o644))
		}, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			paths := testPaths(t)
			m := newTestDirect(t, ModeSymlink, paths)
			tc.setup(t, paths)

			require.NoError(t, m.SetDNS(testConfig))
			assert.Equal(t, testConfigContent, readFile(t, paths.Private))
			target, err := os.Readlink(paths.ResolvConf)
			if tc.takeOver {
				require.NoError(t, err)
				assert.Equal(t, paths.Private, target)
				assert.Equal(t, testConfigContent, readFile(t, paths.ResolvConf))
			} else {
				assert.NotEqual(t, paths.Private, target)
				assert.Equal(t, "nameserver 1.1.1.1\n", readFile(t, paths.ResolvConf))
			}
			_, err = os.Lstat(paths.SymlinkTmp)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestDirectSymlinkModeIdempotent(t *testing.T) {
	paths := testPaths(t)
	m := newTestDirect(t, ModeSymlink, paths)

	require.NoError(t, m.SetDNS(testConfig))
	first, err := os.Readlink(paths.ResolvConf)
	require.NoError(t, err)
	firstContent := readFile(t, paths.ResolvConf)

	require.NoError(t, m.SetDNS(testConfig))
	second, err := os.Readlink(paths.ResolvConf)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, firstContent, readFile(t, paths.ResolvConf))

	entries, err := os.ReadDir(filepath.Dir(paths.ResolvConf))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDirectUnmanagedMode(t *testing.T) {
	t.Run("private only", func(t *testing.T) {
		paths := testPaths(t)
		m := newTestDirect(t, ModeUnmanaged, paths)
		require.NoError(t, os.WriteFile(paths.ResolvConf, []byte("nameserver 1.1.1.1\n"), 0o644))

		require.NoError(t, m.SetDNS(testConfig))
		assert.Equal(t, testConfigContent, readFile(t, paths.Private))
		assert.Equal(t, "nameserver 1.1.1.1\n", readFile(t, paths.ResolvConf))
	})
	t.Run("resolv.conf points to private", func(t *testing.T) {
		paths := testPaths(t)
		m := newTestDirect(t, ModeUnmanaged, paths)
		require.NoError(t, os.MkdirAll(filepath.Dir(paths.Private), 0o755))
		require.NoError(t, os.WriteFile(paths.Private, []byte("nameserver 9.9.9.9\n"), 0o644))
		require.NoError(t, os.Symlink(paths.Private, paths.ResolvConf))

		require.NoError(t, m.SetDNS(testConfig))
		assert.Equal(t, "nameserver 9.9.9.9\n", readFile(t, paths.Private))
	})
}

func TestNewDirectManagerMode(t *testing.T) {
	paths := testPaths(t)
	assert.Equal(t, ModeImmutable, newTestDirect(t, ModeImmutable, paths).Mode())
	assert.Equal(t, ModeUnmanaged, newTestDirect(t, ModeResolvconf, paths).Mode())
	assert.Equal(t, filepath.Join(filepath.Dir(paths.ResolvConf), ".resolv.conf.dnsmgr"), paths.SymlinkTmp)
}
