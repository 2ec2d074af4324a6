//go:build unix

package dns

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript writes an executable shell script, recording its arguments and
// standard input next to it.
func writeScript(t *testing.T, body string) (path, argsFile, stdinFile string) {
	t.Helper()
	dir := t.TempDir()
	path = filepath.Join(dir, "helper")
	argsFile = filepath.Join(dir, "args")
	stdinFile = filepath.Join(dir, "stdin")
	script := "#!/bin/sh\n" +
		"echo \"$@\" > " + argsFile + "\n" +
		"cat > " + stdinFile + "\n" +
		body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, argsFile, stdinFile
}

func TestHelperNotApplicable(t *testing.T) {
	dir := t.TempDir()
	notExec := filepath.Join(dir, "not-exec")
	require.NoError(t, os.WriteFile(notExec, []byte("#!/bin/sh\n"), 0o644))

	for _, path := range []string{filepath.Join(dir, "missing"), notExec, dir} {
		h := helper{path: path, timeout: time.Second}
		assert.ErrorIs(t, h.run(nil, nil), ErrNotApplicable, path)
	}
}

func TestHelperExitCode(t *testing.T) {
	path, _, _ := writeScript(t, "echo boom; exit 3")
	h := helper{path: path, timeout: 5 * time.Second}
	err := h.run([]string{"-a", "x"}, []byte("data"))
	require.Error(t, err)
	var herr *HelperError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, 3, herr.ExitCode)
	assert.Equal(t, "boom", herr.Output)
	assert.False(t, errors.Is(err, ErrNotApplicable))
}

func TestHelperTimeout(t *testing.T) {
	path, _, _ := writeScript(t, "sleep 10")
	h := helper{path: path, timeout: 100 * time.Millisecond}
	start := time.Now()
	err := h.run(nil, nil)
	require.Error(t, err)
	var herr *HelperError
	require.True(t, errors.As(err, &herr))
	assert.Contains(t, herr.Status, "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestOpenresolvManager(t *testing.T) {
	path, argsFile, stdinFile := writeScript(t, "exit 0")
	l := zerolog.Nop()
	m := NewOSConfigurator(ModeResolvconf, Options{ResolvconfPath: path, HelperTimeout: 5 * time.Second, Logger: &l})
	assert.Equal(t, ModeResolvconf, m.Mode())

	require.NoError(t, m.SetDNS(testConfig))
	assert.Equal(t, "-a dnsmgr\n", readFile(t, argsFile))
	assert.Equal(t, testConfigContent, readFile(t, stdinFile))

	require.NoError(t, m.SetDNS(OSConfig{Options: []string{"rotate"}}))
	assert.Equal(t, "-d dnsmgr\n", readFile(t, argsFile))
}

func TestNetconfigManager(t *testing.T) {
	path, argsFile, stdinFile := writeScript(t, "exit 0")
	l := zerolog.Nop()
	m := NewOSConfigurator(ModeNetconfig, Options{NetconfigPath: path, HelperTimeout: 5 * time.Second, Logger: &l})
	assert.Equal(t, ModeNetconfig, m.Mode())

	cfg := OSConfig{
		Nameservers:   []string{"8.8.8.8", "1.1.1.1"},
		SearchDomains: []string{"corp.example"},
		NISDomain:     "nis.example",
		NISServers:    []string{"10.0.0.5"},
	}
	require.NoError(t, m.SetDNS(cfg))
	assert.Equal(t, "modify --service dnsmgr\n", readFile(t, argsFile))
	want := "INTERFACE='dnsmgr'\n" +
		"DNSSEARCH='corp.example'\n" +
		"DNSSERVERS='8.8.8.8 1.1.1.1'\n" +
		"NISDOMAIN='nis.example'\n" +
		"NISSERVERS='10.0.0.5'\n"
	assert.Equal(t, want, readFile(t, stdinFile))
}

func TestHelperMissingIsNotApplicable(t *testing.T) {
	l := zerolog.Nop()
	missing := filepath.Join(t.TempDir(), "missing")
	for _, mode := range []Mode{ModeResolvconf, ModeNetconfig} {
		m := NewOSConfigurator(mode, Options{ResolvconfPath: missing, NetconfigPath: missing, Logger: &l})
		assert.ErrorIs(t, m.SetDNS(testConfig), ErrNotApplicable, mode.String())
	}
}
