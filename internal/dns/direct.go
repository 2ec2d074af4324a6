package dns

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Default resolver file locations.
const (
	DefaultResolvConfPath = "/etc/resolv.conf"
	DefaultPrivatePath    = "/run/dnsmgr/resolv.conf"
)

// Paths are the file locations used when writing resolver state.
type Paths struct {
	// ResolvConf is the system resolver file.
	ResolvConf string
	// Private is the private copy of the merged config, always written.
	Private string
	// SymlinkTmp is where the symlink is created before being renamed over ResolvConf.
	SymlinkTmp string
}

// WithDefaults returns p with empty fields set to their default value.
func (p Paths) WithDefaults() Paths {
	if p.ResolvConf == "" {
		p.ResolvConf = DefaultResolvConfPath
	}
	if p.Private == "" {
		p.Private = DefaultPrivatePath
	}
	if p.SymlinkTmp == "" {
		p.SymlinkTmp = filepath.Join(filepath.Dir(p.ResolvConf), "."+filepath.Base(p.ResolvConf)+"."+Identity)
	}
	return p
}

// directManager writes resolver files itself, without any helper program.
// It serves the unmanaged, immutable, file and symlink modes.
type directManager struct {
	mode   Mode
	paths  Paths
	logger *zerolog.Logger
}

// NewDirectManager returns an OSConfigurator writing resolver files in the given mode.
// Modes relying on a helper program are not accepted and are treated as ModeUnmanaged.
func NewDirectManager(mode Mode, paths Paths, logger *zerolog.Logger) OSConfigurator {
	switch mode {
	case ModeUnmanaged, ModeImmutable, ModeFile, ModeSymlink:
	default:
		mode = ModeUnmanaged
	}
	return &directManager{mode: mode, paths: paths.WithDefaults(), logger: logger}
}

func (m *directManager) Mode() Mode {
	return m.mode
}

func (m *directManager) SetDNS(cfg OSConfig) error {
	content := ResolvConfContent(cfg)

	if m.mode == ModeUnmanaged || m.mode == ModeImmutable {
		// Someone else manages resolv.conf content, yet resolv.conf points to our
		// private file. Leave the private file alone, too.
		if target, err := os.Readlink(m.paths.ResolvConf); err == nil && target == m.paths.Private {
			m.logger.Debug().Msgf("not updating %s since %s points to it", m.paths.Private, m.paths.ResolvConf)
			return nil
		}
	}

	var errs *multierror.Error
	if m.mode == ModeFile {
		if err := os.WriteFile(m.paths.ResolvConf, content, 0o644); err != nil {
			m.logger.Debug().Err(err).Msgf("could not write %s", m.paths.ResolvConf)
			errs = multierror.Append(errs, &FileError{Op: "write", Path: m.paths.ResolvConf, Err: err})
		}
	}

	if err := writeFileAtomic(m.paths.Private, content); err != nil {
		errs = multierror.Append(errs, err)
		return errs.ErrorOrNil()
	}

	if m.mode != ModeSymlink {
		return errs.ErrorOrNil()
	}
	if !m.shouldTakeOver() {
		return errs.ErrorOrNil()
	}
	if err := m.takeOver(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// shouldTakeOver reports whether resolv.conf may be replaced by a symlink to
// the private file. That is the case when resolv.conf does not exist, is already
// our symlink, or is a dangling symlink. A regular file or a symlink to another
// existing file is owned by someone else.
func (m *directManager) shouldTakeOver() bool {
	fi, err := os.Lstat(m.paths.ResolvConf)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	if err != nil {
		m.logger.Debug().Err(err).Msgf("could not stat %s", m.paths.ResolvConf)
		return false
	}
	if fi.Mode()&fs.ModeSymlink == 0 {
		m.logger.Debug().Msgf("%s is not a symlink, leaving it alone", m.paths.ResolvConf)
		return false
	}
	if _, err := os.Stat(m.paths.ResolvConf); err != nil {
		m.logger.Debug().Msgf("%s is a dangling symlink, replacing it", m.paths.ResolvConf)
		return true
	}
	target, err := os.Readlink(m.paths.ResolvConf)
	if err != nil {
		return false
	}
	if target != m.paths.Private {
		m.logger.Debug().Msgf("%s points to %s, leaving it alone", m.paths.ResolvConf, target)
		return false
	}
	return true
}

func (m *directManager) takeOver() error {
	tmp := m.paths.SymlinkTmp
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &FileError{Op: "remove", Path: tmp, Err: err}
	}
	if err := os.Symlink(m.paths.Private, tmp); err != nil {
		return &FileError{Op: "symlink", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, m.paths.ResolvConf); err != nil {
		_ = os.Remove(tmp)
		return &FileError{Op: "rename", Path: m.paths.ResolvConf, Err: err}
	}
	return nil
}

// writeFileAtomic writes content to a temporary file next to path, then renames it over path.
func writeFileAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &FileError{Op: "create directory for", Path: path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return &FileError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &FileError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
