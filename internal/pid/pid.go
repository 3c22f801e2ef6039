// Package pid guards against a second collector instance. The store is
// single-writer; two collectors against the same database would
// interleave cycles.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mon5termatt/apc-web/internal/errors"
)

const pidFile = "apcwebd.pid"

// Write writes the current process ID to the PID file, refusing when a
// live process already holds it.
func Write() error {
	errFactory := errors.New()
	pid := os.Getpid()
	path := filepath.Join(os.TempDir(), pidFile)

	if _, err := os.Stat(path); err == nil {
		bytes, err := os.ReadFile(path)
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		oldPID, err := strconv.Atoi(string(bytes))
		if err != nil {
			return errFactory.Wrap(errors.ErrInternal, err)
		}

		process, err := os.FindProcess(oldPID)
		if err == nil && process.Signal(syscall.Signal(0)) == nil {
			return errFactory.WithData(errors.ErrAlreadyRunning, oldPID)
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove deletes the PID file on shutdown.
func Remove() {
	os.Remove(filepath.Join(os.TempDir(), pidFile))
}
