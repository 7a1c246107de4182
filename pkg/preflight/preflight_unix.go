//go:build !windows

package preflight

import (
	"golang.org/x/sys/unix"
)

// checkReadable verifies that the current user may list and enter the directory.
func checkReadable(path string) error {
	return unix.Access(path, unix.R_OK|unix.X_OK)
}

// checkVolumeExists is a no-op on Unix; there are no drive letters.
func checkVolumeExists(path string) error {
	return nil
}
