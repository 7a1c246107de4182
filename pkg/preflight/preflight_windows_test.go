//go:build windows

package preflight

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func TestCheckReplicaAccessible_Windows(t *testing.T) {
	t.Run("Error on Non-Existent Drive", func(t *testing.T) {
		// Find a drive letter that is guaranteed not to exist on this system.
		drives, err := windows.GetLogicalDrives()
		require.NoError(t, err)

		nonExistentDrive := ""
		for letter := 'A'; letter <= 'Z'; letter++ {
			if drives&(uint32(1)<<(letter-'A')) == 0 {
				nonExistentDrive = string(letter) + `:\`
				break
			}
		}
		if nonExistentDrive == "" {
			t.Skip("could not find a non-existent drive letter; all letters A-Z are in use")
		}

		err = CheckReplicaAccessible(filepath.Join(nonExistentDrive, "nonexistent", "replica"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "volume root does not exist")
	})

	t.Run("UNC Path To Missing Share", func(t *testing.T) {
		err := CheckReplicaAccessible(`\\server\share\replica`)
		require.Error(t, err)
	})
}
