package lib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmkrv/modsweep/internal/modsweep/types"
)

// writeSidecarFile writes raw sidecar bytes to a temp path and returns it.
func writeSidecarFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip.meta")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestReadSidecar(t *testing.T) {
	t.Run("should read explicit installed and removed flags", func(t *testing.T) {
		// Arrange
		path := writeSidecarFile(t, []byte("[General]\ninstalled=true\nremoved=false\n"))

		// Act
		sc, err := ReadSidecar(path)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, types.FlagTrue, sc.Installed)
		assert.Equal(t, types.FlagFalse, sc.Removed)
		assert.Equal(t, path, sc.Path)
	})

	t.Run("should treat any value other than true as false", func(t *testing.T) {
		path := writeSidecarFile(t, []byte("[General]\ninstalled=yes\nremoved=True\n"))

		sc, err := ReadSidecar(path)

		require.NoError(t, err)
		assert.Equal(t, types.FlagFalse, sc.Installed, "'yes' is not the literal 'true'")
		assert.Equal(t, types.FlagFalse, sc.Removed, "the check is case-sensitive")
	})

	t.Run("should default absent keys to unknown, never false", func(t *testing.T) {
		path := writeSidecarFile(t, []byte("[General]\nremoved=true\n"))

		sc, err := ReadSidecar(path)

		require.NoError(t, err)
		assert.Equal(t, types.FlagUnknown, sc.Installed)
		assert.Equal(t, types.FlagTrue, sc.Removed)
	})

	t.Run("should default everything to unknown when the section is absent", func(t *testing.T) {
		path := writeSidecarFile(t, []byte("[Other]\ninstalled=true\n"))

		sc, err := ReadSidecar(path)

		require.NoError(t, err)
		assert.Equal(t, types.FlagUnknown, sc.Installed)
		assert.Equal(t, types.FlagUnknown, sc.Removed)
	})

	t.Run("should tolerate extra sections and keys around the flags", func(t *testing.T) {
		content := "[General]\n" +
			"gameName=SkyrimSpecialEdition\n" +
			"modID=12345\n" +
			"installed=true\n" +
			"removed=true\n" +
			"[Other]\n" +
			"whatever=1\n"
		path := writeSidecarFile(t, []byte(content))

		sc, err := ReadSidecar(path)

		require.NoError(t, err)
		assert.Equal(t, types.FlagTrue, sc.Installed)
		assert.Equal(t, types.FlagTrue, sc.Removed)
	})

	t.Run("should decode non-ASCII sidecar content", func(t *testing.T) {
		// Mod names in sidecars routinely carry accented characters; the
		// encoding is detected, not assumed.
		content := "[General]\nmodName=Höllenfeuer Überarbeitung größerer Städte\ninstalled=true\n"
		path := writeSidecarFile(t, []byte(content))

		sc, err := ReadSidecar(path)

		require.NoError(t, err)
		assert.Equal(t, types.FlagTrue, sc.Installed)
		assert.Equal(t, types.FlagUnknown, sc.Removed)
	})

	t.Run("should fail on a missing file", func(t *testing.T) {
		_, err := ReadSidecar(filepath.Join(t.TempDir(), "nope.meta"))

		require.Error(t, err)
	})

	t.Run("should fail on unparsable sidecar text", func(t *testing.T) {
		path := writeSidecarFile(t, []byte("[General\ninstalled=true\n"))

		_, err := ReadSidecar(path)

		require.Error(t, err, "an unclosed section must not be silently accepted")
	})
}
