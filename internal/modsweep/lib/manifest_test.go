package lib

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmkrv/modsweep/internal/modsweep/types"
)

// chdirTemp switches the working directory to a fresh temp dir so the
// modlist.json inspection copy lands somewhere isolated.
func chdirTemp(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

// writeModlistContainer writes a zip container holding a single "modlist"
// entry with the given document bytes.
func writeModlistContainer(t *testing.T, path string, document []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(ModlistEntryName)
	require.NoError(t, err)
	_, err = w.Write(document)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

// modlistDocument serializes a Modlist for embedding in a test container.
func modlistDocument(t *testing.T, doc types.Modlist) []byte {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func TestLoadManifest(t *testing.T) {
	t.Run("should load, index and expose archive records", func(t *testing.T) {
		// Arrange
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		doc := types.Modlist{
			Name:    "Test List",
			Version: "1.2.3",
			Archives: []types.ManifestEntry{
				{Name: "foo.zip", Hash: "H1", Size: 100},
				{Name: "bar.7z", Hash: "H2", Size: 200},
			},
		}
		writeModlistContainer(t, path, modlistDocument(t, doc))

		// Act
		m, err := LoadManifest(path)

		// Assert
		require.NoError(t, err)
		defer m.Cleanup()
		assert.Equal(t, 2, m.Len())

		entry, ok := m.ByName("foo.zip")
		require.True(t, ok)
		assert.Equal(t, "H1", entry.Hash)
		assert.Equal(t, int64(100), entry.Size)

		entry, ok = m.ByHash("H2")
		require.True(t, ok)
		assert.Equal(t, "bar.7z", entry.Name)

		_, ok = m.ByName("missing.zip")
		assert.False(t, ok, "ByName must not invent records")
		_, ok = m.ByHash("H3")
		assert.False(t, ok, "ByHash must not invent records")
	})

	t.Run("should persist a pretty-printed inspection copy and clean it up", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		doc := types.Modlist{Archives: []types.ManifestEntry{{Name: "foo.zip", Hash: "H1"}}}
		writeModlistContainer(t, path, modlistDocument(t, doc))

		m, err := LoadManifest(path)
		require.NoError(t, err)

		content, err := os.ReadFile(InspectionFileName)
		require.NoError(t, err, "inspection copy should exist after load")
		assert.Contains(t, string(content), "foo.zip")
		assert.Contains(t, string(content), "\n  ", "inspection copy should be indented")

		require.NoError(t, m.Cleanup())
		_, err = os.Stat(InspectionFileName)
		assert.True(t, os.IsNotExist(err), "Cleanup should remove the inspection copy")

		assert.NoError(t, m.Cleanup(), "Cleanup must be safe to call twice")
	})

	t.Run("should fail on duplicate archive names", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		doc := types.Modlist{Archives: []types.ManifestEntry{
			{Name: "foo.zip", Hash: "H1"},
			{Name: "foo.zip", Hash: "H2"},
		}}
		writeModlistContainer(t, path, modlistDocument(t, doc))

		_, err := LoadManifest(path)

		require.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("should fail on duplicate archive hashes", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		doc := types.Modlist{Archives: []types.ManifestEntry{
			{Name: "foo.zip", Hash: "H1"},
			{Name: "bar.zip", Hash: "H1"},
		}}
		writeModlistContainer(t, path, modlistDocument(t, doc))

		_, err := LoadManifest(path)

		require.ErrorIs(t, err, ErrDuplicateHash)
	})

	t.Run("should fail when the Archives collection is absent", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		writeModlistContainer(t, path, []byte(`{"Name": "no archives here"}`))

		_, err := LoadManifest(path)

		require.ErrorIs(t, err, ErrBadManifest)
	})

	t.Run("should fail on a record without a name or without a hash", func(t *testing.T) {
		chdirTemp(t)
		dir := t.TempDir()

		noName := filepath.Join(dir, "noname.wabbajack")
		writeModlistContainer(t, noName, []byte(`{"Archives": [{"Hash": "H1"}]}`))
		_, err := LoadManifest(noName)
		require.ErrorIs(t, err, ErrBadManifest)

		noHash := filepath.Join(dir, "nohash.wabbajack")
		writeModlistContainer(t, noHash, []byte(`{"Archives": [{"Name": "foo.zip"}]}`))
		_, err = LoadManifest(noHash)
		require.ErrorIs(t, err, ErrBadManifest)
	})

	t.Run("should fail when the container has no modlist entry", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("something-else")
		require.NoError(t, err)
		_, err = w.Write([]byte("{}"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

		_, err = LoadManifest(path)

		require.ErrorIs(t, err, ErrBadManifest)
	})

	t.Run("should fail when the container is not a zip", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		require.NoError(t, os.WriteFile(path, []byte("plainly not a zip"), 0644))

		_, err := LoadManifest(path)

		require.Error(t, err)
	})

	t.Run("should fail on an unparsable document", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		writeModlistContainer(t, path, []byte(`{"Archives": [`))

		_, err := LoadManifest(path)

		require.ErrorIs(t, err, ErrBadManifest)
	})
}

func TestManifestMetaValidation(t *testing.T) {
	writeMeta := func(t *testing.T, manifestPath string, meta types.ManifestMeta) {
		t.Helper()
		raw, err := json.Marshal(meta)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(manifestPath+".meta.json", raw, 0644))
	}

	t.Run("should accept a metadata sidecar that matches the container", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		doc := types.Modlist{Archives: []types.ManifestEntry{{Name: "foo.zip", Hash: "H1"}}}
		writeModlistContainer(t, path, modlistDocument(t, doc))
		info, err := os.Stat(path)
		require.NoError(t, err)
		writeMeta(t, path, types.ManifestMeta{
			DownloadMetadata: types.DownloadMetadata{Size: info.Size(), NumberOfArchives: 1},
		})

		m, err := LoadManifest(path)

		require.NoError(t, err)
		defer m.Cleanup()
	})

	t.Run("should fail on a declared size that contradicts the container", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		doc := types.Modlist{Archives: []types.ManifestEntry{{Name: "foo.zip", Hash: "H1"}}}
		writeModlistContainer(t, path, modlistDocument(t, doc))
		writeMeta(t, path, types.ManifestMeta{
			DownloadMetadata: types.DownloadMetadata{Size: 12345, NumberOfArchives: 1},
		})

		_, err := LoadManifest(path)

		require.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("should fail on a non-positive archive count", func(t *testing.T) {
		chdirTemp(t)
		path := filepath.Join(t.TempDir(), "list.wabbajack")
		doc := types.Modlist{Archives: []types.ManifestEntry{{Name: "foo.zip", Hash: "H1"}}}
		writeModlistContainer(t, path, modlistDocument(t, doc))
		info, err := os.Stat(path)
		require.NoError(t, err)
		writeMeta(t, path, types.ManifestMeta{
			DownloadMetadata: types.DownloadMetadata{Size: info.Size(), NumberOfArchives: 0},
		})

		_, err = LoadManifest(path)

		require.ErrorIs(t, err, ErrBadManifest)
	})
}

func TestGameFileSourced(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "list.wabbajack")
	document := []byte(`{"Archives": [
		{"Name": "game.esm", "Hash": "H1",
		 "State": {"$type": "GameFileSourceDownloader, Wabbajack.Lib", "Game": "SkyrimSpecialEdition"}},
		{"Name": "mod.zip", "Hash": "H2",
		 "State": {"$type": "NexusDownloader, Wabbajack.Lib", "ModID": 7}},
		{"Name": "stateless.zip", "Hash": "H3"}
	]}`)
	writeModlistContainer(t, path, document)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	defer m.Cleanup()

	gameFile, ok := m.ByName("game.esm")
	require.True(t, ok)
	assert.True(t, m.GameFileSourced(gameFile))

	nexus, ok := m.ByName("mod.zip")
	require.True(t, ok)
	assert.False(t, m.GameFileSourced(nexus))

	stateless, ok := m.ByName("stateless.zip")
	require.True(t, ok)
	assert.False(t, m.GameFileSourced(stateless), "an absent state never marks a game file")
}
