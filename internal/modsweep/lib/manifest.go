package lib

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tmkrv/modsweep/internal/modsweep/types"
)

// ModlistEntryName is the name of the single document entry inside the
// manifest container.
const ModlistEntryName = "modlist"

// InspectionFileName is where the decoded modlist document is persisted in
// pretty-printed form for inspection after a run.
const InspectionFileName = "modlist.json"

// gameFileStateMarkers are the installer-state type identifiers that mark a
// manifest entry as sourced from the game's own files. The modlist schema is
// externally controlled, so this stays a substring check over the raw State
// payload rather than a structured $type dispatch.
var gameFileStateMarkers = []string{
	"GameFileSourceDownloader",
}

// Manifest is the loaded, validated, indexed modlist. Read-only after
// LoadManifest returns.
type Manifest struct {
	Path    string
	Modlist types.Modlist

	byName map[string]types.ManifestEntry
	byHash map[string]types.ManifestEntry

	inspectionPath string
}

// LoadManifest opens the manifest container, extracts and validates the
// embedded modlist document, and builds the name and hash indexes. It also
// writes a pretty-printed copy of the document to InspectionFileName;
// Cleanup removes that copy.
//
// Every schema violation is fatal here: a missing or duplicate key, an
// unparsable document, or a container size that contradicts the manifest's
// own metadata all return an error before any reconciliation can start.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := readModlistEntry(path)
	if err != nil {
		return nil, err
	}

	var doc types.Modlist
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s is not valid JSON: %v", ErrBadManifest, ModlistEntryName, err)
	}

	inspectionPath, err := writeInspectionCopy(raw)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Path:           path,
		Modlist:        doc,
		byName:         make(map[string]types.ManifestEntry, len(doc.Archives)),
		byHash:         make(map[string]types.ManifestEntry, len(doc.Archives)),
		inspectionPath: inspectionPath,
	}

	if doc.Archives == nil {
		return nil, fmt.Errorf("%w: tag \"Archives\" was not found in %s", ErrBadManifest, path)
	}

	for _, entry := range doc.Archives {
		if entry.Name == "" {
			return nil, fmt.Errorf("%w: archive record without a Name in %s", ErrBadManifest, path)
		}
		if entry.Hash == "" {
			return nil, fmt.Errorf("%w: archive record %q has no Hash in %s", ErrBadManifest, entry.Name, path)
		}
		if _, exists := m.byName[entry.Name]; exists {
			return nil, fmt.Errorf("%w: %q in %s", ErrDuplicateName, entry.Name, path)
		}
		if prev, exists := m.byHash[entry.Hash]; exists {
			return nil, fmt.Errorf("%w: %q and %q share hash %s in %s",
				ErrDuplicateHash, prev.Name, entry.Name, entry.Hash, path)
		}
		m.byName[entry.Name] = entry
		m.byHash[entry.Hash] = entry
	}

	if err := validateManifestMeta(path); err != nil {
		return nil, err
	}

	return m, nil
}

// readModlistEntry reads the bytes of the single "modlist" entry from the
// zip container at path.
func readModlistEntry(path string) ([]byte, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("could not open modlist container %s: %w", path, err)
	}
	defer reader.Close()

	for _, f := range reader.File {
		if f.Name != ModlistEntryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("could not open %s entry in %s: %w", ModlistEntryName, path, err)
		}
		defer rc.Close()

		raw, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("could not read %s entry in %s: %w", ModlistEntryName, path, err)
		}
		return raw, nil
	}

	return nil, fmt.Errorf("%w: no %s entry in %s", ErrBadManifest, ModlistEntryName, path)
}

// writeInspectionCopy persists the raw modlist document pretty-printed. It
// round-trips through a generic value so unknown fields survive intact.
func writeInspectionCopy(raw []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("%w: %s is not valid JSON: %v", ErrBadManifest, ModlistEntryName, err)
	}

	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(InspectionFileName, pretty, 0644); err != nil {
		return "", fmt.Errorf("could not write %s: %w", InspectionFileName, err)
	}
	return InspectionFileName, nil
}

// validateManifestMeta cross-checks the container against its optional
// .meta.json sidecar. Absence of the sidecar is fine; a contradiction in it
// is not.
func validateManifestMeta(manifestPath string) error {
	metaPath := manifestPath + ".meta.json"
	raw, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read manifest metadata %s: %w", metaPath, err)
	}

	var meta types.ManifestMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("%w: %s is not valid JSON: %v", ErrBadManifest, metaPath, err)
	}

	if meta.DownloadMetadata.NumberOfArchives < 1 {
		return fmt.Errorf("%w: NumberOfArchives must be positive in %s", ErrBadManifest, metaPath)
	}

	info, err := os.Stat(manifestPath)
	if err != nil {
		return fmt.Errorf("could not stat modlist container %s: %w", manifestPath, err)
	}
	if info.Size() != meta.DownloadMetadata.Size {
		return fmt.Errorf("%w: %s declares %d bytes, container is %d bytes",
			ErrSizeMismatch, metaPath, meta.DownloadMetadata.Size, info.Size())
	}

	return nil
}

// ByName returns the manifest entry with the given archive name, if any.
func (m *Manifest) ByName(name string) (types.ManifestEntry, bool) {
	entry, ok := m.byName[name]
	return entry, ok
}

// ByHash returns the manifest entry with the given content hash, if any.
func (m *Manifest) ByHash(hash string) (types.ManifestEntry, bool) {
	entry, ok := m.byHash[hash]
	return entry, ok
}

// Len returns the number of archive records in the manifest.
func (m *Manifest) Len() int {
	return len(m.byName)
}

// GameFileSourced reports whether an entry's installer state marks it as
// coming from already-installed game files. Such entries never have a
// downloaded archive and are excluded from missing-archive reporting.
func (m *Manifest) GameFileSourced(entry types.ManifestEntry) bool {
	if len(entry.State) == 0 {
		return false
	}
	state := string(entry.State)
	for _, marker := range gameFileStateMarkers {
		if strings.Contains(state, marker) {
			return true
		}
	}
	return false
}

// Cleanup removes the pretty-printed inspection copy written at load time.
// It is safe to call more than once.
func (m *Manifest) Cleanup() error {
	if m.inspectionPath == "" {
		return nil
	}
	err := os.Remove(m.inspectionPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	m.inspectionPath = ""
	return nil
}
