package lib

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmkrv/modsweep/internal/modsweep/types"
)

// archiveExtensions is the whitelist of file extensions treated as mod
// archives, compared case-insensitively.
var archiveExtensions = map[string]bool{
	".7z":  true,
	".rar": true,
	".zip": true,
}

// SidecarSuffix is appended to an archive path to form its companion
// metadata path.
const SidecarSuffix = ".meta"

// DownloadSet holds the archives discovered in a downloads directory.
type DownloadSet struct {
	Dir      string
	archives []*types.Archive
}

// ScanDownloads enumerates candidate archive files under dir, recursively or
// a single level deep, honoring the directory's exclusion rules. Each match
// becomes one Archive with its stat size captured and its expected sidecar
// path attached. Discovery order carries no meaning and must not be relied
// upon.
//
// Resolving the same archive path twice is an error; so is finding nothing
// at all, which returns ErrNoArchives so the caller can distinguish an empty
// directory from a fully reconciled one.
func ScanDownloads(dir string, recursive bool) (*DownloadSet, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve downloads directory: %w", err)
	}
	if _, err := os.Stat(absDir); err != nil {
		return nil, fmt.Errorf("downloads directory is not accessible: %w", err)
	}

	set := &DownloadSet{Dir: absDir}
	seen := make(map[string]bool)

	collect := func(path string, info fs.FileInfo) error {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			resolved = path
		}
		if seen[resolved] {
			return fmt.Errorf("%w: %s", ErrDuplicateArchive, resolved)
		}
		seen[resolved] = true

		set.archives = append(set.archives, &types.Archive{
			Path:        path,
			Name:        filepath.Base(path),
			Size:        info.Size(),
			SidecarPath: path + SidecarSuffix,
			Keep:        true,
		})
		return nil
	}

	if recursive {
		err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == absDir {
				return nil
			}
			if IsPathIgnored(absDir, path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !isArchiveName(d.Name()) {
				return nil
			}
			info, err := archiveInfo(path, d)
			if err != nil || info == nil {
				return err
			}
			return collect(path, info)
		})
	} else {
		var entries []fs.DirEntry
		entries, err = os.ReadDir(absDir)
		if err == nil {
			for _, entry := range entries {
				path := filepath.Join(absDir, entry.Name())
				if IsPathIgnored(absDir, path) {
					continue
				}
				if !isArchiveName(entry.Name()) {
					continue
				}
				var info fs.FileInfo
				info, err = archiveInfo(path, entry)
				if err != nil {
					break
				}
				if info == nil {
					continue
				}
				if err = collect(path, info); err != nil {
					break
				}
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not scan downloads directory %s: %w", absDir, err)
	}

	if len(set.archives) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoArchives, absDir)
	}

	return set, nil
}

// Archives returns the discovered archives. The slice is the set's own
// backing store; callers mutate the entries during reconciliation but must
// not grow or reorder it.
func (s *DownloadSet) Archives() []*types.Archive {
	return s.archives
}

// Len returns the number of discovered archives.
func (s *DownloadSet) Len() int {
	return len(s.archives)
}

// ByName returns the discovered archive with the given filename, if any.
func (s *DownloadSet) ByName(name string) (*types.Archive, bool) {
	for _, a := range s.archives {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// archiveInfo stats a directory entry, following symlinks so that a link to
// an archive participates in duplicate-identity detection. A nil FileInfo
// with a nil error means the entry is not a regular file.
func archiveInfo(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, nil
		}
		return info, nil
	}
	if !d.Type().IsRegular() {
		return nil, nil
	}
	return d.Info()
}

func isArchiveName(name string) bool {
	return archiveExtensions[strings.ToLower(filepath.Ext(name))]
}
