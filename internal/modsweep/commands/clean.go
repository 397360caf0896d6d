// Package commands contains the command implementations for the modsweep application.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/tmkrv/modsweep/internal/modsweep/lib"
	"github.com/tmkrv/modsweep/internal/modsweep/types"
)

// CleanOptions holds the configuration for the clean command.
type CleanOptions struct {
	ModlistPath  string
	DownloadsDir string

	// DryRun computes and logs every decision without touching the
	// filesystem.
	DryRun bool

	// Force allows deletion of archives whose sidecar marks them installed.
	Force bool

	// Recursive walks subdirectories of the downloads directory; otherwise
	// only the top level is scanned.
	Recursive bool

	Log zerolog.Logger
}

// Clean reconciles the downloads directory against the modlist and deletes
// (or, in a dry run, flags) archives the modlist does not reference.
//
// Classification per archive is strict and first-match-wins: a filename match
// against the manifest settles it without hashing; only then is the content
// hash computed and looked up; only when both fail is the archive
// unreferenced and considered for deletion, gated by its sidecar metadata.
// Decisions for different archives are independent of traversal order.
func Clean(opts CleanOptions) (*types.Report, error) {
	log := opts.Log

	absDownloads, err := filepath.Abs(opts.DownloadsDir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve path: %w", err)
	}

	log.Info().Str("modlist", opts.ModlistPath).Msg("loading modlist")
	manifest, err := lib.LoadManifest(opts.ModlistPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := manifest.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("could not remove modlist inspection copy")
		}
	}()

	if manifest.Modlist.Name != "" {
		log.Info().
			Str("name", manifest.Modlist.Name).
			Str("version", manifest.Modlist.Version).
			Msg("modlist identified")
	}
	log.Info().Int("mods", manifest.Len()).Msg("modlist loaded")

	log.Info().Str("dir", absDownloads).Bool("recursive", opts.Recursive).Msg("scanning downloads directory")
	set, err := lib.ScanDownloads(absDownloads, opts.Recursive)
	if err != nil {
		return nil, err
	}
	log.Info().Int("archives", set.Len()).Msg("archives found")

	report := &types.Report{
		DryRun:          opts.DryRun,
		ManifestEntries: manifest.Len(),
		ArchivesFound:   set.Len(),
	}

	unreferenced, referencedEntries, err := classify(log, manifest, set, report)
	if err != nil {
		return nil, err
	}

	reportMissing(log, manifest, referencedEntries, report)

	if err := sweep(log, opts, unreferenced, report); err != nil {
		return nil, err
	}

	logSummary(log, report)
	return report, nil
}

// classify walks every discovered archive through the name-then-hash lookup
// and flips Keep to false on the ones the manifest does not reference. It
// returns those archives plus the set of manifest entry names that were
// matched by something on disk.
func classify(log zerolog.Logger, manifest *lib.Manifest, set *lib.DownloadSet, report *types.Report) ([]*types.Archive, map[string]bool, error) {
	var unreferenced []*types.Archive
	referencedEntries := make(map[string]bool)

	for _, archive := range set.Archives() {
		if entry, ok := manifest.ByName(archive.Name); ok {
			report.Referenced++
			report.ReferencedSize += archive.Size
			referencedEntries[entry.Name] = true
			log.Debug().Str("archive", archive.Name).Msg("referenced by name")
			continue
		}

		hash, err := archive.Hash(lib.HashFile)
		if err != nil {
			// Hashing sits on the deletion decision path; a failed read
			// aborts the run rather than risking a wrong classification.
			return nil, nil, err
		}
		if entry, ok := manifest.ByHash(hash); ok {
			report.Referenced++
			report.ReferencedSize += archive.Size
			referencedEntries[entry.Name] = true
			log.Info().
				Str("archive", archive.Name).
				Str("mod", entry.Name).
				Msg("referenced by content hash (file was renamed)")
			continue
		}

		archive.Keep = false
		report.Unreferenced++
		report.UnreferencedSize += archive.Size
		unreferenced = append(unreferenced, archive)
	}

	return unreferenced, referencedEntries, nil
}

// reportMissing counts manifest entries that no archive on disk matched,
// excluding entries whose installer state says they come from the game's own
// files and were never expected to be downloaded.
func reportMissing(log zerolog.Logger, manifest *lib.Manifest, referencedEntries map[string]bool, report *types.Report) {
	for _, entry := range manifest.Modlist.Archives {
		if referencedEntries[entry.Name] {
			continue
		}
		if manifest.GameFileSourced(entry) {
			continue
		}
		report.Missing++
		report.MissingSize += entry.Size
		log.Info().Str("mod", entry.Name).Msg("mod without archive")
	}
}

// sweep applies the deletion-eligibility policy to each unreferenced archive
// and performs (or simulates) the removals. Ambiguity is isolated per
// archive; a sidecar that exists but cannot be decoded is fatal.
func sweep(log zerolog.Logger, opts CleanOptions, unreferenced []*types.Archive, report *types.Report) error {
	for _, archive := range unreferenced {
		if _, err := os.Stat(archive.SidecarPath); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("could not stat sidecar %s: %w", archive.SidecarPath, err)
			}
			report.Ambiguous++
			report.AmbiguousSize += archive.Size
			log.Info().
				Str("archive", archive.Name).
				Str("size", humanize.Bytes(uint64(archive.Size))).
				Msg("not on the modlist, no sidecar metadata, leaving in place")
			continue
		}

		sidecar, err := lib.ReadSidecar(archive.SidecarPath)
		if err != nil {
			return err
		}

		log.Info().
			Str("archive", archive.Name).
			Str("installed", sidecar.Installed.String()).
			Str("removed", sidecar.Removed.String()).
			Str("size", humanize.Bytes(uint64(archive.Size))).
			Msg("not on the modlist")

		switch {
		case sidecar.Installed == types.FlagTrue && !opts.Force:
			report.Refused++
			report.RefusedSize += archive.Size
			log.Warn().
				Str("archive", archive.Name).
				Msg("sidecar marks archive installed, refusing to delete (use --force)")

		case sidecar.Installed == types.FlagTrue:
			log.Warn().
				Str("archive", archive.Name).
				Msg("force-deleting archive marked installed")
			if err := deleteArchive(log, opts.DryRun, archive, report); err != nil {
				return err
			}

		case sidecar.Removed == types.FlagTrue:
			if err := deleteArchive(log, opts.DryRun, archive, report); err != nil {
				return err
			}

		default:
			report.Ambiguous++
			report.AmbiguousSize += archive.Size
			log.Info().
				Str("archive", archive.Name).
				Msg("sidecar state is ambiguous, leaving in place")
		}
	}
	return nil
}

// deleteArchive removes the archive file and then its companion sidecar. In a
// dry run the decision is logged and counted but nothing is touched.
func deleteArchive(log zerolog.Logger, dryRun bool, archive *types.Archive, report *types.Report) error {
	log.Info().
		Str("path", archive.Path).
		Str("size", humanize.Bytes(uint64(archive.Size))).
		Bool("dry_run", dryRun).
		Msg("deleting archive")

	if !dryRun {
		if err := os.Remove(archive.Path); err != nil {
			return fmt.Errorf("could not delete archive %s: %w", archive.Path, err)
		}
		if err := os.Remove(archive.SidecarPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("could not delete sidecar %s: %w", archive.SidecarPath, err)
		}
	}

	report.Deleted++
	report.DeletedSize += archive.Size
	return nil
}

func logSummary(log zerolog.Logger, report *types.Report) {
	log.Info().
		Int("count", report.Missing).
		Str("size", humanize.Bytes(uint64(report.MissingSize))).
		Msg("mods without archive")
	log.Info().
		Int("count", report.Unreferenced).
		Str("size", humanize.Bytes(uint64(report.UnreferencedSize))).
		Msg("archives not on the modlist")
	log.Info().
		Int("count", report.Deleted).
		Str("size", humanize.Bytes(uint64(report.DeletedSize))).
		Bool("dry_run", report.DryRun).
		Msg("archives removed")
	if report.Refused > 0 {
		log.Warn().
			Int("count", report.Refused).
			Str("size", humanize.Bytes(uint64(report.RefusedSize))).
			Msg("installed archives kept, re-run with --force to delete them")
	}
	if report.Ambiguous > 0 {
		log.Info().
			Int("count", report.Ambiguous).
			Str("size", humanize.Bytes(uint64(report.AmbiguousSize))).
			Msg("archives with ambiguous state left in place")
	}
}
