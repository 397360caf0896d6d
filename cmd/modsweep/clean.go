package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tmkrv/modsweep/internal/modsweep/commands"
)

// NewCleanCommand creates the 'clean' command for the CLI.
func NewCleanCommand() *cobra.Command {
	var (
		modlistPath  string
		downloadsDir string
		dryRun       bool
		force        bool
		recursive    bool
		debug        bool
	)

	cmd := &cobra.Command{
		Use:   "clean --modlist <file> --downloads <dir>",
		Short: "Delete downloaded archives the modlist does not reference.",
		Long: `Reconciles the downloads directory against a modlist manifest. Archives the
modlist references by name or by content hash are kept. Unreferenced archives
are deleted when their sidecar metadata marks them already removed from the
install; archives marked installed are kept unless --force is given, and
archives with no or ambiguous metadata are reported but never deleted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(debug)
			start := time.Now()
			logger.Info().Str("version", Version).Msg("modsweep started")

			opts := commands.CleanOptions{
				ModlistPath:  modlistPath,
				DownloadsDir: downloadsDir,
				DryRun:       dryRun,
				Force:        force,
				Recursive:    recursive,
				Log:          logger,
			}
			if _, err := commands.Clean(opts); err != nil {
				return err
			}

			logger.Info().
				Float64("seconds", time.Since(start).Seconds()).
				Msg("modsweep finished")
			return nil
		},
	}

	cmd.Flags().StringVar(&modlistPath, "modlist", "", "path to the modlist manifest file")
	cmd.Flags().StringVar(&downloadsDir, "downloads", "", "directory with downloaded mod archives")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "perform analysis without actually deleting files")
	cmd.Flags().BoolVar(&force, "force", false, "delete archives even when their sidecar marks them installed")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "scan subdirectories of the downloads directory")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.MarkFlagRequired("modlist")
	cmd.MarkFlagRequired("downloads")

	return cmd
}
