package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the modsweep release version.
const Version = "0.1.0"

// NewVersionCommand creates the 'version' command for the CLI.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number and exit.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}
}
