// Package main provides the command-line entry point for Scan Slicer.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"scan-slicer/internal/version"

	"github.com/spf13/cobra"
)

const appTitle = "Scan Slicer"

var quiet bool

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scan-slicer",
		Short: "Slice scanned images and PDF pages into a grid of crops",
		Long: `scan-slicer divides an image (or a page of a PDF) into a grid using
divider lines and exclusion margins, optionally detected from the
image's borders, and writes each cell as a PNG file.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if quiet {
				log.SetOutput(io.Discard)
			}
			log.Printf("Starting %s v%s", appTitle, version.Version)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")

	rootCmd.AddCommand(
		newDetectCmd(),
		newRegionsCmd(),
		newSliceCmd(),
		newNamesCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
