package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zachkp/folio/internal/catalog"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Inspect site content",
}

var contentCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a content file",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentCheck,
}

var contentDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the embedded content as a starting point for CONTENT_PATH",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := cmd.OutOrStdout().Write(catalog.DefaultContent())
		return err
	},
}

func init() {
	contentCmd.AddCommand(contentCheckCmd, contentDumpCmd)
}

func runContentCheck(cmd *cobra.Command, args []string) error {
	site, err := catalog.ParseFile(args[0])
	if err != nil {
		return err
	}
	shots := 0
	for _, p := range site.Projects {
		shots += len(p.Details.DesktopScreenshots) + len(p.Details.MobileScreenshots)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (%d services, %d process steps, %d projects, %d screenshots)\n",
		args[0], len(site.Services), len(site.Process), len(site.Projects), shots)
	return nil
}
