package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var renameTo string

	cmd := &cobra.Command{
		Use:   "import <job-id>",
		Short: "Copy the selected candidates into the KiCad library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := client.Import(jobID, renameTo)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			total := result.Symbols + result.Footprints + result.Models
			if total == 0 {
				fmt.Fprintln(out, "Nothing imported; select candidates first with `kicomport select`")
				return nil
			}
			fmt.Fprintf(out, "Imported %d symbol(s), %d footprint(s), %d model(s)\n",
				result.Symbols, result.Footprints, result.Models)
			for _, dest := range result.Destinations {
				fmt.Fprintf(out, "  -> %s\n", dest)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&renameTo, "rename", "", "Rename footprints and models to this base name on import")
	return cmd
}
