package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kicomport/internal/uploads"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file>",
		Short: "Upload an archive or asset file and analyze it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			if path == "" {
				return fmt.Errorf("file path is required")
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(abs)
			if err != nil {
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%q is a directory; upload an archive or asset file", abs)
			}
			if err := uploads.CheckExtension(info.Name()); err != nil {
				return err
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Upload(abs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Duplicate {
				fmt.Fprintf(out, "Duplicate of an earlier upload; recorded as job %d\n", resp.JobID)
				return nil
			}
			fmt.Fprintf(out, "Job %d created (%s)\n", resp.JobID, resp.Status)

			detail, err := client.Job(resp.JobID)
			if err != nil {
				return err
			}
			if detail.ErrorMessage != "" {
				fmt.Fprintf(out, "Error: %s\n", detail.ErrorMessage)
			}
			for _, comp := range detail.Components {
				fmt.Fprintf(out, "\nComponent %d: %s\n", comp.ID, comp.Name)
				fmt.Fprintln(out, renderCandidatesTable(comp))
			}
			if len(detail.Components) > 0 {
				fmt.Fprintf(out, "\nPick candidates with `kicomport select %d ...`, then `kicomport import %d`\n",
					resp.JobID, resp.JobID)
			}
			return nil
		},
	}
}
