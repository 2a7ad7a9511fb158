package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kicomport/internal/api"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withLogs bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its components and ranked candidates",
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
			detail, err := client.Job(jobID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %d: %s\n", detail.ID, detail.OriginalFilename)
			fmt.Fprintf(out, "Status: %s  Duplicate: %s  AI failed: %s\n",
				detail.Status, yesNo(detail.IsDuplicate), yesNo(detail.AIFailed))
			if detail.ErrorMessage != "" {
				fmt.Fprintf(out, "Error: %s\n", detail.ErrorMessage)
			}

			for _, comp := range detail.Components {
				fmt.Fprintf(out, "\nComponent %d: %s\n", comp.ID, comp.Name)
				fmt.Fprintln(out, renderCandidatesTable(comp))
			}

			if withLogs && len(detail.Logs) > 0 {
				fmt.Fprintln(out, "\nTimeline:")
				for _, entry := range detail.Logs {
					fmt.Fprintf(out, "  %s  %-7s %s\n", entry.CreatedAt, entry.Level, entry.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withLogs, "logs", false, "Include the job timeline")
	return cmd
}

func renderCandidatesTable(comp api.ComponentView) string {
	selected := map[string]*int64{
		"symbol":    comp.SelectedSymbolID,
		"footprint": comp.SelectedFootprintID,
		"model":     comp.SelectedModelID,
	}
	rows := make([][]string, 0, len(comp.Candidates))
	for _, cand := range comp.Candidates {
		mark := ""
		if sel := selected[cand.Kind]; sel != nil && *sel == cand.ID {
			mark = "*"
		}
		detail := ""
		switch cand.Kind {
		case "symbol":
			detail = fmt.Sprintf("%d pins", cand.PinCount)
		case "footprint":
			detail = fmt.Sprintf("%d pads", cand.PadCount)
		default:
			detail = formatSize(cand.SizeBytes)
		}
		rows = append(rows, []string{
			mark,
			strconv.FormatInt(cand.ID, 10),
			cand.Kind,
			cand.RelPath,
			detail,
			formatScore(cand.CombinedScore),
			cand.AIReason,
		})
	}
	return renderTable([]string{"", "ID", "Kind", "Path", "Detail", "Score", "AI note"}, rows, 1, 5)
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("job id must be a positive integer, got %q", arg)
	}
	return id, nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 3, 64)
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
