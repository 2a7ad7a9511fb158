package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"kicomport/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List intake jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.Jobs(statusFilter, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			fmt.Fprintln(out, renderJobsTable(jobs))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (e.g. waiting_for_user,failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to list")
	return cmd
}

func renderJobsTable(jobs []api.JobView) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		note := job.ErrorMessage
		if job.IsDuplicate && note == "" {
			note = "duplicate"
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.OriginalFilename,
			job.Status,
			job.CreatedAt,
			note,
		})
	}
	return renderTable([]string{"ID", "File", "Status", "Created", "Note"}, rows, 0)
}
