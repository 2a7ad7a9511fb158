package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show daemon and job store health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			health, err := client.Health()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			overall := statusOK
			if health.Status != "ok" {
				overall = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", overall, health.Status, colorize))
			fmt.Fprintln(out, renderStatusLine("Jobs", statusInfo,
				fmt.Sprintf("%d total, %d waiting, %d analyzing", health.Total, health.WaitingForUser, health.Analyzing), colorize))
			if health.Failed > 0 {
				fmt.Fprintln(out, renderStatusLine("Failed", statusError, fmt.Sprintf("%d job(s)", health.Failed), colorize))
			}
			if health.AIEnabled {
				kind, note := statusOK, "reachable"
				if health.AIReachable == nil || !*health.AIReachable {
					kind, note = statusWarn, "unreachable"
				}
				fmt.Fprintln(out, renderStatusLine("Ollama", kind, note, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Ollama", statusInfo, "disabled", colorize))
			}
			return nil
		},
	}
}
