package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kicomport/internal/api"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "select <job-id> <component-id> <kind> <candidate-id|none>",
		Short: "Pick a candidate for a component, or clear the pick with \"none\"",
		Args:  cobra.RangeArgs(1, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			if reset {
				if len(args) != 1 {
					return fmt.Errorf("--reset takes only the job id")
				}
				client, err := ctx.client()
				if err != nil {
					return err
				}
				if err := client.Reset(jobID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared all selections for job %d\n", jobID)
				return nil
			}
			if len(args) != 4 {
				return fmt.Errorf("expected <job-id> <component-id> <kind> <candidate-id|none>")
			}
			componentID, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil || componentID < 1 {
				return fmt.Errorf("component id must be a positive integer, got %q", args[1])
			}
			kind := strings.ToLower(strings.TrimSpace(args[2]))
			switch kind {
			case "symbol", "footprint", "model":
			default:
				return fmt.Errorf("kind must be symbol, footprint, or model, got %q", args[2])
			}
			candidateID, err := parseCandidateArg(args[3])
			if err != nil {
				return err
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			req := api.SelectRequest{ComponentID: componentID, Kind: kind, CandidateID: candidateID}
			if err := client.Select(jobID, req); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if candidateID == nil {
				fmt.Fprintf(out, "Cleared %s selection for component %d\n", kind, componentID)
			} else {
				fmt.Fprintf(out, "Selected %s candidate %d for component %d\n", kind, *candidateID, componentID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear every selection on the job instead of picking one")
	return cmd
}

// parseCandidateArg accepts a candidate id or the literal "none" to clear.
func parseCandidateArg(arg string) (*int64, error) {
	trimmed := strings.ToLower(strings.TrimSpace(arg))
	if trimmed == "none" {
		return nil, nil
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id < 1 {
		return nil, fmt.Errorf("candidate must be a positive integer or \"none\", got %q", arg)
	}
	return &id, nil
}
