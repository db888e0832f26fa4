package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"catchcore/internal/core"
	"catchcore/internal/report"
)

type controlSummary struct {
	OperationID string            `json:"operationId"`
	Program     string            `json:"program"`
	State       string            `json:"state"`
	Errors      map[string]string `json:"errors,omitempty"`
}

func newControlCmd(opts *rootOptions) *cobra.Command {
	var failOnInvalid bool
	cmd := &cobra.Command{
		Use:   "control <operation-id>",
		Short: "Control a stored tree and publish its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				copts, err := opts.controlOptions(a)
				if err != nil {
					return err
				}
				outcome, err := a.svc.ControlTree(cmd.Context(), args[0], copts)
				if err != nil {
					return err
				}
				summary := controlSummary{
					OperationID: outcome.OperationID,
					Program:     outcome.Program,
					State:       outcome.State.String(),
					Errors:      outcome.Errors,
				}
				if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
				if failOnInvalid && outcome.State != core.StateValid {
					return fmt.Errorf("operation %s is %s", outcome.OperationID, outcome.State)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&failOnInvalid, "fail-on-invalid", false, "exit with an error unless the tree is valid")
	return cmd
}

func newReportsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reports <operation-id>",
		Short: "List the control reports published for an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				infos, err := report.List(cmd.Context(), a.blobs, args[0])
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", info.Key, info.Metadata["state"], info.Size)
				}
				return nil
			})
		},
	}
}
