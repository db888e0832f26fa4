package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStoreCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage stored operation trees",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "put <operation-id> <tree.json|->",
			Short: "Renumber, clean, compute and store a tree",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				tree, err := readTree(cmd, args[1])
				if err != nil {
					return err
				}
				return opts.withApp(cmd, func(a *app) error {
					if err := a.svc.SaveTree(cmd.Context(), args[0], tree, opts.computeOptions()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "get <operation-id>",
			Short: "Print a stored tree",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(cmd, func(a *app) error {
					tree, err := a.svc.GetTree(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), tree)
				})
			},
		},
		&cobra.Command{
			Use:   "delete <operation-id>",
			Short: "Delete a stored tree",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(cmd, func(a *app) error {
					return a.svc.DeleteTree(cmd.Context(), args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored operation ids",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withApp(cmd, func(a *app) error {
					ids, err := a.svc.ListTrees(cmd.Context())
					if err != nil {
						return err
					}
					for _, id := range ids {
						fmt.Fprintln(cmd.OutOrStdout(), id)
					}
					return nil
				})
			},
		},
	)
	return cmd
}
