package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"catchcore/pkg/batchtree"
	"catchcore/pkg/domain"
)

// readTree decodes a JSON tree from path; "-" reads stdin.
func readTree(cmd *cobra.Command, path string) (*domain.Batch, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var tree domain.Batch
	if err := json.NewDecoder(r).Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode tree %s: %w", path, err)
	}
	return &tree, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newComputeCmd(opts *rootOptions) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "compute <tree.json|->",
		Short: "Compute individual counts, weights and sampling ratios of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := readTree(cmd, args[0])
			if err != nil {
				return err
			}
			programs, err := opts.programs()
			if err != nil {
				return err
			}
			specs, err := programs.LoadWeightSpecs(cmd.Context(), opts.program, opts.gearID())
			if err != nil {
				return err
			}
			batchtree.ComputeTree(tree, specs)
			if dump {
				return batchtree.LogTree(cmd.OutOrStdout(), tree, specs)
			}
			return writeJSON(cmd.OutOrStdout(), tree)
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print an indented tree dump instead of JSON")
	return cmd
}

func newRenumberCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "renumber <tree.json|->",
		Short: "Reorder siblings and renumber rank orders and labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := readTree(cmd, args[0])
			if err != nil {
				return err
			}
			batchtree.Renumber(tree)
			return writeJSON(cmd.OutOrStdout(), tree)
		},
	}
}

func newCleanCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean <tree.json|->",
		Short: "Remove empty batches from a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := readTree(cmd, args[0])
			if err != nil {
				return err
			}
			batchtree.CleanTree(tree)
			return writeJSON(cmd.OutOrStdout(), tree)
		},
	}
}
