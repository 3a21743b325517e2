package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/datasentinel/producer/internal/dataset"
)

func main() {
	if err := newInspectCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newInspectCmd() *cobra.Command {
	var (
		inputDim    int
		normalLabel float64
	)
	cmd := &cobra.Command{
		Use:   "dataset-inspect <path>",
		Short: "Check a labeled training CSV against the producer's feature arity",
		Long: `Loads a labeled CSV the way the offline trainer does: an optional header is
auto-detected, malformed or non-finite rows are dropped and counted, and only
rows whose trailing label equals the normal label are kept.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := dataset.LoadLabeledCSV(args[0], inputDim, normalLabel)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			cmd.Printf("header: %t\n", res.HasHeader)
			cmd.Printf("normal rows: %d\n", len(res.Rows))
			cmd.Printf("dropped rows: %d\n", res.Dropped)
			cmd.Printf("features per row: %d\n", inputDim)
			return nil
		},
	}
	cmd.Flags().IntVar(&inputDim, "input-dim", dataset.DefaultInputDim, "number of feature columns")
	cmd.Flags().Float64Var(&normalLabel, "normal-label", dataset.DefaultNormalLabel, "label value of normal rows")
	return cmd
}
