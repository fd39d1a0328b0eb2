package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reidgraph",
	Short: "Reidgraph - graph-refined multi-domain re-identification models",
	Long:  `Reidgraph builds and inspects re-identification networks with per-domain normalization statistics and graph-convolutional feature refinement.`,
}

func Execute() error {
	return rootCmd.Execute()
}
