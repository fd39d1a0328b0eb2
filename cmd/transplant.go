package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/adalundhe/reidgraph/core/weights"
)

var (
	transplantIn  string
	transplantOut string
)

var transplantCmd = &cobra.Command{
	Use:   "transplant",
	Short: "Copy source-domain-adapted statistics into domain slot 0",
	Long: `Copies every normalization entry held in domain slot 3 of a
checkpoint into domain slot 0, so statistics adapted on the source domain
become the default slot's statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sd, err := weights.Load(transplantIn)
		if err != nil {
			return err
		}
		out := weights.TransplantSourceDomain(sd, slog.Default())
		if err := weights.Save(transplantOut, out); err != nil {
			return err
		}
		fmt.Printf("transplanted checkpoint written to %s\n", transplantOut)
		return nil
	},
}

func init() {
	transplantCmd.Flags().StringVar(&transplantIn, "in", "", "input checkpoint (YAML)")
	transplantCmd.Flags().StringVar(&transplantOut, "out", "", "output checkpoint (YAML)")
	transplantCmd.MarkFlagRequired("in")
	transplantCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(transplantCmd)
}
