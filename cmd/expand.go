package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/adalundhe/reidgraph/core/weights"
)

var (
	expandIn      string
	expandOut     string
	expandDomains int
	expandClasses int
)

var expandCmd = &cobra.Command{
	Use:   "expand-weights",
	Short: "Replicate pretrained normalization statistics into per-domain slots",
	Long: `Rewrites a single-domain pretrained state dictionary so every
normalization-statistic entry gains one identical replica per domain slot,
ready to load into a domain-routed network. Pretrained classifier entries
are dropped when the target class count differs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sd, err := weights.Load(expandIn)
		if err != nil {
			return err
		}
		expanded := weights.ExpandDomainStats(sd, expandDomains, expandClasses, slog.Default())
		if err := weights.Save(expandOut, expanded); err != nil {
			return err
		}
		fmt.Printf("expanded %d entries to %d across %d domains\n", len(sd), len(expanded), expandDomains)
		return nil
	},
}

func init() {
	expandCmd.Flags().StringVar(&expandIn, "in", "", "input state dict (YAML)")
	expandCmd.Flags().StringVar(&expandOut, "out", "", "output state dict (YAML)")
	expandCmd.Flags().IntVar(&expandDomains, "domains", 2, "number of domain slots")
	expandCmd.Flags().IntVar(&expandClasses, "classes", 0, "target classifier width")
	expandCmd.MarkFlagRequired("in")
	expandCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(expandCmd)
}
