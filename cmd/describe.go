package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adalundhe/reidgraph/core/model"
)

var describeConfig string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Construct a network from a config and print its parameter groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := model.DefaultConfig()
		if describeConfig != "" {
			loaded, err := model.LoadConfig(describeConfig)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		net, err := model.New(cfg, nil)
		if err != nil {
			return err
		}

		total := 0
		for _, group := range net.ParamGroups() {
			count := 0
			for _, p := range group.Params {
				count += len(p)
			}
			total += count
			tag := ""
			if group.GCNWeight {
				tag = " [gcn]"
			}
			fmt.Printf("%-28s %10d params%s\n", group.Name, count, tag)
		}
		fmt.Printf("%-28s %10d params\n", "total", total)
		return nil
	},
}

func init() {
	describeCmd.Flags().StringVar(&describeConfig, "config", "", "model config (YAML)")
	rootCmd.AddCommand(describeCmd)
}
