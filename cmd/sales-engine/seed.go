package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/scenarios"
)

var (
	seedScenario string
	seedList     bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a demo scenario into the store",
	Long:  "Resets the configured store and imports one of the embedded demo scenarios. Development use only.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if seedList {
			infos, err := scenarios.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tNAME")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", info.ID, info.Category, info.Name)
			}
			return tw.Flush()
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		info, err := scenarios.Load(ctx, st, seedScenario)
		if err != nil {
			return eris.Wrapf(err, "seed %s", seedScenario)
		}
		zap.L().Info("scenario loaded",
			zap.String("scenario", info.ID),
			zap.String("driver", cfg.Store.Driver),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedScenario, "scenario", "spring-team", "scenario id to load")
	seedCmd.Flags().BoolVar(&seedList, "list", false, "list available scenarios and exit")
	rootCmd.AddCommand(seedCmd)
}
