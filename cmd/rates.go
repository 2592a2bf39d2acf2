package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fillcast/app"
)

var ratesReq requestFlags

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show the weekday fill rates estimated at a cutoff",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := ratesReq.request()
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			rates, err := svc.Forecast.Rates(ctx, req)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SITE\tWEEKDAY\tRATE_M3\tSOURCE")
			for _, r := range rates {
				fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\n", r.SiteID, r.Weekday, r.RateM3PerDay, r.Source)
			}
			return tw.Flush()
		})
	},
}

func init() {
	ratesReq.bind(ratesCmd)
	_ = ratesCmd.MarkFlagRequired("cutoff")
	rootCmd.AddCommand(ratesCmd)
}
