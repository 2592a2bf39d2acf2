package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/kilianp07/fillcast/app"
	"github.com/kilianp07/fillcast/core/backtest"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/pkg/export"
)

var (
	backtestReq     requestFlags
	backtestCutoffs []string
	backtestRows    string
	backtestQuiet   bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Compare forecasts with recorded service volumes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		bc, err := backtestConfig()
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			return runBacktest(ctx, cmd, svc, bc)
		})
	},
}

func init() {
	backtestReq.bind(backtestCmd)
	backtestCmd.Flags().StringSliceVar(&backtestCutoffs, "cutoffs", nil, "cutoff dates to evaluate (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&backtestRows, "rows", "", "write per-day rows as CSV to this file")
	backtestCmd.Flags().BoolVarP(&backtestQuiet, "quiet", "q", false, "hide the progress bar")
	_ = backtestCmd.MarkFlagRequired("cutoffs")
	rootCmd.AddCommand(backtestCmd)
}

func backtestConfig() (backtest.Config, error) {
	var bc backtest.Config
	for _, s := range backtestCutoffs {
		d, err := model.ParseDay(s)
		if err != nil {
			return bc, fmt.Errorf("--cutoffs: %w", err)
		}
		bc.Cutoffs = append(bc.Cutoffs, d)
	}
	bc.HorizonDays = backtestReq.horizon
	if bc.HorizonDays == 0 {
		bc.HorizonDays = cfg.Forecast.DefaultHorizonDays
	}
	bc.SiteIDs = backtestReq.sites
	bc.District = backtestReq.district
	bc.Search = backtestReq.search
	return bc, nil
}

func runBacktest(ctx context.Context, cmd *cobra.Command, svc *app.Service, bc backtest.Config) error {
	if !backtestQuiet {
		bar := pb.New(len(bc.Cutoffs))
		bar.Output = cmd.ErrOrStderr()
		bar.ShowTimeLeft = false
		bar.Start()
		defer bar.Finish()
		bc.Progress = func(done, _ int) { bar.Set(done) }
	}
	rep, err := svc.Backtest.Run(ctx, bc)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), rep)
	if backtestRows != "" {
		w, closeOut, err := openOutput(cmd, backtestRows)
		if err != nil {
			return err
		}
		defer closeOut()
		return export.WriteBacktestCSV(w, rep.Rows)
	}
	return nil
}

func printReport(w io.Writer, rep *backtest.Report) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "backtest %s, horizon %d days\n", rep.RunID, rep.HorizonDays)
	for _, c := range rep.Cutoffs {
		fmt.Fprintf(w, "  %s  %s\n", c.Cutoff.Format(model.DateLayout), formatMetrics(c.Metrics))
	}
	bold.Fprint(w, "  overall     ")
	fmt.Fprintln(w, formatMetrics(rep.Overall))
}

// formatMetrics colours WAPE green under 20%, yellow under 40% and red above.
func formatMetrics(m backtest.Metrics) string {
	wape := color.New(color.FgHiBlack).Sprint("WAPE n/a")
	if m.WAPEValid {
		c := color.New(color.FgGreen)
		switch {
		case m.WAPE >= 40:
			c = color.New(color.FgRed)
		case m.WAPE >= 20:
			c = color.New(color.FgYellow)
		}
		wape = c.Sprintf("WAPE %6.2f%%", m.WAPE)
	}
	return fmt.Sprintf("%s  coverage %6.2f%%  MAE %.3f  bias %+.3f  rows %d",
		wape, m.CoveragePct, m.MAE, m.Bias, m.Rows)
}
