package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fillcast/app"
	"github.com/kilianp07/fillcast/core/model"
	"github.com/kilianp07/fillcast/pkg/export"
)

type requestFlags struct {
	cutoff   string
	horizon  int
	sites    []string
	district string
	search   string
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.cutoff, "cutoff", "", "cutoff date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.horizon, "horizon", 0, "forecast horizon in days, defaults to forecast.default_horizon_days")
	cmd.Flags().StringSliceVar(&f.sites, "site", nil, "restrict to site ids")
	cmd.Flags().StringVar(&f.district, "district", "", "district prefix filter")
	cmd.Flags().StringVar(&f.search, "search", "", "substring filter on site id or address")
}

func (f *requestFlags) request() (model.ForecastRequest, error) {
	cutoff, err := model.ParseDay(f.cutoff)
	if err != nil {
		return model.ForecastRequest{}, fmt.Errorf("--cutoff: %w", err)
	}
	horizon := f.horizon
	if horizon == 0 {
		horizon = cfg.Forecast.DefaultHorizonDays
	}
	return model.ForecastRequest{
		Cutoff:      cutoff,
		HorizonDays: horizon,
		SiteIDs:     f.sites,
		District:    f.district,
		Search:      f.search,
	}, nil
}

var (
	forecastReq    requestFlags
	forecastFormat string
	forecastOut    string
	forecastNotify bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast fill levels after a cutoff date",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := forecastReq.request()
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			return runForecast(ctx, cmd, svc, req)
		})
	},
}

func init() {
	forecastReq.bind(forecastCmd)
	_ = forecastCmd.MarkFlagRequired("cutoff")
	forecastCmd.Flags().StringVarP(&forecastFormat, "format", "f", "json", "output format: json, csv or wide")
	forecastCmd.Flags().StringVarP(&forecastOut, "output", "o", "", "output file, stdout when empty")
	forecastCmd.Flags().BoolVar(&forecastNotify, "notify", false, "publish overflow alerts")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(ctx context.Context, cmd *cobra.Command, svc *app.Service, req model.ForecastRequest) error {
	res, err := svc.Forecast.Run(ctx, req)
	if err != nil {
		return err
	}
	w, closeOut, err := openOutput(cmd, forecastOut)
	if err != nil {
		return err
	}
	defer closeOut()
	if err := writeForecast(w, forecastFormat, res.Start, res.End, res.Points); err != nil {
		return err
	}
	if forecastNotify {
		cfg.Alerts.Enabled = true
		alerts, sent, err := svc.Notify(ctx, res.Points)
		if err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d overflow alerts, %d published\n", len(alerts), sent)
	}
	return nil
}

func writeForecast(w io.Writer, format string, start, end time.Time, points []model.ForecastPoint) error {
	switch format {
	case "json":
		return export.WriteJSON(w, points)
	case "csv":
		return export.WriteCSV(w, points)
	case "wide":
		return export.WriteWideReport(w, start, end, nil, export.CellsFromPoints(points))
	}
	return fmt.Errorf("unknown format %q", format)
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
