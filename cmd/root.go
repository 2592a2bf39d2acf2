package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fillcast/config"
	coremon "github.com/kilianp07/fillcast/core/monitoring"
	"github.com/kilianp07/fillcast/infra/logger"
	"github.com/kilianp07/fillcast/infra/monitoring"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath  string
	cfg      *config.Config
	closeLog func() error
)

var rootCmd = &cobra.Command{
	Use:               "fillcast",
	Short:             "Waste bin fill level forecasting",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		coremon.Flush(2 * time.Second)
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "configuration file")
}

// Execute runs the CLI. Command errors and panics are reported to the
// configured monitor.
func Execute() error {
	defer coremon.Recover()
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		tags := map[string]string{}
		if cmd != nil {
			tags["command"] = cmd.CommandPath()
		}
		coremon.CaptureException(err, tags)
		coremon.Flush(2 * time.Second)
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	path := cfgPath
	if path == defaultConfigPath && !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	c, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = c
	closeLog, err = logger.Setup(cfg.Logging.Options())
	if err != nil {
		return err
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry.Options())
	if err != nil {
		logger.New("main").Warnf("sentry disabled: %v", err)
		return nil
	}
	coremon.Init(mon)
	return nil
}
