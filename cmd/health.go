package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridian-env/wastestream/internal/monitoring"
)

var healthFlags struct {
	lookbackHours int
	sendAlerts    bool
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Collect pipeline health metrics and evaluate alert thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := newPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		lookback := healthFlags.lookbackHours
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackHours
		}

		snap, err := monitoring.NewCollector(pool).Collect(ctx, lookback)
		if err != nil {
			return err
		}
		if err := printJSON(snap); err != nil {
			return err
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)
		for _, a := range alerts {
			fmt.Printf("ALERT [%s] %s\n", a.Severity, a.Message)
		}
		if healthFlags.sendAlerts {
			sent := alerter.SendAlerts(ctx, alerts)
			fmt.Printf("Sent %d of %d alert(s)\n", sent, len(alerts))
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().IntVar(&healthFlags.lookbackHours, "lookback", 0, "lookback window in hours (default from config)")
	healthCmd.Flags().BoolVar(&healthFlags.sendAlerts, "send", false, "deliver triggered alerts to the configured webhook")
	rootCmd.AddCommand(healthCmd)
}
