package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-coach/internal/config"
)

var learnWorkerCmd = &cobra.Command{
	Use:   "learn-worker",
	Short: "Consume learning jobs from AMQP",
	Long:  "Run pattern learning out of process: consume feedback jobs from the AMQP queue until interrupted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig(config.NeedQueue)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, log, withLearning)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.amqp.Consume(ctx, a.feedback.HandleJob)
	},
}

func init() {
	rootCmd.AddCommand(learnWorkerCmd)
}
