package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-coach/internal/config"
	"github.com/jonathan/resume-coach/internal/server"
)

var serveConsume bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. When an AMQP URL is configured, learning jobs are
published to the broker and, unless --consume=false, consumed by this process too.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "address to listen on (default :8080)")
	serveCmd.Flags().BoolVar(&serveConsume, "consume", true, "consume learning jobs from AMQP in this process")
	mustBind("server.addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(config.NeedLLM)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, withLLM, withLearning, withObjects)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(cfg.Server, server.Services{
		Store:        a.store,
		Conversation: a.convo,
		Feedback:     a.feedback,
		Prompts:      a.composer,
		Training:     a.evaluator(true),
		Extractor:    a.extractor,
		Objects:      a.objects,
		Fetch:        a.fetchOpts,
	}, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if a.amqp != nil && serveConsume {
		g.Go(func() error {
			return a.amqp.Consume(gctx, a.feedback.HandleJob)
		})
	}

	log.Info("resume-coach started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("amqp", a.amqp != nil))
	return g.Wait()
}
