package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/config"
	"github.com/jonathan/resume-coach/internal/conversation"
	"github.com/jonathan/resume-coach/internal/curriculum"
	"github.com/jonathan/resume-coach/internal/db"
	"github.com/jonathan/resume-coach/internal/extraction"
	"github.com/jonathan/resume-coach/internal/fetch"
	"github.com/jonathan/resume-coach/internal/learning"
	"github.com/jonathan/resume-coach/internal/llm"
	"github.com/jonathan/resume-coach/internal/logger"
	"github.com/jonathan/resume-coach/internal/prompting"
	"github.com/jonathan/resume-coach/internal/queue"
	"github.com/jonathan/resume-coach/internal/types"
)

func mustBind(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", key, err))
	}
}

// app holds the wired components for one command invocation.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	store  *db.Store
	client llm.Client

	composer  *prompting.Composer
	convo     *conversation.Orchestrator
	learner   *learning.Learner
	feedback  *learning.Service
	extractor *extraction.DocumentExtractor
	objects   *extraction.ObjectStore
	fetchOpts *fetch.Options

	local *queue.Local
	amqp  *queue.AMQP

	closers []func() error
}

// component selects what newApp builds beyond storage and logging.
type component int

const (
	withLLM component = iota
	withLearning
	withObjects
)

// loadConfig reads and validates configuration and builds the logger.
func loadConfig(needs ...config.Requirement) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	needs = append(needs, config.NeedDatabase)
	if err := cfg.Validate(needs...); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.JSON, cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, log, nil
}

// newApp opens storage and wires the requested components.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, parts ...component) (*app, error) {
	a := &app{cfg: cfg, log: log}
	has := func(c component) bool {
		for _, p := range parts {
			if p == c {
				return true
			}
		}
		return false
	}

	store, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Database.Driver, err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	a.composer = prompting.NewComposer(store, learning.DefaultTagTable, cfg.Learning.MaxPatterns, log)
	a.learner = learning.NewLearner(store, learning.DefaultTagTable, log)

	if has(withLLM) {
		client, err := llm.NewClient(ctx, cfg.LLM.ClientConfig(), cfg.LLM.APIKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating language model client: %w", err)
		}
		a.client = client
		a.closers = append(a.closers, client.Close)
		chatTier, _ := cfg.LLM.Tiers()
		a.convo = conversation.NewOrchestrator(store, client, a.composer, extraction.NewHeuristic(),
			conversation.Options{HistoryTurns: cfg.LLM.HistoryTurns, Tier: chatTier}, log)
	}

	if has(withLearning) {
		if err := a.startLearning(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if has(withObjects) {
		a.extractor = extraction.NewDocumentExtractor(extraction.NewHeuristic(), log)
		opts := fetch.DefaultOptions()
		opts.Browser = cfg.Fetch.UseBrowser
		if cfg.Fetch.Timeout > 0 {
			opts.Timeout = cfg.Fetch.Timeout
		}
		if cfg.Fetch.UserAgent != "" {
			opts.UserAgent = cfg.Fetch.UserAgent
		}
		a.fetchOpts = opts
		if cfg.ObjectStore.Enabled() {
			objects, err := extraction.NewObjectStore(ctx, cfg.ObjectStore)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.objects = objects
		}
	}
	return a, nil
}

// startLearning picks the job transport: AMQP when configured, otherwise an
// in-process worker pool.
func (a *app) startLearning(ctx context.Context) error {
	var publisher learning.JobPublisher
	if url := a.cfg.Queue.AMQPURL; url != "" {
		conn, err := queue.DialAMQP(url, a.cfg.Queue.Name, a.log)
		if err != nil {
			return err
		}
		a.amqp = conn
		a.closers = append(a.closers, conn.Close)
		publisher = conn
	} else {
		a.local = queue.NewLocal(context.WithoutCancel(ctx), a.handleJob, a.cfg.Queue.Workers, a.cfg.Queue.Buffer, a.log)
		a.closers = append(a.closers, a.local.Close)
		publisher = a.local
	}
	a.feedback = learning.NewService(a.store, a.composer, publisher, a.learner, a.log)
	return nil
}

// handleJob runs a learning job in process. Jobs are only published once
// the feedback service exists.
func (a *app) handleJob(ctx context.Context, job types.LearningJob) error {
	return a.feedback.HandleJob(ctx, job)
}

// evaluator builds the curriculum runner. judge selects model grading
// behind the constraint gate.
func (a *app) evaluator(judge bool) *curriculum.Evaluator {
	var grader curriculum.Grader = curriculum.RuleGrader{}
	if judge {
		_, judgeTier := a.cfg.LLM.Tiers()
		grader = curriculum.ConstraintGate{Next: curriculum.JudgeGrader{Client: a.client, Tier: judgeTier}}
	}
	return curriculum.NewEvaluator(curriculum.DefaultLevels(), a.store, a.convo, grader, a.log)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("closing resources", zap.Error(err))
	}
	_ = a.log.Sync()
}
