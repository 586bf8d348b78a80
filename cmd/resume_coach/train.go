package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/config"
	"github.com/jonathan/resume-coach/internal/curriculum"
	"github.com/jonathan/resume-coach/internal/types"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the coaching curriculum",
	Long: `Plays the scripted curriculum scenarios against the coach, grades each
reply and records progress. Without --level every unfinished level runs in
order until one fails.`,
	RunE: runTrain,
}

var (
	trainLevel int
	trainJudge bool
)

func init() {
	trainCmd.Flags().IntVarP(&trainLevel, "level", "l", 0, "run a single level (0 runs all unfinished levels)")
	trainCmd.Flags().BoolVar(&trainJudge, "judge", false, "grade replies with the language model behind the constraint checks")

	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, _ []string) error {
	if trainLevel < 0 {
		return fmt.Errorf("level must not be negative, got %d", trainLevel)
	}
	cfg, log, err := loadConfig(config.NeedLLM)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, withLLM)
	if err != nil {
		return err
	}
	defer a.Close()

	ev := a.evaluator(trainJudge)
	progress, err := ev.Progress(ctx)
	if err != nil {
		return err
	}
	total := scenarioCount(ev.Levels(), progress, trainLevel)
	if total == 0 && trainLevel == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to run: every level is complete.")
		return nil
	}

	bar := progressbar.Default(int64(total), "training")
	ev.OnScenario = func(e curriculum.ScenarioEvent) {
		_ = bar.Add(1)
		log.Debug("scenario graded",
			zap.Int("level", e.Level),
			zap.String("scenario", e.Scenario),
			zap.Float64("score", e.Grade.Score),
			zap.Bool("passed", e.Grade.Passed))
	}

	var results []types.LevelResult
	if trainLevel > 0 {
		res, err := ev.RunLevel(ctx, trainLevel)
		if err != nil {
			return err
		}
		results = append(results, *res)
	} else {
		results, err = ev.RunAll(ctx)
		if err != nil {
			return err
		}
	}
	_ = bar.Finish()

	printResults(cmd.OutOrStdout(), results)
	return nil
}

// scenarioCount is the number of scenarios a run may grade: one level, or
// every level not yet completed.
func scenarioCount(levels []types.TrainingLevel, progress types.TrainingProgress, only int) int {
	n := 0
	for _, l := range levels {
		if only > 0 && l.Number != only {
			continue
		}
		if only == 0 && progress.HasCompleted(l.Number) {
			continue
		}
		n += len(l.Scenarios)
	}
	return n
}

func printResults(w io.Writer, results []types.LevelResult) {
	fmt.Fprintln(w)
	for _, res := range results {
		verdict := "FAILED"
		if res.Passed {
			verdict = "passed"
		}
		fmt.Fprintf(w, "Level %d: %s with %.1f\n", res.Level, verdict, res.Aggregate)
		for _, rec := range res.Records {
			fmt.Fprintf(w, "  %-24s %5.1f  %s\n", rec.ScenarioID, rec.Score, rec.Reasoning)
		}
	}
	if len(results) > 0 {
		p := results[len(results)-1].Progress
		fmt.Fprintf(w, "Current level %d, completed %v, skills %v\n", p.CurrentLevel, p.CompletedLevels, p.SkillsLearned)
	}
}
