package curriculum

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/conversation"
	"github.com/jonathan/resume-coach/internal/types"
)

// TurnRunner runs a single conversation turn.
type TurnRunner interface {
	Turn(ctx context.Context, in conversation.TurnInput, emit func(types.Event)) error
}

// Store is the persistence the evaluator needs: scratch documents for
// scenarios plus the progress ledger and test records.
type Store interface {
	CreateDocument(ctx context.Context, rec *types.DocumentRecord) error
	DeleteDocument(ctx context.Context, id string) error
	AppendProgress(ctx context.Context, p *types.TrainingProgress) error
	CurrentProgress(ctx context.Context) (*types.TrainingProgress, error)
	SaveTestRecord(ctx context.Context, r *types.TestRecord) error
}

// ScenarioEvent reports one graded scenario.
type ScenarioEvent struct {
	Level    int
	Index    int
	Total    int
	Scenario string
	Grade    Grade
}

// Evaluator runs curriculum levels against the coach.
type Evaluator struct {
	levels []types.TrainingLevel
	store  Store
	runner TurnRunner
	grader Grader
	logger *zap.Logger

	// OnScenario, when set, is called after each scenario is graded.
	OnScenario func(ScenarioEvent)
}

// NewEvaluator creates an Evaluator. levels must be sorted by number, as
// returned by LoadLevels.
func NewEvaluator(levels []types.TrainingLevel, store Store, runner TurnRunner, grader Grader, log *zap.Logger) *Evaluator {
	if grader == nil {
		grader = RuleGrader{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{levels: levels, store: store, runner: runner, grader: grader, logger: log}
}

// Levels returns the curriculum.
func (e *Evaluator) Levels() []types.TrainingLevel {
	return e.levels
}

// Progress returns the current ledger entry, or a fresh one at the first
// level when training never ran.
func (e *Evaluator) Progress(ctx context.Context) (types.TrainingProgress, error) {
	p, err := e.store.CurrentProgress(ctx)
	if err != nil {
		return types.TrainingProgress{}, err
	}
	if p == nil {
		first := 1
		if len(e.levels) > 0 {
			first = e.levels[0].Number
		}
		return types.TrainingProgress{CurrentLevel: first}, nil
	}
	return *p, nil
}

func (e *Evaluator) level(number int) (int, bool) {
	for i, l := range e.levels {
		if l.Number == number {
			return i, true
		}
	}
	return 0, false
}

// RunLevel runs every scenario of a level in order, grades them and appends
// a progress entry. The level must exist and be unlocked.
func (e *Evaluator) RunLevel(ctx context.Context, number int) (*types.LevelResult, error) {
	idx, ok := e.level(number)
	if !ok {
		return nil, &LevelNotFoundError{Level: number}
	}
	progress, err := e.Progress(ctx)
	if err != nil {
		return nil, err
	}
	if idx > 0 && !progress.HasCompleted(e.levels[idx-1].Number) {
		return nil, fmt.Errorf("level %d: %w", number, ErrLevelLocked)
	}

	level := e.levels[idx]
	e.logger.Info("running curriculum level", zap.Int("level", level.Number), zap.String("name", level.Name))

	result := &types.LevelResult{Level: level.Number}
	var sum float64
	for i, scenario := range level.Scenarios {
		record, grade, err := e.runScenario(ctx, level.Number, scenario)
		if err != nil {
			return nil, err
		}
		sum += record.Score
		result.Records = append(result.Records, *record)
		if e.OnScenario != nil {
			e.OnScenario(ScenarioEvent{Level: level.Number, Index: i + 1, Total: len(level.Scenarios), Scenario: scenario.ID, Grade: grade})
		}
	}
	result.Aggregate = sum / float64(len(level.Scenarios))
	result.Passed = result.Aggregate >= level.RequiredScore

	next := e.advance(progress, level, result)
	if err := e.store.AppendProgress(ctx, &next); err != nil {
		return nil, err
	}
	result.Progress = next

	e.logger.Info("curriculum level finished",
		zap.Int("level", level.Number),
		zap.Float64("aggregate", result.Aggregate),
		zap.Float64("required", level.RequiredScore),
		zap.Bool("passed", result.Passed),
	)
	return result, nil
}

// RunAll runs the levels not yet completed, in order, stopping at the first
// failure.
func (e *Evaluator) RunAll(ctx context.Context) ([]types.LevelResult, error) {
	progress, err := e.Progress(ctx)
	if err != nil {
		return nil, err
	}
	var results []types.LevelResult
	for _, l := range e.levels {
		if progress.HasCompleted(l.Number) {
			continue
		}
		res, err := e.RunLevel(ctx, l.Number)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
		if !res.Passed {
			break
		}
		progress = res.Progress
	}
	return results, nil
}

// runScenario plays one scenario on a scratch document that is removed
// afterwards.
func (e *Evaluator) runScenario(ctx context.Context, level int, s types.Scenario) (*types.TestRecord, Grade, error) {
	scratch := &types.DocumentRecord{ID: "scratch-" + uuid.New().String(), Title: "curriculum " + s.ID}
	if err := e.store.CreateDocument(ctx, scratch); err != nil {
		return nil, Grade{}, err
	}
	defer func() {
		if err := e.store.DeleteDocument(context.WithoutCancel(ctx), scratch.ID); err != nil {
			e.logger.Warn("failed to delete scratch document", zap.String("id", scratch.ID), zap.Error(err))
		}
	}()

	var (
		text     strings.Builder
		updated  bool
		errorMsg string
	)
	started := time.Now()
	turnErr := e.runner.Turn(ctx, conversation.TurnInput{DocumentID: scratch.ID, MessageText: s.UserMessage}, func(ev types.Event) {
		switch d := ev.Data.(type) {
		case types.TextDeltaData:
			text.WriteString(d.Content)
		case types.DocumentUpdatedData:
			updated = true
		case types.ErrorData:
			errorMsg = d.Message
		}
	})
	if ctx.Err() != nil {
		return nil, Grade{}, ctx.Err()
	}
	resp := Response{
		ScenarioID:      s.ID,
		Text:            strings.TrimSpace(text.String()),
		Latency:         time.Since(started),
		DocumentUpdated: updated,
	}

	var grade Grade
	if turnErr != nil {
		if errorMsg == "" {
			errorMsg = turnErr.Error()
		}
		grade = Grade{Reasoning: "turn failed: " + errorMsg}
	} else {
		g, err := e.grader.Grade(ctx, resp, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, Grade{}, ctx.Err()
			}
			e.logger.Warn("grading failed", zap.String("scenario", s.ID), zap.Error(err))
			g = Grade{Reasoning: "grading failed: " + err.Error()}
		}
		grade = g
	}
	grade.Score = clampScore(grade.Score)

	record := &types.TestRecord{
		ID:            uuid.New().String(),
		Level:         level,
		ScenarioID:    s.ID,
		Passed:        grade.Passed,
		Score:         grade.Score,
		LatencyMs:     resp.Latency.Milliseconds(),
		ResponseChars: resp.Chars(),
		Reasoning:     grade.Reasoning,
	}
	if err := e.store.SaveTestRecord(ctx, record); err != nil {
		return nil, Grade{}, err
	}
	return record, grade, nil
}

// advance derives the next ledger entry from the previous one and a level result.
func (e *Evaluator) advance(prev types.TrainingProgress, level types.TrainingLevel, res *types.LevelResult) types.TrainingProgress {
	next := types.TrainingProgress{
		ID:              uuid.New().String(),
		CurrentLevel:    prev.CurrentLevel,
		CompletedLevels: append([]int(nil), prev.CompletedLevels...),
		SkillsLearned:   append([]string(nil), prev.SkillsLearned...),
		CumulativeScore: prev.CumulativeScore + res.Aggregate,
		CreatedAt:       time.Now().UTC(),
	}
	if !res.Passed {
		return next
	}
	if !next.HasCompleted(level.Number) {
		next.CompletedLevels = append(next.CompletedLevels, level.Number)
	}
	for _, skill := range level.SkillsUnlocked {
		if !contains(next.SkillsLearned, skill) {
			next.SkillsLearned = append(next.SkillsLearned, skill)
		}
	}
	next.CurrentLevel = e.nextLevel(next)
	return next
}

// nextLevel is the first level not completed, or one past the last level
// once all are done.
func (e *Evaluator) nextLevel(p types.TrainingProgress) int {
	for _, l := range e.levels {
		if !p.HasCompleted(l.Number) {
			return l.Number
		}
	}
	if len(e.levels) == 0 {
		return p.CurrentLevel
	}
	return e.levels[len(e.levels)-1].Number + 1
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
