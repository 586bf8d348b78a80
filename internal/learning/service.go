package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/types"
)

// FeedbackStore persists feedback rows and resolves the rated turn.
type FeedbackStore interface {
	GetTurn(ctx context.Context, id string) (*types.Turn, error)
	CreateFeedback(ctx context.Context, fb *types.Feedback) error
}

// RatingRecorder folds a rating into the prompt version that produced a turn.
type RatingRecorder interface {
	RecordRating(ctx context.Context, promptVersionID string, rating int) error
}

// JobPublisher hands a learning job to whatever runs it out of band.
type JobPublisher interface {
	PublishLearningJob(ctx context.Context, job types.LearningJob) error
}

// Service accepts user feedback and schedules learning.
type Service struct {
	store     FeedbackStore
	ratings   RatingRecorder
	publisher JobPublisher
	learner   *Learner
	logger    *zap.Logger
}

// NewService wires the feedback service.
func NewService(store FeedbackStore, ratings RatingRecorder, publisher JobPublisher, learner *Learner, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, ratings: ratings, publisher: publisher, learner: learner, logger: log}
}

// SubmitFeedback stores a rating of an assistant turn, records it against the
// turn's prompt version and schedules pattern learning. Learning happens
// asynchronously; a failure to schedule it is logged, not returned.
func (s *Service) SubmitFeedback(ctx context.Context, req *types.FeedbackRequest) (*types.Feedback, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: "invalid feedback", Cause: err}
	}

	turn, err := s.store.GetTurn(ctx, req.TurnID)
	if err != nil {
		return nil, err
	}
	if turn.Role != types.RoleAssistant {
		return nil, &ValidationError{Message: "only assistant turns can be rated"}
	}

	fb := &types.Feedback{
		ID:         uuid.New().String(),
		TurnID:     turn.ID,
		DocumentID: turn.DocumentID,
		Rating:     req.Rating,
		Tags:       req.Tags,
		Comment:    req.Comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	if turn.PromptVersionID != "" && s.ratings != nil {
		if err := s.ratings.RecordRating(ctx, turn.PromptVersionID, req.Rating); err != nil {
			s.logger.Warn("failed to record prompt rating",
				zap.String("prompt_version_id", turn.PromptVersionID),
				zap.Error(err),
			)
		}
	}

	if len(req.Tags) > 0 && s.publisher != nil {
		job := types.LearningJob{FeedbackID: fb.ID, TurnText: turn.Content, Tags: req.Tags, Rating: req.Rating}
		if err := s.publisher.PublishLearningJob(ctx, job); err != nil {
			s.logger.Warn("failed to schedule learning job", zap.String("feedback_id", fb.ID), zap.Error(err))
		}
	}

	return fb, nil
}

// HandleJob is the consumer side of a learning job.
func (s *Service) HandleJob(ctx context.Context, job types.LearningJob) error {
	patterns, err := s.learner.Learn(ctx, job.TurnText, job.Tags, job.Rating)
	if err != nil {
		return err
	}
	s.logger.Debug("learning job done",
		zap.String("feedback_id", job.FeedbackID),
		zap.Int("patterns", len(patterns)),
	)
	return nil
}
