package learning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-coach/internal/types"
)

var errTurnMissing = errors.New("turn not found")

type fakeFeedbackStore struct {
	turns    map[string]*types.Turn
	feedback []*types.Feedback
}

func (f *fakeFeedbackStore) GetTurn(_ context.Context, id string) (*types.Turn, error) {
	t, ok := f.turns[id]
	if !ok {
		return nil, errTurnMissing
	}
	return t, nil
}

func (f *fakeFeedbackStore) CreateFeedback(_ context.Context, fb *types.Feedback) error {
	f.feedback = append(f.feedback, fb)
	return nil
}

type fakeRatings struct {
	calls map[string][]int
}

func (f *fakeRatings) RecordRating(_ context.Context, id string, rating int) error {
	f.calls[id] = append(f.calls[id], rating)
	return nil
}

type fakePublisher struct {
	jobs []types.LearningJob
	err  error
}

func (f *fakePublisher) PublishLearningJob(_ context.Context, job types.LearningJob) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

func newTestService() (*Service, *fakeFeedbackStore, *fakeRatings, *fakePublisher, *memPatterns) {
	store := &fakeFeedbackStore{turns: map[string]*types.Turn{
		"a1": {ID: "a1", DocumentID: "d1", Role: types.RoleAssistant, Content: "Try: Led 5 engineers", PromptVersionID: "pv1"},
		"u1": {ID: "u1", DocumentID: "d1", Role: types.RoleUser, Content: "hi"},
	}}
	ratings := &fakeRatings{calls: map[string][]int{}}
	pub := &fakePublisher{}
	patterns := newMemPatterns()
	svc := NewService(store, ratings, pub, NewLearner(patterns, nil, nil), nil)
	return svc, store, ratings, pub, patterns
}

func TestSubmitFeedback(t *testing.T) {
	svc, store, ratings, pub, _ := newTestService()

	fb, err := svc.SubmitFeedback(context.Background(), &types.FeedbackRequest{TurnID: "a1", Rating: 5, Tags: []string{"strong_verbs"}})
	require.NoError(t, err)
	assert.Equal(t, "d1", fb.DocumentID)
	assert.Len(t, store.feedback, 1)
	assert.Equal(t, []int{5}, ratings.calls["pv1"])
	require.Len(t, pub.jobs, 1)
	assert.Equal(t, "Try: Led 5 engineers", pub.jobs[0].TurnText)
}

func TestSubmitFeedback_NoTagsSkipsLearning(t *testing.T) {
	svc, _, _, pub, _ := newTestService()
	_, err := svc.SubmitFeedback(context.Background(), &types.FeedbackRequest{TurnID: "a1", Rating: 3})
	require.NoError(t, err)
	assert.Empty(t, pub.jobs)
}

func TestSubmitFeedback_Errors(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SubmitFeedback(ctx, &types.FeedbackRequest{TurnID: "a1", Rating: 9})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.SubmitFeedback(ctx, &types.FeedbackRequest{TurnID: "u1", Rating: 3})
	assert.True(t, errors.As(err, &verr))

	_, err = svc.SubmitFeedback(ctx, &types.FeedbackRequest{TurnID: "missing", Rating: 3})
	assert.ErrorIs(t, err, errTurnMissing)
}

func TestSubmitFeedback_PublishFailureIsNotFatal(t *testing.T) {
	svc, store, _, pub, _ := newTestService()
	pub.err = errors.New("broker down")

	_, err := svc.SubmitFeedback(context.Background(), &types.FeedbackRequest{TurnID: "a1", Rating: 1, Tags: []string{"pushy"}})
	require.NoError(t, err)
	assert.Len(t, store.feedback, 1)
}

func TestHandleJob(t *testing.T) {
	svc, _, _, _, patterns := newTestService()
	err := svc.HandleJob(context.Background(), types.LearningJob{TurnText: "x", Tags: []string{"pushy"}, Rating: 1})
	require.NoError(t, err)
	p := patterns.get(types.PatternTonePreference, "pushy")
	require.NotNil(t, p)
	assert.InDelta(t, 0.45, p.Confidence, 1e-9)
}
