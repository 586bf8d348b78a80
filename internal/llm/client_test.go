package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-coach/internal/llm"
	"github.com/jonathan/resume-coach/internal/llm/llmtest"
)

func TestCollect(t *testing.T) {
	fake := llmtest.New(llmtest.Text("Hel", "lo ", "there"))
	s, err := fake.Stream(context.Background(), llm.Request{Prompt: "hi"})
	require.NoError(t, err)

	text, usage, err := llm.Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
	assert.Equal(t, 3, usage.OutputTokens)
}

func TestCollect_PropagatesStreamError(t *testing.T) {
	boom := &llm.GenerationError{Model: "m", Message: "quota", Cause: errors.New("429")}
	fake := llmtest.New(llmtest.Reply{Chunks: []string{"partial"}, Err: boom})
	s, err := fake.Stream(context.Background(), llm.Request{})
	require.NoError(t, err)

	text, _, err := llm.Collect(s)
	assert.Equal(t, "partial", text)
	var gen *llm.GenerationError
	require.True(t, errors.As(err, &gen))
	assert.Contains(t, err.Error(), "429")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := llm.NewClient(context.Background(), nil, "")
	assert.Error(t, err)

	cfg := llm.DefaultConfig()
	cfg.Provider = "other"
	_, err = llm.NewClient(context.Background(), cfg, "k")
	assert.Error(t, err)
}

func TestFake_GenerateJSONCleansFences(t *testing.T) {
	fake := llmtest.New().WithJSON("```json\n{\"passed\": true}\n```")
	out, err := fake.GenerateJSON(context.Background(), "grade", llm.TierLite)
	require.NoError(t, err)
	assert.JSONEq(t, `{"passed": true}`, out)
	assert.Equal(t, []string{"grade"}, fake.JSONPrompts())
}
