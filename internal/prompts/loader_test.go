package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get(CoachFile, KeyBaseInstructions)
	require.NoError(t, err)
	assert.Contains(t, prompt, "résumé coach")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(CoachFile, "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestFormat(t *testing.T) {
	out := Format("Hello {{.Name}}, score {{.Score}} {{.Other}}", map[string]string{"Name": "Ana", "Score": "80"})
	assert.Equal(t, "Hello Ana, score 80 {{.Other}}", out)
}

func TestRender_MissingValues(t *testing.T) {
	ClearCache()

	_, err := Render(CoachFile, KeyDocumentContext, map[string]string{"Document": "{}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Score")

	out, err := Render(CoachFile, KeyDocumentContext, map[string]string{"Document": "{}", "Score": "10", "Missing": "summary"})
	require.NoError(t, err)
	assert.Contains(t, out, "10/100")
}

func TestList_ContainsAllKeys(t *testing.T) {
	ClearCache()

	keys, err := List(CoachFile)
	require.NoError(t, err)
	for _, k := range []string{KeyBaseInstructions, KeyUpdateProtocol, KeyDocumentContext, KeyLearnedHeader, KeyJudgeScenario} {
		assert.Contains(t, keys, k)
	}
}
