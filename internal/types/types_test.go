//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushHistory_EvictsOldest(t *testing.T) {
	rec := &DocumentRecord{}
	for i := 0; i < MaxDocumentHistory+3; i++ {
		rec.PushHistory(Document{Summary: string(rune('a' + i))})
	}

	require.Len(t, rec.History, MaxDocumentHistory)
	assert.Equal(t, "d", rec.History[0].Summary)
	assert.Equal(t, "h", rec.History[MaxDocumentHistory-1].Summary)
}

func TestRatingStats_Add(t *testing.T) {
	var s RatingStats
	s = s.Add(5)
	s = s.Add(1)
	s = s.Add(3)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Positive)
	assert.Equal(t, 1, s.Negative)
	assert.InDelta(t, 3.0, s.Average, 1e-9)
}

func TestPartialDocument_Updates(t *testing.T) {
	p := PartialDocument{
		Header: Header{Email: "ana@example.com"},
		Experience: []ExperienceEntry{
			{Role: "Engineer", Company: "Acme"},
		},
	}

	ups := p.Updates()
	require.Len(t, ups, 2)
	assert.Equal(t, SectionHeader, ups[0].Section)
	assert.Equal(t, SectionExperience, ups[1].Section)

	var h Header
	require.NoError(t, json.Unmarshal(ups[0].Payload, &h))
	assert.Equal(t, "ana@example.com", h.Email)
	assert.False(t, p.IsEmpty())
	assert.True(t, PartialDocument{}.IsEmpty())
	assert.Empty(t, PartialDocument{}.Updates())
}

func TestSectionAndActionValid(t *testing.T) {
	assert.True(t, SectionSkills.Valid())
	assert.False(t, Section("hobbies").Valid())
	assert.True(t, ActionNone.Valid())
	assert.False(t, Action("delete").Valid())
}

func TestFeedbackRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request FeedbackRequest
		wantErr bool
	}{
		{name: "valid", request: FeedbackRequest{TurnID: "t1", Rating: 4, Tags: []string{"strong_verbs"}}},
		{name: "missing turn", request: FeedbackRequest{Rating: 4}, wantErr: true},
		{name: "rating too high", request: FeedbackRequest{TurnID: "t1", Rating: 6}, wantErr: true},
		{name: "rating zero", request: FeedbackRequest{TurnID: "t1"}, wantErr: true},
		{name: "empty tag", request: FeedbackRequest{TurnID: "t1", Rating: 2, Tags: []string{""}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTurnCompleteData_WireFormat(t *testing.T) {
	raw, err := json.Marshal(TurnComplete(12, 34, "m1").Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tokensIn":12,"tokensOut":34,"messageId":"m1"}`, string(raw))
}
