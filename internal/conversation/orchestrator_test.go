package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/db"
	"github.com/jonathan/resume-coach/internal/llm"
	"github.com/jonathan/resume-coach/internal/llm/llmtest"
	"github.com/jonathan/resume-coach/internal/prompting"
	"github.com/jonathan/resume-coach/internal/types"
)

const headerBlock = `<resume_update>{"action":"update","section":"header","payload":{"full_name":"Ana Ruiz","email":"ana@example.com"}}</resume_update>`

type stubExtractor struct {
	guess types.PartialDocument
	calls []string
}

func (s *stubExtractor) Extract(text string) types.PartialDocument {
	s.calls = append(s.calls, text)
	return s.guess
}

type recorder struct {
	events []types.Event
}

func (r *recorder) emit(e types.Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []types.EventType {
	out := make([]types.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) text() string {
	var s string
	for _, e := range r.events {
		if d, ok := e.Data.(types.TextDeltaData); ok {
			s += d.Content
		}
	}
	return s
}

func (r *recorder) last() types.Event {
	return r.events[len(r.events)-1]
}

type fixture struct {
	store    *db.Store
	client   *llmtest.Client
	fallback *stubExtractor
	orch     *Orchestrator
	docID    string
}

func newFixture(t *testing.T, replies ...llmtest.Reply) *fixture {
	t.Helper()
	store := db.NewStore(db.NewMemory())
	rec := &types.DocumentRecord{ID: "doc-1", Title: "My résumé"}
	require.NoError(t, store.CreateDocument(context.Background(), rec))

	client := llmtest.New(replies...)
	fallback := &stubExtractor{}
	composer := prompting.NewComposer(store, nil, 0, zap.NewNop())
	return &fixture{
		store:    store,
		client:   client,
		fallback: fallback,
		orch:     NewOrchestrator(store, client, composer, fallback, Options{}, zap.NewNop()),
		docID:    rec.ID,
	}
}

func (f *fixture) turn(t *testing.T, ctx context.Context, message string) (*recorder, error) {
	t.Helper()
	rec := &recorder{}
	err := f.orch.Turn(ctx, TurnInput{DocumentID: f.docID, MessageText: message}, rec.emit)
	return rec, err
}

func (f *fixture) document(t *testing.T) *types.DocumentRecord {
	t.Helper()
	rec, err := f.store.GetDocument(context.Background(), f.docID)
	require.NoError(t, err)
	return rec
}

func (f *fixture) turns(t *testing.T) []types.Turn {
	t.Helper()
	turns, err := f.store.ListTurns(context.Background(), f.docID, 0)
	require.NoError(t, err)
	return turns
}

func TestTurn_AppliesUpdateBlock(t *testing.T) {
	f := newFixture(t, llmtest.Text("Nice to meet you, ", "Ana! ", headerBlock))

	rec, err := f.turn(t, context.Background(), "I'm Ana Ruiz, ana@example.com")
	require.NoError(t, err)

	assert.Equal(t, []types.EventType{
		types.EventTextDelta, types.EventTextDelta, types.EventDocumentUpdated, types.EventTurnComplete,
	}, rec.kinds())
	assert.Equal(t, "Nice to meet you, Ana! ", rec.text())
	assert.NotContains(t, rec.text(), "resume_update")

	updated := rec.events[2].Data.(types.DocumentUpdatedData)
	assert.Equal(t, "Ana Ruiz", updated.Document.Header.FullName)
	assert.Equal(t, 9, updated.Score)

	stored := f.document(t)
	assert.Equal(t, "ana@example.com", stored.Document.Header.Email)
	assert.Equal(t, 9, stored.Score)
	assert.Equal(t, types.StatusDraft, stored.Status)
	assert.Equal(t, 1, stored.Revision)
	require.Len(t, stored.History, 1)
	assert.Empty(t, stored.History[0].Header.FullName)

	turns := f.turns(t)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Nice to meet you, Ana!", turns[1].Content)
	require.Len(t, turns[1].Updates, 1)
	assert.Equal(t, types.SectionHeader, turns[1].Updates[0].Section)

	complete := rec.last().Data.(types.TurnCompleteData)
	assert.Equal(t, turns[1].ID, complete.MessageID)
	assert.Equal(t, 10, complete.TokensIn)
	assert.Equal(t, 3, complete.TokensOut)

	assert.Empty(t, f.fallback.calls)
}

func TestTurn_RequestCarriesProtocolAndDocument(t *testing.T) {
	f := newFixture(t, llmtest.Text("Hello!"))

	_, err := f.turn(t, context.Background(), "hi")
	require.NoError(t, err)

	reqs := f.client.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "hi", reqs[0].Prompt)
	assert.Equal(t, llm.TierStandard, reqs[0].Tier)
	assert.Contains(t, reqs[0].Instructions, "résumé coach")
	assert.Contains(t, reqs[0].Instructions, OpenTag)
	assert.Contains(t, reqs[0].Instructions, CloseTag)
	assert.Contains(t, reqs[0].Instructions, "Readiness score: 0/100")
	assert.Contains(t, reqs[0].Instructions, "header, headline, summary")
	assert.NotContains(t, reqs[0].Instructions, "{{.")
}

func TestTurn_ReplaysHistory(t *testing.T) {
	f := newFixture(t, llmtest.Text("First answer"), llmtest.Text("Second answer"))

	_, err := f.turn(t, context.Background(), "first question")
	require.NoError(t, err)
	_, err = f.turn(t, context.Background(), "second question")
	require.NoError(t, err)

	reqs := f.client.Requests()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].History)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Text: "first question"},
		{Role: llm.RoleModel, Text: "First answer"},
	}, reqs[1].History)
}

func TestTurn_MissingBlockFallsBackToHeuristic(t *testing.T) {
	f := newFixture(t, llmtest.Text("Sounds like a solid background."))
	f.fallback.guess = types.PartialDocument{Summary: "Backend engineer focused on payments."}

	rec, err := f.turn(t, context.Background(), "I'm a backend engineer focused on payments.")
	require.NoError(t, err)

	assert.Equal(t, []string{"I'm a backend engineer focused on payments."}, f.fallback.calls)
	assert.Contains(t, rec.kinds(), types.EventDocumentUpdated)
	assert.Equal(t, "Backend engineer focused on payments.", f.document(t).Document.Summary)

	turns := f.turns(t)
	require.Len(t, turns, 2)
	require.Len(t, turns[1].Updates, 1)
	assert.Equal(t, types.SectionSummary, turns[1].Updates[0].Section)
}

func TestTurn_RejectedBlockFallsBackToHeuristic(t *testing.T) {
	block := `<resume_update>{"action":"add","section":"experience","payload":"worked at Acme"}</resume_update>`
	f := newFixture(t, llmtest.Text("Got it.", block))
	f.fallback.guess = types.PartialDocument{Skills: types.Skills{Hard: []string{"Go"}}}

	rec, err := f.turn(t, context.Background(), "I know Go")
	require.NoError(t, err)

	assert.Len(t, f.fallback.calls, 1)
	assert.Contains(t, rec.kinds(), types.EventDocumentUpdated)
	doc := f.document(t).Document
	assert.Empty(t, doc.Experience)
	assert.Equal(t, []string{"Go"}, doc.Skills.Hard)
}

func TestTurn_NothingExtractedStillCompletes(t *testing.T) {
	f := newFixture(t, llmtest.Text("What would you like to work on?"))

	rec, err := f.turn(t, context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, []types.EventType{types.EventTextDelta, types.EventTurnComplete}, rec.kinds())
	stored := f.document(t)
	assert.Zero(t, stored.Revision)
	assert.Empty(t, stored.History)
	assert.Len(t, f.turns(t), 2)
}

func TestTurn_NoneActionSkipsFallback(t *testing.T) {
	f := newFixture(t, llmtest.Text("Anything else?", `<resume_update>{"action":"none"}</resume_update>`))
	f.fallback.guess = types.PartialDocument{Summary: "should not be used"}

	rec, err := f.turn(t, context.Background(), "not sure yet")
	require.NoError(t, err)

	assert.Empty(t, f.fallback.calls)
	assert.NotContains(t, rec.kinds(), types.EventDocumentUpdated)
	assert.Empty(t, f.document(t).Document.Summary)
}

func TestTurn_RepeatedUpdateIsIdempotent(t *testing.T) {
	f := newFixture(t, llmtest.Text("Saved.", headerBlock))

	first, err := f.turn(t, context.Background(), "I'm Ana Ruiz, ana@example.com")
	require.NoError(t, err)
	assert.Contains(t, first.kinds(), types.EventDocumentUpdated)
	before := f.document(t)

	second, err := f.turn(t, context.Background(), "Again: Ana Ruiz, ana@example.com")
	require.NoError(t, err)
	assert.NotContains(t, second.kinds(), types.EventDocumentUpdated)

	after := f.document(t)
	assert.Equal(t, before.Document, after.Document)
	assert.Equal(t, before.Revision, after.Revision)
	assert.Len(t, f.turns(t), 4)
}

func TestTurn_ModelFailureEmitsOneErrorAndPersistsNothing(t *testing.T) {
	genErr := &llm.GenerationError{Model: "fake", Message: "stream failed", Cause: errors.New("boom")}
	f := newFixture(t, llmtest.Reply{Chunks: []string{"Let me "}, Err: genErr})

	rec, err := f.turn(t, context.Background(), "I'm Ana")
	var ge *llm.GenerationError
	require.ErrorAs(t, err, &ge)

	assert.Equal(t, []types.EventType{types.EventTextDelta, types.EventError}, rec.kinds())
	assert.Equal(t, PublicMessage(genErr), rec.last().Data.(types.ErrorData).Message)
	assert.Empty(t, f.turns(t))
	assert.Zero(t, f.document(t).Revision)
}

func TestTurn_StartFailure(t *testing.T) {
	f := newFixture(t, llmtest.Reply{StartErr: &llm.GenerationError{Model: "fake", Message: "quota"}})

	rec, err := f.turn(t, context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, []types.EventType{types.EventError}, rec.kinds())
	assert.Empty(t, f.turns(t))
}

func TestTurn_CancelledConsumerAbortsSilently(t *testing.T) {
	f := newFixture(t, llmtest.Text("one ", "two ", headerBlock))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	err := f.orch.Turn(ctx, TurnInput{DocumentID: f.docID, MessageText: "I'm Ana"}, func(e types.Event) {
		rec.emit(e)
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []types.EventType{types.EventTextDelta}, rec.kinds())
	assert.Empty(t, f.turns(t))
	assert.Empty(t, f.document(t).Document.Header.FullName)
}

func TestTurn_ClosedDocument(t *testing.T) {
	f := newFixture(t, llmtest.Text("hi"))
	_, err := f.store.CloseDocument(context.Background(), f.docID)
	require.NoError(t, err)

	rec, err := f.turn(t, context.Background(), "hello")
	var closed *ClosedDocumentError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, []types.EventType{types.EventError}, rec.kinds())
	assert.Contains(t, rec.last().Data.(types.ErrorData).Message, "closed")
	assert.Empty(t, f.client.Requests())
}

func TestTurn_UnknownDocument(t *testing.T) {
	f := newFixture(t, llmtest.Text("hi"))
	rec := &recorder{}
	err := f.orch.Turn(context.Background(), TurnInput{DocumentID: "missing", MessageText: "hello"}, rec.emit)
	assert.True(t, db.IsNotFound(err))
	assert.Equal(t, []types.EventType{types.EventError}, rec.kinds())
}

func TestTurn_EmptyMessage(t *testing.T) {
	f := newFixture(t, llmtest.Text("hi"))
	rec, err := f.turn(t, context.Background(), "   ")
	var ie *InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []types.EventType{types.EventError}, rec.kinds())
}

func TestTurn_RecordsPromptVersion(t *testing.T) {
	f := newFixture(t, llmtest.Text("Hello!"))
	composer := prompting.NewComposer(f.store, nil, 0, zap.NewNop())
	pv, err := composer.CreateVersion(context.Background(), &types.CreatePromptRequest{
		Version:      "v2",
		Instructions: "Be brief.",
	})
	require.NoError(t, err)

	_, err = f.turn(t, context.Background(), "hello")
	require.NoError(t, err)

	turns := f.turns(t)
	require.Len(t, turns, 2)
	assert.Equal(t, pv.ID, turns[1].PromptVersionID)
	assert.Contains(t, f.client.Requests()[0].Instructions, "Be brief.")
}

type failingCommit struct {
	*db.Store
}

func (failingCommit) CommitTurn(context.Context, db.TurnCommit) error {
	return &db.PersistenceError{Op: "commit turn", Cause: errors.New("disk full")}
}

func TestTurn_PersistenceFailure(t *testing.T) {
	f := newFixture(t, llmtest.Text("Saved.", headerBlock))
	orch := NewOrchestrator(failingCommit{f.store}, f.client, prompting.NewComposer(f.store, nil, 0, nil), f.fallback, Options{}, nil)

	rec := &recorder{}
	err := orch.Turn(context.Background(), TurnInput{DocumentID: f.docID, MessageText: "I'm Ana"}, rec.emit)
	var pe *db.PersistenceError
	require.ErrorAs(t, err, &pe)

	assert.Equal(t, types.EventError, rec.last().Type)
	assert.NotContains(t, rec.kinds(), types.EventDocumentUpdated)
	assert.NotContains(t, rec.kinds(), types.EventTurnComplete)
	assert.Empty(t, f.document(t).Document.Header.FullName)
}

func TestImport_MergesGuess(t *testing.T) {
	f := newFixture(t)
	guess := types.PartialDocument{
		Header: types.Header{FullName: "Ana Ruiz", Email: "ana@example.com", Phone: "+34 600 000 000", Location: "Madrid"},
		Skills: types.Skills{Hard: []string{"Go", "SQL", "Kafka", "Docker", "AWS"}},
	}

	rec, err := f.orch.Import(context.Background(), f.docID, guess, "upload")
	require.NoError(t, err)
	assert.Equal(t, 25, rec.Score)
	assert.Equal(t, 1, rec.Revision)

	stored := f.document(t)
	assert.Equal(t, "Madrid", stored.Document.Header.Location)
	assert.Len(t, stored.History, 1)
	assert.Empty(t, f.turns(t))

	again, err := f.orch.Import(context.Background(), f.docID, guess, "upload")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Revision)
}

func TestImport_ClosedDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.CloseDocument(context.Background(), f.docID)
	require.NoError(t, err)

	_, err = f.orch.Import(context.Background(), f.docID, types.PartialDocument{Summary: "x"}, "upload")
	var closed *ClosedDocumentError
	assert.ErrorAs(t, err, &closed)
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord("alice", "Backend CV", types.Constraints{TargetRole: "Backend Engineer", Language: "en"})
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "alice", rec.OwnerID)
	assert.Equal(t, "Backend Engineer", rec.Document.Constraints.TargetRole)
	assert.Zero(t, rec.Revision)
	assert.NotEmpty(t, rec.Breakdown)
	assert.Equal(t, types.StatusDraft, rec.Status)
}

func TestCoachNotes(t *testing.T) {
	plus, minus := 5, -2
	notes, claimed := coachNotes([]types.Update{
		{Action: types.ActionUpdate, Section: types.SectionSummary, Feedback: " Summary reads well now. ", ScoreDelta: &plus},
		{Action: types.ActionNone, Feedback: "  "},
		{Action: types.ActionAdd, Section: types.SectionSkills, Feedback: "Add a metric next.", ScoreDelta: &minus},
	})
	assert.Equal(t, []string{"Summary reads well now.", "Add a metric next."}, notes)
	assert.Equal(t, 3, claimed)

	notes, claimed = coachNotes(nil)
	assert.Empty(t, notes)
	assert.Zero(t, claimed)
}
