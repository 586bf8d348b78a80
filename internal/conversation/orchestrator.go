// Package conversation runs coaching turns: it streams the model reply,
// pulls the structured update out of it, merges the update into the
// document, rescores it and commits everything in one transaction.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/db"
	"github.com/jonathan/resume-coach/internal/extraction"
	"github.com/jonathan/resume-coach/internal/llm"
	"github.com/jonathan/resume-coach/internal/logger"
	"github.com/jonathan/resume-coach/internal/merge"
	"github.com/jonathan/resume-coach/internal/prompting"
	"github.com/jonathan/resume-coach/internal/prompts"
	"github.com/jonathan/resume-coach/internal/readiness"
	"github.com/jonathan/resume-coach/internal/types"
)

// DefaultHistoryTurns is how many prior turns are replayed to the model.
const DefaultHistoryTurns = 12

// Store is the persistence a turn needs.
type Store interface {
	GetDocument(ctx context.Context, id string) (*types.DocumentRecord, error)
	ListTurns(ctx context.Context, documentID string, limit int) ([]types.Turn, error)
	CommitTurn(ctx context.Context, commit db.TurnCommit) error
}

// InstructionSource yields the effective instructions for a turn.
type InstructionSource interface {
	Effective(ctx context.Context) (*prompting.Instructions, error)
}

// TurnInput is one user message addressed to a document.
type TurnInput struct {
	DocumentID  string
	MessageText string
}

// Options tunes an Orchestrator.
type Options struct {
	HistoryTurns int
	Tier         llm.ModelTier
}

// Orchestrator runs conversation turns.
type Orchestrator struct {
	store        Store
	client       llm.Client
	instructions InstructionSource
	fallback     extraction.Extractor
	locks        *keyedLocks
	historyTurns int
	tier         llm.ModelTier
	logger       *zap.Logger
}

// NewOrchestrator wires an Orchestrator. A nil fallback uses the heuristic extractor.
func NewOrchestrator(store Store, client llm.Client, instructions InstructionSource, fallback extraction.Extractor, opts Options, log *zap.Logger) *Orchestrator {
	if fallback == nil {
		fallback = extraction.NewHeuristic()
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = DefaultHistoryTurns
	}
	if opts.Tier == "" {
		opts.Tier = llm.TierStandard
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:        store,
		client:       client,
		instructions: instructions,
		fallback:     fallback,
		locks:        newKeyedLocks(),
		historyTurns: opts.HistoryTurns,
		tier:         opts.Tier,
		logger:       log,
	}
}

// Turn runs one conversational turn and reports it through emit: any number
// of text-delta events, then document-updated when the document changed,
// then turn-complete. A failed turn emits exactly one error event and
// persists nothing. When ctx is cancelled the turn is abandoned without an
// event and ctx.Err() is returned.
func (o *Orchestrator) Turn(ctx context.Context, in TurnInput, emit func(types.Event)) error {
	err := o.turn(ctx, in, emit)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		o.logger.Info("turn abandoned", zap.String("document_id", in.DocumentID), zap.Error(ctx.Err()))
		return ctx.Err()
	}
	o.logger.Warn("turn failed", zap.String("document_id", in.DocumentID), zap.Error(err))
	emit(types.ErrorEvent(PublicMessage(err)))
	return err
}

func (o *Orchestrator) turn(ctx context.Context, in TurnInput, emit func(types.Event)) error {
	message := strings.TrimSpace(in.MessageText)
	if in.DocumentID == "" {
		return &InputError{Message: "document id is required"}
	}
	if message == "" {
		return &InputError{Message: "message text is required"}
	}

	unlock, err := o.locks.Lock(ctx, in.DocumentID)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := o.store.GetDocument(ctx, in.DocumentID)
	if err != nil {
		return err
	}
	if rec.Status == types.StatusClosed {
		return &ClosedDocumentError{DocumentID: rec.ID}
	}

	instr, err := o.instructions.Effective(ctx)
	if err != nil {
		return err
	}
	system, err := systemText(instr.Text, rec)
	if err != nil {
		return err
	}
	prior, err := o.store.ListTurns(ctx, rec.ID, o.historyTurns)
	if err != nil {
		return err
	}

	started := time.Now()
	stream, err := o.client.Stream(ctx, llm.Request{
		Instructions: system,
		History:      history(prior),
		Prompt:       message,
		Tier:         o.tier,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	var (
		filter blockFilter
		usage  llm.Usage
	)
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if visible := filter.Write(chunk.Text); visible != "" {
			emit(types.TextDelta(visible))
		}
	}
	if tail := filter.Flush(); tail != "" {
		emit(types.TextDelta(tail))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	doc, applied := o.applyReply(rec.Document, filter.Block(), message)
	changed := !reflect.DeepEqual(doc, rec.Document)

	now := time.Now().UTC()
	userTurn := &types.Turn{
		ID:         uuid.New().String(),
		DocumentID: rec.ID,
		Role:       types.RoleUser,
		Content:    message,
		CreatedAt:  now,
	}
	assistantTurn := &types.Turn{
		ID:              uuid.New().String(),
		DocumentID:      rec.ID,
		Role:            types.RoleAssistant,
		Content:         filter.Visible(),
		PromptVersionID: instr.PromptVersionID,
		TokensIn:        usage.PromptTokens,
		TokensOut:       usage.OutputTokens,
		CreatedAt:       now.Add(time.Millisecond),
	}

	commit := db.TurnCommit{ExpectedRevision: rec.Revision, Turns: []*types.Turn{userTurn, assistantTurn}}
	var next *types.DocumentRecord
	if changed {
		assistantTurn.Updates = applied
		next = advance(rec, doc)
		commit.Document = next
	}
	if err := o.store.CommitTurn(ctx, commit); err != nil {
		return err
	}

	notes, claimed := coachNotes(applied)
	o.logger.Info("turn completed",
		zap.String("document_id", rec.ID),
		zap.String("turn_id", assistantTurn.ID),
		zap.Bool("document_changed", changed),
		zap.Strings("coach_notes", notes),
		zap.Int("claimed_score_delta", claimed),
		zap.Int("tokens_in", usage.PromptTokens),
		zap.Int("tokens_out", usage.OutputTokens),
		zap.Duration("elapsed", time.Since(started)),
	)

	if changed {
		emit(types.DocumentUpdated(next.Document, next.Score))
	}
	emit(types.TurnComplete(usage.PromptTokens, usage.OutputTokens, assistantTurn.ID))
	return nil
}

// coachNotes collects the model's own remarks on its updates. The claimed
// score delta is only reported; the stored score always comes from readiness.
func coachNotes(updates []types.Update) (notes []string, claimedDelta int) {
	for _, u := range updates {
		if note := strings.TrimSpace(u.Feedback); note != "" {
			notes = append(notes, note)
		}
		if u.ScoreDelta != nil {
			claimedDelta += *u.ScoreDelta
		}
	}
	return notes, claimedDelta
}

// applyReply folds the reply's update block into doc. When the block is
// missing or unusable the user's own message is mined instead; this never
// fails the turn.
func (o *Orchestrator) applyReply(doc types.Document, block, message string) (types.Document, []types.Update) {
	updates, err := ParseUpdates(block)
	if err == nil {
		merged, mergeErr := merge.ApplyAll(doc, updates)
		if mergeErr == nil {
			return merged, updates
		}
		err = &ExtractionFailure{Stage: "merge", Message: "update rejected", Cause: mergeErr}
	}
	o.logger.Debug("falling back to heuristic extraction",
		zap.Error(err),
		zap.String("block", logger.TruncateForLog(block, 200)),
	)

	guess := o.fallback.Extract(message)
	if guess.IsEmpty() {
		return doc, nil
	}
	updates = guess.Updates()
	merged, mergeErr := merge.ApplyAll(doc, updates)
	if mergeErr != nil {
		o.logger.Warn("heuristic update rejected", zap.Error(mergeErr))
		return doc, nil
	}
	return merged, updates
}

// Import folds an extracted guess into a document outside any conversation.
// It returns the stored record, unchanged when the guess added nothing.
func (o *Orchestrator) Import(ctx context.Context, documentID string, guess types.PartialDocument, source string) (*types.DocumentRecord, error) {
	unlock, err := o.locks.Lock(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if rec.Status == types.StatusClosed {
		return nil, &ClosedDocumentError{DocumentID: rec.ID}
	}

	doc, err := merge.ApplyAll(rec.Document, guess.Updates())
	if err != nil {
		return nil, err
	}
	if reflect.DeepEqual(doc, rec.Document) {
		o.logger.Info("import added nothing", zap.String("document_id", rec.ID), zap.String("source", source))
		return rec, nil
	}

	next := advance(rec, doc)
	if err := o.store.CommitTurn(ctx, db.TurnCommit{Document: next, ExpectedRevision: rec.Revision}); err != nil {
		return nil, err
	}
	o.logger.Info("document imported",
		zap.String("document_id", rec.ID),
		zap.String("source", source),
		zap.Int("score", next.Score),
	)
	return next, nil
}

// NewRecord builds a fresh, scored document record for owner.
func NewRecord(owner, title string, constraints types.Constraints) *types.DocumentRecord {
	doc := types.Document{Constraints: constraints}
	result := readiness.Score(doc)
	return &types.DocumentRecord{
		ID:        uuid.New().String(),
		OwnerID:   owner,
		Title:     title,
		Document:  doc,
		Score:     result.Total,
		Breakdown: result.BreakdownStrings(),
		Status:    readiness.StatusFor(result.Total),
	}
}

// advance returns a copy of rec holding doc, rescored, with the previous
// document pushed onto the history.
func advance(rec *types.DocumentRecord, doc types.Document) *types.DocumentRecord {
	next := *rec
	next.History = append([]types.Document(nil), rec.History...)
	next.PushHistory(rec.Document)
	next.Document = doc
	result := readiness.Score(doc)
	next.Score = result.Total
	next.Breakdown = result.BreakdownStrings()
	next.Status = readiness.StatusFor(result.Total)
	return &next
}

// systemText appends the update protocol and the current document to the
// composed instructions.
func systemText(instructions string, rec *types.DocumentRecord) (string, error) {
	sections := make([]string, 0, len(types.Sections))
	for _, s := range types.Sections {
		sections = append(sections, string(s))
	}
	protocol, err := prompts.Render(prompts.CoachFile, prompts.KeyUpdateProtocol, map[string]string{
		"OpenTag":  OpenTag,
		"CloseTag": CloseTag,
		"Sections": strings.Join(sections, ", "),
	})
	if err != nil {
		return "", err
	}

	docJSON, err := json.MarshalIndent(rec.Document, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	result := readiness.Score(rec.Document)
	missing := make([]string, 0, len(readiness.Categories))
	for _, c := range result.Missing() {
		missing = append(missing, string(c))
	}
	if len(missing) == 0 {
		missing = append(missing, "none")
	}
	docContext, err := prompts.Render(prompts.CoachFile, prompts.KeyDocumentContext, map[string]string{
		"Document": string(docJSON),
		"Score":    fmt.Sprintf("%d", result.Total),
		"Missing":  strings.Join(missing, ", "),
	})
	if err != nil {
		return "", err
	}
	return strings.Join([]string{strings.TrimSpace(instructions), protocol, docContext}, "\n\n"), nil
}

func history(turns []types.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == types.RoleAssistant {
			role = llm.RoleModel
		}
		out = append(out, llm.Message{Role: role, Text: t.Content})
	}
	return out
}

// PublicMessage is the text of the error event sent for err.
func PublicMessage(err error) string {
	var (
		closed *ClosedDocumentError
		input  *InputError
		nf     *db.NotFoundError
		gen    *llm.GenerationError
		pe     *db.PersistenceError
		ce     *db.ConflictError
	)
	switch {
	case errors.As(err, &closed), errors.As(err, &input), errors.As(err, &nf):
		return err.Error()
	case errors.As(err, &gen):
		return "the language model failed to answer; please try again"
	case errors.As(err, &pe), errors.As(err, &ce):
		return "the turn could not be saved; please try again"
	default:
		return "the turn failed; please try again"
	}
}
