package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/config"
	"github.com/jonathan/resume-coach/internal/conversation"
	"github.com/jonathan/resume-coach/internal/db"
	"github.com/jonathan/resume-coach/internal/extraction"
	"github.com/jonathan/resume-coach/internal/readiness"
	"github.com/jonathan/resume-coach/internal/types"
)

const promptNewDocument = "New document"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Build a résumé interactively in the terminal",
	Long: `Starts a conversation with the coach on a new or existing document.
Type /help inside the session for the available commands.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().String("document", "", "document ID to resume; prompts for a choice when unset")
	chatCmd.Flags().String("owner", "", "owner ID for new documents and the document list")
	chatCmd.Flags().String("role", "", "target role for a new document")
	chatCmd.Flags().String("language", "", "language tag for a new document, e.g. en or es")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(config.NeedLLM)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, withLLM, withObjects)
	if err != nil {
		return err
	}
	defer a.Close()

	documentID, _ := cmd.Flags().GetString("document")
	owner, _ := cmd.Flags().GetString("owner")
	role, _ := cmd.Flags().GetString("role")
	language, _ := cmd.Flags().GetString("language")

	var rec *types.DocumentRecord
	if documentID != "" {
		rec, err = a.store.GetDocument(ctx, documentID)
	} else {
		rec, err = chooseDocument(ctx, a.store, owner, types.Constraints{TargetRole: role, Language: language})
	}
	if err != nil {
		return err
	}

	session := &chatSession{
		out:       cmd.OutOrStdout(),
		store:     a.store,
		convo:     a.convo,
		extractor: a.extractor,
		log:       log,
		document:  rec.ID,
	}
	fmt.Fprintf(session.out, "Working on %q (score %d, %s). Type /help for commands.\n", rec.Title, rec.Score, rec.Status)

	input := promptui.Prompt{Label: "you"}
	for {
		line, err := input.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		done, err := session.handle(ctx, line)
		if err != nil {
			return err
		}
		if done || ctx.Err() != nil {
			return nil
		}
	}
}

// chooseDocument lets the user pick one of owner's documents or start a new one.
func chooseDocument(ctx context.Context, store *db.Store, owner string, constraints types.Constraints) (*types.DocumentRecord, error) {
	docs, err := store.ListDocuments(ctx, owner)
	if err != nil {
		return nil, err
	}
	items := []string{promptNewDocument}
	for _, d := range docs {
		items = append(items, fmt.Sprintf("%s  [%d, %s]", d.Title, d.Score, d.Status))
	}

	selectPrompt := promptui.Select{Label: "Choose a document and press ENTER", Items: items}
	idx, _, err := selectPrompt.Run()
	if err != nil {
		return nil, err
	}
	if idx > 0 {
		return &docs[idx-1], nil
	}

	titlePrompt := promptui.Prompt{
		Label: "Title",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("title is required")
			}
			return nil
		},
	}
	title, err := titlePrompt.Run()
	if err != nil {
		return nil, err
	}
	rec := conversation.NewRecord(owner, strings.TrimSpace(title), constraints)
	if err := store.CreateDocument(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// chatSession executes the lines typed in an interactive chat.
type chatSession struct {
	out       io.Writer
	store     *db.Store
	convo     *conversation.Orchestrator
	extractor *extraction.DocumentExtractor
	log       *zap.Logger
	document  string
}

// handle runs one line: a slash command or a conversation turn. It reports
// whether the session is over.
func (s *chatSession) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return s.turn(ctx, line)
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(s.out, "/score          readiness score and what is missing")
		fmt.Fprintln(s.out, "/doc            print the document as JSON")
		fmt.Fprintln(s.out, "/import <path>  import an existing résumé (pdf, docx, txt, md, html)")
		fmt.Fprintln(s.out, "/close          mark the document closed and leave")
		fmt.Fprintln(s.out, "/quit           leave the session")
		return false, nil
	case "/score":
		return false, s.score(ctx)
	case "/doc":
		return false, s.printDocument(ctx)
	case "/import":
		if arg == "" {
			fmt.Fprintln(s.out, "usage: /import <path>")
			return false, nil
		}
		return false, s.importFile(ctx, arg)
	case "/close":
		rec, err := s.store.CloseDocument(ctx, s.document)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "Closed %q with score %d.\n", rec.Title, rec.Score)
		return true, nil
	default:
		fmt.Fprintf(s.out, "unknown command %s, try /help\n", command)
		return false, nil
	}
}

func (s *chatSession) turn(ctx context.Context, message string) (bool, error) {
	err := s.convo.Turn(ctx, conversation.TurnInput{DocumentID: s.document, MessageText: message}, func(ev types.Event) {
		switch d := ev.Data.(type) {
		case types.TextDeltaData:
			fmt.Fprint(s.out, d.Content)
		case types.DocumentUpdatedData:
			fmt.Fprintf(s.out, "\n[document updated, score %d]", d.Score)
		case types.ErrorData:
			fmt.Fprintf(s.out, "\n[error] %s", d.Message)
		}
	})
	fmt.Fprintln(s.out)

	var closed *conversation.ClosedDocumentError
	switch {
	case errors.As(err, &closed):
		return true, nil
	case err != nil && ctx.Err() != nil:
		return true, nil
	case err != nil:
		s.log.Debug("turn failed", zap.Error(err))
	}
	return false, nil
}

func (s *chatSession) score(ctx context.Context) error {
	rec, err := s.store.GetDocument(ctx, s.document)
	if err != nil {
		return err
	}
	result := readiness.Score(rec.Document)
	fmt.Fprintf(s.out, "Score %d/100 (%s)\n", result.Total, readiness.StatusFor(result.Total))
	for _, c := range readiness.Categories {
		fmt.Fprintf(s.out, "  %-14s %2d/%d\n", c, result.Breakdown[c], readiness.MaxPoints[c])
	}
	if missing := result.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, c := range missing {
			names[i] = string(c)
		}
		fmt.Fprintf(s.out, "Still to improve: %s\n", strings.Join(names, ", "))
	}
	return nil
}

func (s *chatSession) printDocument(ctx context.Context) error {
	rec, err := s.store.GetDocument(ctx, s.document)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec.Document, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, string(data))
	return nil
}

// importFile feeds a local file through extraction into the document.
// Extraction problems are reported to the user rather than ending the session.
func (s *chatSession) importFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(s.out, "cannot read %s: %v\n", path, err)
		return nil
	}
	extracted, err := s.extractor.Extract(ctx, content, mimeForPath(path))
	if err != nil {
		fmt.Fprintf(s.out, "cannot import %s: %v\n", path, err)
		return nil
	}
	rec, err := s.convo.Import(ctx, s.document, extracted.Guess, "file:"+filepath.Base(path))
	if err != nil {
		var closed *conversation.ClosedDocumentError
		if errors.As(err, &closed) {
			fmt.Fprintln(s.out, "the document is closed")
			return nil
		}
		return err
	}
	fmt.Fprintf(s.out, "Imported %s. Score %d (%s).\n", filepath.Base(path), rec.Score, rec.Status)
	return nil
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return extraction.MimeMarkdown
	case ".txt":
		return extraction.MimeText
	case ".docx":
		return extraction.MimeDocx
	}
	return mime.TypeByExtension(filepath.Ext(path))
}
