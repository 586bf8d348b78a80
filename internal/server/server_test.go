package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/config"
	"github.com/jonathan/resume-coach/internal/conversation"
	"github.com/jonathan/resume-coach/internal/curriculum"
	"github.com/jonathan/resume-coach/internal/db"
	"github.com/jonathan/resume-coach/internal/extraction"
	"github.com/jonathan/resume-coach/internal/learning"
	"github.com/jonathan/resume-coach/internal/llm/llmtest"
	"github.com/jonathan/resume-coach/internal/prompting"
	"github.com/jonathan/resume-coach/internal/types"
)

const nameReply = `Nice to meet you, Ana! <resume_update>{"action":"update","section":"header","payload":{"full_name":"Ana Ruiz"}}</resume_update>`

const testCurriculum = `[
	{"number": 1, "name": "Basics", "required_score": 70,
	 "scenarios": [{"id": "greet", "user_message": "Hi", "must_contain": ["?"]}]},
	{"number": 2, "name": "More", "required_score": 70,
	 "scenarios": [{"id": "more", "user_message": "Hello"}]}
]`

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []types.LearningJob
}

func (p *recordingPublisher) PublishLearningJob(_ context.Context, job types.LearningJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

type fixture struct {
	server    *Server
	store     *db.Store
	publisher *recordingPublisher
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Addr:           "127.0.0.1:0",
		AllowedOrigins: []string{"https://app.example.com"},
		RateLimit:      config.RateLimitConfig{Enabled: false},
	}
}

func newFixture(t *testing.T, cfg config.ServerConfig, replies ...llmtest.Reply) *fixture {
	t.Helper()
	store := db.NewStore(db.NewMemory())
	client := llmtest.New(replies...)
	composer := prompting.NewComposer(store, nil, 0, nil)
	orch := conversation.NewOrchestrator(store, client, composer, nil, conversation.Options{}, nil)
	publisher := &recordingPublisher{}
	feedback := learning.NewService(store, composer, publisher, learning.NewLearner(store, nil, nil), nil)

	levels, err := curriculum.LoadLevels([]byte(testCurriculum))
	require.NoError(t, err)
	evaluator := curriculum.NewEvaluator(levels, store, orch, nil, nil)

	srv := New(cfg, Services{
		Store:        store,
		Conversation: orch,
		Feedback:     feedback,
		Prompts:      composer,
		Training:     evaluator,
		Extractor:    extraction.NewDocumentExtractor(nil, nil),
	}, zap.NewNop())
	t.Cleanup(srv.rateLimiter.Stop)
	return &fixture{server: srv, store: store, publisher: publisher}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createDocument(t *testing.T, headers ...string) types.DocumentRecord {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/documents", `{"title":"My CV","target_role":"Data Engineer"}`, headers...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc types.DocumentRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

type sseEvent struct {
	ID   string
	Name string
	Data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var (
		events  []sseEvent
		current sseEvent
	)
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id: "):
			current.ID = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			current.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.Name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func eventNames(events []sseEvent) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

func TestHealth(t *testing.T) {
	f := newFixture(t, testConfig())
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDocuments_CreateGetListClose(t *testing.T) {
	f := newFixture(t, testConfig())

	doc := f.createDocument(t)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "My CV", doc.Title)
	assert.Equal(t, "Data Engineer", doc.Document.Constraints.TargetRole)
	assert.Equal(t, types.StatusDraft, doc.Status)

	rec := f.do(t, http.MethodGet, "/api/documents/"+doc.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/documents/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []types.DocumentRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/close", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var closed types.DocumentRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closed))
	assert.Equal(t, types.StatusClosed, closed.Status)

	rec = f.do(t, http.MethodGet, "/api/documents/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocuments_CreateValidation(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.do(t, http.MethodPost, "/api/documents", `{"language":"not a tag!"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/documents", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/documents", "")
	assert.Equal(t, http.StatusCreated, rec.Code, "an empty body creates an untitled document")
}

func TestTurnStream(t *testing.T) {
	f := newFixture(t, testConfig(), llmtest.Text("Nice to meet you, ", `Ana! <resume_update>{"action":"update","section":"header","payload":{"full_name":"Ana Ruiz"}}</resume_update>`))
	doc := f.createDocument(t)

	rec := f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/turns", `{"messageText":"I'm Ana Ruiz"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	names := eventNames(events)
	require.NotEmpty(t, names)
	assert.Equal(t, "text-delta", names[0])
	assert.Equal(t, []string{"document-updated", "turn-complete"}, names[len(names)-2:])
	assert.Equal(t, "1", events[0].ID)
	assert.Equal(t, strconv.Itoa(len(events)), events[len(events)-1].ID)

	var text strings.Builder
	for _, e := range events {
		if e.Name == "text-delta" {
			var d types.TextDeltaData
			require.NoError(t, json.Unmarshal([]byte(e.Data), &d))
			text.WriteString(d.Content)
		}
	}
	assert.Equal(t, "Nice to meet you, Ana!", strings.TrimSpace(text.String()))
	assert.NotContains(t, rec.Body.String(), "resume_update")

	var updated types.DocumentUpdatedData
	require.NoError(t, json.Unmarshal([]byte(events[len(events)-2].Data), &updated))
	assert.Equal(t, "Ana Ruiz", updated.Document.Header.FullName)

	stored, err := f.store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", stored.Document.Header.FullName)

	rec = f.do(t, http.MethodGet, "/api/documents/"+doc.ID+"/turns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var turns []types.Turn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turns))
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
}

func TestTurnStream_RejectsBadRequests(t *testing.T) {
	f := newFixture(t, testConfig())
	doc := f.createDocument(t)

	rec := f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/turns", `{"messageText":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/turns", `{"documentId":"other","messageText":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/documents/missing/turns", `{"messageText":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/documents/"+doc.ID+"/turns?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTurnStream_ClosedDocumentEmitsErrorEvent(t *testing.T) {
	f := newFixture(t, testConfig(), llmtest.Text("Hello"))
	doc := f.createDocument(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/close", "").Code)

	rec := f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/turns", `{"messageText":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Name)
	assert.Contains(t, events[0].Data, "closed")
}

func TestTurnSocket(t *testing.T) {
	f := newFixture(t, testConfig(), llmtest.Text(nameReply))
	doc := f.createDocument(t)

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/documents/" + doc.ID + "/turns/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"messageText": "I'm Ana Ruiz"}))

	var seen []string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&ev))
		seen = append(seen, ev.Type)
		if ev.Type == "turn-complete" || ev.Type == "error" {
			break
		}
	}
	assert.Contains(t, seen, "text-delta")
	assert.Contains(t, seen, "document-updated")
	assert.Equal(t, "turn-complete", seen[len(seen)-1])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"messageText":""}`)))
	var ev struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
}

func TestTurnSocket_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, testConfig())
	doc := f.createDocument(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/documents/" + doc.ID + "/turns/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestFeedback(t *testing.T) {
	f := newFixture(t, testConfig(), llmtest.Text("Tell me about your last role?"))
	doc := f.createDocument(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/turns", `{"messageText":"hello"}`).Code)

	turns, err := f.store.ListTurns(context.Background(), doc.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assistant := turns[1]

	rec := f.do(t, http.MethodPost, "/api/turns/"+assistant.ID+"/feedback", `{"rating":5,"tags":["one_question_at_a_time"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, f.publisher.jobs, 1)
	assert.Equal(t, []string{"one_question_at_a_time"}, f.publisher.jobs[0].Tags)
	var fb types.Feedback
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fb))
	assert.Equal(t, assistant.ID, fb.TurnID)
	assert.Equal(t, 5, fb.Rating)

	rec = f.do(t, http.MethodPost, "/api/turns/"+turns[0].ID+"/feedback", `{"rating":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "user turns cannot be rated")

	rec = f.do(t, http.MethodPost, "/api/turns/"+assistant.ID+"/feedback", `{"rating":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/patterns", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestImportUpload(t *testing.T) {
	f := newFixture(t, testConfig())
	doc := f.createDocument(t)

	rec := f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/import", "my email is ana@example.com",
		"Content-Type", "text/plain")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Changed)
	assert.Equal(t, "ana@example.com", resp.Document.Document.Header.Email)
	assert.NotEmpty(t, resp.ContentHash)

	rec = f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/import", "my email is ana@example.com",
		"Content-Type", "text/plain")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Changed, "importing the same content twice changes nothing")

	rec = f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/import", "\x89PNG\r\n\x1a\n....", "Content-Type", "image/png")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/import", "", "Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportURL(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><main><p>Contact me: ana@example.com</p></main></body></html>`))
	}))
	defer page.Close()

	f := newFixture(t, testConfig())
	doc := f.createDocument(t)

	rec := f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/import-url", `{"url":"`+page.URL+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ana@example.com", resp.Document.Document.Header.Email)
	assert.Equal(t, page.URL, resp.Source)

	rec = f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/import-url", `{"url":"ftp://example.com"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/import-url", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportObject_NotConfigured(t *testing.T) {
	f := newFixture(t, testConfig())
	doc := f.createDocument(t)
	rec := f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/import-object", `{"key":"cv.pdf"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestPrompts(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.do(t, http.MethodPost, "/api/prompts", `{"version":"v2","instructions":"Be concise."}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pv types.PromptVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pv))
	assert.False(t, pv.Active)

	rec = f.do(t, http.MethodPost, "/api/prompts", `{"version":"v2","instructions":"Again."}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/prompts/"+pv.ID+"/activate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pv))
	assert.True(t, pv.Active)

	rec = f.do(t, http.MethodGet, "/api/prompts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var versions []types.PromptVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	assert.Len(t, versions, 1)

	rec = f.do(t, http.MethodPost, "/api/prompts/missing/activate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTraining(t *testing.T) {
	f := newFixture(t, testConfig(), llmtest.Text("Hello! What role are you after?"))

	rec := f.do(t, http.MethodGet, "/api/training/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var progress types.TrainingProgress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	assert.Equal(t, 1, progress.CurrentLevel)

	rec = f.do(t, http.MethodPost, "/api/training/levels/2/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/training/levels/1/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result types.LevelResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Passed)

	rec = f.do(t, http.MethodPost, "/api/training/levels/9/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/training/levels/abc/run", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/training/levels", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.JWT = config.JWTConfig{Secret: testSecret, ExpirationHours: 1}
	f := newFixture(t, cfg)

	rec := f.do(t, http.MethodGet, "/api/documents", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code)

	alice, err := f.server.jwtService.GenerateToken("alice")
	require.NoError(t, err)
	bob, err := f.server.jwtService.GenerateToken("bob")
	require.NoError(t, err)

	doc := f.createDocument(t, "Authorization", "Bearer "+alice)
	assert.Equal(t, "alice", doc.OwnerID)

	rec = f.do(t, http.MethodGet, "/api/documents/"+doc.ID, "", "Authorization", "Bearer "+alice)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/documents/"+doc.ID, "", "Authorization", "Bearer "+bob)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other owners' documents are hidden")

	rec = f.do(t, http.MethodGet, "/api/documents", "", "Authorization", "Bearer "+bob)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRateLimit_TurnEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		TurnLimit:     1,
		TurnWindow:    time.Hour,
		TurnBurst:     1,
	}
	f := newFixture(t, cfg, llmtest.Text("Hi?"))
	doc := f.createDocument(t)

	rec := f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/turns", `{"messageText":"one"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = f.do(t, http.MethodPost, "/api/documents/"+doc.ID+"/turns", `{"messageText":"two"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = f.do(t, http.MethodGet, "/api/documents/"+doc.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads use the default limit")
}

func TestCORS(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.do(t, http.MethodOptions, "/api/documents", "", "Origin", "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	rec = f.do(t, http.MethodGet, "/health", "", "Origin", "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
