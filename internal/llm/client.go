package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Role of a message in a conversation history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one prior exchange passed as history.
type Message struct {
	Role string
	Text string
}

// Request describes one streamed generation.
type Request struct {
	Instructions string
	History      []Message
	Prompt       string
	Tier         ModelTier
}

// Usage reports token counts for a generation.
type Usage struct {
	PromptTokens int
	OutputTokens int
}

// Chunk is one piece of a streamed reply. Usage is set on the chunk that
// carries the provider's usage metadata, typically the last one.
type Chunk struct {
	Text  string
	Usage *Usage
}

// Stream yields reply chunks. Next returns io.EOF after the final chunk.
type Stream interface {
	Next() (Chunk, error)
	Close() error
}

// Client is an abstraction over LLM providers
type Client interface {
	// Stream starts a streamed conversational reply
	Stream(ctx context.Context, req Request) (Stream, error)
	// GenerateJSON generates JSON content using the specified model tier
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", config.Provider)
	}
}

// Collect drains a stream into a single string and the last reported usage.
func Collect(s Stream) (string, Usage, error) {
	defer s.Close()
	var sb strings.Builder
	var usage Usage
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), usage, nil
		}
		if err != nil {
			return sb.String(), usage, err
		}
		sb.WriteString(chunk.Text)
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

func (c *GeminiClient) model(tier ModelTier) (*genai.GenerativeModel, string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return nil, "", fmt.Errorf("no model configured for tier %s", tier)
	}
	model := c.client.GenerativeModel(modelName)
	if c.config.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(c.config.MaxOutputTokens)
	}
	return model, modelName, nil
}

// Stream starts a chat session seeded with the request history and streams
// the reply to the request prompt.
func (c *GeminiClient) Stream(ctx context.Context, req Request) (Stream, error) {
	model, name, err := c.model(req.Tier)
	if err != nil {
		return nil, err
	}
	model.SetTemperature(c.config.Temperature)
	if req.Instructions != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Instructions)}}
	}

	cs := model.StartChat()
	for _, m := range req.History {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := RoleUser
		if m.Role == RoleModel {
			role = RoleModel
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Text)}})
	}

	return &geminiStream{model: name, iter: cs.SendMessageStream(ctx, genai.Text(req.Prompt))}, nil
}

type geminiStream struct {
	model string
	iter  *genai.GenerateContentResponseIterator
	done  bool
}

func (s *geminiStream) Next() (Chunk, error) {
	if s.done {
		return Chunk{}, io.EOF
	}
	resp, err := s.iter.Next()
	if errors.Is(err, iterator.Done) {
		s.done = true
		return Chunk{}, io.EOF
	}
	if err != nil {
		s.done = true
		return Chunk{}, &GenerationError{Model: s.model, Message: "stream failed", Cause: err}
	}

	var chunk Chunk
	chunk.Text = responseText(resp)
	if resp.UsageMetadata != nil {
		chunk.Usage = &Usage{
			PromptTokens: int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return chunk, nil
}

func (s *geminiStream) Close() error {
	s.done = true
	return nil
}

// GenerateJSON generates JSON content using the specified model tier
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	model, name, err := c.model(tier)
	if err != nil {
		return "", err
	}
	model.SetTemperature(0.1) // Low temperature for consistent output
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &GenerationError{Model: name, Message: "failed to generate content", Cause: err}
	}

	text := responseText(resp)
	if text == "" {
		return "", &GenerationError{Model: name, Message: "no text parts in response"}
	}
	return CleanJSONBlock(text), nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
