// Package llmtest provides a scripted llm.Client for tests and offline runs.
package llmtest

import (
	"context"
	"io"
	"sync"

	"github.com/jonathan/resume-coach/internal/llm"
)

// Reply is one scripted streamed answer.
type Reply struct {
	Chunks []string
	Usage  llm.Usage
	// Err is returned after the chunks are delivered.
	Err error
	// StartErr fails the call before any chunk.
	StartErr error
}

// Client replays scripted replies in order. When the script runs out the
// last reply repeats.
type Client struct {
	mu       sync.Mutex
	replies  []Reply
	json     []string
	requests []llm.Request
	prompts  []string
}

// New returns a fake with the given streamed replies.
func New(replies ...Reply) *Client {
	return &Client{replies: replies}
}

// Text builds a reply streamed in the given chunks.
func Text(chunks ...string) Reply {
	return Reply{Chunks: chunks, Usage: llm.Usage{PromptTokens: 10, OutputTokens: len(chunks)}}
}

// WithJSON queues answers for GenerateJSON.
func (c *Client) WithJSON(answers ...string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.json = append(c.json, answers...)
	return c
}

// Requests returns the streamed requests seen so far.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

// JSONPrompts returns the prompts passed to GenerateJSON.
func (c *Client) JSONPrompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.replies) == 0 {
		return &stream{ctx: ctx}, nil
	}
	r := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	if r.StartErr != nil {
		return nil, r.StartErr
	}
	return &stream{ctx: ctx, reply: r}, nil
}

func (c *Client) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if len(c.json) == 0 {
		return "{}", nil
	}
	answer := c.json[0]
	if len(c.json) > 1 {
		c.json = c.json[1:]
	}
	return llm.CleanJSONBlock(answer), nil
}

func (c *Client) Close() error { return nil }

type stream struct {
	ctx   context.Context
	reply Reply
	pos   int
}

func (s *stream) Next() (llm.Chunk, error) {
	if err := s.ctx.Err(); err != nil {
		return llm.Chunk{}, err
	}
	if s.pos < len(s.reply.Chunks) {
		chunk := llm.Chunk{Text: s.reply.Chunks[s.pos]}
		s.pos++
		if s.pos == len(s.reply.Chunks) && s.reply.Err == nil {
			usage := s.reply.Usage
			chunk.Usage = &usage
		}
		return chunk, nil
	}
	if s.reply.Err != nil {
		return llm.Chunk{}, s.reply.Err
	}
	return llm.Chunk{}, io.EOF
}

func (s *stream) Close() error { return nil }
