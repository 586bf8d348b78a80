package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/types"
)

func TestDocumentExtractor_PlainText(t *testing.T) {
	d := NewDocumentExtractor(nil, zap.NewNop())
	out, err := d.Extract(context.Background(), []byte("Reach me at ana@example.com\r\n"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "Reach me at ana@example.com", out.Text)
	assert.Equal(t, "ana@example.com", out.Guess.Header.Email)
	assert.Len(t, out.ContentHash, 64)
}

func TestDocumentExtractor_HTML(t *testing.T) {
	d := NewDocumentExtractor(nil, nil)
	page := `<html><body><nav>Menu</nav><main><h1>Ana Lima</h1><p>ana@example.com</p></main></body></html>`

	out, err := d.Extract(context.Background(), []byte(page), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima\nana@example.com", out.Text)
	assert.Equal(t, "ana@example.com", out.Guess.Header.Email)
}

func TestDocumentExtractor_SniffsType(t *testing.T) {
	d := NewDocumentExtractor(nil, nil)
	page := `<!DOCTYPE html><html><body><p>Skills: Go, SQL</p></body></html>`

	out, err := d.Extract(context.Background(), []byte(page), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "SQL"}, out.Guess.Skills.Hard)
}

func TestDocumentExtractor_TooLarge(t *testing.T) {
	d := NewDocumentExtractor(nil, nil)
	_, err := d.Extract(context.Background(), make([]byte, MaxContentBytes+1), MimeText)

	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, int64(MaxContentBytes), tooLarge.Limit)
}

func TestDocumentExtractor_Unsupported(t *testing.T) {
	d := NewDocumentExtractor(nil, nil)
	_, err := d.Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")

	var unsupported *UnsupportedTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "image/png", unsupported.MimeType)
}

func TestDocumentExtractor_CorruptPDF(t *testing.T) {
	d := NewDocumentExtractor(nil, nil)
	_, err := d.Extract(context.Background(), []byte("definitely not a pdf"), MimePDF)

	var extractErr *Error
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, MimePDF, extractErr.Source)
}

func TestDocumentExtractor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDocumentExtractor(nil, nil).Extract(ctx, []byte("hello"), MimeText)
	assert.ErrorIs(t, err, context.Canceled)
}

type stubExtractor struct{ calls []string }

func (s *stubExtractor) Extract(text string) types.PartialDocument {
	s.calls = append(s.calls, text)
	return types.PartialDocument{Summary: "stub"}
}

func TestDocumentExtractor_UsesInjectedHeuristic(t *testing.T) {
	stub := &stubExtractor{}
	out, err := NewDocumentExtractor(stub, nil).Extract(context.Background(), []byte("# Ana\n\nBackend"), MimeMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "stub", out.Guess.Summary)
	assert.Equal(t, []string{"# Ana\n\nBackend"}, stub.calls)
}

func TestNormalizeMimeType(t *testing.T) {
	assert.Equal(t, MimeText, NormalizeMimeType("Text/Plain; charset=UTF-8", nil))
	assert.Equal(t, MimePDF, NormalizeMimeType("", []byte("%PDF-1.7 ...")))
	assert.Equal(t, MimeDocx, NormalizeMimeType(MimeDocx, nil))
}
