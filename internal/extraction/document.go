package extraction

import (
	"bytes"
	"context"
	"html"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/fetch"
	"github.com/jonathan/resume-coach/internal/logger"
	"github.com/jonathan/resume-coach/internal/types"
)

// MaxContentBytes caps binary content handed to the extractor.
const MaxContentBytes = 10 << 20

// Supported MIME types
const (
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
	MimeHTML     = "text/html"
	MimePDF      = "application/pdf"
	MimeDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Extracted is the result of reading a document.
type Extracted struct {
	Text             string                `json:"text"`
	DetectedLanguage string                `json:"detected_language,omitempty"`
	Guess            types.PartialDocument `json:"guess"`
	ContentHash      string                `json:"content_hash"`
}

// DocumentExtractor converts uploaded bytes into text and a structured
// guess. Content is only held for the duration of the call.
type DocumentExtractor struct {
	heuristic Extractor
	log       *zap.Logger
}

// NewDocumentExtractor builds a DocumentExtractor. A nil heuristic uses
// NewHeuristic.
func NewDocumentExtractor(heuristic Extractor, log *zap.Logger) *DocumentExtractor {
	if heuristic == nil {
		heuristic = NewHeuristic()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentExtractor{heuristic: heuristic, log: log}
}

// Extract reads content of the given MIME type. An empty or generic type is
// sniffed from the bytes.
func (d *DocumentExtractor) Extract(ctx context.Context, content []byte, mimeType string) (*Extracted, error) {
	if int64(len(content)) > MaxContentBytes {
		return nil, &TooLargeError{Size: int64(len(content)), Limit: MaxContentBytes}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mt := NormalizeMimeType(mimeType, content)
	var (
		text string
		err  error
	)
	switch mt {
	case MimeText, MimeMarkdown, "text/x-markdown":
		text = string(content)
	case MimeHTML:
		text, err = fetch.HTMLToText(string(content))
	case MimePDF:
		text, err = pdfText(content)
	case MimeDocx:
		text, err = docxText(content)
	default:
		return nil, &UnsupportedTypeError{MimeType: mt}
	}
	if err != nil {
		return nil, &Error{Source: mt, Message: "failed to read content", Cause: err}
	}

	text = CleanText(text)
	out := &Extracted{
		Text:             text,
		DetectedLanguage: DetectLanguage(text),
		Guess:            d.heuristic.Extract(text),
		ContentHash:      ContentHash(content),
	}
	d.log.Debug("extracted document",
		zap.String("mime_type", mt),
		zap.Int("bytes", len(content)),
		zap.Int("text_chars", len(text)),
		zap.String("language", out.DetectedLanguage),
		zap.String("preview", logger.TruncateForLog(text, 80)))
	return out, nil
}

// NormalizeMimeType strips parameters and sniffs generic types.
func NormalizeMimeType(mimeType string, content []byte) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt == "" || mt == "application/octet-stream" {
		sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(content))
		mt = sniffed
		// docx is a zip archive
		if mt == "application/zip" && bytes.Contains(content, []byte("word/document.xml")) {
			mt = MimeDocx
		}
	}
	return mt
}

func pdfText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

var (
	docxParagraph = regexp.MustCompile(`</w:p>|<w:br/>|<w:tab/>`)
	xmlTag        = regexp.MustCompile(`<[^>]+>`)
)

func docxText(content []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	defer doc.Close()

	raw := doc.Editable().GetContent()
	raw = docxParagraph.ReplaceAllStringFunc(raw, func(tag string) string {
		if tag == "<w:tab/>" {
			return " "
		}
		return "\n"
	})
	return html.UnescapeString(xmlTag.ReplaceAllString(raw, "")), nil
}
