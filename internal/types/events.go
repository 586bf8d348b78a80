package types

// EventType names an event of the turn wire contract.
type EventType string

// Turn stream events
const (
	EventTextDelta       EventType = "text-delta"
	EventDocumentUpdated EventType = "document-updated"
	EventTurnComplete    EventType = "turn-complete"
	EventError           EventType = "error"
)

// Event is one streamed output of a turn. Data holds one of the *Data types below.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// TextDeltaData carries a visible chunk of the assistant reply.
type TextDeltaData struct {
	Content string `json:"content"`
}

// DocumentUpdatedData carries the document after a successful merge.
type DocumentUpdatedData struct {
	Document Document `json:"document"`
	Score    int      `json:"score"`
}

// TurnCompleteData closes a successful turn.
type TurnCompleteData struct {
	TokensIn  int    `json:"tokensIn"`
	TokensOut int    `json:"tokensOut"`
	MessageID string `json:"messageId"`
}

// ErrorData closes a failed turn.
type ErrorData struct {
	Message string `json:"message"`
}

// TextDelta builds a text-delta event.
func TextDelta(content string) Event {
	return Event{Type: EventTextDelta, Data: TextDeltaData{Content: content}}
}

// DocumentUpdated builds a document-updated event.
func DocumentUpdated(doc Document, score int) Event {
	return Event{Type: EventDocumentUpdated, Data: DocumentUpdatedData{Document: doc, Score: score}}
}

// TurnComplete builds a turn-complete event.
func TurnComplete(tokensIn, tokensOut int, messageID string) Event {
	return Event{Type: EventTurnComplete, Data: TurnCompleteData{TokensIn: tokensIn, TokensOut: tokensOut, MessageID: messageID}}
}

// ErrorEvent builds an error event.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Data: ErrorData{Message: message}}
}
