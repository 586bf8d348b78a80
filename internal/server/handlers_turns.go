package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jonathan/resume-coach/internal/conversation"
	"github.com/jonathan/resume-coach/internal/types"
)

const (
	socketReadLimit = 64 << 10
	socketWriteWait = 10 * time.Second
	socketPongWait  = 60 * time.Second
	socketPingEvery = socketPongWait * 9 / 10
)

// handleTurnStream runs one turn and streams its events as SSE. Request
// problems found before the stream opens are plain JSON errors; anything
// after that arrives as an error event.
func (s *Server) handleTurnStream(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.document(w, r)
	if !ok {
		return
	}
	var req types.TurnRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.DocumentID != "" && req.DocumentID != rec.ID {
		s.fail(w, r, &ErrValidation{Field: "documentId", Message: "does not match the URL"})
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, r, &ErrValidation{Field: "messageText", Message: err.Error()})
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	in := conversation.TurnInput{DocumentID: rec.ID, MessageText: req.MessageText}
	err = s.svc.Conversation.Turn(r.Context(), in, func(ev types.Event) {
		if werr := sse.WriteTurnEvent(ev); werr != nil {
			s.logger.Debug("failed to write turn event", zap.String("document_id", rec.ID), zap.Error(werr))
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("turn failed", zap.String("document_id", rec.ID), zap.Error(err))
	}
}

// handleTurnSocket serves a conversation over a WebSocket. Each text frame
// is a turn request; the turn's events are sent back as JSON frames of the
// form {"type": ..., "data": ...}. Turns on one socket run one at a time.
func (s *Server) handleTurnSocket(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.document(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(socketReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	// The reader owns all reads; closing the socket cancels any running turn.
	messages := make(chan []byte)
	go func() {
		defer cancel()
		defer close(messages)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read failed", zap.Error(err))
				}
				return
			}
			select {
			case messages <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	send := func(ev types.Event) {
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
			cancel()
		}
	}

	// WriteControl may run concurrently with turn writes, so pings keep
	// flowing while a long turn streams.
	go func() {
		ping := time.NewTicker(socketPingEvery)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data, open := <-messages:
			if !open {
				return
			}
			var req types.TurnRequest
			if err := json.Unmarshal(data, &req); err != nil {
				send(types.ErrorEvent("invalid JSON: " + err.Error()))
				continue
			}
			if err := req.Validate(); err != nil {
				send(types.ErrorEvent("messageText is required and must be at most 20000 characters"))
				continue
			}
			in := conversation.TurnInput{DocumentID: rec.ID, MessageText: req.MessageText}
			if err := s.svc.Conversation.Turn(ctx, in, send); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("turn failed", zap.String("document_id", rec.ID), zap.Error(err))
			}
		}
	}
}
