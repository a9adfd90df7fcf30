package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.QuizService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	OptionIndex *int `json:"optionIndex"`
}

type gotoPayload struct {
	Index *int `json:"index"`
}

type tickPayload struct {
	Remaining int    `json:"remaining"`
	Display   string `json:"display"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// eventMessage maps a session event to its wire form. Expiry is not forwarded on its own;
// the forced result follows it.
func eventMessage(ev domain.SessionEvent) (outboundMessage[any], bool) {
	switch ev.Type {
	case domain.EventTick:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{
			Remaining: ev.RemainingSeconds,
			Display:   app.FormatRemaining(ev.RemainingSeconds),
		}}, true
	case domain.EventState:
		if ev.View == nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "state", Payload: ev.View}, true
	case domain.EventResult:
		if ev.Result == nil {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "result", Payload: ev.Result}, true
	case domain.EventAbandoned:
		return outboundMessage[any]{Type: "abandoned", Payload: map[string]string{"sessionId": ev.SessionID}}, true
	default:
		return outboundMessage[any]{}, false
	}
}

// ServeWS begins a session for the requesting user and streams its events over a websocket.
// Closing the socket abandons an unfinished session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	started, err := h.service.Begin(ctx, quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	sessionID := started.SessionID
	log := h.log.With().Str("session_id", sessionID).Str("user_id", userID).Logger()
	log.Info().Str("quiz_id", quizID).Msg("session started")
	defer h.service.Leave(ctx, sessionID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "started", Payload: started}

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		send <- errorMessage(err.Error())
		close(send)
		<-writerDone
		return
	}
	defer cancel()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				msg, forward := eventMessage(ev)
				if !forward {
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.handle(r, sessionID, inbound); ok {
			send <- reply
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Info().Msg("connection closed")
}

// handle applies one client message. State changes reach the client through the session
// subscription, so only errors and review data are replied to directly.
func (h *WSHandler) handle(r *http.Request, sessionID string, inbound inboundMessage) (outboundMessage[any], bool) {
	ctx := r.Context()
	var err error
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if json.Unmarshal(inbound.Payload, &payload) != nil || payload.OptionIndex == nil {
			return errorMessage("invalid select payload"), true
		}
		_, err = h.service.SelectAnswer(ctx, sessionID, *payload.OptionIndex)
	case "goto":
		var payload gotoPayload
		if json.Unmarshal(inbound.Payload, &payload) != nil || payload.Index == nil {
			return errorMessage("invalid goto payload"), true
		}
		_, err = h.service.GoToQuestion(ctx, sessionID, *payload.Index)
	case "next":
		_, err = h.service.Next(ctx, sessionID)
	case "previous":
		_, err = h.service.Previous(ctx, sessionID)
	case "submit":
		_, err = h.service.Submit(ctx, sessionID)
	case "review":
		review, rerr := h.service.Review(ctx, sessionID)
		if rerr != nil {
			return errorMessage(rerr.Error()), true
		}
		return outboundMessage[any]{Type: "review", Payload: review}, true
	default:
		return errorMessage("unsupported message type"), true
	}
	if err != nil {
		return errorMessage(err.Error()), true
	}
	return outboundMessage[any]{}, false
}
