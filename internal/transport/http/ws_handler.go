package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"smartquiz-service/internal/app"
	"smartquiz-service/internal/domain"
)

// WSHandler runs quiz sessions over a websocket: the client starts a
// session, answers and advances by messages, and receives pushed snapshots
// for every mutation including timer ticks.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	QuizID          string `json:"quizId"`
	Collection      string `json:"collection"`
	Subject         string `json:"subject"`
	NumQuestions    int    `json:"numQuestions"`
	TimePerQuestion int    `json:"timePerQuestion"`
	Language        string `json:"language"`
	NegativeMarking bool   `json:"negativeMarking"`
}

type answerPayload struct {
	Selected int `json:"selected"`
}

type submittedPayload struct {
	Result  domain.QuizResult `json:"result"`
	Warning string            `json:"warning,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives one quiz session per connection.
// Closing the socket before submission abandons the session with nothing
// persisted.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		http.Error(w, "missing uid", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var (
		sessionID      string
		submitted      bool
		updatesStarted bool
	)
	defer func() {
		if sessionID != "" && !submitted {
			h.service.Abandon(context.Background(), sessionID)
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			if sessionID != "" {
				send <- errMsg("session already started")
				continue
			}
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid start payload")
				continue
			}
			snap, err := h.service.Start(r.Context(), app.StartRequest{
				UID:             uid,
				QuizID:          payload.QuizID,
				Collection:      payload.Collection,
				Subject:         payload.Subject,
				NumQuestions:    payload.NumQuestions,
				TimePerQuestion: payload.TimePerQuestion,
				Language:        payload.Language,
				NegativeMarking: payload.NegativeMarking,
			})
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			sessionID = snap.SessionID

			updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			updatesStarted = true
			go func() {
				defer close(updatesDone)
				defer cancel()
				for {
					select {
					case update, ok := <-updates:
						if !ok {
							return
						}
						select {
						case send <- outboundMessage[any]{Type: "snapshot", Payload: update}:
						case <-closeSignals:
							return
						}
					case <-closeSignals:
						return
					}
				}
			}()

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid answer payload")
				continue
			}
			outcome, err := h.service.Answer(r.Context(), sessionID, payload.Selected)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: outcome}

		case "next":
			if _, err := h.service.Advance(r.Context(), sessionID); err != nil {
				send <- errMsg(err.Error())
			}

		case "bookmark":
			if _, err := h.service.Bookmark(r.Context(), sessionID); err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "bookmarked", Payload: struct{}{}}

		case "submit":
			result, err := h.service.Submit(r.Context(), sessionID)
			var subErr *domain.SubmissionError
			switch {
			case err == nil:
				submitted = true
				send <- outboundMessage[any]{Type: "submitted", Payload: submittedPayload{Result: result}}
			case errors.As(err, &subErr):
				// The score write failed but the session is over; warn and
				// let the client move on, matching the degraded UX.
				submitted = true
				send <- outboundMessage[any]{Type: "submitted", Payload: submittedPayload{
					Result:  result,
					Warning: "score may not have been saved",
				}}
			default:
				send <- errMsg(err.Error())
			}

		default:
			send <- errMsg("unsupported message type")
		}
	}

	close(closeSignals)
	if updatesStarted {
		<-updatesDone
	}
	close(send)
	<-writerDone
}

func errMsg(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
