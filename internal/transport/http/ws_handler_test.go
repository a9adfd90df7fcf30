package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

func TestWebSocketSessionFlow(t *testing.T) {
	server, tickers := newTestServer(t)

	conn := dial(t, server, "/ws?quizId=quiz-1&userId=u1")
	defer conn.Close()

	started := readUntil(t, conn, "started")
	if started["state"] != "active" || started["budgetSeconds"] != float64(120) {
		t.Fatalf("unexpected started payload %v", started)
	}
	readUntil(t, conn, "state")

	ticker := <-tickers
	ticker.Step(1)
	tick := readUntil(t, conn, "tick")
	if tick["remaining"] != float64(119) || tick["display"] != "1:59" {
		t.Fatalf("unexpected tick %v", tick)
	}

	send(t, conn, map[string]any{"type": "select", "payload": map[string]any{"optionIndex": 1}})
	state := readUntil(t, conn, "state")
	if state["answeredCount"] != float64(1) || state["canSubmit"] != true {
		t.Fatalf("unexpected state after select %v", state)
	}

	send(t, conn, map[string]any{"type": "submit"})
	result := readUntil(t, conn, "result")
	if result["score"] != float64(100) || result["forced"] != false {
		t.Fatalf("unexpected result %v", result)
	}

	send(t, conn, map[string]any{"type": "review"})
	review := readUntil(t, conn, "review")
	if review["passed"] != true {
		t.Fatalf("unexpected review %v", review)
	}
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dial(t, server, "/ws?quizId=quiz-1&userId=u1")
	defer conn.Close()
	readUntil(t, conn, "started")

	send(t, conn, map[string]any{"type": "select", "payload": map[string]any{}})
	if msg := readUntil(t, conn, "error"); msg["message"] != "invalid select payload" {
		t.Fatalf("unexpected error %v", msg)
	}
	send(t, conn, map[string]any{"type": "submit"})
	if msg := readUntil(t, conn, "error"); msg["message"] != domain.ErrIncompleteAnswers.Error() {
		t.Fatalf("unexpected error %v", msg)
	}
	send(t, conn, map[string]any{"type": "dance"})
	if msg := readUntil(t, conn, "error"); msg["message"] != "unsupported message type" {
		t.Fatalf("unexpected error %v", msg)
	}
}

func TestWebSocketUnknownQuiz(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dial(t, server, "/ws?quizId=nope&userId=u1")
	defer conn.Close()
	msg := readUntil(t, conn, "error")
	if !strings.Contains(msg["message"].(string), domain.ErrQuizNotFound.Error()) {
		t.Fatalf("unexpected error %v", msg)
	}
}

func TestWebSocketRequiresParams(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/ws?quizId=quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, chan *app.ManualTicker) {
	t.Helper()
	tickers := make(chan *app.ManualTicker, 4)
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	service := app.NewQuizService(memory.NewSessionStore(), quizRepo, memory.NewResultLog(zerolog.Nop()), app.ServiceOptions{
		NewTicker: func() app.TickSource {
			tk := app.NewManualTicker()
			tickers <- tk
			return tk
		},
	}, zerolog.Nop())
	t.Cleanup(service.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(service, zerolog.Nop()).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, tickers
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
	t.Fatalf("no %s message", want)
	return nil
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Arithmetic",
			Questions: []domain.Question{
				{
					ID:                 "q1",
					Content:            "What is 2 + 2?",
					Options:            []string{"3", "4", "5"},
					CorrectAnswerIndex: 1,
					Explanation:        "2 + 2 = 4",
				},
			},
		},
	}
}
