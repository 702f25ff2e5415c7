package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/research-desk/backend/internal/model/assistant"
	"github.com/zhouzirui/research-desk/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/research-desk/backend/internal/service/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/turn"
)

type fakeReasoner struct {
	reply string
}

func (f *fakeReasoner) Run(ctx context.Context, req ai.Request) (string, error) {
	ai.ReportStep(ctx, ai.Step{Tool: "arxiv", Input: "1605.08386"})
	return f.reply, nil
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newServer(t *testing.T) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService(assistant.Default().Greeting, 0)
	r := chi.NewRouter()
	New(chatSvc, turn.NewHandler(chatSvc, &fakeReasoner{reply: "Heat kernel paper."}), 0.3).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, chatSvc
}

func wsURL(srv *httptest.Server, sessionID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sessionID + "/ws"
}

func readUntil(t *testing.T, conn *websocket.Conn, last string) []received {
	t.Helper()
	var out []received
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg received
		require.NoError(t, conn.ReadJSON(&msg))
		out = append(out, msg)
		if msg.Type == last {
			return out
		}
	}
}

func types(msgs []received) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestWebSocketTurn(t *testing.T) {
	srv, chatSvc := newServer(t)
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, session.ID), nil)
	require.NoError(t, err)
	defer conn.Close()

	connected := readUntil(t, conn, "connected")
	require.Len(t, connected, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "turn",
		"data": map[string]any{"message": "What's the paper 1605.08386 about?", "apiKey": "k1"},
	}))

	msgs := readUntil(t, conn, "end")
	assert.Equal(t, []string{"user", "step", "message", "end"}, types(msgs))

	transcript, err := chatSvc.Transcript(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, "Heat kernel paper.", transcript[2].Content)
}

func TestWebSocketMissingCredential(t *testing.T) {
	srv, chatSvc := newServer(t)
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, session.ID), nil)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "connected")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "turn", "data": map[string]any{"message": "anything"}}))

	msgs := readUntil(t, conn, "end")
	assert.Equal(t, []string{"user", "warning", "end"}, types(msgs))
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	srv, chatSvc := newServer(t)
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, session.ID), nil)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "connected")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio"}))
	msgs := readUntil(t, conn, "error")
	assert.Contains(t, string(msgs[len(msgs)-1].Data), "unsupported message type")
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv, _ := newServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "missing"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
