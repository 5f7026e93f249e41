package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabchat/adapters/llm"
	"tabchat/ai"
	"tabchat/domain/chat"
	"tabchat/domain/core"
	"tabchat/domain/table"
	"tabchat/internal/export"
	"tabchat/internal/session"
)

func dialTestChannel(t *testing.T, client *llm.MockClient) (*websocket.Conn, *session.Session, func()) {
	t.Helper()

	coordinator := export.NewCoordinator(nil, time.Hour)
	sess := session.NewSession(core.NewSessionID(), ai.NewResolver(client), coordinator)

	ds, err := table.FromRecords(
		[]string{"Region", "Sales"},
		[][]string{{"West", "100"}, {"East", "200"}},
	)
	require.NoError(t, err)
	_, err = sess.AttachDataset(ds, "sales.csv")
	require.NoError(t, err)

	srv := NewServer(nil)
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = srv.Serve(w, r, sess)
	}))

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return ws, sess, func() {
		ws.Close()
		httpServer.Close()
	}
}

func readResponse(t *testing.T, ws *websocket.Conn) chat.AgentResponse {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var response chat.AgentResponse
	require.NoError(t, ws.ReadJSON(&response))
	return response
}

func TestChannelRoundTrip(t *testing.T) {
	client := &llm.MockClient{Response: `{
		"message": "Filtering to West.",
		"intent": {"action": "filter", "parameters": {"column": "Region", "operator": "equals", "value": "West"}, "confidence": 0.9}
	}`}
	ws, sess, done := dialTestChannel(t, client)
	defer done()

	require.NoError(t, ws.WriteJSON(chat.Inbound{Text: "show only west"}))

	response := readResponse(t, ws)
	assert.Contains(t, response.Message, "Filtering to West.")
	require.NotNil(t, response.Preview)
	assert.Equal(t, 1, response.Preview.TotalRows)

	view, err := sess.CurrentView()
	require.NoError(t, err)
	assert.Equal(t, 1, view.RowCount())
}

func TestChannelMessagesAnsweredInOrder(t *testing.T) {
	client := &llm.MockClient{Response: `{"message": "noted", "intent": null}`}
	ws, _, done := dialTestChannel(t, client)
	defer done()

	for i := 0; i < 5; i++ {
		require.NoError(t, ws.WriteJSON(chat.Inbound{Text: "hello"}))
	}
	for i := 0; i < 5; i++ {
		response := readResponse(t, ws)
		assert.Equal(t, "noted", response.Message)
	}

	// Every inbound message produced exactly one NLU call, in order
	assert.Len(t, client.Calls, 5)
}

func TestChannelEmptyMessageRejected(t *testing.T) {
	client := &llm.MockClient{}
	ws, _, done := dialTestChannel(t, client)
	defer done()

	require.NoError(t, ws.WriteJSON(chat.Inbound{Text: ""}))

	response := readResponse(t, ws)
	assert.Equal(t, "empty message", response.Error)
	assert.Empty(t, client.Calls)
}

func TestChannelDisconnectClearsEmitter(t *testing.T) {
	client := &llm.MockClient{}
	ws, sess, done := dialTestChannel(t, client)

	require.NoError(t, ws.WriteJSON(chat.Inbound{Text: "hi"}))
	readResponse(t, ws)
	done()

	// Give the server goroutine a moment to tear the connection down
	time.Sleep(100 * time.Millisecond)

	// The session survives its channel: utterances still work and async
	// emissions are dropped rather than panicking.
	assert.NotPanics(t, func() {
		response := sess.ApplyUtterance(context.Background(), "still here")
		assert.NotEmpty(t, response.Message)
	})
	assert.Equal(t, session.StateActive, sess.State())
}
