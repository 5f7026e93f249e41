package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	assert.Equal(t, 1*time.Second, Backoff(0, base, max))
	assert.Equal(t, 2*time.Second, Backoff(1, base, max))
	assert.Equal(t, 4*time.Second, Backoff(2, base, max))
	assert.Equal(t, 16*time.Second, Backoff(4, base, max))
	assert.Equal(t, 30*time.Second, Backoff(5, base, max))
	assert.Equal(t, 30*time.Second, Backoff(20, base, max))
}

func TestReconnectorGivesUpAfterMaxAttempts(t *testing.T) {
	config := ReconnectConfig{BaseDelay: time.Second, MaxDelay: 30 * time.Second, MaxAttempts: 4}
	r := NewReconnector("ws://test", config, nil)

	dials := 0
	r.SetDial(func(ctx context.Context, url string) (*websocket.Conn, error) {
		dials++
		return nil, errors.New("refused")
	})

	var slept []time.Duration
	r.SetSleep(func(d time.Duration) { slept = append(slept, d) })

	err := r.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 4, dials)
	assert.Equal(t, StateClosedConn, r.State())
	// Three backoffs between four attempts, doubling from the base
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, slept)
}

func TestReconnectorStateTransitions(t *testing.T) {
	config := ReconnectConfig{BaseDelay: time.Millisecond, MaxDelay: time.Second, MaxAttempts: 2}
	r := NewReconnector("ws://test", config, nil)

	var states []ConnState
	r.OnStateChange = func(s ConnState) { states = append(states, s) }

	r.SetDial(func(ctx context.Context, url string) (*websocket.Conn, error) {
		return nil, errors.New("refused")
	})
	r.SetSleep(func(time.Duration) {})

	_ = r.Run(context.Background())

	assert.Equal(t, []ConnState{
		StateConnecting,
		StateDisconnected,
		StateConnecting,
		StateClosedConn,
	}, states)
}

func TestReconnectorWaitsBaseDelayAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drops := 0
	config := ReconnectConfig{BaseDelay: time.Second, MaxDelay: 30 * time.Second, MaxAttempts: 3}
	r := NewReconnector(url, config, func(ctx context.Context, ws *websocket.Conn) error {
		drops++
		if drops == 3 {
			cancel()
		}
		return errors.New("dropped")
	})

	var slept []time.Duration
	r.SetSleep(func(d time.Duration) { slept = append(slept, d) })

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// An endpoint that accepts and immediately drops never spins: each
	// drop waits the base delay before the redial. The third drop cancels
	// the context, so Run returns without a final sleep.
	assert.Equal(t, 3, drops)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, slept)
}

func TestReconnectorStopsWhenContextCancelled(t *testing.T) {
	config := DefaultReconnectConfig()
	r := NewReconnector("ws://test", config, nil)

	ctx, cancel := context.WithCancel(context.Background())
	r.SetDial(func(ctx context.Context, url string) (*websocket.Conn, error) {
		return nil, errors.New("refused")
	})
	r.SetSleep(func(time.Duration) { cancel() })

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosedConn, r.State())
}
