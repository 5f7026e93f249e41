package channel

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState is the client-side connection state
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateOpen         ConnState = "open"
	StateClosedConn   ConnState = "closed"
)

// DialFunc opens a websocket connection to the given URL
type DialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// ServeFunc runs over an open connection until it fails or ctx is done
type ServeFunc func(ctx context.Context, ws *websocket.Conn) error

// ReconnectConfig tunes the backoff policy
type ReconnectConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultReconnectConfig matches the policy clients are expected to follow:
// exponential backoff from one second, capped at thirty, giving up after
// six consecutive failures.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 6,
	}
}

// Backoff returns the delay before reconnect attempt n (zero-based),
// doubling from base and capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Reconnector maintains a client connection through disconnects. A drop
// while open waits BaseDelay and redials with the attempt counter reset;
// consecutive dial failures count toward MaxAttempts, after which the
// reconnector transitions to closed and returns.
type Reconnector struct {
	url    string
	config ReconnectConfig
	dial   DialFunc
	serve  ServeFunc
	sleep  func(time.Duration)

	mu    sync.Mutex
	state ConnState

	// OnStateChange, when set, observes every transition
	OnStateChange func(ConnState)
}

// NewReconnector builds a reconnector. dial and sleep default to the real
// websocket dialer and time.Sleep; tests inject fakes.
func NewReconnector(url string, config ReconnectConfig, serve ServeFunc) *Reconnector {
	return &Reconnector{
		url:    url,
		config: config,
		serve:  serve,
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return ws, err
		},
		sleep: time.Sleep,
		state: StateDisconnected,
	}
}

// SetDial overrides the dialer, for tests
func (r *Reconnector) SetDial(dial DialFunc) { r.dial = dial }

// SetSleep overrides the backoff sleeper, for tests
func (r *Reconnector) SetSleep(sleep func(time.Duration)) { r.sleep = sleep }

// State returns the current connection state
func (r *Reconnector) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconnector) transition(state ConnState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	if r.OnStateChange != nil {
		r.OnStateChange(state)
	}
}

// Run connects and keeps the connection alive until ctx is done or the
// attempt budget is exhausted.
func (r *Reconnector) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			r.transition(StateClosedConn)
			return ctx.Err()
		}

		r.transition(StateConnecting)
		ws, err := r.dial(ctx, r.url)
		if err != nil {
			attempt++
			if attempt >= r.config.MaxAttempts {
				r.transition(StateClosedConn)
				return fmt.Errorf("gave up after %d connection attempts: %w", attempt, err)
			}
			delay := Backoff(attempt-1, r.config.BaseDelay, r.config.MaxDelay)
			log.Printf("[Channel] Dial failed (attempt %d/%d), retrying in %s: %v",
				attempt, r.config.MaxAttempts, delay, err)
			r.transition(StateDisconnected)
			r.sleep(delay)
			continue
		}

		attempt = 0
		r.transition(StateOpen)
		serveErr := r.serve(ctx, ws)
		ws.Close()
		if ctx.Err() != nil {
			r.transition(StateClosedConn)
			return ctx.Err()
		}
		log.Printf("[Channel] Connection dropped, reconnecting in %s: %v", r.config.BaseDelay, serveErr)
		r.transition(StateDisconnected)
		// An endpoint that accepts and immediately drops must not trigger
		// a tight redial loop
		r.sleep(r.config.BaseDelay)
	}
}
