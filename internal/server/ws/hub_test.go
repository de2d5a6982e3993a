package ws

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

type chanBus struct {
	ch      chan []byte
	pattern chan string
}

func (b *chanBus) Publish(context.Context, string, []byte) error { return nil }

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.pattern <- channel
	return b.ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestHubRoutesByAccount(t *testing.T) {
	t.Parallel()

	bus := &chanBus{ch: make(chan []byte, 4), pattern: make(chan string, 1)}
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	select {
	case p := <-bus.pattern:
		assert.Equal(t, domain.AccountChannelPattern, p)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not subscribe")
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?account=acct-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, hello, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(hello), `"type":"hello"`)
	assert.Contains(t, string(hello), `"acct-1"`)

	bus.ch <- []byte(`{"type":"trade.settled","account_id":"acct-2"}`)
	bus.ch <- []byte(`garbage`)
	bus.ch <- []byte(`{"type":"account.breached","account_id":"acct-1"}`)

	mt, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.JSONEq(t, `{"type":"account.breached","account_id":"acct-1"}`, string(msg))
}

func TestClientSubscriptions(t *testing.T) {
	t.Parallel()

	c := &client{accounts: map[string]bool{}}
	assert.False(t, c.follows("a"))

	c.apply(subscribeMsg{Action: "subscribe", Accounts: []string{"a", "b"}})
	assert.True(t, c.follows("a"))
	assert.True(t, c.follows("b"))

	c.apply(subscribeMsg{Action: "unsubscribe", Accounts: []string{"a"}})
	assert.False(t, c.follows("a"))

	c.apply(subscribeMsg{Action: "subscribe", Accounts: []string{allAccounts}})
	assert.True(t, c.follows("anything"))
}

func TestEventAccount(t *testing.T) {
	t.Parallel()

	id, ok := eventAccount([]byte(`{"type":"stage.passed","account_id":"x1","data":{}}`))
	assert.True(t, ok)
	assert.Equal(t, "x1", id)

	_, ok = eventAccount([]byte(`{"type":"stage.passed"}`))
	assert.False(t, ok)
	_, ok = eventAccount([]byte(`[`))
	assert.False(t, ok)
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	check := originChecker([]string{"https://app.polyprop.io"})
	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://app.polyprop.io")
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(r))
	assert.True(t, originChecker(nil)(r))
}

func TestHubStopsAcceptingAfterShutdown(t *testing.T) {
	t.Parallel()

	bus := &chanBus{ch: make(chan []byte), pattern: make(chan string, 1)}
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	handled := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWS(w, r)
		handled <- struct{}{}
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?account=acct-1"

	live, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer live.Close()
	<-handled

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	// The open connection is told to close by its writer.
	require.NoError(t, live.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := live.ReadMessage(); err != nil {
			break
		}
	}

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade handler blocked after shutdown")
	}

	left := make(chan struct{})
	go func() {
		hub.leave(&client{})
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(2 * time.Second):
		t.Fatal("leave blocked after shutdown")
	}
}
