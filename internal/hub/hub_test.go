package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/baajur/flodgatt/internal/auth"
	"github.com/baajur/flodgatt/internal/database"
	"github.com/baajur/flodgatt/internal/redis"
	"github.com/baajur/flodgatt/internal/timeline"
)

type subCall struct {
	cmd     redis.Cmd
	channel string
}

// fakeSubscriber records subscription changes.
type fakeSubscriber struct {
	mu    sync.Mutex
	calls []subCall
}

func (f *fakeSubscriber) Subscribe(ch redis.Channel, tagName string) {
	f.record(redis.CmdSubscribe, ch, tagName)
}

func (f *fakeSubscriber) Unsubscribe(ch redis.Channel) {
	f.record(redis.CmdUnsubscribe, ch, "")
}

func (f *fakeSubscriber) record(cmd redis.Cmd, ch redis.Channel, tagName string) {
	name, _ := ch.WireName(tagName)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, subCall{cmd: cmd, channel: name})
}

func (f *fakeSubscriber) snapshot() []subCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]subCall(nil), f.calls...)
}

func TestHub_SubscribesOnFirstWatcherOnly(t *testing.T) {
	sub := &fakeSubscriber{}
	h := New(sub, nil)
	tl := timeline.NewPublic(timeline.Public)

	s1 := NewSession(nil)
	s2 := NewSession(nil)
	if err := h.Register(tl, "", s1); err != nil {
		t.Fatalf("Register s1 failed: %v", err)
	}
	if err := h.Register(tl, "", s2); err != nil {
		t.Fatalf("Register s2 failed: %v", err)
	}

	want := []subCall{{redis.CmdSubscribe, "timeline:public"}}
	if got := sub.snapshot(); len(got) != 1 || got[0] != want[0] {
		t.Errorf("calls = %v, want exactly one subscribe", got)
	}
}

func TestHub_UnsubscribesOnLastWatcherOnly(t *testing.T) {
	sub := &fakeSubscriber{}
	h := New(sub, nil)
	tl := timeline.NewPublic(timeline.Public)

	s1 := NewSession(nil)
	s2 := NewSession(nil)
	h.Register(tl, "", s1)
	h.Register(tl, "", s2)

	h.Unregister(s1)
	if got := sub.snapshot(); len(got) != 1 {
		t.Fatalf("calls after first unregister = %v, want no unsubscribe yet", got)
	}

	h.Unregister(s2)
	got := sub.snapshot()
	if len(got) != 2 || got[1] != (subCall{redis.CmdUnsubscribe, "timeline:public"}) {
		t.Errorf("calls = %v, want a final unsubscribe", got)
	}

	// Unregistering twice is harmless.
	h.Unregister(s2)
	if got := sub.snapshot(); len(got) != 2 {
		t.Errorf("calls after double unregister = %v", got)
	}
}

func TestHub_PublishReachesOnlyWatchers(t *testing.T) {
	h := New(&fakeSubscriber{}, nil)

	public := NewSession(nil)
	direct := NewSession(nil)
	h.Register(timeline.NewPublic(timeline.Public), "", public)
	h.Register(timeline.NewDirect(42), "", direct)

	h.Publish(redis.Message{Channel: "timeline:public", Payload: "update"})

	select {
	case payload := <-public.out:
		if string(payload) != "update" {
			t.Errorf("payload = %q, want %q", payload, "update")
		}
	default:
		t.Error("public watcher received nothing")
	}
	select {
	case payload := <-direct.out:
		t.Errorf("direct watcher received %q, want nothing", payload)
	default:
	}
}

// stubStore backs the authenticator in server tests.
type stubStore struct{}

func (stubStore) UserForToken(_ context.Context, token string) (*database.TokenInfo, error) {
	if token == "valid" {
		return &database.TokenInfo{UserID: 1, AccountID: 42, Scopes: []string{"read"}}, nil
	}
	return nil, database.ErrNotFound
}

// stubTags resolves "go" and nothing else.
type stubTags struct{}

func (stubTags) TagID(_ context.Context, name string) (int64, error) {
	if name == "go" {
		return 8, nil
	}
	return 0, database.ErrNotFound
}

func startServer(t *testing.T) (*httptest.Server, *Hub, *fakeSubscriber) {
	t.Helper()

	sub := &fakeSubscriber{}
	h := New(sub, nil)
	srv := NewServer(h, auth.New(stubStore{}, nil), stubTags{}, nil, nil)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, h, sub
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestServer_StreamPublic(t *testing.T) {
	ts, h, sub := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/v1/streaming?stream=public"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// The subscription is made as part of the upgrade handling.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(sub.snapshot()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	calls := sub.snapshot()
	if len(calls) != 1 || calls[0].channel != "timeline:public" {
		t.Fatalf("calls = %v, want subscribe to timeline:public", calls)
	}

	h.Publish(redis.Message{Channel: "timeline:public", Payload: `{"event":"update"}`})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(payload) != `{"event":"update"}` {
		t.Errorf("payload = %q, want the published event", payload)
	}
}

func TestServer_StreamHashtagResolvesTag(t *testing.T) {
	ts, _, sub := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/v1/streaming?stream=hashtag&tag=go"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(sub.snapshot()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	calls := sub.snapshot()
	if len(calls) != 1 || calls[0].channel != "timeline:hashtag:go" {
		t.Fatalf("calls = %v, want subscribe to timeline:hashtag:go", calls)
	}
}

func TestServer_StreamErrors(t *testing.T) {
	ts, _, _ := startServer(t)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"unknown stream", "/api/v1/streaming?stream=bogus", http.StatusBadRequest},
		{"hashtag without tag", "/api/v1/streaming?stream=hashtag", http.StatusBadRequest},
		{"unknown hashtag", "/api/v1/streaming?stream=hashtag&tag=nope", http.StatusNotFound},
		{"user without token", "/api/v1/streaming?stream=user", http.StatusUnauthorized},
		{"user with bad token", "/api/v1/streaming?stream=user&access_token=bad", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
		})
	}
}

func TestServer_StreamUserAuthenticated(t *testing.T) {
	ts, _, sub := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/v1/streaming?stream=user&access_token=valid"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(sub.snapshot()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	calls := sub.snapshot()
	if len(calls) != 1 || calls[0].channel != "timeline:42" {
		t.Fatalf("calls = %v, want subscribe to timeline:42", calls)
	}
}

func TestServer_Health(t *testing.T) {
	ts, _, _ := startServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
