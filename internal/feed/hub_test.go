package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"go.uber.org/goleak"

	"github.com/ashureev/skydesk/internal/agent"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newFeedServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, true, nil)
	r := chi.NewRouter()
	r.Get("/ws/conversations/{conversationID}", hub.ServeHTTP)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f Frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return f
}

func TestHubDeliversTurnsToSubscribers(t *testing.T) {
	hub, base := newFeedServer(t)
	conn := dial(t, base+"/ws/conversations/conv-1")

	if f := read(t, conn); f.Type != "subscribed" || f.ConversationID != "conv-1" {
		t.Fatalf("first frame = %+v", f)
	}
	if n := hub.Subscribers("conv-1"); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	hub.TurnCompleted("conv-2", &agent.TurnResult{ConversationID: "conv-2"})
	hub.TurnCompleted("conv-1", &agent.TurnResult{ConversationID: "conv-1", ActiveSpecialist: "faq"})

	f := read(t, conn)
	if f.Type != "turn" || f.Turn == nil || f.Turn.ActiveSpecialist != "faq" {
		t.Fatalf("turn frame = %+v", f)
	}
}

func TestHubAnswersPing(t *testing.T) {
	_, base := newFeedServer(t)
	conn := dial(t, base+"/ws/conversations/conv-1")
	read(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if f := read(t, conn); f.Type != "pong" {
		t.Fatalf("frame = %+v, want pong", f)
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, base := newFeedServer(t)
	conn := dial(t, base+"/ws/conversations/conv-9")
	read(t, conn)

	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("conv-9") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
