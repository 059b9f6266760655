package liveview

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func waitFor(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestHubBroadcasts(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(h)
	defer srv.Close()
	a, b := dial(t, srv), dial(t, srv)
	defer a.Close()
	defer b.Close()
	if !waitFor(time.Second, func() bool { return h.Clients() == 2 }) {
		t.Fatalf("expected 2 clients got %d", h.Clients())
	}
	frame := []byte{1, 2, 3, 4, 5, 6}
	n, err := h.Write(frame)
	if err != nil || n != len(frame) {
		t.Fatalf("expected a full write, got %d %v", n, err)
	}
	// the hub must not keep a reference to the caller's buffer
	frame[0] = 99
	for _, c := range []*websocket.Conn{a, b} {
		c.SetReadDeadline(time.Now().Add(time.Second))
		typ, msg, err := c.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if typ != websocket.BinaryMessage {
			t.Errorf("expected a binary message got %d", typ)
		}
		if !bytes.Equal(msg, []byte{1, 2, 3, 4, 5, 6}) {
			t.Errorf("unexpected frame %v", msg)
		}
	}
	if !waitFor(time.Second, func() bool { return h.Sent() == 2 }) {
		t.Errorf("expected 2 frames sent got %d", h.Sent())
	}
}

func TestHubDropsDisconnected(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(h)
	defer srv.Close()
	c := dial(t, srv)
	if !waitFor(time.Second, func() bool { return h.Clients() == 1 }) {
		t.Fatal("client never registered")
	}
	c.Close()
	if !waitFor(time.Second, func() bool { return h.Clients() == 0 }) {
		t.Errorf("expected the client to be dropped, %d remain", h.Clients())
	}
	if _, err := h.Write([]byte{1}); err != nil {
		t.Errorf("expected writes with no clients to succeed, got %v", err)
	}
}

func TestMailboxKeepsNewest(t *testing.T) {
	c := &client{box: make(chan []byte, 1)}
	c.offer([]byte{1})
	c.offer([]byte{2})
	c.offer([]byte{3})
	got := <-c.box
	if got[0] != 3 {
		t.Errorf("expected the newest frame, got %d", got[0])
	}
}
