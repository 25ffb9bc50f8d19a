package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mediasync/internal/shared"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newPushServer starts a websocket server that runs handle for each connection.
func newPushServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.Messages():
		if !ok {
			t.Fatal("messages channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "progress", data: `{"type":"transfer_progress","transfer_id":"t1","progress":12.5}`},
		{name: "complete", data: `{"type":"transfer_complete","transfer_id":"t1"}`},
		{name: "unknown type", data: `{"type":"hello","transfer_id":"t1"}`, wantErr: true},
		{name: "outbound type", data: `{"type":"activity"}`, wantErr: true},
		{name: "missing id", data: `{"type":"transfer_progress"}`, wantErr: true},
		{name: "malformed", data: `{"type":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if tt.wantErr && !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestActivityMessage(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	data, err := json.Marshal(ActivityMessage(at))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	got := string(data)
	if !strings.Contains(got, `"type":"activity"`) {
		t.Errorf("expected activity type, got %s", got)
	}
	if !strings.Contains(got, `"timestamp":"2025-03-01T11:00:00Z"`) {
		t.Errorf("expected UTC timestamp, got %s", got)
	}
	if strings.Contains(got, "transfer_id") {
		t.Errorf("expected transfer_id to be omitted, got %s", got)
	}
}

func TestClient(t *testing.T) {
	t.Run("Delivers Transfer Frames", func(t *testing.T) {
		_, url := newPushServer(t, func(conn *websocket.Conn, r *http.Request) {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transfer_progress","transfer_id":"t1","progress":50}`))
			conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transfer_complete","transfer_id":"t1"}`))
			conn.ReadMessage()
		})

		client, err := NewDialer(url, "", time.Second, nil).Dial(context.Background())
		if err != nil {
			t.Fatalf("dial failed: %v", err)
		}
		defer client.Close()

		first := receive(t, client)
		if first.Type != TypeTransferProgress || first.Progress != 50 {
			t.Errorf("unexpected first message %+v", first)
		}
		second := receive(t, client)
		if second.Type != TypeTransferComplete || second.TransferID != "t1" {
			t.Errorf("unexpected second message %+v", second)
		}
	})

	t.Run("Sends Token And Activity", func(t *testing.T) {
		auth := make(chan string, 1)
		frames := make(chan Message, 1)
		_, url := newPushServer(t, func(conn *websocket.Conn, r *http.Request) {
			auth <- r.Header.Get("Authorization")
			var msg Message
			if err := conn.ReadJSON(&msg); err == nil {
				frames <- msg
			}
			conn.ReadMessage()
		})

		client, err := NewDialer(url, "secret", time.Second, nil).Dial(context.Background())
		if err != nil {
			t.Fatalf("dial failed: %v", err)
		}
		defer client.Close()

		if got := <-auth; got != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", got)
		}

		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		if err := client.SendActivity(at); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		select {
		case msg := <-frames:
			if msg.Type != TypeActivity || !msg.Timestamp.Equal(at) {
				t.Errorf("unexpected activity frame %+v", msg)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for activity frame")
		}
	})

	t.Run("Local Close", func(t *testing.T) {
		_, url := newPushServer(t, func(conn *websocket.Conn, r *http.Request) {
			conn.ReadMessage()
		})

		client, err := NewDialer(url, "", time.Second, nil).Dial(context.Background())
		if err != nil {
			t.Fatalf("dial failed: %v", err)
		}

		if err := client.Close(); err != nil {
			t.Errorf("expected no error on close, got %v", err)
		}
		client.Close()

		select {
		case <-client.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("done not closed")
		}
		if client.Err() != nil {
			t.Errorf("expected nil Err after local close, got %v", client.Err())
		}
		if err := client.SendActivity(time.Now()); !errors.Is(err, shared.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})

	t.Run("Unexpected Close", func(t *testing.T) {
		_, url := newPushServer(t, func(conn *websocket.Conn, r *http.Request) {})

		client, err := NewDialer(url, "", time.Second, nil).Dial(context.Background())
		if err != nil {
			t.Fatalf("dial failed: %v", err)
		}

		select {
		case <-client.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("done not closed after server hangup")
		}
		if !errors.Is(client.Err(), shared.ErrConnectionLost) {
			t.Errorf("expected ErrConnectionLost, got %v", client.Err())
		}

		if _, ok := <-client.Messages(); ok {
			t.Error("expected messages channel to be closed")
		}
	})
}

func TestDialer(t *testing.T) {
	t.Run("Missing URL", func(t *testing.T) {
		_, err := NewDialer("", "", time.Second, nil).Dial(context.Background())
		if !errors.Is(err, shared.ErrConnectFailed) {
			t.Errorf("expected ErrConnectFailed, got %v", err)
		}
	})

	t.Run("Handshake Rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		_, err := NewDialer(url, "", time.Second, nil).Dial(context.Background())
		if !errors.Is(err, shared.ErrConnectFailed) {
			t.Errorf("expected ErrConnectFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "403") {
			t.Errorf("expected status code in error, got %v", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewDialer("ws://127.0.0.1:1/ws", "", time.Second, nil).Dial(ctx)
		if !errors.Is(err, shared.ErrConnectFailed) {
			t.Errorf("expected ErrConnectFailed, got %v", err)
		}
	})
}
