package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sltk-monitor/internal/model"
)

// fakeBackend accepts one websocket and hands every client frame to onMessage.
func fakeBackend(t *testing.T, onMessage func(conn *websocket.Conn, msg Message)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		hello, _ := newMessage(MsgTypeConnected, "", ConnectedPayload{Message: "Connected to SLTK monitor"})
		_ = conn.WriteJSON(hello)
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if onMessage != nil {
				onMessage(conn, msg)
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func statusFrame(t *testing.T, msgType, groupID, code string, pct int) Message {
	t.Helper()
	msg, err := newMessage(msgType, "", model.UploadStatus{
		GroupID:    groupID,
		Status:     code,
		StatusText: model.StatusText(code),
		Progress:   model.Progress{Total: 10, Completed: pct / 10, Percentage: pct},
	})
	require.NoError(t, err)
	return msg
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed early")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push event")
		return Event{}
	}
}

func TestClientMonitorDeliversEventsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	received := make(chan Message, 1)
	srv := fakeBackend(t, func(conn *websocket.Conn, msg Message) {
		received <- msg
		if msg.Type != MsgTypeMonitor {
			return
		}
		var groupID string
		_ = json.Unmarshal(msg.Payload, &groupID)
		_ = conn.WriteJSON(statusFrame(t, MsgTypeStatusUpdate, groupID, model.StatusProcessing, 40))
		_ = conn.WriteJSON(statusFrame(t, MsgTypeStatusUpdate, groupID, model.StatusProcessing, 75))
		_ = conn.WriteJSON(statusFrame(t, MsgTypeProcessingComplete, groupID, model.StatusSuccess, 100))
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(srv), Options{})
	require.NoError(t, err)
	defer c.Close()

	hello := nextEvent(t, c.Events())
	assert.Equal(t, EventConnected, hello.Kind)
	assert.Equal(t, "Connected to SLTK monitor", hello.Message)

	require.NoError(t, c.Monitor(ctx, "G100"))

	sent := <-received
	assert.Equal(t, MsgTypeMonitor, sent.Type)
	assert.JSONEq(t, `"G100"`, string(sent.Payload))
	assert.NotZero(t, sent.Timestamp)
	_, err = uuid.Parse(sent.ID)
	assert.NoError(t, err, "message id should be a uuid")

	var pcts []int
	for i := 0; i < 3; i++ {
		ev := nextEvent(t, c.Events())
		assert.Equal(t, "G100", ev.GroupID)
		pcts = append(pcts, ev.Status.Progress.Percentage)
		if ev.Kind == EventProcessingComplete {
			assert.Equal(t, model.StatusSuccess, ev.Status.Status)
		}
	}
	assert.Equal(t, []int{40, 75, 100}, pcts)
}

func TestClientPingIsAnsweredWithoutEvent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := fakeBackend(t, func(conn *websocket.Conn, msg Message) {
		if msg.Type == MsgTypePing {
			pong, _ := newMessage(MsgTypePong, msg.ID, nil)
			_ = conn.WriteJSON(pong)
			_ = conn.WriteJSON(statusFrame(t, MsgTypeStatusUpdate, "G7", model.StatusProcessing, 10))
		}
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(srv), Options{})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, EventConnected, nextEvent(t, c.Events()).Kind)
	require.NoError(t, c.Ping(ctx))

	// the pong is swallowed, so the next event is the status frame
	ev := nextEvent(t, c.Events())
	assert.Equal(t, EventStatusUpdate, ev.Kind)
	assert.Equal(t, "G7", ev.GroupID)
}

func TestClientStopMonitorSendsGroupID(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	received := make(chan Message, 1)
	srv := fakeBackend(t, func(_ *websocket.Conn, msg Message) { received <- msg })
	defer srv.Close()

	ctx := context.Background()
	c, err := Dial(ctx, wsURL(srv), Options{})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.StopMonitor(ctx, "G7"))
	msg := <-received
	assert.Equal(t, MsgTypeStopMonitor, msg.Type)
	assert.JSONEq(t, `"G7"`, string(msg.Payload))
}

func TestClientDroppedConnectionYieldsFinalError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := fakeBackend(t, func(conn *websocket.Conn, msg Message) {
		if msg.Type == MsgTypeMonitor {
			_ = conn.Close()
		}
	})
	defer srv.Close()

	ctx := context.Background()
	c, err := Dial(ctx, wsURL(srv), Options{})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, EventConnected, nextEvent(t, c.Events()).Kind)
	require.NoError(t, c.Monitor(ctx, "G1"))

	ev := nextEvent(t, c.Events())
	assert.Equal(t, EventError, ev.Kind)
	assert.Contains(t, ev.Message, "push channel disconnected")

	select {
	case _, ok := <-c.Events():
		assert.False(t, ok, "channel should close after the final error")
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed")
	}
}

func TestClientCloseIsQuietAndIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := fakeBackend(t, nil)
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), Options{PingInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, EventConnected, nextEvent(t, c.Events()).Kind)

	require.NoError(t, c.Close())
	assert.NotPanics(t, func() { _ = c.Close() })

	for ev := range c.Events() {
		assert.NotEqual(t, EventError, ev.Kind, "close should not report an error")
	}
	assert.ErrorIs(t, c.Monitor(context.Background(), "G1"), ErrClosed)
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Dial(context.Background(), wsURL(srv), Options{HandshakeTimeout: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestDecodeEvent(t *testing.T) {
	raw := func(s string) json.RawMessage { return json.RawMessage(s) }

	tests := []struct {
		name   string
		msg    Message
		wantOK bool
		want   Event
	}{
		{
			name:   "error with detail",
			msg:    Message{Type: MsgTypeError, Payload: raw(`{"groupId":"G1","message":"Failed to get status","error":"timeout"}`)},
			wantOK: true,
			want:   Event{Kind: EventError, GroupID: "G1", Message: "Failed to get status: timeout"},
		},
		{
			name:   "error without payload",
			msg:    Message{Type: MsgTypeError},
			wantOK: true,
			want:   Event{Kind: EventError, Message: "unknown push channel error"},
		},
		{
			name: "pong ignored",
			msg:  Message{Type: MsgTypePong},
		},
		{
			name: "unknown type ignored",
			msg:  Message{Type: "subscribed", Payload: raw(`{}`)},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := decodeEvent(tc.msg)
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}

	_, _, err := decodeEvent(Message{Type: MsgTypeStatusUpdate, Payload: raw(`"not-an-object"`)})
	assert.Error(t, err)
}
