package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/lisuiheng/soundcard/internal/assert"
	"github.com/lisuiheng/soundcard/pkg/interfaces"
)

// echoServer echoes every message back with its type preserved and reports
// the headers of the upgrade request.
func echoServer(t *testing.T, headers chan<- http.Header) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) Config {
	var cfg Config
	cfg.Server.URL = "ws" + strings.TrimPrefix(url, "http")
	cfg.Server.ProtocolVersion = 1
	cfg.Auth.AccessToken = "secret"
	cfg.Device.ID = "aa:bb:cc:dd:ee:ff"
	cfg.Device.ClientID = "client-1"
	return cfg
}

func TestWSProtocolRoundTrip(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	srv := echoServer(t, headers)

	p, err := NewWebSocketProtocol(testConfig(srv.URL))
	assert.NilErr(t, err)
	assert.NilErr(t, p.Connect(context.Background()))
	defer p.Close()

	h := assert.ChanWritten(t, headers)
	assert.DeepEqual(t, h.Get("Authorization"), "Bearer secret")
	assert.DeepEqual(t, h.Get("Protocol-Version"), "1")
	assert.DeepEqual(t, h.Get("Device-Id"), "aa:bb:cc:dd:ee:ff")
	assert.DeepEqual(t, h.Get("Client-Id"), "client-1")

	assert.NilErr(t, p.Send([]byte(`{"type":"hello"}`), interfaces.MsgText))
	msg := assert.ChanWritten(t, p.Receive())
	assert.DeepEqual(t, msg.Type, interfaces.MsgText)
	assert.DeepEqual(t, string(msg.Payload), `{"type":"hello"}`)

	assert.NilErr(t, p.Send([]byte{1, 2, 3}, interfaces.MsgBinary))
	msg = assert.ChanWritten(t, p.Receive())
	assert.DeepEqual(t, msg.Type, interfaces.MsgBinary)
	assert.DeepEqual(t, msg.Payload, []byte{1, 2, 3})
}

func TestWSProtocolClose(t *testing.T) {
	t.Parallel()

	srv := echoServer(t, make(chan http.Header, 1))
	p, err := NewWebSocketProtocol(testConfig(srv.URL))
	assert.NilErr(t, err)
	assert.NilErr(t, p.Connect(context.Background()))

	assert.NilErr(t, p.Close())
	assert.NilErr(t, p.Close())
	assert.ChanClosed(t, p.Receive())
	assert.ErrorIs(t, p.Send([]byte("late"), interfaces.MsgText), interfaces.ErrConnectionClosed)
}

func TestWSProtocolConnectFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p, err := NewWebSocketProtocol(testConfig(srv.URL))
	assert.NilErr(t, err)
	err = p.Connect(context.Background())
	if !errors.Is(err, interfaces.ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	assert.ErrorIs(t, p.Send(nil, interfaces.MsgText), interfaces.ErrConnectionFailed)

	_, err = NewWebSocketProtocol(Config{})
	assert.ErrorIs(t, err, interfaces.ErrConnectionFailed)
}
