package live

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/senyabanana/instant-call-service/internal/auth"
	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth map[string]string

func (a staticAuth) Authenticate(r *http.Request) (string, error) {
	userId, ok := a[auth.TokenFromRequest(r)]
	if !ok {
		return "", models.ErrUnauthorized
	}
	return userId, nil
}

func newTestHub(bufferSize int) (*Hub, *httptest.Server) {
	hub := NewHub(staticAuth{"t1": "w1"}, log.New(io.Discard, "", 0), bufferSize)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?access_token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func waitForConnections(t *testing.T, hub *Hub, userId string, expected int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Connections(userId) == expected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubDeliversToConnectedRecipient(t *testing.T) {
	hub, server := newTestHub(4)
	defer server.Close()

	conn, _, err := dial(t, server, "t1")
	require.NoError(t, err)
	defer conn.Close()
	waitForConnections(t, hub, "w1", 1)

	sent := models.Notification{ID: "n1", RecipientID: "w1", Seq: 7, Kind: models.RequestCreatedKind,
		Payload: models.NotificationPayload{RequestID: "r1"}}
	require.NoError(t, hub.Send("w1", sent))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, models.RequestCreatedKind, event.Type)
	assert.Equal(t, int64(7), event.Notification.Seq)
	assert.Equal(t, "r1", event.Notification.Payload.RequestID)
}

func TestHubRejectsUnknownToken(t *testing.T) {
	_, server := newTestHub(4)
	defer server.Close()

	_, resp, err := dial(t, server, "nope")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubSendWithoutConnectionsIsNoop(t *testing.T) {
	hub, server := newTestHub(4)
	defer server.Close()

	assert.NoError(t, hub.Send("nobody", models.Notification{Kind: models.RequestClosedKind}))
}

func TestHubOverflowIsReportedNotBlocking(t *testing.T) {
	hub := NewHub(staticAuth{}, log.New(io.Discard, "", 0), 1)
	c := &client{userId: "w1", send: make(chan []byte, 1)}
	hub.register(c)

	require.NoError(t, hub.Send("w1", models.Notification{Kind: models.RequestCreatedKind}))

	done := make(chan error, 1)
	go func() { done <- hub.Send("w1", models.Notification{Kind: models.RequestClosedKind}) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrSlowConsumer)
	case <-time.After(time.Second):
		t.Fatal("send blocked on a full buffer")
	}

	hub.unregister(c)
	assert.Equal(t, 0, hub.Connections("w1"))
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, server := newTestHub(4)
	defer server.Close()

	conn, _, err := dial(t, server, "t1")
	require.NoError(t, err)
	waitForConnections(t, hub, "w1", 1)

	conn.Close()
	waitForConnections(t, hub, "w1", 0)
}
