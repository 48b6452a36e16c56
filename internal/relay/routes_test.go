package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tayyab-Ali-786/Chattify/internal/registry"
	"github.com/Tayyab-Ali-786/Chattify/internal/signaling"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startRelay(t *testing.T, origins ...string) *httptest.Server {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(registry.New())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(hub, origins))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

type testPeer struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, srv *httptest.Server, name string) *testPeer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	p := &testPeer{t: t, conn: conn}
	welcome := p.read()
	require.Equal(t, signaling.MessageTypeWelcome, welcome.Type)
	require.NotEmpty(t, welcome.ParticipantID)
	p.id = welcome.ParticipantID
	return p
}

func (p *testPeer) send(msg *signaling.Message) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteJSON(msg))
}

func (p *testPeer) read() *signaling.Message {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg signaling.Message
	require.NoError(p.t, p.conn.ReadJSON(&msg))
	return &msg
}

func TestHealth(t *testing.T) {
	srv := startRelay(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOfferAnswerRoundTripOverWebsocket(t *testing.T) {
	srv := startRelay(t)
	a := dial(t, srv, "alice")
	b := dial(t, srv, "bob")

	a.send(&signaling.Message{Type: signaling.MessageTypeJoin, RoomID: "standup"})
	assert.Equal(t, signaling.MessageTypeRoomState, a.read().Type)

	b.send(&signaling.Message{Type: signaling.MessageTypeJoin, RoomID: "standup", ClientType: signaling.ClientTypeCLI})
	state := b.read()
	require.Len(t, state.Participants, 1)
	assert.Equal(t, a.id, state.Participants[0].ID)
	assert.Equal(t, "alice", state.Participants[0].DisplayName)

	joined := a.read()
	assert.Equal(t, signaling.MessageTypePeerJoined, joined.Type)
	assert.Equal(t, b.id, joined.From)
	assert.Equal(t, "bob", joined.DisplayName)
	assert.Equal(t, signaling.ClientTypeCLI, joined.ClientType)

	a.send(&signaling.Message{Type: signaling.MessageTypeOffer, To: b.id, SDP: "offer-sdp"})
	offer := b.read()
	assert.Equal(t, a.id, offer.From)
	assert.Equal(t, "offer-sdp", offer.SDP)
	assert.Equal(t, "alice", offer.DisplayName)

	b.send(&signaling.Message{Type: signaling.MessageTypeAnswer, To: a.id, SDP: "answer-sdp"})
	answer := a.read()
	assert.Equal(t, b.id, answer.From)
	assert.Equal(t, "answer-sdp", answer.SDP)

	candidate := json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0"}`)
	b.send(&signaling.Message{Type: signaling.MessageTypeCandidate, To: a.id, Candidate: candidate})
	assert.JSONEq(t, string(candidate), string(a.read().Candidate))
}

func TestDisconnectEmitsPeerLeft(t *testing.T) {
	srv := startRelay(t)
	a := dial(t, srv, "alice")
	b := dial(t, srv, "bob")

	a.send(&signaling.Message{Type: signaling.MessageTypeJoin, RoomID: "standup"})
	a.read()
	b.send(&signaling.Message{Type: signaling.MessageTypeJoin, RoomID: "standup"})
	b.read()
	a.read() // peer-joined

	b.conn.Close()

	left := a.read()
	assert.Equal(t, signaling.MessageTypePeerLeft, left.Type)
	assert.Equal(t, b.id, left.From)

	resp, err := http.Get(srv.URL + "/api/rooms/standup")
	require.NoError(t, err)
	defer resp.Body.Close()

	var room RoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	assert.Equal(t, 1, room.Participants)
}

func TestMalformedMessageKeepsConnection(t *testing.T) {
	srv := startRelay(t)
	a := dial(t, srv, "alice")

	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, signaling.MessageTypeError, a.read().Type)

	a.send(&signaling.Message{Type: signaling.MessageTypeJoin, RoomID: "standup"})
	assert.Equal(t, signaling.MessageTypeRoomState, a.read().Type)
}

func TestUnknownRoom(t *testing.T) {
	srv := startRelay(t)

	resp, err := http.Get(srv.URL + "/api/rooms/nowhere")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewRoom(t *testing.T) {
	srv := startRelay(t)

	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var room RoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	assert.Len(t, strings.Split(room.RoomID, "-"), 4)
	assert.Zero(t, room.Participants)
}

func TestOriginFilter(t *testing.T) {
	srv := startRelay(t, "https://chattify.example")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req.Header.Set("Origin", "https://chattify.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://chattify.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
