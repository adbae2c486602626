package websocket_test

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/infrastructure/origin"
	relayws "chat-relay/infrastructure/websocket"
	"chat-relay/infrastructure/wire"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	server  *httptest.Server
	handler *relayws.Handler
	issuer  *auth.TokenIssuer
	service *services.ChatService
}

func newWsFixture(t *testing.T) wsFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)

	monitor := observability.NewMonitor(log)
	registry := runtime.NewRegistry(log)
	broadcaster := runtime.NewBroadcaster(log, registry, monitor, time.Second)
	registry.AddListener(broadcaster)
	messages := repositories.NewMessageRepository(db, log)
	relay := runtime.NewRelay(log, registry, messages, monitor, contract.ClockFunc(time.Now), time.Second, 0)
	service := services.NewChatService(registry, relay, broadcaster,
		services.NewHistoryService(messages), repositories.NewUserRepository(db), nil, monitor)

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	policy := origin.NewPolicy([]string{"http://allowed.test"}, log)
	handler := relayws.NewHandler(log, service, issuer, policy, 16, relayws.DefaultKeepAlive())
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		handler.Shutdown()
		server.Close()
		_ = db.Close()
	})
	return wsFixture{server: server, handler: handler, issuer: issuer, service: service}
}

func (f wsFixture) dial(t *testing.T, username string) *websocket.Conn {
	t.Helper()
	token, err := f.issuer.Generate(username)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := wire.Marshal(data)
	require.NoError(t, err)
	frame, err := wire.Marshal(wire.Frame{Event: event, Data: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// readUntil skips frames until one named event matches the predicate.
func readUntil(t *testing.T, conn *websocket.Conn, event string, match func(wire.Frame) bool) wire.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		frame, err := wire.DecodeFrame(data)
		require.NoError(t, err)
		if frame.Event == event && (match == nil || match(frame)) {
			return frame
		}
	}
}

func usersEqual(expected ...string) func(wire.Frame) bool {
	return func(frame wire.Frame) bool {
		var users []string
		if err := wire.Unmarshal(frame.Data, &users); err != nil {
			return false
		}
		return strings.Join(users, ",") == strings.Join(expected, ",")
	}
}

func TestHandler_Refuses_Upgrade_Without_Valid_Token(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)

	resp, err := http.Get(f.server.URL)
	req.NoError(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(f.server.URL + "/?token=forged")
	req.NoError(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHandler_Refuses_Disallowed_Origin(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)
	token, err := f.issuer.Generate("alice")
	req.NoError(err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.test"}})
	req.Error(err)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://ALLOWED.test"}})
	req.NoError(err)
	_ = conn.Close()
}

func TestHandler_Private_Message_Round_Trip(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)

	// Given alice and bob both logged in
	alice := f.dial(t, "alice")
	send(t, alice, wire.LoginEvent, "alice")
	readUntil(t, alice, "users", usersEqual("alice"))
	bob := f.dial(t, "bob")
	send(t, bob, wire.LoginEvent, "bob")
	readUntil(t, alice, "users", usersEqual("alice", "bob"))
	readUntil(t, bob, "users", usersEqual("alice", "bob"))

	// When alice sends a private message to bob
	send(t, alice, wire.PrivateMessageEvent, wire.PrivateMessageRequest{To: "bob", Text: "hi bob"})

	// Then bob receives it and alice gets the same message back as ack
	pushed := readUntil(t, bob, "private message", nil)
	acked := readUntil(t, alice, "private message", nil)
	var pushedPayload, ackedPayload wire.MessagePayload
	req.NoError(wire.Unmarshal(pushed.Data, &pushedPayload))
	req.NoError(wire.Unmarshal(acked.Data, &ackedPayload))
	req.Equal("alice", pushedPayload.From)
	req.Equal("bob", pushedPayload.To)
	req.Equal("hi bob", pushedPayload.Text)
	req.Equal(pushedPayload, ackedPayload)
	req.NotEmpty(pushedPayload.ID)

	// And bob can read the conversation history
	send(t, bob, wire.GetMessagesEvent, wire.GetMessagesRequest{From: "bob", To: "alice"})
	history := readUntil(t, bob, "chat history", nil)
	var messages []wire.MessagePayload
	req.NoError(wire.Unmarshal(history.Data, &messages))
	req.Equal([]wire.MessagePayload{pushedPayload}, messages)
}

func TestHandler_Rejects_Login_As_Someone_Else(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)
	alice := f.dial(t, "alice")

	send(t, alice, wire.LoginEvent, "bob")

	frame := readUntil(t, alice, "error", nil)
	var payload wire.ErrorPayload
	req.NoError(wire.Unmarshal(frame.Data, &payload))
	req.Contains(payload.Message, "forbidden")
	req.Empty(f.service.OnlineUsers())
}

func TestHandler_Private_Message_Requires_Login(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)
	alice := f.dial(t, "alice")

	send(t, alice, wire.PrivateMessageEvent, wire.PrivateMessageRequest{To: "bob", Text: "hi"})

	frame := readUntil(t, alice, "error", nil)
	var payload wire.ErrorPayload
	req.NoError(wire.Unmarshal(frame.Data, &payload))
	req.Contains(payload.Message, "not logged in")
}

func TestHandler_Unknown_Event_Gets_Error_Frame(t *testing.T) {
	f := newWsFixture(t)
	alice := f.dial(t, "alice")

	send(t, alice, "dance", nil)

	readUntil(t, alice, "error", nil)
}

func TestHandler_Closing_Socket_Logs_Out(t *testing.T) {
	req := require.New(t)
	f := newWsFixture(t)

	// Given alice and bob online
	alice := f.dial(t, "alice")
	send(t, alice, wire.LoginEvent, "alice")
	readUntil(t, alice, "users", usersEqual("alice"))
	bob := f.dial(t, "bob")
	send(t, bob, wire.LoginEvent, "bob")
	readUntil(t, bob, "users", usersEqual("alice", "bob"))

	// When alice's socket closes
	req.NoError(alice.Close())

	// Then bob sees the snapshot without alice
	readUntil(t, bob, "users", usersEqual("bob"))
	req.Eventually(func() bool { return f.handler.Count() == 1 }, 3*time.Second, 10*time.Millisecond)
}
