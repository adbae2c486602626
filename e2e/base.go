package e2e

import (
	"bytes"
	"chat-relay/infrastructure/grpc/client"
	"chat-relay/infrastructure/wire"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.HTTPAddr == "" || s.Config.GRPCAddr == "" {
		s.T().Skip("RELAY_HTTP_ADDR and RELAY_GRPC_ADDR are required against a running relay")
	}
}

func (s *BaseRelaySuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// NewUsername returns a fresh alphanumeric username so runs never collide.
func NewUsername(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// Register creates the account through the REST surface and returns its token.
func (s *BaseRelaySuite) Register(username string) string {
	body, err := wire.Marshal(map[string]string{"username": username, "password": "password123"})
	s.Require().NoError(err)
	resp, err := http.Post("http://"+s.Config.HTTPAddr+"/api/register", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var payload struct {
		Token string `json:"token"`
	}
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	s.Require().NoError(err)
	s.Require().NoError(wire.Unmarshal(buf.Bytes(), &payload))
	return payload.Token
}

// GetJSON calls an authenticated REST endpoint and decodes the answer into v.
func (s *BaseRelaySuite) GetJSON(token, path string, v any) int {
	r, err := http.NewRequest(http.MethodGet, "http://"+s.Config.HTTPAddr+path, nil)
	s.Require().NoError(err)
	r.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(r)
	s.Require().NoError(err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	s.Require().NoError(err)
	if resp.StatusCode == http.StatusOK && v != nil {
		s.Require().NoError(wire.Unmarshal(buf.Bytes(), v))
	}
	return resp.StatusCode
}

// Socket opens the event channel and logs in.
func (s *BaseRelaySuite) Socket(name, username, token string) *websocket.Conn {
	s.header(s.T(), name)
	u := url.URL{Scheme: "ws", Host: s.Config.HTTPAddr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err, "Failed to open websocket at "+u.String())
	s.Send(conn, wire.LoginEvent, username)
	return conn
}

func (s *BaseRelaySuite) Send(conn *websocket.Conn, event string, data any) {
	raw, err := wire.Marshal(data)
	s.Require().NoError(err)
	frame, err := wire.Marshal(wire.Frame{Event: event, Data: raw})
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, frame))
}

// Await reads frames until one named event shows up.
func (s *BaseRelaySuite) Await(conn *websocket.Conn, event string) wire.Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(10 * time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		s.Require().NoError(err)
		frame, err := wire.DecodeFrame(data)
		s.Require().NoError(err)
		if frame.Event == event {
			return frame
		}
	}
}

// GrpcConn initializes a gRPC connection with logging, colors, and JSON debugging
func (s *BaseRelaySuite) GrpcConn(t *testing.T, name string) *grpc.ClientConn {
	s.header(t, name)

	marshaler := protojson.MarshalOptions{
		UseProtoNames:   true,
		Multiline:       true,
		EmitUnpopulated: true,
	}

	conn, err := grpc.NewClient(s.Config.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			start := time.Now()
			err := invoker(ctx, method, req, reply, cc, opts...)

			logBuilder := strings.Builder{}
			fmt.Fprintf(&logBuilder, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(start))

			// Log full JSON request/response bodies if E2E_DEBUG_JSON is enabled
			if s.Config.DebugJSON {
				fmt.Fprintln(&logBuilder, "\nREQUEST:")
				fmt.Fprintln(&logBuilder, marshaler.Format(req.(proto.Message)))
				if err != nil {
					fmt.Fprintln(&logBuilder, "ERROR:", err)
				} else {
					fmt.Fprintln(&logBuilder, "RESPONSE:")
					fmt.Fprintln(&logBuilder, marshaler.Format(reply.(proto.Message)))
				}
			}
			t.Log(logBuilder.String())
			return err
		}),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GRPCAddr)
	return conn
}

// WithPresence provides a PresenceService client within a contextual test step
func (s *BaseRelaySuite) WithPresence(name, token string, fn func(ctx context.Context, presence *client.PresenceClient)) {
	conn := s.GrpcConn(s.T(), name)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fn(ctx, client.NewPresenceClient(conn, token))
}
