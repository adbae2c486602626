package wire

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEncodeEvent_Users(t *testing.T) {
	req := require.New(t)

	data, err := EncodeEvent(event.Users{Identities: []domain.Identity{"alice", "bob"}})

	req.NoError(err)
	req.JSONEq(`{"event":"users","data":["alice","bob"]}`, string(data))
}

func TestEncodeEvent_Empty_Snapshot_Is_An_Array(t *testing.T) {
	req := require.New(t)

	data, err := EncodeEvent(event.Users{})

	req.NoError(err)
	req.JSONEq(`{"event":"users","data":[]}`, string(data))
}

func TestEncodeEvent_PrivateMessage(t *testing.T) {
	req := require.New(t)
	id := uuid.MustParse("0190f6a4-0000-7000-8000-000000000001")
	createdAt := time.Date(2024, 3, 1, 10, 4, 5, 123, time.UTC)

	data, err := EncodeEvent(event.PrivateMessage{Message: domain.Message{
		ID: id, From: "alice", To: "bob", Text: "hi", CreatedAt: createdAt,
	}})

	req.NoError(err)
	frame, err := DecodeFrame(data)
	req.NoError(err)
	req.Equal("private message", frame.Event)

	var payload MessagePayload
	req.NoError(Unmarshal(frame.Data, &payload))
	req.Equal(id.String(), payload.ID)
	req.Equal("alice", payload.From)
	req.Equal("bob", payload.To)
	req.Equal("hi", payload.Text)
	req.Equal("2024-03-01T10:04:05.000000123Z", payload.CreatedAt)
	req.Equal(createdAt.Local().Format("15:04:05"), payload.Time)
}

func TestEncodeEvent_History_And_Failure(t *testing.T) {
	req := require.New(t)

	data, err := EncodeEvent(event.ChatHistory{})
	req.NoError(err)
	req.JSONEq(`{"event":"chat history","data":[]}`, string(data))

	data, err = EncodeEvent(event.Failure{Message: "forbidden"})
	req.NoError(err)
	req.JSONEq(`{"event":"error","data":{"message":"forbidden"}}`, string(data))
}

func TestDecodeFrame(t *testing.T) {
	req := require.New(t)

	frame, err := DecodeFrame([]byte(`{"event":"private message","data":{"to":"bob","text":"hi"}}`))
	req.NoError(err)
	var pm PrivateMessageRequest
	req.NoError(Unmarshal(frame.Data, &pm))
	req.Equal(PrivateMessageRequest{To: "bob", Text: "hi"}, pm)

	frame, err = DecodeFrame([]byte(`{"event":"get users"}`))
	req.NoError(err)
	req.Equal("get users", frame.Event)
	req.Empty(frame.Data)

	_, err = DecodeFrame([]byte(`{"data":1}`))
	req.Error(err)

	_, err = DecodeFrame([]byte(`not json`))
	req.Error(err)
}
