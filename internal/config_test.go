package internal

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Unmarshal_Applies_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "3001")
	t.Setenv("GRPC_PORT", "3002")
	t.Setenv("BADGER_FILEPATH", "/tmp/badger")
	t.Setenv("BLUGE_FILEPATH", "/tmp/bluge")
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.NoError(config.Validate())
	req.Equal("0.0.0.0:3001", config.HTTPAddr())
	req.Equal(24*time.Hour, config.AuthTokenDuration)
	req.Equal(64, config.ConnectionBufferSize)
	req.True(config.BadgerSyncWrites)
	req.Equal([]string{"http://localhost:5173", "http://localhost:3000"}, config.Origins())
}

func TestConfig_Validate(t *testing.T) {
	req := require.New(t)
	config := Config{JWTSecret: "short", ConnectionBufferSize: 1, IndexBufferSize: 1}
	req.Error(config.Validate())

	config.JWTSecret = "0123456789abcdef"
	req.NoError(config.Validate())
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("##")
	req.Error(err)
}
