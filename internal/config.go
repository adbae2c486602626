package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,required=true"`
	GRPCPort int    `env:"GRPC_PORT,required=true"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath   string `env:"BADGER_FILEPATH,required=true"`
	BadgerSyncWrites bool   `env:"BADGER_SYNC_WRITES,default=true"`
	BlugeFilepath    string `env:"BLUGE_FILEPATH,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=1s"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	IndexBufferSize      int           `env:"INDEX_BUFFER_SIZE,default=1024"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=10s"`
	ReportInterval       time.Duration `env:"REPORT_INTERVAL,default=1m"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	AllowedOrigins   string `env:"ALLOWED_ORIGINS,default=*"`
	EnableInspect    bool   `env:"ENABLE_INSPECT,default=false"`
	EnableModeration bool   `env:"ENABLE_MODERATION,default=true"`
	CharReplacement  string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	return strings.Split(c.AllowedOrigins, ",")
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

func (c Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must hold at least 16 characters")
	}
	if c.ConnectionBufferSize <= 0 || c.IndexBufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE and INDEX_BUFFER_SIZE must be positive")
	}
	if c.MaxContentLength < 0 {
		return fmt.Errorf("MAX_CONTENT_LENGTH must not be negative, got %d", c.MaxContentLength)
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
