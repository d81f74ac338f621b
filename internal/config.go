package internal

import "time"

// Config holds every recognized environment option for the relay server.
// The retention bound and the fetch limit default to 100 records.
type Config struct {
	MaxMessages int `env:"MAX_MESSAGES,default=100"`
	FetchLimit  int `env:"FETCH_LIMIT,default=100"`

	WsAddr     string `env:"WS_ADDR,default=:8080"`
	ApiAddr    string `env:"API_ADDR,default=:8081"`
	CorsOrigin string `env:"CORS_ORIGIN,default=*"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	WelcomeMessage string `env:"WELCOME_MESSAGE,default=Welcome to the relay"`
	SendBufferSize int    `env:"SEND_BUFFER_SIZE,default=256"`
	MaxFrameBytes  int64  `env:"MAX_FRAME_BYTES,default=4096"`

	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout     time.Duration `env:"PONG_TIMEOUT,default=60s"`
	PingInterval    time.Duration `env:"PING_INTERVAL,default=54s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	ReportInterval  time.Duration `env:"REPORT_INTERVAL,default=30s"`
}
