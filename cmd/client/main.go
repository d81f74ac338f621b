package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/domain"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL   string        `env:"CHAT_SERVER_URL,default=ws://localhost:8080/ws"`
	User        string        `env:"CHAT_USER,default=anonymous"`
	LogLevel    string        `env:"LOG_LEVEL,default=INFO"`
	DialRetries int           `env:"DIAL_RETRIES,default=5"`
	DialBackoff time.Duration `env:"DIAL_BACKOFF,default=2s"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle: configuration loading, dialing
// with backoff, and the two loops (stdin -> frames, frames -> terminal).
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Dial the hub; reconnection with backoff is the client's concern.
	conn, err := dial(ctx, config)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	color.Greenln(">>> Connected to", config.ServerURL, "as", config.User, "(Ctrl+C to quit)")

	// 4. Composition loop: one stdin line = one chat-message frame.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			frame, err := encodeChatFrame(config.User, text)
			if err != nil {
				log.Error("Encoding failed", "err", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error("Send failed", "err", err)
				return
			}
		}
	}()

	go func() {
		// Unblock the read loop when a signal arrives.
		<-ctx.Done()
		_ = conn.Close()
	}()

	// 5. Reception loop: runs until the context is canceled or the server
	// closes the connection.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Stopping client...")
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		}
		render(raw)
	}
}

func dial(ctx context.Context, config Config) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 0; attempt <= config.DialRetries; attempt++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(config.DialBackoff):
		}
	}
	return nil, fmt.Errorf("could not connect to server at %s: %w", config.ServerURL, lastErr)
}

func encodeChatFrame(user, text string) ([]byte, error) {
	payload, err := json.Marshal(domain.Candidate{User: user, Text: text})
	if err != nil {
		return nil, err
	}
	return json.Marshal(domain.Frame{Type: domain.FrameChatMessage, Payload: payload})
}

// render prints one inbound frame with a color per frame type.
func render(raw []byte) {
	var f domain.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		color.Redln("(unreadable frame)")
		return
	}

	switch f.Type {
	case domain.FrameChatMessage:
		var msg domain.Message
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			color.Redln("(unreadable chat message)")
			return
		}
		fmt.Printf("[%s] %s: %s\n", msg.At.Format(time.TimeOnly), color.Cyan.Sprint(msg.User), msg.Text)
	case domain.FrameSystemMessage:
		color.Yellowln("*", noticeText(f.Payload))
	case domain.FrameError:
		color.Redln("!", noticeText(f.Payload))
	default:
		color.Grayln("(unknown frame type)", f.Type)
	}
}

func noticeText(payload json.RawMessage) string {
	var notice struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &notice); err != nil {
		return "(unreadable notice)"
	}
	return notice.Message
}
