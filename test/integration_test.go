package test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
)

// Config holds the scenario tunables, overridable from the environment.
type Config struct {
	MaxMessages int `envconfig:"SCENARIO_MAX_MESSAGES" default:"5"`
	Clients     int `envconfig:"SCENARIO_CLIENTS" default:"3"`
	Posted      int `envconfig:"SCENARIO_POSTED" default:"12"`
}

type stack struct {
	wsServer  *httptest.Server
	apiServer *httptest.Server
	hub       *runtime.Hub
}

func newStack(t *testing.T, maxMessages int) stack {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	monitoring := observability.NewMonitoringManager(log)
	hub := runtime.NewHub(log, monitoring, "welcome to the relay")
	store := repositories.NewMessageRepository(db, log, maxMessages)
	service := services.NewChatService(log, store, hub, monitoring)

	timeouts := ws.Timeouts{Write: time.Second, Pong: 5 * time.Second, PingInterval: 4 * time.Second}
	wsServer := httptest.NewServer(ws.NewHandler(log, hub, service, "*", 64, 4096, timeouts))
	apiServer := httptest.NewServer(httpapi.New(log, service, monitoring, 100, "*").Router())
	t.Cleanup(wsServer.Close)
	t.Cleanup(apiServer.Close)
	return stack{wsServer: wsServer, apiServer: apiServer, hub: hub}
}

// Test_Scenario exercises the full path: clients join over websocket, a
// producer posts through the HTTP surface, every live client receives the
// fan-out, and the log stays bounded for late joiners.
func Test_Scenario(t *testing.T) {
	req := require.New(t)

	var cfg Config
	req.NoError(envconfig.Process("", &cfg))

	st := newStack(t, cfg.MaxMessages)

	// 1. Connect the clients and drain their welcome notices.
	conns := make([]*websocket.Conn, 0, cfg.Clients)
	for i := 0; i < cfg.Clients; i++ {
		url := "ws" + strings.TrimPrefix(st.wsServer.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		req.NoError(err)
		t.Cleanup(func() { _ = conn.Close() })
		readFrame(t, conn) // welcome
		conns = append(conns, conn)
	}
	req.Equal(cfg.Clients, st.hub.Len())

	// 2. Post messages through the HTTP surface.
	for i := 0; i < cfg.Posted; i++ {
		body := fmt.Sprintf(`{"user":"producer","text":"message %d"}`, i)
		resp, err := http.Post(st.apiServer.URL+"/messages", "application/json", strings.NewReader(body))
		req.NoError(err)
		req.Equal(http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	}

	// 3. Every live client received every broadcast, in posting order.
	for _, conn := range conns {
		for i := 0; i < cfg.Posted; i++ {
			frame := readFrame(t, conn)
			req.Equal(domain.FrameChatMessage, frame.Type)
			var msg domain.Message
			req.NoError(json.Unmarshal(frame.Payload, &msg))
			req.Equal(fmt.Sprintf("message %d", i), msg.Text)
		}
	}

	// 4. A late joiner's bootstrap catch-up is bounded by the retention
	// window and holds exactly the most recent records.
	resp, err := http.Get(st.apiServer.URL + "/messages")
	req.NoError(err)
	defer resp.Body.Close()

	var recent []domain.Message
	req.NoError(json.NewDecoder(resp.Body).Decode(&recent))
	req.Len(recent, cfg.MaxMessages)
	req.Equal(fmt.Sprintf("message %d", cfg.Posted-cfg.MaxMessages), recent[0].Text)
	req.Equal(fmt.Sprintf("message %d", cfg.Posted-1), recent[len(recent)-1].Text)
}

func readFrame(t *testing.T, conn *websocket.Conn) domain.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f domain.Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}
