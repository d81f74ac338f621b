package runtime

import (
	"log/slog"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
)

// Hub is the in-memory registry of live sinks plus the fan-out operation.
//
// It provides best-effort delivery with no guarantees regarding remote
// acknowledgement, durability, or retries. The Hub is not a message broker.
//
// Membership mutations (Register, Unregister, implicit unregister on a
// failed send) are atomic with respect to broadcast snapshots, and
// broadcasts are serialized with respect to each other so two records
// accepted close together reach every still-connected sink in the same
// relative order.
//
// Hub is safe for concurrent use by multiple goroutines.
type Hub struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	welcome    string

	mu    sync.RWMutex
	sinks map[contract.EventSink]struct{}

	// fanoutMu makes Broadcast calls mutually exclusive without holding
	// the membership lock across sends.
	fanoutMu sync.Mutex
}

func NewHub(log *slog.Logger, monitoring *observability.MonitoringManager, welcome string) *Hub {
	return &Hub{
		log:        log,
		monitoring: monitoring,
		welcome:    welcome,
		sinks:      make(map[contract.EventSink]struct{}),
	}
}

// Register adds a sink to the live set. Registering the same sink twice is
// a no-op. The new sink immediately gets a one-time welcome notice;
// a failed welcome never unregisters.
func (h *Hub) Register(sink contract.EventSink) {
	h.mu.Lock()
	if _, exists := h.sinks[sink]; exists {
		h.mu.Unlock()
		return
	}
	h.sinks[sink] = struct{}{}
	total := len(h.sinks)
	h.mu.Unlock()

	h.monitoring.ConnectionOpened()
	h.log.Info("Sink registered", "total", total)

	if err := sink.Send(domain.EncodeSystem(h.welcome)); err != nil {
		h.log.Debug("Welcome notice lost", "err", err)
	}
}

// Unregister removes a sink from the live set. Removing an absent sink is
// not an error.
func (h *Hub) Unregister(sink contract.EventSink) {
	h.mu.Lock()
	_, exists := h.sinks[sink]
	if exists {
		delete(h.sinks, sink)
	}
	total := len(h.sinks)
	h.mu.Unlock()

	if exists {
		h.monitoring.ConnectionClosed()
		h.log.Info("Sink unregistered", "total", total)
	}
}

// Broadcast delivers msg to every sink in the live set at call entry. A
// sink found dead at send time is implicitly unregistered without aborting
// delivery to the remaining sinks. Broadcast returns after every delivery
// has been attempted; it never waits for remote acknowledgement.
func (h *Hub) Broadcast(msg domain.Message) {
	frame, err := domain.EncodeChat(msg)
	if err != nil {
		h.log.Error("Broadcast encoding failed", "err", err)
		return
	}

	h.fanoutMu.Lock()
	defer h.fanoutMu.Unlock()

	var failed []contract.EventSink
	for _, sink := range h.snapshot() {
		if err := sink.Send(frame); err != nil {
			h.log.Debug("Delivery failed, reaping sink", "err", err)
			h.monitoring.IncrFramesDropped()
			failed = append(failed, sink)
		}
	}
	for _, sink := range failed {
		h.Unregister(sink)
	}
	h.monitoring.IncrBroadcasts()
}

// Len reports the current live-set size.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

func (h *Hub) snapshot() []contract.EventSink {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(h.sinks))
	for sink := range h.sinks {
		sinks = append(sinks, sink)
	}
	return sinks
}
