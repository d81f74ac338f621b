//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
)

type IChatService interface {
	PostMessage(c domain.Candidate) (domain.Message, error)
	Recent(limit int) ([]domain.Message, error)
	Reset() error
	Health() error
}

// ChatService ties the store and the hub together: an accepted record is
// persisted (and overflow trimmed) before it is fanned out to live sinks.
type ChatService struct {
	log        *slog.Logger
	store      contract.IMessageStore
	hub        contract.IHub
	monitoring *observability.MonitoringManager
}

func NewChatService(log *slog.Logger, store contract.IMessageStore, hub contract.IHub, monitoring *observability.MonitoringManager) *ChatService {
	return &ChatService{log: log, store: store, hub: hub, monitoring: monitoring}
}

// PostMessage appends a candidate to the log and broadcasts the stored
// record. Validation and storage failures surface to the caller without
// reaching any live sink.
func (s *ChatService) PostMessage(c domain.Candidate) (domain.Message, error) {
	msg, err := s.store.Append(c)
	if err != nil {
		s.monitoring.IncrFramesRejected()
		return domain.Message{}, err
	}
	s.monitoring.IncrMessagesStored()
	s.hub.Broadcast(msg)
	return msg, nil
}

// Recent serves the bootstrap catch-up query, oldest first.
func (s *ChatService) Recent(limit int) ([]domain.Message, error) {
	return s.store.ListRecent(limit)
}

// Reset deletes all stored records.
func (s *ChatService) Reset() error {
	s.log.Warn("Administrative reset: dropping all records")
	return s.store.Clear()
}

// Health probes the backing store.
func (s *ChatService) Health() error {
	return s.store.Health()
}
