//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live connection's outbound delivery path. Send must not
// block indefinitely: implementations buffer internally and report a failed
// or dead connection through the returned error, which is the hub's sole
// trigger for implicit unregistration.
type EventSink interface {
	Send(frame []byte) error
}

type IHub interface {
	Register(sink EventSink)
	Unregister(sink EventSink)
	Broadcast(msg domain.Message)
	Len() int
}

type IMessageStore interface {
	Append(c domain.Candidate) (domain.Message, error)
	ListRecent(limit int) ([]domain.Message, error)
	Clear() error
	Health() error
}
