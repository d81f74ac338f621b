//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
)

const keyPrefix = "msg:"

// MessageRepository is the bounded, time-ordered log of accepted records.
// Keys are formatted as "msg:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages are accepted at the same nanosecond.
//
// A single repository-level mutex serializes the insert-then-trim cycle so
// two concurrent trims can never delete overlapping or insufficient sets.
type MessageRepository struct {
	db          *badger.DB
	log         *slog.Logger
	maxMessages int

	mu       sync.Mutex
	lastNano int64
}

// NewMessageRepository wires a repository over an open badger handle.
// maxMessages <= 0 disables trimming.
func NewMessageRepository(db *badger.DB, log *slog.Logger, maxMessages int) *MessageRepository {
	return &MessageRepository{db: db, log: log, maxMessages: maxMessages}
}

// Append validates and persists a candidate, then trims overflow in the same
// transaction. Either the stored record exists and is queryable afterwards,
// or nothing was applied. Validation failures pass through untouched;
// anything from the backing store is wrapped in ErrStorage.
func (m *MessageRepository) Append(c domain.Candidate) (domain.Message, error) {
	msg, err := domain.Accept(c)
	if err != nil {
		return domain.Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Records accepted by this instance are totally ordered by timestamp:
	// a clock reading at or before the previous acceptance is nudged
	// forward one nanosecond.
	nano := msg.At.UnixNano()
	if nano <= m.lastNano {
		nano = m.lastNano + 1
		msg.At = time.Unix(0, nano).UTC()
	}
	m.lastNano = nano

	value, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key(msg)), value); err != nil {
			return err
		}
		return m.trim(txn)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return msg, nil
}

// trim deletes exactly the excess oldest keys so that the retention bound
// holds when the surrounding transaction commits. It runs inside the same
// transaction as the insert, under the repository mutex.
func (m *MessageRepository) trim(txn *badger.Txn) error {
	if m.maxMessages <= 0 {
		return nil
	}

	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	prefix := []byte(keyPrefix)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}

	excess := len(keys) - m.maxMessages
	if excess <= 0 {
		return nil
	}
	m.log.Debug("Trimming oldest records", "excess", excess, "max", m.maxMessages)
	for _, k := range keys[:excess] {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ListRecent returns up to limit most recent records, oldest first. Thanks
// to the padded timestamp in the key, a reverse prefix scan yields the most
// recent records, which are then flipped back into ascending order.
func (m *MessageRepository) ListRecent(limit int) ([]domain.Message, error) {
	var values [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(keyPrefix)
		// Seek past every possible timestamp to land on the newest key.
		seekKey := append([]byte(keyPrefix), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(values) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				values = append(values, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	messages := make([]domain.Message, 0, len(values))
	for _, b := range values {
		var msg domain.Message
		if err = json.Unmarshal(b, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
		}
		messages = append(messages, msg)
	}
	return lo.Reverse(messages), nil
}

// Clear deletes all records. Used by the administrative reset path.
func (m *MessageRepository) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return nil
}

// Health is a cheap liveness probe: open a read transaction and touch the
// keyspace.
func (m *MessageRepository) Health() error {
	if m.db.IsClosed() {
		return fmt.Errorf("%w: database closed", errors.ErrStorage)
	}
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefix + "probe"))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return nil
}

func key(msg domain.Message) string {
	return fmt.Sprintf("%s%019d:%s", keyPrefix, msg.At.UnixNano(), msg.ID)
}
