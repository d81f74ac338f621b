package repositories

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Append_Then_ListRecent_Returns_Record(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), 100)

	stored, err := repository.Append(domain.Candidate{User: "Alice", Text: "hello"})
	req.NoError(err)

	fetched, err := repository.ListRecent(1)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal(stored, fetched[0])
}

func Test_Append_Rejects_Missing_Fields(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), 100)

	_, err := repository.Append(domain.Candidate{User: "", Text: "hello"})
	req.ErrorIs(err, errors.ErrEmptyUser)

	_, err = repository.Append(domain.Candidate{User: "Alice", Text: "   "})
	req.ErrorIs(err, errors.ErrEmptyText)

	fetched, err := repository.ListRecent(10)
	req.NoError(err)
	req.Empty(fetched)
}

func Test_Append_Truncates_User(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), 100)

	longUser := strings.Repeat("x", domain.MaxUserLen+30)
	stored, err := repository.Append(domain.Candidate{User: longUser, Text: "hello"})
	req.NoError(err)
	req.Equal(longUser[:domain.MaxUserLen], stored.User)
}

func Test_ListRecent_Is_Oldest_First(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), 100)

	var stored []domain.Message
	for _, user := range []string{"Alice", "Bob", "Clara"} {
		msg, err := repository.Append(domain.Candidate{User: user, Text: "this message will self destruct in 5 seconds"})
		req.NoError(err)
		stored = append(stored, msg)
	}

	fetched, err := repository.ListRecent(10)
	req.NoError(err)
	req.Equal(stored, fetched)
}

func Test_Trim_Keeps_Most_Recent(t *testing.T) {
	req := require.New(t)
	limit := 3
	repository := NewMessageRepository(openTestDB(t), slog.Default(), limit)

	var stored []domain.Message
	for i := 0; i < 10; i++ {
		msg, err := repository.Append(domain.Candidate{User: "Alice", Text: fmt.Sprintf("message %d", i)})
		req.NoError(err)
		stored = append(stored, msg)
	}

	fetched, err := repository.ListRecent(0)
	req.NoError(err)
	req.Equal(stored[len(stored)-limit:], fetched)
}

func Test_Concurrent_Appends_Respect_Bound(t *testing.T) {
	req := require.New(t)
	limit := 10
	repository := NewMessageRepository(openTestDB(t), slog.Default(), limit)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := repository.Append(domain.Candidate{
					User: fmt.Sprintf("user-%d", worker),
					Text: fmt.Sprintf("message %d", j),
				})
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	fetched, err := repository.ListRecent(0)
	req.NoError(err)
	req.Len(fetched, limit)
	for i := 1; i < len(fetched); i++ {
		req.True(fetched[i].At.After(fetched[i-1].At),
			"records must be strictly ordered by acceptance time")
	}
}

func Test_Clear_Removes_Everything(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), 100)

	_, err := repository.Append(domain.Candidate{User: "Alice", Text: "hello"})
	req.NoError(err)

	req.NoError(repository.Clear())

	fetched, err := repository.ListRecent(10)
	req.NoError(err)
	req.Empty(fetched)
}

func Test_Health_Reports_Closed_Database(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewMessageRepository(db, slog.Default(), 100)

	req.NoError(repository.Health())

	req.NoError(db.Close())
	req.ErrorIs(repository.Health(), errors.ErrStorage)
}
