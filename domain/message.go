// Package domain contains core concepts of the chat relay.
// This file defines Message records and acceptance rules.
// Messages are immutable once accepted; no runtime, network,
// or UI logic should be added here.
package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chat-relay/errors"
)

const (
	// MaxUserLen and MaxTextLen bound the stored fields. Longer input is
	// truncated at acceptance time, never rejected.
	MaxUserLen = 50
	MaxTextLen = 500
)

var validate = validator.New()

// Message represents one immutable accepted chat record.
type Message struct {
	ID   uuid.UUID `json:"id"`
	User string    `json:"user"`
	Text string    `json:"text"`
	At   time.Time `json:"timestamp"`
}

// Candidate is an inbound payload before acceptance. Fields are validated
// after whitespace trimming; both must be present and non-empty.
type Candidate struct {
	User string `json:"user" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// Accept validates and normalizes a candidate into a Message. The ID and
// timestamp are assigned here so that two records accepted by the same
// process sort consistently by (At, ID) through the storage key.
func Accept(c Candidate) (Message, error) {
	c.User = strings.TrimSpace(c.User)
	c.Text = strings.TrimSpace(c.Text)

	if err := validate.Struct(c); err != nil {
		if c.User == "" {
			return Message{}, errors.ErrEmptyUser
		}
		return Message{}, errors.ErrEmptyText
	}

	return Message{
		ID:   uuid.New(),
		User: truncate(c.User, MaxUserLen),
		Text: truncate(c.Text, MaxTextLen),
		At:   time.Now().UTC(),
	}, nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
