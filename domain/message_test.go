package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

func Test_Accept_Assigns_Id_And_Timestamp(t *testing.T) {
	req := require.New(t)
	msg, err := Accept(Candidate{User: "Alice", Text: "hello there"})
	req.NoError(err)
	req.NotEqual("00000000-0000-0000-0000-000000000000", msg.ID.String())
	req.False(msg.At.IsZero())
	req.Equal("Alice", msg.User)
	req.Equal("hello there", msg.Text)
}

func Test_Accept_Rejects_Missing_Fields(t *testing.T) {
	req := require.New(t)

	_, err := Accept(Candidate{User: "", Text: "hi"})
	req.ErrorIs(err, errors.ErrEmptyUser)

	_, err = Accept(Candidate{User: "   ", Text: "hi"})
	req.ErrorIs(err, errors.ErrEmptyUser)

	_, err = Accept(Candidate{User: "Alice", Text: "  "})
	req.ErrorIs(err, errors.ErrEmptyText)
}

func Test_Accept_Truncates_Long_Fields(t *testing.T) {
	req := require.New(t)
	longUser := strings.Repeat("u", MaxUserLen+20)
	longText := strings.Repeat("t", MaxTextLen+200)

	msg, err := Accept(Candidate{User: longUser, Text: longText})
	req.NoError(err)
	req.Equal(longUser[:MaxUserLen], msg.User)
	req.Equal(longText[:MaxTextLen], msg.Text)
}

func Test_DecodeChat_Rejects_Invalid_Json(t *testing.T) {
	req := require.New(t)
	_, err := DecodeChat([]byte("not valid json"))
	req.ErrorIs(err, errors.ErrDecode)
}

func Test_DecodeChat_Rejects_Unknown_Type(t *testing.T) {
	req := require.New(t)
	_, err := DecodeChat([]byte(`{"type":"ping","payload":{}}`))
	req.ErrorIs(err, errors.ErrDecode)
}

func Test_DecodeChat_Rejects_Non_Object_Payload(t *testing.T) {
	req := require.New(t)
	_, err := DecodeChat([]byte(`{"type":"chat-message","payload":"hi"}`))
	req.ErrorIs(err, errors.ErrDecode)
}

func Test_DecodeChat_Accepts_Chat_Message(t *testing.T) {
	req := require.New(t)
	c, err := DecodeChat([]byte(`{"type":"chat-message","payload":{"user":"a","text":"hi"}}`))
	req.NoError(err)
	req.Equal(Candidate{User: "a", Text: "hi"}, c)
}
