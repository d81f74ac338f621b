package domain

import (
	"encoding/json"
	"fmt"

	"chat-relay/errors"
)

// Frame types exchanged with clients. Every frame on the wire is a tagged
// object {type, payload}.
const (
	FrameChatMessage   = "chat-message"
	FrameSystemMessage = "system-message"
	FrameError         = "error"
)

// Frame is the wire envelope for both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type notice struct {
	Message string `json:"message"`
}

// DecodeChat parses an inbound frame into a Candidate. Undecodable bytes,
// an unrecognized type, or a payload that is not an object all yield an
// error wrapping ErrDecode; the caller reports it to the originating
// connection only.
func DecodeChat(raw []byte) (Candidate, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Candidate{}, fmt.Errorf("%w: invalid JSON", errors.ErrDecode)
	}
	if f.Type != FrameChatMessage {
		return Candidate{}, fmt.Errorf("%w: unknown type %q", errors.ErrDecode, f.Type)
	}
	var c Candidate
	if err := json.Unmarshal(f.Payload, &c); err != nil {
		return Candidate{}, fmt.Errorf("%w: payload must be an object with user and text", errors.ErrDecode)
	}
	return c, nil
}

// EncodeChat wraps an accepted record for fan-out.
func EncodeChat(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: FrameChatMessage, Payload: payload})
}

// EncodeSystem builds a system-message frame (welcome notice on connect).
func EncodeSystem(message string) []byte {
	return mustEncode(FrameSystemMessage, message)
}

// EncodeError builds a local error notice for one connection.
func EncodeError(message string) []byte {
	return mustEncode(FrameError, message)
}

func mustEncode(frameType, message string) []byte {
	payload, _ := json.Marshal(notice{Message: message})
	b, _ := json.Marshal(Frame{Type: frameType, Payload: payload})
	return b
}
