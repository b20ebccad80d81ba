// Package protocol defines the JSON signaling messages exchanged over the relay transport.
package protocol

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client -> server commands.
const (
	TypeJoinRoom = "join-room"
	TypeSignal   = "signal"
	TypeLeave    = "leave"
	TypePing     = "ping"
)

// Server -> client events. TypeSignal is used in both directions.
const (
	TypeJoined     = "joined"
	TypePeerJoined = "peer-joined"
	TypePeerLeft   = "peer-left"
	TypeLeft       = "left"
	TypePong       = "pong"
	TypeError      = "error"
)

// Command is what a client sends. Payload is opaque and never inspected.
// ID is optional; replies to the command echo it in Event.ReplyTo.
type Command struct {
	ID      string              `json:"id,omitempty"`
	Type    string              `json:"type"`
	Room    string              `json:"room,omitempty"`
	UserID  string              `json:"user_id,omitempty"`
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
}

// Event is what the server sends.
type Event struct {
	Type    string              `json:"type"`
	Room    string              `json:"room,omitempty"`
	SID     string              `json:"sid,omitempty"`
	UserID  string              `json:"user_id,omitempty"`
	Sender  string              `json:"sender,omitempty"`
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
	Error   string              `json:"error,omitempty"`
	ReplyTo string              `json:"reply_to,omitempty"`
}

func DecodeCommand(data []byte) (Command, error) {
	var c Command
	err := json.Unmarshal(data, &c)
	return c, err
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}

// Encode marshals any protocol message.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MustEncode is for messages built from known-good values.
func MustEncode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func PeerJoined(userID string) Event { return Event{Type: TypePeerJoined, UserID: userID} }

func PeerLeft(userID string) Event { return Event{Type: TypePeerLeft, UserID: userID} }

func Signal(sender string, payload []byte) Event {
	return Event{Type: TypeSignal, Sender: sender, Payload: payload}
}

func Error(msg string) Event { return Event{Type: TypeError, Error: msg} }
