package chat

import (
	"encoding/json"

	"campuschat/tools/decode"
	"campuschat/tools/errs"
)

// Wire event names. One WebSocket carries every event; the envelope is
// {"event": ..., "payload": ...}.
const (
	// client -> gateway
	EventAuth        = "auth"
	EventOnline      = "online"
	EventCreateGroup = "createGroup"
	EventJoinGroup   = "joinGroup"
	EventSendMessage = "sendMessage"
	EventSendFile    = "sendFile"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"

	// gateway -> client
	EventAuthOK         = "authOk"
	EventUpdateUsers    = "updateUsers"
	EventGroupCreated   = "groupCreated"
	EventReceiveMessage = "receiveMessage"
	EventMessageSent    = "messageSent"
	EventReceiveFile    = "receiveFile"
	EventFileSent       = "fileSent"
	EventError          = "error"
)

// Message status values. Status only ever moves sending -> sent.
const (
	StatusSending = "sending"
	StatusSent    = "sent"
)

// Message kinds.
const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// Frame is the wire envelope.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame marshals payload into an envelope.
func NewFrame(event string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, errs.ErrProtocol.WrapMsg("marshal payload", "event", event)
	}
	return Frame{Event: event, Payload: raw}, nil
}

// Identity is an authenticated participant. ProfileName is the preferred
// display name, Username the fallback handle.
type Identity struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	ProfileName string `json:"profileName,omitempty"`
}

func (i Identity) DisplayName() string {
	if i.ProfileName != "" {
		return i.ProfileName
	}
	return i.Username
}

// AuthPayload is the first frame a client sends after dialing.
type AuthPayload struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	ProfileName string `json:"profileName,omitempty"`
}

// FilePayload is an inline-encoded attachment body. Data is a data URL, so
// the message is self-contained with no external storage reference.
type FilePayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// Message is both the wire shape and the ledger entry. Immutable once
// appended except for Status.
type Message struct {
	ID          string       `json:"id"`
	Sender      string       `json:"sender"`
	SenderName  string       `json:"senderName,omitempty"`
	Receiver    string       `json:"receiver"`
	Body        string       `json:"message,omitempty"`
	File        *FilePayload `json:"file,omitempty"`
	MessageType string       `json:"messageType,omitempty"` // "file" when File is set
	Timestamp   int64        `json:"timestamp"`
	Kind        string       `json:"type"` // direct | group
	Status      string       `json:"status,omitempty"`
}

// IsFile reports whether the message carries an attachment body.
func (m *Message) IsFile() bool { return m.File != nil }

// CreateGroupPayload is the client-side creation request. GroupID is minted
// by the client; the gateway confirms or rejects it.
type CreateGroupPayload struct {
	GroupID   string   `json:"groupId"`
	GroupName string   `json:"groupName"`
	Members   []string `json:"members"`
}

// GroupCreatedPayload confirms a creation to every member.
type GroupCreatedPayload struct {
	GroupID string   `json:"groupId"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type JoinGroupPayload struct {
	GroupID string `json:"groupId"`
}

// AckPayload acknowledges a sendMessage back to its sender.
type AckPayload struct {
	Status  string  `json:"status"`
	Message Message `json:"message"`
}

// FileEchoPayload acknowledges a sendFile back to its sender (and delivers
// it to recipients via receiveFile).
type FileEchoPayload struct {
	Message Message `json:"message"`
}

// TypingPayload signals composition start. Best-effort, never persisted.
type TypingPayload struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// StopTypingPayload signals composition end. Receiver may be empty on the
// inbound side.
type StopTypingPayload struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver,omitempty"`
}

// ErrorPayload is a gateway-reported failure. Event names the outbound
// event that triggered it, when known.
type ErrorPayload struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
	GroupID string `json:"groupId,omitempty"`
}

// decodePayload unmarshals an object payload through the weak decoder, so
// numeric ids and float timestamps survive generic JSON.
func decodePayload[T any](raw json.RawMessage) (*T, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.ErrProtocol.WrapMsg("payload not an object", "err", err.Error())
	}
	out, err := decode.Struct[T](m)
	if err != nil {
		return nil, errs.ErrProtocol.WrapMsg(err.Error())
	}
	return out, nil
}

// decodeRoster handles the one array-shaped payload on the wire.
func decodeRoster(raw json.RawMessage) ([]Identity, error) {
	var roster []Identity
	if err := json.Unmarshal(raw, &roster); err != nil {
		return nil, errs.ErrProtocol.WrapMsg("bad roster payload", "err", err.Error())
	}
	return roster, nil
}
