package session

import (
	"encoding/json"
	"fmt"
)

// Push message types
const (
	TypeList   = "list"
	TypeReload = "reload"
)

// ListMessage carries the sorted names of the available shaders.
type ListMessage struct {
	Type  string   `json:"type"`
	Frags []string `json:"frags"`
}

// ReloadMessage asks the client to re-request its selected shader.
type ReloadMessage struct {
	Type string `json:"type"`
}

func newListMessage(frags []string) ListMessage {
	if frags == nil {
		frags = []string{}
	}
	return ListMessage{Type: TypeList, Frags: frags}
}

func newReloadMessage() ReloadMessage {
	return ReloadMessage{Type: TypeReload}
}

// PickMessage is the only message a client sends.
type PickMessage struct {
	Pick *string `json:"pick"`
}

// ProtocolError reports an inbound client message that could not be understood.
// The message is dropped; the session carries on.
type ProtocolError struct {
	Raw string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed client message %q: %v", e.Raw, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func parsePick(raw []byte) (string, error) {
	var msg PickMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", &ProtocolError{Raw: string(raw), Err: err}
	}
	if msg.Pick == nil {
		return "", &ProtocolError{Raw: string(raw), Err: fmt.Errorf("missing pick")}
	}
	return *msg.Pick, nil
}
