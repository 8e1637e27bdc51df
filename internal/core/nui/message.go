// Package nui holds the envelope exchanged with the UI overlay layer.
package nui

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrEmptyAction = errors.New("nui message action is empty")
	ErrEmptyInput  = errors.New("nui message input is empty")
)

// Message is the {action, data} pair sent to and received from the UI layer.
type Message struct {
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

func New(action string, data any) Message {
	return Message{Action: action, Data: data}
}

// Encode serializes m. An empty indent yields the compact form
// {"action":"hud:update","data":{"hp":80}}.
func Encode(m Message, indent string) ([]byte, error) {
	if m.Action == "" {
		return nil, ErrEmptyAction
	}
	if indent == "" {
		return json.Marshal(m)
	}
	return json.MarshalIndent(m, "", indent)
}

// EncodeString is Encode returning a string, the form host UI channels take.
func EncodeString(m Message, indent string) (string, error) {
	b, err := Encode(m, indent)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a message. Data is decoded into generic JSON values
// (map[string]any, []any, float64, string, bool or nil).
func Decode(data []byte) (Message, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Message{}, ErrEmptyInput
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	if m.Action == "" {
		return Message{}, ErrEmptyAction
	}
	return m, nil
}

// Bind decodes the message data into out, e.g. a module-specific struct.
func (m Message) Bind(out any) error {
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
