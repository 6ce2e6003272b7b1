// Package transport carries session commands and events as typed JSON
// envelopes, framed for the browser native-messaging protocol.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rendis/leadtap/internal/engine/session"
	"github.com/rendis/leadtap/internal/model"
)

// Kind is the envelope discriminator.
type Kind string

const (
	KindStart    Kind = "START_SCRAPING"
	KindStop     Kind = "STOP_SCRAPING"
	KindProgress Kind = "SCRAPE_PROGRESS"
	KindDone     Kind = "SCRAPE_DONE"
	KindError    Kind = "ERROR"
	KindStatus   Kind = "GET_STATUS"
	KindStatusOK Kind = "STATUS_RESPONSE"
	KindClear    Kind = "CLEAR_DATA"
)

func (k Kind) known() bool {
	switch k {
	case KindStart, KindStop, KindProgress, KindDone, KindError, KindStatus, KindStatusOK, KindClear:
		return true
	}
	return false
}

var ErrUnknownKind = errors.New("unknown message type")

type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ProgressPayload struct {
	Count   int          `json:"count"`
	Status  model.Status `json:"status"`
	Message string       `json:"message,omitempty"`
}

type DonePayload struct {
	Total int `json:"total"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// New builds an envelope of kind k. A nil payload is omitted.
func New(k Kind, payload any) (Envelope, error) {
	env := Envelope{Type: k}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", k, err)
	}
	env.Payload = raw
	return env, nil
}

// Encode serializes an envelope of kind k.
func Encode(k Kind, payload any) ([]byte, error) {
	env, err := New(k, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode parses one envelope and rejects unknown kinds.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if !env.Type.known() {
		return Envelope{}, fmt.Errorf("%w %q", ErrUnknownKind, env.Type)
	}
	return env, nil
}

// Into decodes the payload into v.
func (e Envelope) Into(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: decoding payload: %w", e.Type, err)
	}
	return nil
}

// FromEvent maps a session event to its wire envelope.
func FromEvent(e session.Event) Envelope {
	switch e.Kind {
	case session.EventDone:
		return mustNew(KindDone, DonePayload{Total: e.Total})
	case session.EventError:
		return mustNew(KindError, ErrorPayload{Message: e.Message})
	default:
		return mustNew(KindProgress, ProgressPayload{Count: e.Count, Status: e.Status})
	}
}

func errorEnvelope(msg string) Envelope {
	return mustNew(KindError, ErrorPayload{Message: msg})
}

// mustNew is for the fixed payload structs above, which always marshal.
func mustNew(k Kind, payload any) Envelope {
	env, err := New(k, payload)
	if err != nil {
		panic(err)
	}
	return env
}
