package channel

import (
	stdjson "encoding/json"
	"errors"
	"fmt"

	json "github.com/bytedance/sonic"
)

// ErrMalformedEnvelope is returned by DecodeEnvelope for frames that are not {"type": string, "data": any}.
var ErrMalformedEnvelope = errors.New("gamelink/channel: malformed envelope")

// Envelope is the wire unit: a kind discriminator plus an arbitrary JSON payload.
type Envelope struct {
	Type string  `json:"type"`
	Data Payload `json:"data"`
}

// Payload is the raw JSON value carried in an envelope's data field.
type Payload = stdjson.RawMessage

// Decode unmarshals a payload into v.
func Decode(p Payload, v any) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedEnvelope)
	}

	return json.Unmarshal(p, v)
}

// EncodeEnvelope serializes kind and payload into a JSON text frame.
func EncodeEnvelope(kind string, payload any) ([]byte, error) {
	if kind == "" {
		return nil, ErrEmptyKind
	}

	data, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: kind, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %q envelope: %w", kind, err)
	}

	return data, nil
}

// DecodeEnvelope parses a received frame. Anything that is not a JSON object
// with a non-empty string "type" is rejected with ErrMalformedEnvelope.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var raw struct {
		Type *string `json:"type"`
		Data Payload `json:"data"`
	}

	if err := json.Unmarshal(frame, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	if raw.Type == nil || *raw.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}

	return Envelope{Type: *raw.Type, Data: raw.Data}, nil
}
