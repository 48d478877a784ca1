package domain

import "encoding/json"

// Payload wraps an opaque JSON document attached to an event or envelope.
// Bytes are cloned on the way in and out so shared state cannot be mutated.
// The zero value is "not set"; NewPayload(nil) is defined but empty.
type Payload struct {
	defined bool
	raw     json.RawMessage
}

// NewPayload builds a payload wrapper around raw JSON.
func NewPayload(raw json.RawMessage) Payload {
	p := Payload{defined: true}
	if raw != nil {
		p.raw = cloneRaw(raw)
	}
	return p
}

// PayloadFromValue marshals a typed value into a Payload.
func PayloadFromValue[T any](value T) (Payload, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Payload{}, err
	}
	return NewPayload(raw), nil
}

// Defined reports whether the payload has been set at all.
func (p Payload) Defined() bool { return p.defined }

// IsEmpty reports whether the payload carries no bytes.
func (p Payload) IsEmpty() bool { return !p.defined || len(p.raw) == 0 }

// Raw returns a cloned copy of the underlying JSON, or nil when unset/empty.
func (p Payload) Raw() json.RawMessage {
	if !p.defined || len(p.raw) == 0 {
		return nil
	}
	return cloneRaw(p.raw)
}

// Decode unmarshals the payload into out. Decoding an unset payload is a no-op.
func (p Payload) Decode(out any) error {
	if p.IsEmpty() {
		return nil
	}
	return json.Unmarshal(p.raw, out)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}
