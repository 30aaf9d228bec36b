package registry

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/payloads"
)

type Decoder func(payload json.RawMessage) (any, error)

type versionedType struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps an event type and envelope version onto the payload
// struct consumers expect. It is filled once at startup and read-only after.
type DecoderRegistry struct {
	decoders map[versionedType]Decoder
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[versionedType]Decoder{}}
}

// NewOrderDecoders knows every order event version currently emitted.
func NewOrderDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderCreated, 1, jsonDecoder[payloads.OrderCreatedEvent]())
	return reg
}

// jsonDecoder decodes into a fresh *T.
func jsonDecoder[T any]() Decoder {
	return func(payload json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode Decoder) {
	r.decoders[versionedType{eventType, version}] = decode
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	decode, ok := r.decoders[versionedType{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decode(payload)
}
