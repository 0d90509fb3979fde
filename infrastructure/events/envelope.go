package events

import (
	"time"

	"github.com/google/uuid"
)

const Producer = "chatify"

type Meta struct {
	CorrelationId *string   `json:"correlationId,omitempty"`
	Id            string    `json:"id"`
	Producer      string    `json:"producer"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope stamps a lifecycle event with a fresh id. correlationId is
// typically the HTTP request id and may be empty.
func NewEnvelope(eventType, correlationId string, data any) Envelope {
	meta := Meta{
		Id:       uuid.NewString(),
		Producer: Producer,
		Time:     time.Now().UTC(),
		Type:     eventType,
	}
	if correlationId != "" {
		meta.CorrelationId = &correlationId
	}
	return Envelope{Meta: meta, Data: data}
}
