package watcher

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/podping-watcher/internal/podping"
)

// EventEnvelope is published for every accepted podping. Consumers are
// expected to schedule each URL independently.
type EventEnvelope struct {
	ID            string         `json:"id"`
	Version       string         `json:"version"`
	Reason        podping.Reason `json:"reason"`
	Medium        podping.Medium `json:"medium,omitempty"`
	URLs          []string       `json:"urls"`
	Timestamp     time.Time      `json:"timestamp"`
	BlockNumber   uint64         `json:"block_number"`
	TransactionID string         `json:"transaction_id"`
	DecodedAt     time.Time      `json:"decoded_at"`
}

func newEnvelope(ev podping.PodpingEvent, now time.Time) EventEnvelope {
	return EventEnvelope{
		ID:            uuid.NewString(),
		Version:       ev.Version,
		Reason:        ev.Reason,
		Medium:        ev.Medium,
		URLs:          ev.URLs,
		Timestamp:     ev.Timestamp,
		BlockNumber:   ev.BlockNumber,
		TransactionID: ev.TransactionID,
		DecodedAt:     now.UTC(),
	}
}

func eventType(r podping.Reason) string {
	return "podping." + string(r)
}

func mediumLabel(m podping.Medium) string {
	if m == podping.MediumUnspecified {
		return "unspecified"
	}
	return string(m)
}
