package amqp

import (
	"encoding/json"
	"time"

	"ateria/internal/core"
)

// RecomputeSpanMessage asks the worker to rebuild every affected user's
// monthly entries for each month the date range touches, then each affected
// user's yearly entry once. It is deliberately small: the worker fetches
// current registrations and prices itself, so a stale message still produces
// a correct result.
type RecomputeSpanMessage struct {
	Start     core.Date `json:"start"`
	End       core.Date `json:"end"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecomputeSpanMessage creates a recompute request for an inclusive date
// range. Reason is free text for operators (e.g. the triggering rule id).
func NewRecomputeSpanMessage(start, end core.Date, reason string) *RecomputeSpanMessage {
	return &RecomputeSpanMessage{
		Start:     start,
		End:       end,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecomputeSpanMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecomputeSpanMessageFromJSON creates a message from JSON bytes
func RecomputeSpanMessageFromJSON(data []byte) (*RecomputeSpanMessage, error) {
	var msg RecomputeSpanMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
