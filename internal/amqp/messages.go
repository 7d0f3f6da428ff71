package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"bilan/internal/core"
)

// Reasons carried by PeriodChangedMessage.
const (
	ReasonItems    = "items"
	ReasonRevenues = "revenues"
)

// PeriodChangedMessage tells consumers that an owner's data for one period
// changed. It carries no payload; consumers re-read the store.
type PeriodChangedMessage struct {
	OwnerID   string    `json:"ownerId"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPeriodChangedMessage(ownerID string, p core.Period, reason string) *PeriodChangedMessage {
	return &PeriodChangedMessage{
		OwnerID:   ownerID,
		Year:      p.Year,
		Month:     p.Month,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

func (m *PeriodChangedMessage) Period() core.Period {
	return core.NewPeriod(m.Year, m.Month)
}

func (m *PeriodChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PeriodChangedMessageFromJSON decodes and validates a message body.
func PeriodChangedMessageFromJSON(data []byte) (*PeriodChangedMessage, error) {
	var msg PeriodChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("period changed message: %w", core.ErrEmptyOwner)
	}
	if err := msg.Period().Validate(); err != nil {
		return nil, fmt.Errorf("period changed message: %w", err)
	}
	return &msg, nil
}
