package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Reasons a mirror run is requested.
const (
	ReasonDashboardRefresh = "dashboard_refresh"
	ReasonManual           = "manual"
)

// MirrorRequest asks the worker to copy the attendance sheet into the local
// mirror. It carries no data: the worker always reads the whole sheet.
type MirrorRequest struct {
	Reason    string    `json:"reason"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var ErrInvalidMessage = errors.New("invalid mirror request")

// NewMirrorRequest creates a request stamped with the current time.
func NewMirrorRequest(reason, requestID string) *MirrorRequest {
	return &MirrorRequest{
		Reason:    reason,
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MirrorRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Age returns how long ago the request was made.
func (m *MirrorRequest) Age(now time.Time) time.Duration {
	return now.Sub(m.Timestamp)
}

// MirrorRequestFromJSON decodes and validates a message body.
func MirrorRequestFromJSON(data []byte) (*MirrorRequest, error) {
	var msg MirrorRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	if strings.TrimSpace(msg.Reason) == "" {
		return nil, errors.Join(ErrInvalidMessage, errors.New("missing reason"))
	}
	if msg.Timestamp.IsZero() {
		return nil, errors.Join(ErrInvalidMessage, errors.New("missing timestamp"))
	}
	return &msg, nil
}
