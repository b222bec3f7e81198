package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid order status")

func (s Status) String() string {
	return string(s)
}

func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case StatusPending.String():
		return StatusPending, nil
	case StatusPaid.String():
		return StatusPaid, nil
	case StatusCancelled.String():
		return StatusCancelled, nil
	default:
		return "", ErrInvalidStatus
	}
}

// UnmarshalJSON rejects unknown statuses at the decoding boundary so the
// service never sees a status outside the enum.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, err := ParseStatus(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	*s = parsed

	return nil
}
