package sale

import "fmt"

// Status is the sale lifecycle state.
type Status int

const (
	// StatusActive accepts purchases.
	StatusActive Status = iota

	// StatusPaused blocks purchases until resumed.
	StatusPaused

	// StatusCompleted is terminal: supply is exhausted or the owner
	// closed the sale early. Unit transfers unlock here.
	StatusCompleted
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus parses a status name produced by String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "paused":
		return StatusPaused, nil
	case "completed":
		return StatusCompleted, nil
	default:
		return 0, fmt.Errorf("sale: unknown status %q", s)
	}
}
