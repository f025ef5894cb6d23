package enums

import "fmt"

// ReservationStatus tracks the lifecycle of a stock hold.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationExpired   ReservationStatus = "expired"
	ReservationReleased  ReservationStatus = "released"
)

var validReservationStatuses = []ReservationStatus{
	ReservationActive,
	ReservationConfirmed,
	ReservationExpired,
	ReservationReleased,
}

// IsValid reports whether the value matches a known reservation status.
func (s ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationConfirmed, ReservationExpired, ReservationReleased:
		return true
	case ReservationActive:
		return false
	default:
		return false
	}
}

// ParseReservationStatus converts raw input into ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
