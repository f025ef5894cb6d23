package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateProduct     OutboxAggregateType = "product"
	AggregateReservation OutboxAggregateType = "reservation"
	AggregateCoupon      OutboxAggregateType = "coupon"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateProduct,
	AggregateReservation,
	AggregateCoupon,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event persisted to the outbox.
type OutboxEventType string

const (
	EventStockLow             OutboxEventType = "stock_low"
	EventReservationConfirmed OutboxEventType = "reservation_confirmed"
	EventCouponRedeemed       OutboxEventType = "coupon_redeemed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventStockLow,
	EventReservationConfirmed,
	EventCouponRedeemed,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDeadLetterReason records why the publisher gave up on an event.
type OutboxDeadLetterReason string

const (
	// DeadLetterExhausted means every retry failed; replaying may succeed.
	DeadLetterExhausted OutboxDeadLetterReason = "max_attempts"
	// DeadLetterRejected means the event can never be delivered as stored.
	DeadLetterRejected OutboxDeadLetterReason = "non_retryable"
)

// Replayable reports whether an operator can requeue the event unchanged.
func (r OutboxDeadLetterReason) Replayable() bool {
	return r == DeadLetterExhausted
}

func (r OutboxDeadLetterReason) IsValid() bool {
	return r == DeadLetterExhausted || r == DeadLetterRejected
}

func ParseOutboxDeadLetterReason(value string) (OutboxDeadLetterReason, error) {
	reason := OutboxDeadLetterReason(value)
	if !reason.IsValid() {
		return "", fmt.Errorf("invalid dead letter reason %q", value)
	}
	return reason, nil
}
