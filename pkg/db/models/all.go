package models

// All lists every model owned by this service, in dependency order.
func All() []any {
	return []any{
		&Category{},
		&Product{},
		&StockMovement{},
		&StockReservation{},
		&Coupon{},
		&CouponUsage{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
