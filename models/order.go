package models

import "time"

const (
	OrderPending  = "pending"
	OrderInLocker = "in_locker"
	OrderPickedUp = "picked_up"
	OrderExpired  = "expired"
	OrderReturned = "returned"
)

// Order is one package moving through a locker.
type Order struct {
	ID             string
	CustomerID     string
	LocationID     string
	LockerNumber   int
	Carrier        string
	TrackingNumber string
	PickupCode     string
	Status         string
	DeliveredAt    *time.Time
	PickedUpAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
