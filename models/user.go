package models

import "time"

const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleCustomer = "customer"
)

// User is an application account resolved by the identity provider.
// StripeCustomerID is empty until the first checkout attempt and
// immutable once set.
type User struct {
	ID               string
	Email            string
	Name             string
	Role             string
	StripeCustomerID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
