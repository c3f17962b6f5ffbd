package models

import "time"

// Customer is a business customer renting locker capacity.
type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Company   string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
