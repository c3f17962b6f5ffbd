package models

import "time"

// Location is a locker bank site.
type Location struct {
	ID          string
	Name        string
	Address     string
	City        string
	LockerCount int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Employee staffs a location.
type Employee struct {
	ID         string
	LocationID string
	Name       string
	Email      string
	Role       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
