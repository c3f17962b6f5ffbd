package models

import "time"

// Comment is a threaded remark on an order. ParentID is empty for
// top-level comments.
type Comment struct {
	ID        string
	OrderID   string
	AuthorID  string
	ParentID  string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note is an internal remark attached to a customer.
type Note struct {
	ID         string
	CustomerID string
	AuthorID   string
	Body       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TrustedContact may pick up packages on a customer's behalf.
type TrustedContact struct {
	ID         string
	CustomerID string
	Name       string
	Email      string
	Phone      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
