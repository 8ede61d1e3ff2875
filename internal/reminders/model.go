package reminders

import (
	"time"
)

// Reminder is a staff follow-up note tied to an order or a customer.
type Reminder struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	OrderID    *int64    `json:"order_id,omitempty"`
	CustomerID *int64    `json:"customer_id,omitempty"`
	Note       string    `json:"note"`
	DueAt      time.Time `json:"due_at"`
	Done       bool      `json:"done"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
