package flights

import (
	"time"
)

// Status enumerates flight lifecycle states.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInTransit  Status = "in_transit"
	StatusArrived    Status = "arrived"
	StatusDelayed    Status = "delayed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInTransit, StatusArrived, StatusDelayed,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Flight is a shipment batch orders are assigned to.
type Flight struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Status        Status     `json:"status"`
	DepartureDate *time.Time `json:"departure_date,omitempty"`
	ArrivalDate   *time.Time `json:"arrival_date,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
