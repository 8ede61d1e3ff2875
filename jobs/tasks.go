// Package jobs defines the background task types and the asynq worker
// that runs them.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan recomputes every order's ledger and
	// surfaces divergence as consistency warnings.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskReminderDueScan pushes notices for reminders that came due.
	TaskReminderDueScan = "reminder:due_scan"
)

// IntegrityScanPayload optionally narrows the scan to one order. A zero
// OrderID scans everything.
type IntegrityScanPayload struct {
	OrderID int64 `json:"order_id,omitempty"`
}

// NewLedgerIntegrityScanTask constructs the scan task.
func NewLedgerIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// NewReminderDueScanTask constructs the due scan task.
func NewReminderDueScanTask() *asynq.Task {
	return asynq.NewTask(TaskReminderDueScan, nil)
}
