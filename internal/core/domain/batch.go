package domain

import "time"

type BatchItemStatus string

const (
	ItemPending    BatchItemStatus = "pending"
	ItemProcessing BatchItemStatus = "processing"
	ItemSuccess    BatchItemStatus = "success"
	ItemError      BatchItemStatus = "error"
)

// CanTransition enforces the monotonic item lifecycle:
// pending -> processing -> success|error, never backwards.
func (s BatchItemStatus) CanTransition(to BatchItemStatus) bool {
	switch s {
	case ItemPending:
		return to == ItemProcessing
	case ItemProcessing:
		return to == ItemSuccess || to == ItemError
	default:
		return false
	}
}

// Terminal reports whether the item has settled.
func (s BatchItemStatus) Terminal() bool {
	return s == ItemSuccess || s == ItemError
}

type BatchItem struct {
	ID           string          `json:"id"`
	BatchID      string          `json:"batch_id"`
	Position     int             `json:"position"`
	Filename     string          `json:"filename"`
	ContentType  string          `json:"content_type"`
	StagingKey   string          `json:"-"`
	Status       BatchItemStatus `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RecordID     string          `json:"record_id,omitempty"`
}

type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
)

type Batch struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	Status       BatchStatus `json:"status"`
	Total        int         `json:"total"`
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
	CreatedAt    time.Time   `json:"created_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// Done is the completion condition: every item settled as success or error.
func (b Batch) Done() bool {
	return b.SuccessCount+b.ErrorCount == b.Total
}
