package models

import "time"

// TransferStatus is the lifecycle status reported by the transfer service.
type TransferStatus string

const (
	TransferQueued    TransferStatus = "queued"
	TransferRunning   TransferStatus = "running"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
	TransferCancelled TransferStatus = "cancelled"
)

// Active reports whether a transfer in this status still protects the session.
func (s TransferStatus) Active() bool {
	return s == TransferQueued || s == TransferRunning
}

// Terminal reports whether the status is final.
func (s TransferStatus) Terminal() bool {
	return s == TransferCompleted || s == TransferFailed || s == TransferCancelled
}

// Transfer is an rsync job as listed by the transfer service.
type Transfer struct {
	ID               string         `json:"id"`
	Source           string         `json:"source"`
	Destination      string         `json:"destination"`
	Status           TransferStatus `json:"status"`
	Progress         float64        `json:"progress"` // 0-100
	BytesTransferred int64          `json:"bytes_transferred"`
	Message          string         `json:"message,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ActiveSummary is the response of the active-transfer query.
type ActiveSummary struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}
