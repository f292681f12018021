package api

import "time"

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Programs  []ProgramStatus `json:"programs"`
}

// ProgramStatus is the indexing position of one tracked program.
type ProgramStatus struct {
	Name            string           `json:"name"`
	ProgramID       string           `json:"program_id"`
	CursorSignature string           `json:"cursor_signature,omitempty"`
	CursorSlot      uint64           `json:"cursor_slot"`
	CursorVersion   uint64           `json:"cursor_version"`
	CursorUpdatedAt int64            `json:"cursor_updated_at,omitempty"`
	CheckpointSlot  *uint64          `json:"checkpoint_slot,omitempty"`
	Backfills       []BackfillStatus `json:"backfills,omitempty"`
	Healthy         bool             `json:"healthy"`
	Error           string           `json:"error,omitempty"`
}

// BackfillStatus is the progress of one backfill range.
type BackfillStatus struct {
	ID            string `json:"id"`
	FromSlot      uint64 `json:"from_slot"`
	ToSlot        uint64 `json:"to_slot"`
	LastSignature string `json:"last_signature,omitempty"`
	LastSlot      uint64 `json:"last_slot"`
	Processed     uint64 `json:"processed"`
	Status        string `json:"status"`
	UpdatedAt     int64  `json:"updated_at"`
}

// DeliveryResponse is the ledger row of a signature.
type DeliveryResponse struct {
	Signature   string `json:"signature"`
	ProgramID   string `json:"program_id"`
	Slot        uint64 `json:"slot"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error,omitempty"`
	CommittedAt int64  `json:"committed_at,omitempty"`
	UpdatedAt   int64  `json:"updated_at"`
}
