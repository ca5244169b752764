package entity

import (
	"time"

	"github.com/google/uuid"
)

// Run is one stage applied to one batch, as stored in the run ledger.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Stage      string     `json:"stage"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
