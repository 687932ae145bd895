package dto

import (
	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/lrs"
)

// StatementsRequest forwards fully formed statements to the LRS.
type StatementsRequest struct {
	Statements []lrs.Statement `json:"statements" validate:"required,min=1,max=50"`
}

// ActivityEventRequest records a learner interaction; the server builds the
// statement for the authenticated user.
type ActivityEventRequest struct {
	Verb            string    `json:"verb" validate:"required,oneof=launched attempted answered completed"`
	ActivityID      uuid.UUID `json:"activity_id" validate:"required"`
	Response        string    `json:"response,omitempty" validate:"max=4096"`
	ScoreRaw        float64   `json:"score_raw,omitempty" validate:"gte=0"`
	ScoreMax        float64   `json:"score_max,omitempty" validate:"gte=0,gtefield=ScoreRaw"`
	Success         bool      `json:"success,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty" validate:"gte=0"`
}

type StatementIDsResponse struct {
	IDs []string `json:"ids"`
}
