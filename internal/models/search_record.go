package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome names how a search cycle ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeRefused Outcome = "refused"
	OutcomeFailed  Outcome = "failed"
)

// SearchRecord is one completed search cycle in the history log.
type SearchRecord struct {
	ID          string
	Query       string
	Outcome     Outcome
	TitleCount  int
	ResultCount int
	Message     string
	Duration    time.Duration
	CreatedAt   time.Time
}

func NewSearchRecord(query string, outcome Outcome, titleCount, resultCount int, message string, duration time.Duration) *SearchRecord {
	return &SearchRecord{
		ID:          uuid.New().String(),
		Query:       query,
		Outcome:     outcome,
		TitleCount:  titleCount,
		ResultCount: resultCount,
		Message:     message,
		Duration:    duration,
		CreatedAt:   time.Now(),
	}
}
