package discovery

import (
	"time"

	"github.com/kdimtricp/moviegpt/internal/models"
	"github.com/kdimtricp/moviegpt/internal/search"
)

// State is what the UI renders for one browser session. Every search cycle
// overwrites it.
type State struct {
	SessionID string         `json:"session_id"`
	CycleID   string         `json:"cycle_id,omitempty"`
	Query     string         `json:"query"`
	Movies    []search.Movie `json:"movies"`
	Loading   bool           `json:"loading"`
	Outcome   models.Outcome `json:"outcome,omitempty"`
	// Error is the refusal text shown in the banner.
	Error string `json:"error,omitempty"`
	// Alert is the message for an unexpected failure.
	Alert     string    `json:"alert,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s State) clone() State {
	out := s
	out.Movies = append([]search.Movie(nil), s.Movies...)
	if out.Movies == nil {
		out.Movies = []search.Movie{}
	}
	return out
}

// cycleResult is what one pass through expand → resolve produced.
type cycleResult struct {
	outcome models.Outcome
	titles  []string
	movies  []search.Movie
	message string
	elapsed time.Duration
}
