package domain

import "time"

// AttemptStatus enumerates the lifecycle of one pipeline attempt.
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "pending"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
)

// RunAttempt records one execution of the aggregate+analyze unit of work.
type RunAttempt struct {
	AttemptNumber int           `json:"attempt"`
	Status        AttemptStatus `json:"status"`
	ErrorDetail   string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// AnalysisResult is the outcome of a single analyzer call.
type AnalysisResult struct {
	Text        string `json:"-"`
	Placeholder bool   `json:"placeholder"`
	Truncated   bool   `json:"truncated"`
}

// Digest is the best-effort structured view over free-form analysis text.
type Digest struct {
	Highlight  string   `json:"highlight"`
	Trends     []string `json:"trends"`
	Insights   []string `json:"insights"`
	Prediction string   `json:"prediction"`
	// Parsed is false when no section was recognised and every field holds
	// its default.
	Parsed bool `json:"parsed"`
}
