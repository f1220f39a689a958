package model

import "time"

// Analysis states.
const (
	StatePending   = "PENDING"
	StateRunning   = "RUNNING"
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
)

type Analysis struct {
	ID           string
	Algorithm    string
	State        string
	Progress     int
	Stage        string
	OriginalName string
	InputPath    string
	ParamsJSON   string
	ResultJSON   string
	ErrorMessage string
	APIKeyID     string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Params are the caller-supplied engine parameters of an analysis. Zero
// values select the algorithm defaults.
type Params struct {
	Quality    int `json:"quality,omitempty"`
	BlockSize  int `json:"block_size,omitempty"`
	SweepStart int `json:"sweep_start,omitempty"`
	SweepSteps int `json:"sweep_steps,omitempty"`
	SweepStep  int `json:"sweep_step,omitempty"`
}

// Result is stored as JSON once an analysis completes.
type Result struct {
	Maps        []MapSummary `json:"maps"`
	ELAArtifact string       `json:"ela_artifact,omitempty"`
}

// MapSummary describes one rendered suspicion map.
type MapSummary struct {
	Name    string  `json:"name"`
	Quality int     `json:"quality,omitempty"`
	Offset  int     `json:"offset"`
	Rows    int     `json:"rows"`
	Cols    int     `json:"cols"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
}

type APIKey struct {
	ID         string
	Name       string
	KeyPrefix  string
	KeyHash    string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}
