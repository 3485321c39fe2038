package domain

import "time"

// Order type constants
const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// Job status constants
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusConfirmed  = "confirmed"
	StatusFailed     = "failed"
)

// DefaultMaxAttempts is the number of execution attempts a job gets before
// it is marked failed.
const DefaultMaxAttempts = 3

// Order is a client-submitted request to swap AmountIn of TokenIn for TokenOut.
// All fields except Attempts are immutable once the order is accepted.
type Order struct {
	ID        string    `json:"id" db:"order_id"`
	UserID    string    `json:"userId" db:"user_id"`
	Type      string    `json:"type" db:"order_type"`
	TokenIn   string    `json:"tokenIn" db:"token_in"`
	TokenOut  string    `json:"tokenOut" db:"token_out"`
	AmountIn  float64   `json:"amountIn" db:"amount_in"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Attempts  int       `json:"attempts" db:"attempts"`
}

// ExecutionResult is what the execution venue returns on a successful swap.
type ExecutionResult struct {
	TxHash    string  `json:"txHash"`
	AmountOut float64 `json:"amountOut"`
}

// Job wraps one Order with its queue and retry metadata. A job reaches
// exactly one terminal status (confirmed or failed); Attempts never exceeds
// MaxAttempts.
type Job struct {
	Order       Order
	Status      string
	MaxAttempts int
	LastError   string
	Result      *ExecutionResult
	WorkerID    string
	UpdatedAt   time.Time
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusConfirmed || j.Status == StatusFailed
}
