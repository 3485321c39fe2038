package domain

// Event is a status update pushed to subscribers of an order id.
type Event struct {
	Status    string  `json:"status"`
	OrderID   string  `json:"orderId"`
	TxHash    string  `json:"txHash,omitempty"`
	AmountOut float64 `json:"amountOut,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// QueuedEvent announces that an order was accepted and enqueued.
func QueuedEvent(orderID string) Event {
	return Event{Status: StatusQueued, OrderID: orderID}
}

// ProcessingEvent announces that a worker started an execution attempt.
func ProcessingEvent(orderID string) Event {
	return Event{Status: StatusProcessing, OrderID: orderID}
}

// ConfirmedEvent is the terminal success event carrying the execution result.
func ConfirmedEvent(orderID string, result *ExecutionResult) Event {
	ev := Event{Status: StatusConfirmed, OrderID: orderID}
	if result != nil {
		ev.TxHash = result.TxHash
		ev.AmountOut = result.AmountOut
	}
	return ev
}

// FailedEvent is the terminal failure event. The error description is always
// non-empty.
func FailedEvent(orderID, errMsg string) Event {
	if errMsg == "" {
		errMsg = "execution failed"
	}
	return Event{Status: StatusFailed, OrderID: orderID, Error: errMsg}
}
