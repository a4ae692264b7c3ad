package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AgentError wraps provider errors with status metadata.
type AgentError struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *AgentError) Error() string {
	if e == nil {
		return "agent error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("agent error (status=%d)", e.Status)
}

func (e *AgentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether an error is safe to retry at the same level.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		if agentErr.Temporary {
			return true
		}
		if agentErr.Status == 429 || (agentErr.Status >= 500 && agentErr.Status <= 599) {
			return true
		}
	}
	return false
}

// outcomeForError converts a provider error to the retry/escalate
// decision the engine expects.
func outcomeForError(err error, spent float64) Outcome {
	if IsTransient(err) {
		return Retry{Err: err.Error(), Spent: spent}
	}
	return Escalate{Err: err.Error(), Spent: spent}
}
