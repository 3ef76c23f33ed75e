// Package quota is the admission gate checked before any backend
// invocation. The router treats it as a synchronous yes/no collaborator
// and never invokes a backend once admission is denied.
package quota

import (
	"context"
	"time"
)

// Request describes what a routing decision is about to spend.
type Request struct {
	User            string
	Project         string
	EstimatedTokens int
	EstimatedCost   float64
}

// Status is the gate's verdict. Remaining and ResetAt carry the budget
// information a denied caller needs to decide when to retry.
type Status struct {
	Allowed        bool
	RemainingCost  float64
	RemainingToken int
	ResetAt        time.Time
	Reason         string
}

// Gate is the admission contract.
type Gate interface {
	Check(ctx context.Context, req Request) (Status, error)
}

// AllowAll is a gate that admits every request. Used when no budget is
// configured.
type AllowAll struct{}

// Check always admits.
func (AllowAll) Check(_ context.Context, _ Request) (Status, error) {
	return Status{Allowed: true}, nil
}
