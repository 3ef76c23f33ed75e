// Package adapter invokes external compute backends. Each provider
// gets one Invoker implementation; the Registry dispatches on the
// backend descriptor's provider label.
package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/cost"
)

// Result is one backend invocation's normalized output.
type Result struct {
	Content      string  `json:"content"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
	BackendID    string  `json:"backend_id"`
	Provider     string  `json:"provider"`
	// Hash stamps the content for audit trails.
	Hash string `json:"hash"`
}

// Invoker sends a prompt to a backend and returns its result.
type Invoker interface {
	Invoke(ctx context.Context, backend catalog.Backend, prompt string) (*Result, error)
	Name() string
}

// NewResult builds a Result with the cost computed from the backend's
// price rates and the content hash stamped.
func NewResult(content string, inputTokens, outputTokens int, backend catalog.Backend) *Result {
	r := &Result{
		Content:      content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost.Estimate(inputTokens, outputTokens, backend),
		BackendID:    backend.ID,
		Provider:     backend.Provider,
	}
	r.Hash = contentHash(content, backend.ID)
	return r
}

func contentHash(content, backendID string) string {
	h := sha256.New()
	h.Write([]byte(content))
	h.Write([]byte(backendID))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Registry maps provider labels to invokers.
type Registry struct {
	invokers map[string]Invoker
}

// NewRegistry creates a registry from the given invokers, keyed by
// their names.
func NewRegistry(invokers ...Invoker) *Registry {
	r := &Registry{invokers: make(map[string]Invoker, len(invokers))}
	for _, inv := range invokers {
		r.invokers[inv.Name()] = inv
	}
	return r
}

// Register adds or replaces an invoker.
func (r *Registry) Register(inv Invoker) {
	r.invokers[inv.Name()] = inv
}

// Invoke dispatches to the invoker matching the backend's provider.
func (r *Registry) Invoke(ctx context.Context, backend catalog.Backend, prompt string) (*Result, error) {
	inv, ok := r.invokers[backend.Provider]
	if !ok {
		return nil, fmt.Errorf("no invoker registered for provider %q", backend.Provider)
	}
	return inv.Invoke(ctx, backend, prompt)
}

// Name implements Invoker so a Registry can stand in wherever a single
// invoker is expected.
func (r *Registry) Name() string {
	return "registry"
}
