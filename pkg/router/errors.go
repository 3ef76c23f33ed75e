package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/zen-systems/tiergate/pkg/catalog"
	"github.com/zen-systems/tiergate/pkg/quota"
)

// ErrorKind classifies why a route failed.
type ErrorKind int

const (
	// ErrNoBackendAvailable means the catalog was exhausted even after
	// the free-tier fallback.
	ErrNoBackendAvailable ErrorKind = iota
	// ErrBackendInvocation means a backend call failed. The router does
	// not retry; the caller decides.
	ErrBackendInvocation
	// ErrQuotaExceeded means admission was denied before any invocation.
	ErrQuotaExceeded
	// ErrPolicyDenied means a policy rule's action was deny.
	ErrPolicyDenied
	// ErrCancelled means the caller's deadline or cancellation fired.
	ErrCancelled
)

var errorKindNames = [...]string{
	"no_backend_available",
	"backend_invocation_failed",
	"quota_exceeded",
	"policy_denied",
	"cancelled",
}

func (k ErrorKind) String() string {
	if k >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "unknown"
}

// RouteError is the structured failure the router surfaces. It carries
// enough for the caller to log and pick a retry policy; the router
// itself logs nothing.
type RouteError struct {
	Kind      ErrorKind
	Reason    string
	Tier      catalog.Tier
	BackendID string
	Quota     *quota.Status
	Err       error
}

func (e *RouteError) Error() string {
	if e == nil {
		return "route error"
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *RouteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf extracts the RouteError kind from an error chain.
func KindOf(err error) (ErrorKind, bool) {
	var routeErr *RouteError
	if errors.As(err, &routeErr) {
		return routeErr.Kind, true
	}
	return 0, false
}

// IsQuotaExceeded reports whether the route was rejected by admission.
func IsQuotaExceeded(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrQuotaExceeded
}

// IsPolicyDenied reports whether a policy rule denied the route.
func IsPolicyDenied(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrPolicyDenied
}

// IsNoBackendAvailable reports whether the catalog was exhausted.
func IsNoBackendAvailable(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrNoBackendAvailable
}

// IsCancelled reports whether the caller's context ended the route.
func IsCancelled(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == ErrCancelled
}

// invocationError maps a backend call failure onto the taxonomy,
// distinguishing caller cancellation from provider failure.
func invocationError(err error, tier catalog.Tier, backendID string) *RouteError {
	kind := ErrBackendInvocation
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = ErrCancelled
	}
	return &RouteError{
		Kind:      kind,
		Tier:      tier,
		BackendID: backendID,
		Err:       err,
	}
}
