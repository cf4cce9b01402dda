package authz

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Request describes one authorization question. OwnerID is the owner of the
// target record (the ticket requester for tickets and their comments); it is
// empty when the record does not exist yet.
type Request struct {
	Role    domain.Role
	Action  Action
	Subject Subject
	OwnerID string
	ActorID string
}

// PolicyLoader fetches the current policy from its source of truth.
type PolicyLoader interface {
	LoadPolicy(ctx context.Context) (*Policy, error)
}

// Engine answers authorization requests against an atomically swappable policy.
type Engine struct {
	policy atomic.Pointer[Policy]
}

// NewEngine builds an engine serving policy. A nil policy denies everything.
func NewEngine(policy *Policy) *Engine {
	e := &Engine{}
	if policy == nil {
		policy = NewPolicy()
	}
	e.policy.Store(policy)
	return e
}

// Can reports whether the request is permitted. It fails closed.
func (e *Engine) Can(req Request) bool {
	policy := e.policy.Load()

	if !policy.Has(req.Role, PermissionFor(req.Subject, req.Action)) {
		return false
	}
	if !policy.OwnerScoped(req.Role) || !ownable(req.Subject) || req.Action == ActionCreate && req.OwnerID == "" {
		return true
	}
	return req.OwnerID != "" && req.OwnerID == req.ActorID
}

// Authorize is Can returning domain.ErrUnauthorized on denial.
func (e *Engine) Authorize(req Request) error {
	if e.Can(req) {
		return nil
	}
	return fmt.Errorf("%w: role %q may not %s %s", domain.ErrUnauthorized, req.Role, req.Action, req.Subject)
}

// Policy returns the policy currently served.
func (e *Engine) Policy() *Policy {
	return e.policy.Load()
}

// Swap replaces the whole policy; readers observe either the old or the new one.
func (e *Engine) Swap(policy *Policy) {
	if policy == nil {
		policy = NewPolicy()
	}
	e.policy.Store(policy)
}

// Reload fetches a fresh policy from loader and swaps it in. On error the
// current policy stays in place.
func (e *Engine) Reload(ctx context.Context, loader PolicyLoader) error {
	policy, err := loader.LoadPolicy(ctx)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	e.Swap(policy)
	return nil
}

func ownable(subject Subject) bool {
	return subject == SubjectTicket || subject == SubjectComment
}

// StaticLoader serves a fixed policy.
type StaticLoader struct {
	Policy *Policy
}

// LoadPolicy returns l.Policy.
func (l StaticLoader) LoadPolicy(context.Context) (*Policy, error) {
	if l.Policy == nil {
		return DefaultPolicy(), nil
	}
	return l.Policy, nil
}
