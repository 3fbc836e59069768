// Package entitlement resolves a caller identity to a subscription plan.
//
// The subscription store is an external collaborator (the billing system owns
// it); this package only reads it, and every failure mode degrades to the
// most restrictive tier. Resolution never returns an error to the request
// pipeline: an unreachable billing store must not break summarization, it
// must only make it cheaper.
package entitlement

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// SubscriptionStore is the narrow read interface onto the external billing
// system. Implementations return the raw plan value for a caller, or an error
// when the caller is unknown or the lookup fails.
type SubscriptionStore interface {
	PlanFor(ctx context.Context, userID string) (string, error)
}

// Resolver maps caller ids to plans with a Free fallback.
type Resolver struct {
	Store SubscriptionStore
}

// NewResolver constructs a Resolver over the given store.
func NewResolver(store SubscriptionStore) *Resolver { return &Resolver{Store: store} }

// Resolve returns the caller's plan.
//
// Fallback rules, all of which yield PlanFree:
//   - blank or anonymous/demo caller ids,
//   - a nil store,
//   - store lookup errors (logged at debug level, never propagated),
//   - unparseable plan values in the store.
func (r *Resolver) Resolve(ctx context.Context, callerID string) domain.Plan {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" || callerID == "demo-user" || strings.HasPrefix(callerID, "anon:") {
		return domain.PlanFree
	}
	if r == nil || r.Store == nil {
		return domain.PlanFree
	}

	raw, err := r.Store.PlanFor(ctx, callerID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", callerID).Msg("plan lookup failed; defaulting to FREE")
		return domain.PlanFree
	}
	plan, ok := domain.ParsePlan(raw)
	if !ok {
		log.Debug().Str("user_id", callerID).Str("plan", raw).Msg("unrecognized plan value; defaulting to FREE")
	}
	return plan
}
