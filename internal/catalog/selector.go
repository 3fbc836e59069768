// Package catalog – Selector
//
// This file implements the tier-aware model selection policy. Given the model
// a caller asked for (possibly none) and the caller's resolved plan, the
// selector either grants the request, or falls back to the plan's default
// model and synthesizes a deterministic upgrade prompt describing what the
// caller is missing. The upgrade prompt is the product's upsell mechanism and
// is produced here so it can be tested independently of any UI.
package catalog

import (
	"errors"
	"fmt"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// ErrUnknownModel is returned when a caller requests a model id that is not
// registered in the catalog. Unlike an insufficient plan, this is a caller
// input error, not an upsell opportunity.
var ErrUnknownModel = errors.New("unknown model id")

// UpgradePrompt describes the tier a caller would need to use the model they
// asked for. Returned alongside the fallback selection so the product can
// surface a deterministic upsell message.
type UpgradePrompt struct {
	Message       string      `json:"message"`
	RequiredPlan  domain.Plan `json:"required_plan"`
	ModelFeatures []string    `json:"model_features"`
}

// Selection is the outcome of a selection decision: the model that will
// service the request and, when the caller asked for something above their
// tier, a non-nil upgrade prompt.
type Selection struct {
	Model   ModelDescriptor
	Upgrade *UpgradePrompt
}

// Selector applies the tier policy against a catalog.
type Selector struct {
	Catalog *Catalog
}

// NewSelector constructs a Selector over the given catalog.
func NewSelector(c *Catalog) *Selector { return &Selector{Catalog: c} }

// Select resolves which model services a request.
//
// Policy:
//  1. No requested id: the plan's default model, no upgrade prompt.
//  2. Requested id accessible to the plan: granted verbatim.
//  3. Requested id above the plan: the plan's default model plus an upgrade
//     prompt naming the required tier and the model's capabilities.
//
// An unregistered requested id yields ErrUnknownModel. The selection is a
// pure function of (requestedID, plan) and the immutable catalog, so for any
// two plans p1 <= p2 the model granted to p2 is never more restrictive than
// the one granted to p1.
func (s *Selector) Select(requestedID string, plan domain.Plan) (Selection, error) {
	if requestedID == "" {
		def, ok := s.Catalog.DefaultFor(plan)
		if !ok {
			return Selection{}, fmt.Errorf("no model available for plan %s", plan)
		}
		return Selection{Model: def}, nil
	}

	want, ok := s.Catalog.Get(requestedID)
	if !ok {
		return Selection{}, fmt.Errorf("%w: %s", ErrUnknownModel, requestedID)
	}

	if plan.Covers(want.RequiredPlan) {
		return Selection{Model: want}, nil
	}

	def, ok := s.Catalog.DefaultFor(plan)
	if !ok {
		return Selection{}, fmt.Errorf("no model available for plan %s", plan)
	}
	return Selection{
		Model: def,
		Upgrade: &UpgradePrompt{
			Message: fmt.Sprintf("%s requires the %s plan. Upgrade to unlock it; this request was served by %s instead.",
				want.DisplayName, want.RequiredPlan, def.DisplayName),
			RequiredPlan:  want.RequiredPlan,
			ModelFeatures: append([]string(nil), want.Features...),
		},
	}, nil
}
