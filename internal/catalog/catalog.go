// Package catalog holds the static registry of AI model descriptors and the
// tier-aware selection policy built on top of it. Descriptors are loaded once
// at process start, validated, and never mutated afterwards, so the catalog
// needs no locking and is safe for concurrent reads.
package catalog

import (
	"fmt"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// Backend providers a descriptor can route to. The provider decides which
// invoker strategy services the model (see the ai package).
const (
	ProviderAnthropic = "anthropic"
	ProviderLegacy    = "openai-legacy"
)

// Capability tags carried by model descriptors.
const (
	FeatureSummarize   = "summarize"
	FeatureTagging     = "tagging"
	FeatureLongContext = "long-context"
	FeaturePriority    = "priority"
)

// ModelDescriptor is static metadata about one AI model: identity, pricing,
// minimum subscription tier, and capability tags. Costs are per single token
// in USD (provider price sheets quote per million tokens; divide by 1e6).
type ModelDescriptor struct {
	ID                string
	DisplayName       string
	Provider          string
	RequiredPlan      domain.Plan
	CostPerInputToken float64
	CostPerOutputTok  float64
	Features          []string
}

// HasFeature reports whether the descriptor carries the given capability tag.
func (d ModelDescriptor) HasFeature(feature string) bool {
	for _, f := range d.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Catalog is an immutable, insertion-ordered registry of model descriptors
// keyed by model id.
type Catalog struct {
	byID  map[string]ModelDescriptor
	order []string
}

// New validates the given descriptors and builds a Catalog. A duplicate id,
// empty id, unknown required plan, or negative price is a configuration error
// and fails construction rather than surfacing later as a silent nil lookup.
func New(models []ModelDescriptor) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]ModelDescriptor, len(models))}
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("catalog: descriptor with empty id")
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate model id %q", m.ID)
		}
		if !m.RequiredPlan.Valid() {
			return nil, fmt.Errorf("catalog: model %q has unknown required plan %q", m.ID, m.RequiredPlan)
		}
		if m.CostPerInputToken < 0 || m.CostPerOutputTok < 0 {
			return nil, fmt.Errorf("catalog: model %q has negative pricing", m.ID)
		}
		c.byID[m.ID] = m
		c.order = append(c.order, m.ID)
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("catalog: no models configured")
	}
	return c, nil
}

// MustDefault builds the built-in catalog and panics on a configuration
// error. Intended for process startup.
func MustDefault() *Catalog {
	c, err := New(DefaultModels())
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the descriptor for id, or ok=false when the id is not
// registered.
func (c *Catalog) Get(id string) (ModelDescriptor, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// Supports reports whether the model exists and carries the given feature.
func (c *Catalog) Supports(id, feature string) bool {
	m, ok := c.byID[id]
	return ok && m.HasFeature(feature)
}

// DefaultFor returns the default model for a plan: the cheapest model (by
// input token cost) whose required plan is covered by the caller's plan.
// Ties are broken by catalog insertion order, which makes the choice stable
// across restarts. The boolean is false only when no model at all is
// accessible to the plan, which cannot happen with the built-in catalog
// (every tier has at least one Free model).
func (c *Catalog) DefaultFor(plan domain.Plan) (ModelDescriptor, bool) {
	var best ModelDescriptor
	found := false
	for _, id := range c.order {
		m := c.byID[id]
		if !plan.Covers(m.RequiredPlan) {
			continue
		}
		if !found || m.CostPerInputToken < best.CostPerInputToken {
			best = m
			found = true
		}
	}
	return best, found
}

// Models returns descriptors in insertion order. The slice is a copy.
func (c *Catalog) Models() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// perMTok converts a per-million-token price into a per-token price.
func perMTok(usd float64) float64 { return usd / 1e6 }

// DefaultModels returns the built-in registry. Pricing mirrors the provider
// price sheets at the time of writing; ids are the upstream API model ids.
func DefaultModels() []ModelDescriptor {
	return []ModelDescriptor{
		{
			ID:                "gpt-3.5-turbo",
			DisplayName:       "GPT-3.5 Turbo",
			Provider:          ProviderLegacy,
			RequiredPlan:      domain.PlanFree,
			CostPerInputToken: perMTok(0.50),
			CostPerOutputTok:  perMTok(1.50),
			Features:          []string{FeatureSummarize},
		},
		{
			ID:                "gpt-4o-mini",
			DisplayName:       "GPT-4o mini",
			Provider:          ProviderLegacy,
			RequiredPlan:      domain.PlanFree,
			CostPerInputToken: perMTok(0.15),
			CostPerOutputTok:  perMTok(0.60),
			Features:          []string{FeatureSummarize, FeatureTagging},
		},
		{
			ID:                "gpt-4o",
			DisplayName:       "GPT-4o",
			Provider:          ProviderLegacy,
			RequiredPlan:      domain.PlanPro,
			CostPerInputToken: perMTok(2.50),
			CostPerOutputTok:  perMTok(10.00),
			Features:          []string{FeatureSummarize, FeatureLongContext},
		},
		{
			ID:                "claude-3-haiku-20240307",
			DisplayName:       "Claude 3 Haiku",
			Provider:          ProviderAnthropic,
			RequiredPlan:      domain.PlanFree,
			CostPerInputToken: perMTok(0.25),
			CostPerOutputTok:  perMTok(1.25),
			Features:          []string{FeatureSummarize, FeatureTagging},
		},
		{
			ID:                "claude-3-5-sonnet-20241022",
			DisplayName:       "Claude 3.5 Sonnet",
			Provider:          ProviderAnthropic,
			RequiredPlan:      domain.PlanPro,
			CostPerInputToken: perMTok(3.00),
			CostPerOutputTok:  perMTok(15.00),
			Features:          []string{FeatureSummarize, FeatureTagging, FeatureLongContext},
		},
		{
			ID:                "claude-3-opus-20240229",
			DisplayName:       "Claude 3 Opus",
			Provider:          ProviderAnthropic,
			RequiredPlan:      domain.PlanEnterprise,
			CostPerInputToken: perMTok(15.00),
			CostPerOutputTok:  perMTok(75.00),
			Features:          []string{FeatureSummarize, FeatureTagging, FeatureLongContext, FeaturePriority},
		},
	}
}
