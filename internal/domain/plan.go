// Package domain defines the persistence models and core value types for the
// summarization backend: subscription plans, summaries, usage records, and
// extracted tags. GORM-mapped types in this package form the data layer shared
// by the repository and service packages.
package domain

import "strings"

// Plan is a caller's subscription tier. Plans form a strict total order
// (Free < Pro < Enterprise) that gates model access and premium features.
type Plan string

const (
	PlanFree       Plan = "FREE"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// planRank maps each plan to its position in the tier order. Unknown plans
// rank below Free so a corrupted subscription row can never grant access.
var planRank = map[Plan]int{
	PlanFree:       1,
	PlanPro:        2,
	PlanEnterprise: 3,
}

// Rank returns the plan's position in the tier order (Free=1 .. Enterprise=3).
// Unknown values return 0.
func (p Plan) Rank() int { return planRank[p] }

// Covers reports whether a caller holding plan p satisfies a requirement of
// plan required, i.e. p >= required in the tier order.
func (p Plan) Covers(required Plan) bool { return p.Rank() >= required.Rank() }

// Valid reports whether p is one of the known tiers.
func (p Plan) Valid() bool { return p.Rank() > 0 }

// ParsePlan normalizes a raw subscription value ("pro", "PRO", " Pro ") into a
// Plan. Unrecognized values come back as PlanFree with ok=false so lookups
// against external billing data degrade to the most restrictive tier.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(strings.ToUpper(strings.TrimSpace(s))) {
	case PlanFree:
		return PlanFree, true
	case PlanPro:
		return PlanPro, true
	case PlanEnterprise:
		return PlanEnterprise, true
	default:
		return PlanFree, false
	}
}
