package domain

import "testing"

func TestPlan_Rank(t *testing.T) {
	cases := []struct {
		plan Plan
		want int
	}{
		{PlanFree, 1},
		{PlanPro, 2},
		{PlanEnterprise, 3},
		{Plan("GOLD"), 0},
		{Plan(""), 0},
	}
	for _, tc := range cases {
		if got := tc.plan.Rank(); got != tc.want {
			t.Fatalf("Rank(%q) = %d; want %d", tc.plan, got, tc.want)
		}
	}
}

func TestPlan_Covers(t *testing.T) {
	cases := []struct {
		have, need Plan
		want       bool
	}{
		{PlanFree, PlanFree, true},
		{PlanFree, PlanPro, false},
		{PlanPro, PlanFree, true},
		{PlanPro, PlanPro, true},
		{PlanPro, PlanEnterprise, false},
		{PlanEnterprise, PlanPro, true},
		{PlanEnterprise, PlanEnterprise, true},
		// Unknown plans rank below Free and cover nothing real.
		{Plan("GOLD"), PlanFree, false},
	}
	for _, tc := range cases {
		if got := tc.have.Covers(tc.need); got != tc.want {
			t.Fatalf("%q.Covers(%q) = %v; want %v", tc.have, tc.need, got, tc.want)
		}
	}
}

func TestPlan_Valid(t *testing.T) {
	for _, p := range []Plan{PlanFree, PlanPro, PlanEnterprise} {
		if !p.Valid() {
			t.Fatalf("expected %q to be valid", p)
		}
	}
	for _, p := range []Plan{Plan(""), Plan("free "), Plan("GOLD")} {
		if p.Valid() {
			t.Fatalf("expected %q to be invalid", p)
		}
	}
}

func TestParsePlan(t *testing.T) {
	cases := []struct {
		in   string
		want Plan
		ok   bool
	}{
		{"FREE", PlanFree, true},
		{"pro", PlanPro, true},
		{" Pro ", PlanPro, true},
		{"enterprise", PlanEnterprise, true},
		{"ENTERPRISE", PlanEnterprise, true},
		// Anything unrecognized degrades to the most restrictive tier.
		{"", PlanFree, false},
		{"gold", PlanFree, false},
		{"pro+", PlanFree, false},
	}
	for _, tc := range cases {
		got, ok := ParsePlan(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParsePlan(%q) = (%q, %v); want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
