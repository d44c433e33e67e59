package model

import "time"

// PlanID identifies a subscription plan.
type PlanID string

const (
	PlanFree       PlanID = "free"
	PlanPro        PlanID = "pro"
	PlanEnterprise PlanID = "enterprise"
)

// IsValid checks if the plan ID is part of the catalog.
func (p PlanID) IsValid() bool {
	_, ok := planCatalog[p]
	return ok
}

// Plan describes the limits and price of a subscription plan.
type Plan struct {
	ID           PlanID   `json:"id"`
	Name         string   `json:"name"`
	MaxPrints    int      `json:"max_prints"`
	MaxComputers int      `json:"max_computers"`
	Price        float64  `json:"price"`
	Features     []string `json:"features"`
}

var planCatalog = map[PlanID]Plan{
	PlanFree: {
		ID:           PlanFree,
		Name:         "Free",
		MaxPrints:    20,
		MaxComputers: 1,
		Price:        0,
		Features:     []string{"20 prints/month", "1 computer", "Basic support"},
	},
	PlanPro: {
		ID:           PlanPro,
		Name:         "Pro",
		MaxPrints:    500,
		MaxComputers: 5,
		Price:        29.90,
		Features:     []string{"500 prints/month", "5 computers", "Priority support", "Advanced reports"},
	},
	PlanEnterprise: {
		ID:           PlanEnterprise,
		Name:         "Enterprise",
		MaxPrints:    2000,
		MaxComputers: 20,
		Price:        99.90,
		Features:     []string{"2000 prints/month", "20 computers", "24/7 support", "Custom API", "Guaranteed SLA"},
	},
}

// LookupPlan returns the catalog entry for id.
// Unknown IDs fall back to the free plan.
func LookupPlan(id PlanID) Plan {
	if plan, ok := planCatalog[id]; ok {
		return plan
	}
	return planCatalog[PlanFree]
}

// Plans returns the catalog ordered by price.
func Plans() []Plan {
	return []Plan{
		planCatalog[PlanFree],
		planCatalog[PlanPro],
		planCatalog[PlanEnterprise],
	}
}

// PlanState is the quota record embedded in an account.
type PlanState struct {
	PlanID            PlanID    `json:"plan_id"`
	MaxPrints         int       `json:"max_prints"`
	MaxComputers      int       `json:"max_computers"`
	MonthlyPrintCount int       `json:"monthly_print_count"`
	BillingCycleStart time.Time `json:"billing_cycle_start"`
}

// NewPlanState builds a fresh plan state for the given plan starting at now.
func NewPlanState(id PlanID, now time.Time) PlanState {
	plan := LookupPlan(id)
	return PlanState{
		PlanID:            plan.ID,
		MaxPrints:         plan.MaxPrints,
		MaxComputers:      plan.MaxComputers,
		MonthlyPrintCount: 0,
		BillingCycleStart: now,
	}
}

// QuotaExceeded reports whether the monthly print limit has been reached.
func (p PlanState) QuotaExceeded() bool {
	return p.MonthlyPrintCount >= p.MaxPrints
}

// RemainingPrints returns how many prints are left this cycle.
func (p PlanState) RemainingPrints() int {
	if p.MonthlyPrintCount >= p.MaxPrints {
		return 0
	}
	return p.MaxPrints - p.MonthlyPrintCount
}

// RateLimitConfig defines rate limit parameters per plan.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// TierConfigs maps plans to their management API rate limits.
var TierConfigs = map[PlanID]RateLimitConfig{
	PlanFree:       {RequestsPerMinute: 60, Burst: 10},
	PlanPro:        {RequestsPerMinute: 600, Burst: 50},
	PlanEnterprise: {RequestsPerMinute: 0, Burst: 0}, // 0 means unlimited
}

// RateLimitFor returns the rate limit configuration for a plan.
func RateLimitFor(id PlanID) RateLimitConfig {
	if config, ok := TierConfigs[id]; ok {
		return config
	}
	return TierConfigs[PlanFree]
}
