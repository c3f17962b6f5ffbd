package billing

import "fmt"

// Plan is one of the four subscription tiers. The catalog below is
// static: it never changes at runtime, and the Stripe dashboard must
// carry one active price per lookup key.
type Plan string

const (
	PlanBasic       Plan = "basic"
	PlanBasicPlus   Plan = "basic_plus"
	PlanPremium     Plan = "premium"
	PlanBusinessPro Plan = "business_pro"
)

// Role identifies what a price bills for, independent of the plan it
// belongs to. Item substitution on plan changes matches by role, not
// by position, so reordered subscription items cannot cause a wrong
// swap.
type Role string

const (
	RoleBase          Role = "base"
	RolePackages      Role = "packages"
	RoleNotifications Role = "notifications"
)

// PriceRef is one catalog entry. LookupKey doubles as the price
// identifier in cached snapshots and as the Stripe lookup key.
type PriceRef struct {
	LookupKey string
	Role      Role
	Metered   bool
}

// Every plan has the same shape: one licensed base price and two
// metered dimensions. The base entry is always first.
var planPrices = map[Plan][]PriceRef{
	PlanBasic: {
		{LookupKey: "parcel_basic_base", Role: RoleBase},
		{LookupKey: "parcel_basic_packages", Role: RolePackages, Metered: true},
		{LookupKey: "parcel_basic_notifications", Role: RoleNotifications, Metered: true},
	},
	PlanBasicPlus: {
		{LookupKey: "parcel_basic_plus_base", Role: RoleBase},
		{LookupKey: "parcel_basic_plus_packages", Role: RolePackages, Metered: true},
		{LookupKey: "parcel_basic_plus_notifications", Role: RoleNotifications, Metered: true},
	},
	PlanPremium: {
		{LookupKey: "parcel_premium_base", Role: RoleBase},
		{LookupKey: "parcel_premium_packages", Role: RolePackages, Metered: true},
		{LookupKey: "parcel_premium_notifications", Role: RoleNotifications, Metered: true},
	},
	PlanBusinessPro: {
		{LookupKey: "parcel_business_pro_base", Role: RoleBase},
		{LookupKey: "parcel_business_pro_packages", Role: RolePackages, Metered: true},
		{LookupKey: "parcel_business_pro_notifications", Role: RoleNotifications, Metered: true},
	},
}

// planOrder fixes the resolution order for first-match lookups.
var planOrder = []Plan{PlanBasic, PlanBasicPlus, PlanPremium, PlanBusinessPro}

func ParsePlan(s string) (Plan, error) {
	plan := Plan(s)
	if _, exists := planPrices[plan]; !exists {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, s)
	}
	return plan, nil
}

// PlanPrices returns the ordered price set for a plan, base first.
func PlanPrices(plan Plan) ([]PriceRef, error) {
	refs, exists := planPrices[plan]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	out := make([]PriceRef, len(refs))
	copy(out, refs)
	return out, nil
}

// PlanFromPrices resolves a set of active price identifiers to a plan.
// Resolution is first-match on the plan's base key, not exact-set
// match: a subscription may carry add-on items the catalog does not
// know about. ok is false when no plan matches, which callers treat as
// a degraded state rather than an error.
func PlanFromPrices(priceKeys []string) (Plan, bool) {
	keySet := make(map[string]bool, len(priceKeys))
	for _, key := range priceKeys {
		keySet[key] = true
	}

	for _, plan := range planOrder {
		if keySet[planPrices[plan][0].LookupKey] {
			return plan, true
		}
	}
	return "", false
}

// priceRole classifies a lookup key across the whole catalog.
func priceRole(lookupKey string) (Role, bool) {
	for _, refs := range planPrices {
		for _, ref := range refs {
			if ref.LookupKey == lookupKey {
				return ref.Role, true
			}
		}
	}
	return "", false
}
