package models

const SubscriptionNone = "none"

// SubscriptionSnapshot is the cached view of a Stripe subscription,
// keyed by billing customer id. The cache is not the source of truth:
// Stripe is, and the snapshot may be briefly stale until a webhook or
// an explicit sync rewrites it. The shape is a shared contract between
// the billing sync path and the webhook handler; change it in both or
// not at all.
type SubscriptionSnapshot struct {
	SubscriptionID     string   `json:"subscription_id"`
	Status             string   `json:"status"`
	PriceKeys          []string `json:"price_keys"`
	CurrentPeriodStart int64    `json:"current_period_start"`
	CurrentPeriodEnd   int64    `json:"current_period_end"`
	CancelAtPeriodEnd  bool     `json:"cancel_at_period_end"`
}
