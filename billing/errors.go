package billing

import "errors"

var (
	ErrUnauthenticated      = errors.New("authentication required")
	ErrUnknownPlan          = errors.New("unknown plan")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrAlreadyOnPlan        = errors.New("already subscribed to this plan")

	// Pending-cancel and pending-downgrade are mutually exclusive by
	// policy; the conflicting request fails instead of silently
	// stacking state the period boundary would have to untangle.
	ErrCancellationPending = errors.New("a cancellation is pending; reactivate before changing plans")
	ErrDowngradePending    = errors.New("a downgrade is pending; upgrade or let it take effect before canceling")

	// ErrPriceNotFound means the Stripe price catalog and this binary
	// disagree. That is a deployment defect, never a user error.
	ErrPriceNotFound = errors.New("price not found in billing catalog")

	ErrSessionCreationFailed = errors.New("checkout session creation failed")

	// ErrBillingProvider wraps any error surfaced by the Stripe SDK.
	// The wrapped message carries Stripe's user-facing text; full
	// detail goes to the server log only.
	ErrBillingProvider = errors.New("billing provider error")
)
