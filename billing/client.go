package billing

import (
	"context"

	"github.com/stripe/stripe-go/v82"
)

// Client is the slice of the Stripe API this package touches. The
// seam exists so the lifecycle logic is testable against a fake;
// StripeClient in stripe.go is the real implementation.
type Client interface {
	// GetSubscription retrieves a subscription with its schedule
	// reference expanded.
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)

	// ListSubscriptions returns up to limit subscriptions for a
	// customer, any status, most recent first.
	ListSubscriptions(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error)

	UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)

	// ListPricesByLookupKeys returns the active prices matching the
	// given lookup keys. Missing keys are simply absent from the
	// result; the caller decides whether that is fatal.
	ListPricesByLookupKeys(ctx context.Context, lookupKeys []string) ([]*stripe.Price, error)

	CreateCustomer(ctx context.Context, email, userID string) (*stripe.Customer, error)

	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

	CreateScheduleFromSubscription(ctx context.Context, subscriptionID string) (*stripe.SubscriptionSchedule, error)
	UpdateSchedule(ctx context.Context, id string, params *stripe.SubscriptionScheduleParams) (*stripe.SubscriptionSchedule, error)
	ReleaseSchedule(ctx context.Context, id string) (*stripe.SubscriptionSchedule, error)
}
