package billing

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeClient implements Client against the live Stripe API.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	return &StripeClient{api: client.New(secretKey, nil)}
}

func (c *StripeClient) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("schedule")
	return c.api.Subscriptions.Get(id, params)
}

func (c *StripeClient) ListSubscriptions(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)

	var subscriptions []*stripe.Subscription
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		subscriptions = append(subscriptions, iter.Subscription())
		if int64(len(subscriptions)) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (c *StripeClient) UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	params.Context = ctx
	return c.api.Subscriptions.Update(id, params)
}

func (c *StripeClient) ListPricesByLookupKeys(ctx context.Context, lookupKeys []string) ([]*stripe.Price, error) {
	params := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice(lookupKeys),
		Active:     stripe.Bool(true),
	}
	params.Context = ctx

	var prices []*stripe.Price
	iter := c.api.Prices.List(params)
	for iter.Next() {
		prices = append(prices, iter.Price())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}

func (c *StripeClient) CreateCustomer(ctx context.Context, email, userID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	// Correlation metadata so webhook payloads can be traced back to
	// the application user.
	params.AddMetadata("app_user_id", userID)
	return c.api.Customers.New(params)
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return c.api.CheckoutSessions.New(params)
}

func (c *StripeClient) CreateScheduleFromSubscription(ctx context.Context, subscriptionID string) (*stripe.SubscriptionSchedule, error) {
	params := &stripe.SubscriptionScheduleParams{
		FromSubscription: stripe.String(subscriptionID),
	}
	params.Context = ctx
	return c.api.SubscriptionSchedules.New(params)
}

func (c *StripeClient) UpdateSchedule(ctx context.Context, id string, params *stripe.SubscriptionScheduleParams) (*stripe.SubscriptionSchedule, error) {
	params.Context = ctx
	return c.api.SubscriptionSchedules.Update(id, params)
}

func (c *StripeClient) ReleaseSchedule(ctx context.Context, id string) (*stripe.SubscriptionSchedule, error) {
	params := &stripe.SubscriptionScheduleReleaseParams{}
	params.Context = ctx
	return c.api.SubscriptionSchedules.Release(id, params)
}
