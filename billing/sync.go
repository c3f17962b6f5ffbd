package billing

import (
	"context"

	"github.com/stripe/stripe-go/v82"

	"parcelpoint.app/cloud/internal/logger"
	"parcelpoint.app/cloud/models"
)

// SyncCustomer re-reads the authoritative subscription state from
// Stripe and rewrites the cached snapshot. It runs after every
// mutation and from the webhook handler, so the UI reflects changes
// before Stripe's asynchronous events arrive.
func (s *Service) SyncCustomer(ctx context.Context, billingCustomerID string) (*models.SubscriptionSnapshot, error) {
	subscriptions, err := s.client.ListSubscriptions(ctx, billingCustomerID, 1)
	if err != nil {
		return nil, s.providerError("list subscriptions", err)
	}

	if len(subscriptions) == 0 {
		snapshot := &models.SubscriptionSnapshot{Status: models.SubscriptionNone}
		if err := s.snapshots.SetSnapshot(ctx, billingCustomerID, snapshot); err != nil {
			return nil, err
		}
		return snapshot, nil
	}

	snapshot := snapshotFromSubscription(subscriptions[0])
	if err := s.snapshots.SetSnapshot(ctx, billingCustomerID, snapshot); err != nil {
		return nil, err
	}

	logger.Debug("subscription snapshot refreshed", map[string]any{
		"stripe_customer_id": billingCustomerID,
		"subscription_id":    snapshot.SubscriptionID,
		"status":             snapshot.Status,
	})

	return snapshot, nil
}

func snapshotFromSubscription(subscription *stripe.Subscription) *models.SubscriptionSnapshot {
	snapshot := &models.SubscriptionSnapshot{
		SubscriptionID:    subscription.ID,
		Status:            string(subscription.Status),
		CancelAtPeriodEnd: subscription.CancelAtPeriodEnd,
	}

	for _, item := range subscription.Items.Data {
		if item.Price == nil {
			continue
		}
		key := item.Price.LookupKey
		if key == "" {
			key = item.Price.ID
		}
		snapshot.PriceKeys = append(snapshot.PriceKeys, key)
	}

	// All items in one subscription share a billing period.
	if len(subscription.Items.Data) > 0 {
		snapshot.CurrentPeriodStart = subscription.Items.Data[0].CurrentPeriodStart
		snapshot.CurrentPeriodEnd = subscription.Items.Data[0].CurrentPeriodEnd
	}

	return snapshot
}

// syncAfterMutation is the mandatory post-mutation resync. The
// provider mutation already succeeded at this point, so a sync failure
// is logged rather than propagated; the webhook handler repairs the
// cache on its next delivery.
func (s *Service) syncAfterMutation(ctx context.Context, billingCustomerID string) {
	if _, err := s.SyncCustomer(ctx, billingCustomerID); err != nil {
		logger.Error("post-mutation cache sync failed", map[string]any{
			"stripe_customer_id": billingCustomerID,
			"error":              err.Error(),
		})
	}
}
