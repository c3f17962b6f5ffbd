package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"

	"parcelpoint.app/cloud/cache"
	"parcelpoint.app/cloud/internal/logger"
	"parcelpoint.app/cloud/models"
	"parcelpoint.app/cloud/storage"
)

// Status is the subscription state as the UI sees it. Plan is empty
// when the active prices match no catalog plan, which is a recognized
// degraded state, not an error.
type Status struct {
	Status            string `json:"status"`
	Plan              Plan   `json:"plan,omitempty"`
	SubscriptionID    string `json:"subscription_id,omitempty"`
	CurrentPeriodEnd  int64  `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end,omitempty"`
}

// ChangeResult confirms a completed plan mutation.
type ChangeResult struct {
	Message     string `json:"message"`
	Plan        Plan   `json:"plan,omitempty"`
	EffectiveAt int64  `json:"effective_at,omitempty"`
}

// Service implements the subscription lifecycle: status reads,
// checkout, immediate prorated upgrades, period-end downgrades via
// Stripe subscription schedules, soft cancel and reactivate. Stripe is
// the source of truth throughout; the snapshot cache is rewritten
// after every mutation so the UI reflects changes before the webhook
// lands.
type Service struct {
	client     Client
	snapshots  cache.SnapshotStore
	store      storage.Storage
	successURL string
	now        func() time.Time
}

func NewService(client Client, snapshots cache.SnapshotStore, store storage.Storage, successURL string) *Service {
	return &Service{
		client:     client,
		snapshots:  snapshots,
		store:      store,
		successURL: successURL,
		now:        time.Now,
	}
}

// CurrentStatus reads the cached subscription state. No side effects;
// the UI polls this.
func (s *Service) CurrentStatus(ctx context.Context, user *models.User) (*Status, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}

	if user.StripeCustomerID == "" {
		return &Status{Status: models.SubscriptionNone}, nil
	}

	snapshot, err := s.snapshots.GetSnapshot(ctx, user.StripeCustomerID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil || snapshot.Status == models.SubscriptionNone {
		return &Status{Status: models.SubscriptionNone}, nil
	}

	status := &Status{
		Status:            snapshot.Status,
		SubscriptionID:    snapshot.SubscriptionID,
		CurrentPeriodEnd:  snapshot.CurrentPeriodEnd,
		CancelAtPeriodEnd: snapshot.CancelAtPeriodEnd,
	}
	if plan, ok := PlanFromPrices(snapshot.PriceKeys); ok {
		status.Plan = plan
	}

	return status, nil
}

// CreateCheckoutSession builds a hosted checkout for the target plan
// and returns its redirect URL. The Stripe customer is created lazily
// on the first attempt and the mapping persisted durably before any
// session exists.
func (s *Service) CreateCheckoutSession(ctx context.Context, user *models.User, targetPlan Plan) (string, error) {
	if user == nil {
		return "", ErrUnauthenticated
	}

	refs, err := PlanPrices(targetPlan)
	if err != nil {
		return "", err
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customer, err := s.client.CreateCustomer(ctx, user.Email, user.ID)
		if err != nil {
			return "", s.providerError("create customer", err)
		}
		if err := s.store.SetUserStripeCustomerID(ctx, user.ID, customer.ID); err != nil {
			return "", fmt.Errorf("failed to persist billing customer mapping: %w", err)
		}
		if err := s.snapshots.SetUserCustomerID(ctx, user.ID, customer.ID); err != nil {
			logger.Warn("failed to mirror billing customer mapping to cache", map[string]any{
				"user_id": user.ID,
				"error":   err.Error(),
			})
		}
		customerID = customer.ID
		user.StripeCustomerID = customer.ID

		logger.Info("billing customer created", map[string]any{
			"user_id":            user.ID,
			"stripe_customer_id": customer.ID,
		})
	}

	prices, err := s.resolvePrices(ctx, refs)
	if err != nil {
		return "", err
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(prices))
	for _, price := range prices {
		item := &stripe.CheckoutSessionLineItemParams{
			Price: stripe.String(price.ID),
		}
		// Stripe rejects a quantity on metered line items.
		if !isMetered(price) {
			item.Quantity = stripe.Int64(1)
		}
		lineItems = append(lineItems, item)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(s.successURL),
		LineItems:  lineItems,
	}

	session, err := s.client.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", s.providerError("create checkout session", err)
	}
	if session.URL == "" {
		return "", ErrSessionCreationFailed
	}

	return session.URL, nil
}

// Upgrade moves an active subscription to a higher plan immediately,
// invoicing the prorated difference now. A pending downgrade schedule
// is released first: an upgrade always supersedes it.
func (s *Service) Upgrade(ctx context.Context, user *models.User, targetPlan Plan) (*ChangeResult, error) {
	status, err := s.requireActive(ctx, user, targetPlan)
	if err != nil {
		return nil, err
	}

	// Captured once so a retried attempt reuses the same proration
	// math instead of recomputing it per call.
	prorationDate := s.now().Unix()

	subscription, err := s.client.GetSubscription(ctx, status.SubscriptionID)
	if err != nil {
		return nil, s.providerError("retrieve subscription", err)
	}

	if hasActiveSchedule(subscription) {
		scheduleID := subscription.Schedule.ID
		if _, err := s.client.ReleaseSchedule(ctx, scheduleID); err != nil {
			return nil, s.providerError("release schedule", err)
		}
		logger.Info("pending downgrade superseded by upgrade", map[string]any{
			"subscription_id": subscription.ID,
			"schedule_id":     scheduleID,
		})
	}

	refs, err := PlanPrices(targetPlan)
	if err != nil {
		return nil, err
	}
	prices, err := s.resolvePrices(ctx, refs)
	if err != nil {
		return nil, err
	}

	items, err := substituteItems(subscription.Items.Data, refs, prices)
	if err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionParams{
		Items:             items,
		ProrationBehavior: stripe.String("always_invoice"),
		ProrationDate:     stripe.Int64(prorationDate),
	}
	if _, err := s.client.UpdateSubscription(ctx, subscription.ID, params); err != nil {
		return nil, s.providerError("update subscription", err)
	}

	s.syncAfterMutation(ctx, user.StripeCustomerID)

	return &ChangeResult{
		Message:     fmt.Sprintf("Upgraded to %s. The prorated difference has been invoiced.", targetPlan),
		Plan:        targetPlan,
		EffectiveAt: prorationDate,
	}, nil
}

// Downgrade schedules a plan change for the end of the current billing
// period. Downgrades never apply mid-cycle; that would mean mid-cycle
// refunds. Calling Downgrade again before the boundary replaces the
// scheduled change, it does not queue another one.
func (s *Service) Downgrade(ctx context.Context, user *models.User, targetPlan Plan) (*ChangeResult, error) {
	status, err := s.requireActive(ctx, user, targetPlan)
	if err != nil {
		return nil, err
	}

	subscription, err := s.client.GetSubscription(ctx, status.SubscriptionID)
	if err != nil {
		return nil, s.providerError("retrieve subscription", err)
	}

	if subscription.CancelAtPeriodEnd {
		return nil, ErrCancellationPending
	}
	if len(subscription.Items.Data) == 0 {
		return nil, fmt.Errorf("%w: subscription %s has no items", ErrBillingProvider, subscription.ID)
	}

	// All items in one subscription share a billing period.
	effectiveDate := subscription.Items.Data[0].CurrentPeriodEnd

	refs, err := PlanPrices(targetPlan)
	if err != nil {
		return nil, err
	}
	prices, err := s.resolvePrices(ctx, refs)
	if err != nil {
		return nil, err
	}

	currentItems := phaseItemsFromSubscription(subscription)
	targetItems := phaseItemsForPlan(prices, baseQuantity(subscription))

	schedule := subscription.Schedule
	if schedule == nil {
		schedule, err = s.client.CreateScheduleFromSubscription(ctx, subscription.ID)
		if err != nil {
			return nil, s.providerError("create schedule", err)
		}
	}

	startDate := schedulePhaseStart(schedule, subscription)

	// Exactly two phases: the current period as-is, then the target
	// plan from the boundary. Rebuilding from scratch is what makes a
	// repeated downgrade a replacement rather than a queue.
	params := &stripe.SubscriptionScheduleParams{
		EndBehavior: stripe.String("release"),
		Phases: []*stripe.SubscriptionSchedulePhaseParams{
			{
				Items:             currentItems,
				StartDate:         stripe.Int64(startDate),
				EndDate:           stripe.Int64(effectiveDate),
				ProrationBehavior: stripe.String("none"),
			},
			{
				Items:             targetItems,
				StartDate:         stripe.Int64(effectiveDate),
				ProrationBehavior: stripe.String("none"),
			},
		},
	}
	if _, err := s.client.UpdateSchedule(ctx, schedule.ID, params); err != nil {
		return nil, s.providerError("update schedule", err)
	}

	s.syncAfterMutation(ctx, user.StripeCustomerID)

	return &ChangeResult{
		Message:     fmt.Sprintf("Downgrade to %s scheduled for the end of the current billing period.", targetPlan),
		Plan:        targetPlan,
		EffectiveAt: effectiveDate,
	}, nil
}

// Cancel flips auto-renew off. The subscription stays fully active,
// items untouched, until the period end. Re-sending the flag is a
// provider-level no-op, so repeated calls are harmless.
func (s *Service) Cancel(ctx context.Context, user *models.User) (*ChangeResult, error) {
	status, err := s.currentActiveStatus(ctx, user)
	if err != nil {
		return nil, err
	}

	subscription, err := s.client.GetSubscription(ctx, status.SubscriptionID)
	if err != nil {
		return nil, s.providerError("retrieve subscription", err)
	}
	if hasActiveSchedule(subscription) {
		return nil, ErrDowngradePending
	}

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	if _, err := s.client.UpdateSubscription(ctx, subscription.ID, params); err != nil {
		return nil, s.providerError("update subscription", err)
	}

	s.syncAfterMutation(ctx, user.StripeCustomerID)

	result := &ChangeResult{
		Message: "Auto-renew disabled. The subscription stays active until the end of the current period.",
	}
	if len(subscription.Items.Data) > 0 {
		result.EffectiveAt = subscription.Items.Data[0].CurrentPeriodEnd
	}
	return result, nil
}

// Reactivate clears a pending cancellation. Only the subscription id
// is required: clearing the flag on a subscription that was not
// pending cancellation is a harmless no-op.
func (s *Service) Reactivate(ctx context.Context, user *models.User) (*ChangeResult, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}

	status, err := s.CurrentStatus(ctx, user)
	if err != nil {
		return nil, err
	}
	if status.SubscriptionID == "" {
		return nil, ErrNoActiveSubscription
	}

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	if _, err := s.client.UpdateSubscription(ctx, status.SubscriptionID, params); err != nil {
		return nil, s.providerError("update subscription", err)
	}

	s.syncAfterMutation(ctx, user.StripeCustomerID)

	return &ChangeResult{Message: "Auto-renew re-enabled."}, nil
}

// requireActive enforces the shared mutation preconditions: an active
// subscription and a target plan different from the current one. The
// plan comparison happens before any provider call.
func (s *Service) requireActive(ctx context.Context, user *models.User, targetPlan Plan) (*Status, error) {
	if _, err := PlanPrices(targetPlan); err != nil {
		return nil, err
	}

	status, err := s.currentActiveStatus(ctx, user)
	if err != nil {
		return nil, err
	}
	if status.Plan == targetPlan {
		return nil, ErrAlreadyOnPlan
	}
	return status, nil
}

func (s *Service) currentActiveStatus(ctx context.Context, user *models.User) (*Status, error) {
	status, err := s.CurrentStatus(ctx, user)
	if err != nil {
		return nil, err
	}
	if status.Status != string(stripe.SubscriptionStatusActive) || status.SubscriptionID == "" {
		return nil, ErrNoActiveSubscription
	}
	return status, nil
}

// resolvePrices looks up the live price for every catalog ref, in
// catalog order. Any missing price aborts the operation: proceeding
// with a partial line-item set would silently underbill.
func (s *Service) resolvePrices(ctx context.Context, refs []PriceRef) ([]*stripe.Price, error) {
	lookupKeys := make([]string, len(refs))
	for i, ref := range refs {
		lookupKeys[i] = ref.LookupKey
	}

	prices, err := s.client.ListPricesByLookupKeys(ctx, lookupKeys)
	if err != nil {
		return nil, s.providerError("list prices", err)
	}

	byKey := make(map[string]*stripe.Price, len(prices))
	for _, price := range prices {
		byKey[price.LookupKey] = price
	}

	resolved := make([]*stripe.Price, len(refs))
	for i, ref := range refs {
		price, exists := byKey[ref.LookupKey]
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrPriceNotFound, ref.LookupKey)
		}
		resolved[i] = price
	}
	return resolved, nil
}

// substituteItems builds the item swap for an upgrade. Each current
// item is matched to the target price with the same role (base,
// packages, notifications) via the catalog; items whose price is
// outside the catalog are add-ons and stay untouched. Quantity is
// preserved for licensed items and omitted for metered ones.
func substituteItems(current []*stripe.SubscriptionItem, refs []PriceRef, prices []*stripe.Price) ([]*stripe.SubscriptionItemsParams, error) {
	targetByRole := make(map[Role]*stripe.Price, len(refs))
	meteredByRole := make(map[Role]bool, len(refs))
	for i, ref := range refs {
		targetByRole[ref.Role] = prices[i]
		meteredByRole[ref.Role] = ref.Metered
	}

	var items []*stripe.SubscriptionItemsParams
	for _, item := range current {
		if item.Price == nil {
			continue
		}
		role, known := priceRole(item.Price.LookupKey)
		if !known {
			continue
		}
		target, exists := targetByRole[role]
		if !exists {
			return nil, fmt.Errorf("%w: no target price for role %s", ErrPriceNotFound, role)
		}

		params := &stripe.SubscriptionItemsParams{
			ID:    stripe.String(item.ID),
			Price: stripe.String(target.ID),
		}
		if !meteredByRole[role] {
			quantity := item.Quantity
			if quantity == 0 {
				quantity = 1
			}
			params.Quantity = stripe.Int64(quantity)
		}
		items = append(items, params)
	}
	return items, nil
}

// phaseItemsFromSubscription reproduces the current items unchanged
// for the holding phase of a downgrade schedule.
func phaseItemsFromSubscription(subscription *stripe.Subscription) []*stripe.SubscriptionSchedulePhaseItemParams {
	items := make([]*stripe.SubscriptionSchedulePhaseItemParams, 0, len(subscription.Items.Data))
	for _, item := range subscription.Items.Data {
		if item.Price == nil {
			continue
		}
		params := &stripe.SubscriptionSchedulePhaseItemParams{
			Price: stripe.String(item.Price.ID),
		}
		if !isMetered(item.Price) {
			params.Quantity = stripe.Int64(item.Quantity)
		}
		items = append(items, params)
	}
	return items
}

func phaseItemsForPlan(prices []*stripe.Price, licensedQuantity int64) []*stripe.SubscriptionSchedulePhaseItemParams {
	items := make([]*stripe.SubscriptionSchedulePhaseItemParams, 0, len(prices))
	for _, price := range prices {
		params := &stripe.SubscriptionSchedulePhaseItemParams{
			Price: stripe.String(price.ID),
		}
		if !isMetered(price) {
			params.Quantity = stripe.Int64(licensedQuantity)
		}
		items = append(items, params)
	}
	return items
}

// baseQuantity carries the licensed seat count across a plan change.
func baseQuantity(subscription *stripe.Subscription) int64 {
	for _, item := range subscription.Items.Data {
		if item.Price != nil && !isMetered(item.Price) && item.Quantity > 0 {
			return item.Quantity
		}
	}
	return 1
}

func schedulePhaseStart(schedule *stripe.SubscriptionSchedule, subscription *stripe.Subscription) int64 {
	if schedule.CurrentPhase != nil && schedule.CurrentPhase.StartDate > 0 {
		return schedule.CurrentPhase.StartDate
	}
	if len(subscription.Items.Data) > 0 {
		return subscription.Items.Data[0].CurrentPeriodStart
	}
	return 0
}

func hasActiveSchedule(subscription *stripe.Subscription) bool {
	return subscription.Schedule != nil &&
		subscription.Schedule.Status == stripe.SubscriptionScheduleStatusActive
}

func isMetered(price *stripe.Price) bool {
	return price.Recurring != nil &&
		price.Recurring.UsageType == stripe.PriceRecurringUsageTypeMetered
}

// providerError wraps a Stripe SDK error into the internal taxonomy.
// Stripe's user-facing message survives; the raw error stays in the
// server log.
func (s *Service) providerError(op string, err error) error {
	logger.Error("stripe call failed", map[string]any{
		"op":    op,
		"error": err.Error(),
	})

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return fmt.Errorf("%w: %s", ErrBillingProvider, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %s", ErrBillingProvider, err.Error())
}
