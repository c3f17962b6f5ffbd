package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"

	"parcelpoint.app/cloud/cache"
	"parcelpoint.app/cloud/internal/testutil"
	"parcelpoint.app/cloud/models"
	"parcelpoint.app/cloud/storage"
)

// fakeClient records every provider call so tests can assert both what
// was sent and in what order.
type fakeClient struct {
	calls []string

	subscriptions map[string]*stripe.Subscription
	listResult    []*stripe.Subscription
	prices        map[string]*stripe.Price

	customer        *stripe.Customer
	checkoutSession *stripe.CheckoutSession

	lastUpdateParams   *stripe.SubscriptionParams
	lastScheduleParams *stripe.SubscriptionScheduleParams
	createdSchedule    *stripe.SubscriptionSchedule
	released           []string

	failOn map[string]error
}

func newFakeClient() *fakeClient {
	prices := make(map[string]*stripe.Price)
	for _, plan := range []Plan{PlanBasic, PlanBasicPlus, PlanPremium, PlanBusinessPro} {
		refs, _ := PlanPrices(plan)
		for _, ref := range refs {
			prices[ref.LookupKey] = testPrice(ref.LookupKey, ref.Metered)
		}
	}

	return &fakeClient{
		subscriptions: make(map[string]*stripe.Subscription),
		prices:        prices,
		customer:      &stripe.Customer{ID: "cus_new"},
		checkoutSession: &stripe.CheckoutSession{
			ID:  "cs_test",
			URL: "https://checkout.stripe.com/test",
		},
		failOn: make(map[string]error),
	}
}

func (f *fakeClient) record(op string) error {
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakeClient) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	if err := f.record("GetSubscription"); err != nil {
		return nil, err
	}
	subscription, exists := f.subscriptions[id]
	if !exists {
		return nil, &stripe.Error{Msg: "No such subscription"}
	}
	return subscription, nil
}

func (f *fakeClient) ListSubscriptions(ctx context.Context, customerID string, limit int64) ([]*stripe.Subscription, error) {
	if err := f.record("ListSubscriptions"); err != nil {
		return nil, err
	}
	return f.listResult, nil
}

func (f *fakeClient) UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if err := f.record("UpdateSubscription"); err != nil {
		return nil, err
	}
	f.lastUpdateParams = params
	return f.subscriptions[id], nil
}

func (f *fakeClient) ListPricesByLookupKeys(ctx context.Context, lookupKeys []string) ([]*stripe.Price, error) {
	if err := f.record("ListPrices"); err != nil {
		return nil, err
	}
	var result []*stripe.Price
	for _, key := range lookupKeys {
		if price, exists := f.prices[key]; exists {
			result = append(result, price)
		}
	}
	return result, nil
}

func (f *fakeClient) CreateCustomer(ctx context.Context, email, userID string) (*stripe.Customer, error) {
	if err := f.record("CreateCustomer"); err != nil {
		return nil, err
	}
	return f.customer, nil
}

func (f *fakeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if err := f.record("CreateCheckoutSession"); err != nil {
		return nil, err
	}
	return f.checkoutSession, nil
}

func (f *fakeClient) CreateScheduleFromSubscription(ctx context.Context, subscriptionID string) (*stripe.SubscriptionSchedule, error) {
	if err := f.record("CreateSchedule"); err != nil {
		return nil, err
	}
	f.createdSchedule = &stripe.SubscriptionSchedule{
		ID:     "sched_new",
		Status: stripe.SubscriptionScheduleStatusActive,
	}
	return f.createdSchedule, nil
}

func (f *fakeClient) UpdateSchedule(ctx context.Context, id string, params *stripe.SubscriptionScheduleParams) (*stripe.SubscriptionSchedule, error) {
	if err := f.record("UpdateSchedule"); err != nil {
		return nil, err
	}
	f.lastScheduleParams = params
	return &stripe.SubscriptionSchedule{ID: id}, nil
}

func (f *fakeClient) ReleaseSchedule(ctx context.Context, id string) (*stripe.SubscriptionSchedule, error) {
	if err := f.record("ReleaseSchedule"); err != nil {
		return nil, err
	}
	f.released = append(f.released, id)
	return &stripe.SubscriptionSchedule{ID: id}, nil
}

func testPrice(lookupKey string, metered bool) *stripe.Price {
	usage := stripe.PriceRecurringUsageTypeLicensed
	if metered {
		usage = stripe.PriceRecurringUsageTypeMetered
	}
	return &stripe.Price{
		ID:        "price_" + lookupKey,
		LookupKey: lookupKey,
		Recurring: &stripe.PriceRecurring{UsageType: usage},
	}
}

const (
	testPeriodStart = int64(1700000000)
	testPeriodEnd   = int64(1702592000)
)

func testSubscription(id string, plan Plan) *stripe.Subscription {
	refs, _ := PlanPrices(plan)
	items := make([]*stripe.SubscriptionItem, 0, len(refs))
	for i, ref := range refs {
		item := &stripe.SubscriptionItem{
			ID:                 fmt.Sprintf("si_%s_%d", id, i),
			Price:              testPrice(ref.LookupKey, ref.Metered),
			CurrentPeriodStart: testPeriodStart,
			CurrentPeriodEnd:   testPeriodEnd,
		}
		if !ref.Metered {
			item.Quantity = 1
		}
		items = append(items, item)
	}

	return &stripe.Subscription{
		ID:       id,
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_test"},
		Items:    &stripe.SubscriptionItemList{Data: items},
	}
}

func planKeys(plan Plan) []string {
	refs, _ := PlanPrices(plan)
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = ref.LookupKey
	}
	return keys
}

type serviceFixture struct {
	service   *Service
	client    *fakeClient
	snapshots *cache.MemoryStore
	store     *storage.MemoryStorage
	user      *models.User
}

// newServiceFixture wires a service against fakes with a user already
// subscribed to the given plan.
func newServiceFixture(t *testing.T, plan Plan) *serviceFixture {
	t.Helper()

	client := newFakeClient()
	snapshots := cache.NewMemoryStore()
	store := testutil.TestStorage()
	ctx := context.Background()

	user := testutil.CreateTestUser("user1", "user1@example.com", "cus_test")
	if err := store.SaveUser(ctx, &user); err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}

	subscription := testSubscription("sub_1", plan)
	client.subscriptions["sub_1"] = subscription
	client.listResult = []*stripe.Subscription{subscription}

	snapshot := &models.SubscriptionSnapshot{
		SubscriptionID:     "sub_1",
		Status:             string(stripe.SubscriptionStatusActive),
		PriceKeys:          planKeys(plan),
		CurrentPeriodStart: testPeriodStart,
		CurrentPeriodEnd:   testPeriodEnd,
	}
	if err := snapshots.SetSnapshot(ctx, "cus_test", snapshot); err != nil {
		t.Fatalf("Failed to seed snapshot: %v", err)
	}

	service := NewService(client, snapshots, store, "https://parcelpoint.app/billing/success")
	service.now = func() time.Time { return time.Unix(1701000000, 0) }

	return &serviceFixture{
		service:   service,
		client:    client,
		snapshots: snapshots,
		store:     store,
		user:      &user,
	}
}

func TestCurrentStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("NoBillingCustomer", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		user := testutil.CreateTestUser("user2", "user2@example.com", "")

		status, err := fx.service.CurrentStatus(ctx, &user)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if status.Status != models.SubscriptionNone {
			t.Errorf("Expected status 'none', got '%s'", status.Status)
		}
		if len(fx.client.calls) != 0 {
			t.Errorf("Expected no provider calls, got %v", fx.client.calls)
		}
	})

	t.Run("ActiveSubscription", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)

		status, err := fx.service.CurrentStatus(ctx, fx.user)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if status.Plan != PlanPremium {
			t.Errorf("Expected plan premium, got '%s'", status.Plan)
		}
		if status.SubscriptionID != "sub_1" {
			t.Errorf("Expected subscription sub_1, got '%s'", status.SubscriptionID)
		}
		if status.CurrentPeriodEnd != testPeriodEnd {
			t.Errorf("Expected period end %d, got %d", testPeriodEnd, status.CurrentPeriodEnd)
		}
		if len(fx.client.calls) != 0 {
			t.Errorf("Expected cache-only read, got provider calls %v", fx.client.calls)
		}
	})

	t.Run("UnknownPrices", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		snapshot := &models.SubscriptionSnapshot{
			SubscriptionID: "sub_1",
			Status:         string(stripe.SubscriptionStatusActive),
			PriceKeys:      []string{"legacy_price_2019"},
		}
		if err := fx.snapshots.SetSnapshot(ctx, "cus_test", snapshot); err != nil {
			t.Fatalf("Failed to seed snapshot: %v", err)
		}

		status, err := fx.service.CurrentStatus(ctx, fx.user)
		if err != nil {
			t.Fatalf("Expected degraded status, got error %v", err)
		}
		if status.Plan != "" {
			t.Errorf("Expected empty plan for unknown prices, got '%s'", status.Plan)
		}
		if status.Status != string(stripe.SubscriptionStatusActive) {
			t.Errorf("Expected active status, got '%s'", status.Status)
		}
	})

	t.Run("NilUser", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		if _, err := fx.service.CurrentStatus(ctx, nil); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("Expected ErrUnauthenticated, got %v", err)
		}
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	ctx := context.Background()

	t.Run("LazyCustomerCreation", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		user := testutil.CreateTestUser("user2", "user2@example.com", "")
		if err := fx.store.SaveUser(ctx, &user); err != nil {
			t.Fatalf("Failed to save user: %v", err)
		}

		url, err := fx.service.CreateCheckoutSession(ctx, &user, PlanBasic)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if url != "https://checkout.stripe.com/test" {
			t.Errorf("Expected checkout URL, got '%s'", url)
		}

		stored, err := fx.store.GetUser(ctx, "user2")
		if err != nil || stored == nil {
			t.Fatalf("Failed to reload user: %v", err)
		}
		if stored.StripeCustomerID != "cus_new" {
			t.Errorf("Expected durable mapping 'cus_new', got '%s'", stored.StripeCustomerID)
		}

		mirrored, _ := fx.snapshots.GetUserCustomerID(ctx, "user2")
		if mirrored != "cus_new" {
			t.Errorf("Expected cache mirror 'cus_new', got '%s'", mirrored)
		}
	})

	t.Run("ExistingCustomerReused", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)

		if _, err := fx.service.CreateCheckoutSession(ctx, fx.user, PlanPremium); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		for _, call := range fx.client.calls {
			if call == "CreateCustomer" {
				t.Errorf("Expected no customer creation for existing mapping")
			}
		}
	})

	t.Run("MissingPrice", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		delete(fx.client.prices, "parcel_premium_packages")

		_, err := fx.service.CreateCheckoutSession(ctx, fx.user, PlanPremium)
		if !errors.Is(err, ErrPriceNotFound) {
			t.Errorf("Expected ErrPriceNotFound, got %v", err)
		}
	})

	t.Run("EmptySessionURL", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		fx.client.checkoutSession = &stripe.CheckoutSession{ID: "cs_broken"}

		_, err := fx.service.CreateCheckoutSession(ctx, fx.user, PlanPremium)
		if !errors.Is(err, ErrSessionCreationFailed) {
			t.Errorf("Expected ErrSessionCreationFailed, got %v", err)
		}
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		_, err := fx.service.CreateCheckoutSession(ctx, fx.user, Plan("enterprise"))
		if !errors.Is(err, ErrUnknownPlan) {
			t.Errorf("Expected ErrUnknownPlan, got %v", err)
		}
		if len(fx.client.calls) != 0 {
			t.Errorf("Expected no provider calls for unknown plan, got %v", fx.client.calls)
		}
	})
}

func TestUpgrade(t *testing.T) {
	ctx := context.Background()

	t.Run("WithoutSubscription", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		user := testutil.CreateTestUser("user2", "user2@example.com", "")

		_, err := fx.service.Upgrade(ctx, &user, PlanPremium)
		if !errors.Is(err, ErrNoActiveSubscription) {
			t.Errorf("Expected ErrNoActiveSubscription, got %v", err)
		}
		if len(fx.client.calls) != 0 {
			t.Errorf("Expected no provider calls, got %v", fx.client.calls)
		}
	})

	t.Run("SamePlan", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)

		_, err := fx.service.Upgrade(ctx, fx.user, PlanPremium)
		if !errors.Is(err, ErrAlreadyOnPlan) {
			t.Errorf("Expected ErrAlreadyOnPlan, got %v", err)
		}
		if len(fx.client.calls) != 0 {
			t.Errorf("Expected no provider calls, got %v", fx.client.calls)
		}
	})

	t.Run("ImmediateWithProration", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)

		result, err := fx.service.Upgrade(ctx, fx.user, PlanPremium)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if result.Plan != PlanPremium {
			t.Errorf("Expected plan premium, got '%s'", result.Plan)
		}

		params := fx.client.lastUpdateParams
		if params == nil {
			t.Fatalf("Expected subscription update")
		}
		if params.ProrationBehavior == nil || *params.ProrationBehavior != "always_invoice" {
			t.Errorf("Expected proration behavior always_invoice")
		}
		if params.ProrationDate == nil || *params.ProrationDate != 1701000000 {
			t.Errorf("Expected captured proration date 1701000000, got %v", params.ProrationDate)
		}
		if len(params.Items) != 3 {
			t.Fatalf("Expected 3 substituted items, got %d", len(params.Items))
		}
		for _, item := range params.Items {
			if item.ID == nil || item.Price == nil {
				t.Errorf("Expected item id and target price on every substitution")
			}
		}
	})

	t.Run("RoleMatchedSubstitution", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)

		// Reorder the live items and add an add-on outside the catalog.
		subscription := fx.client.subscriptions["sub_1"]
		items := subscription.Items.Data
		items[0], items[2] = items[2], items[0]
		subscription.Items.Data = append(items, &stripe.SubscriptionItem{
			ID:    "si_addon",
			Price: &stripe.Price{ID: "price_addon", LookupKey: "parcel_addon_insurance"},
		})

		if _, err := fx.service.Upgrade(ctx, fx.user, PlanBusinessPro); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		params := fx.client.lastUpdateParams
		if len(params.Items) != 3 {
			t.Fatalf("Expected add-on left untouched, got %d items", len(params.Items))
		}

		targets := make(map[string]string)
		for _, item := range params.Items {
			targets[*item.ID] = *item.Price
		}
		if targets["si_sub_1_0"] != "price_parcel_business_pro_base" {
			t.Errorf("Expected base item swapped to business_pro base, got '%s'", targets["si_sub_1_0"])
		}
		if targets["si_sub_1_1"] != "price_parcel_business_pro_packages" {
			t.Errorf("Expected packages item swapped by role, got '%s'", targets["si_sub_1_1"])
		}
	})

	t.Run("MeteredItemsCarryNoQuantity", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)

		if _, err := fx.service.Upgrade(ctx, fx.user, PlanPremium); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		for _, item := range fx.client.lastUpdateParams.Items {
			metered := false
			for _, key := range planKeys(PlanPremium) {
				if *item.Price == "price_"+key {
					role, _ := priceRole(key)
					metered = role != RoleBase
				}
			}
			if metered && item.Quantity != nil {
				t.Errorf("Expected no quantity on metered item %s", *item.Price)
			}
			if !metered && (item.Quantity == nil || *item.Quantity != 1) {
				t.Errorf("Expected quantity 1 on licensed item %s", *item.Price)
			}
		}
	})

	t.Run("SupersedesPendingDowngrade", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)
		fx.client.subscriptions["sub_1"].Schedule = &stripe.SubscriptionSchedule{
			ID:     "sched_1",
			Status: stripe.SubscriptionScheduleStatusActive,
		}

		if _, err := fx.service.Upgrade(ctx, fx.user, PlanBusinessPro); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if len(fx.client.released) != 1 || fx.client.released[0] != "sched_1" {
			t.Errorf("Expected schedule sched_1 released, got %v", fx.client.released)
		}

		releaseIndex, updateIndex := -1, -1
		for i, call := range fx.client.calls {
			switch call {
			case "ReleaseSchedule":
				releaseIndex = i
			case "UpdateSubscription":
				updateIndex = i
			}
		}
		if releaseIndex == -1 || updateIndex == -1 || releaseIndex > updateIndex {
			t.Errorf("Expected release before update, got %v", fx.client.calls)
		}
	})

	t.Run("RefreshesSnapshot", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		fx.client.listResult = []*stripe.Subscription{testSubscription("sub_1", PlanPremium)}

		if _, err := fx.service.Upgrade(ctx, fx.user, PlanPremium); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		snapshot, err := fx.snapshots.GetSnapshot(ctx, "cus_test")
		if err != nil || snapshot == nil {
			t.Fatalf("Expected refreshed snapshot, got %v, %v", snapshot, err)
		}
		if plan, _ := PlanFromPrices(snapshot.PriceKeys); plan != PlanPremium {
			t.Errorf("Expected snapshot on premium after upgrade, got '%s'", plan)
		}
	})

	t.Run("SyncFailureDoesNotFailMutation", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		fx.client.failOn["ListSubscriptions"] = &stripe.Error{Msg: "temporarily unavailable"}

		if _, err := fx.service.Upgrade(ctx, fx.user, PlanPremium); err != nil {
			t.Errorf("Expected mutation to succeed despite sync failure, got %v", err)
		}
	})

	t.Run("ProviderErrorWrapped", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		fx.client.failOn["UpdateSubscription"] = &stripe.Error{Msg: "Your card was declined."}

		_, err := fx.service.Upgrade(ctx, fx.user, PlanPremium)
		if !errors.Is(err, ErrBillingProvider) {
			t.Fatalf("Expected ErrBillingProvider, got %v", err)
		}
		if want := "Your card was declined."; !strings.Contains(err.Error(), want) {
			t.Errorf("Expected provider message '%s' in '%s'", want, err.Error())
		}
	})
}

func TestDowngrade(t *testing.T) {
	ctx := context.Background()

	t.Run("SamePlan", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)

		_, err := fx.service.Downgrade(ctx, fx.user, PlanPremium)
		if !errors.Is(err, ErrAlreadyOnPlan) {
			t.Errorf("Expected ErrAlreadyOnPlan, got %v", err)
		}
		if len(fx.client.calls) != 0 {
			t.Errorf("Expected no provider calls, got %v", fx.client.calls)
		}
	})

	t.Run("SchedulesTwoPhases", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)

		result, err := fx.service.Downgrade(ctx, fx.user, PlanBasic)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if result.EffectiveAt != testPeriodEnd {
			t.Errorf("Expected effective at period end %d, got %d", testPeriodEnd, result.EffectiveAt)
		}

		if fx.client.createdSchedule == nil {
			t.Fatalf("Expected a schedule created from the subscription")
		}

		params := fx.client.lastScheduleParams
		if params == nil {
			t.Fatalf("Expected schedule update")
		}
		if params.EndBehavior == nil || *params.EndBehavior != "release" {
			t.Errorf("Expected end behavior release")
		}
		if len(params.Phases) != 2 {
			t.Fatalf("Expected exactly 2 phases, got %d", len(params.Phases))
		}

		holding, target := params.Phases[0], params.Phases[1]
		if *holding.EndDate != testPeriodEnd || *target.StartDate != testPeriodEnd {
			t.Errorf("Expected phase boundary at period end %d", testPeriodEnd)
		}
		if *holding.ProrationBehavior != "none" || *target.ProrationBehavior != "none" {
			t.Errorf("Expected proration disabled on both phases")
		}
		if len(holding.Items) != 3 || len(target.Items) != 3 {
			t.Errorf("Expected 3 items per phase, got %d and %d", len(holding.Items), len(target.Items))
		}
		if *target.Items[0].Price != "price_parcel_basic_base" {
			t.Errorf("Expected target phase on basic prices, got '%s'", *target.Items[0].Price)
		}
	})

	t.Run("ReusesExistingSchedule", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)
		fx.client.subscriptions["sub_1"].Schedule = &stripe.SubscriptionSchedule{
			ID:     "sched_1",
			Status: stripe.SubscriptionScheduleStatusActive,
			CurrentPhase: &stripe.SubscriptionScheduleCurrentPhase{
				StartDate: testPeriodStart,
			},
		}

		if _, err := fx.service.Downgrade(ctx, fx.user, PlanBasicPlus); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		for _, call := range fx.client.calls {
			if call == "CreateSchedule" {
				t.Errorf("Expected existing schedule reused, got create in %v", fx.client.calls)
			}
		}
		if *fx.client.lastScheduleParams.Phases[0].StartDate != testPeriodStart {
			t.Errorf("Expected holding phase anchored at current phase start")
		}
	})

	t.Run("BlockedByPendingCancellation", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)
		fx.client.subscriptions["sub_1"].CancelAtPeriodEnd = true

		_, err := fx.service.Downgrade(ctx, fx.user, PlanBasic)
		if !errors.Is(err, ErrCancellationPending) {
			t.Errorf("Expected ErrCancellationPending, got %v", err)
		}
		if fx.client.lastScheduleParams != nil {
			t.Errorf("Expected no schedule change")
		}
	})

	t.Run("WithoutSubscription", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		user := testutil.CreateTestUser("user2", "user2@example.com", "cus_other")

		_, err := fx.service.Downgrade(ctx, &user, PlanBasic)
		if !errors.Is(err, ErrNoActiveSubscription) {
			t.Errorf("Expected ErrNoActiveSubscription, got %v", err)
		}
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("SoftCancel", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)

		result, err := fx.service.Cancel(ctx, fx.user)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if result.EffectiveAt != testPeriodEnd {
			t.Errorf("Expected effective at period end %d, got %d", testPeriodEnd, result.EffectiveAt)
		}

		params := fx.client.lastUpdateParams
		if params == nil || params.CancelAtPeriodEnd == nil || !*params.CancelAtPeriodEnd {
			t.Errorf("Expected cancel_at_period_end set")
		}
		if len(params.Items) != 0 {
			t.Errorf("Expected items untouched on cancel, got %d", len(params.Items))
		}
	})

	t.Run("BlockedByPendingDowngrade", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)
		fx.client.subscriptions["sub_1"].Schedule = &stripe.SubscriptionSchedule{
			ID:     "sched_1",
			Status: stripe.SubscriptionScheduleStatusActive,
		}

		_, err := fx.service.Cancel(ctx, fx.user)
		if !errors.Is(err, ErrDowngradePending) {
			t.Errorf("Expected ErrDowngradePending, got %v", err)
		}
		if fx.client.lastUpdateParams != nil {
			t.Errorf("Expected no subscription update")
		}
	})

	t.Run("ReleasedScheduleDoesNotBlock", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)
		fx.client.subscriptions["sub_1"].Schedule = &stripe.SubscriptionSchedule{
			ID:     "sched_1",
			Status: stripe.SubscriptionScheduleStatusReleased,
		}

		if _, err := fx.service.Cancel(ctx, fx.user); err != nil {
			t.Errorf("Expected released schedule to be ignored, got %v", err)
		}
	})
}

func TestReactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("ClearsPendingCancellation", func(t *testing.T) {
		fx := newServiceFixture(t, PlanPremium)

		if _, err := fx.service.Reactivate(ctx, fx.user); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		params := fx.client.lastUpdateParams
		if params == nil || params.CancelAtPeriodEnd == nil || *params.CancelAtPeriodEnd {
			t.Errorf("Expected cancel_at_period_end cleared")
		}
	})

	t.Run("WithoutSubscription", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		user := testutil.CreateTestUser("user2", "user2@example.com", "")

		_, err := fx.service.Reactivate(ctx, &user)
		if !errors.Is(err, ErrNoActiveSubscription) {
			t.Errorf("Expected ErrNoActiveSubscription, got %v", err)
		}
	})
}

func TestSyncCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("NoSubscriptions", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		fx.client.listResult = nil

		snapshot, err := fx.service.SyncCustomer(ctx, "cus_test")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if snapshot.Status != models.SubscriptionNone {
			t.Errorf("Expected status 'none', got '%s'", snapshot.Status)
		}

		cached, _ := fx.snapshots.GetSnapshot(ctx, "cus_test")
		if cached == nil || cached.Status != models.SubscriptionNone {
			t.Errorf("Expected cached 'none' snapshot, got %v", cached)
		}
	})

	t.Run("ActiveSubscription", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		fx.client.listResult = []*stripe.Subscription{testSubscription("sub_9", PlanBusinessPro)}

		snapshot, err := fx.service.SyncCustomer(ctx, "cus_test")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if snapshot.SubscriptionID != "sub_9" {
			t.Errorf("Expected sub_9, got '%s'", snapshot.SubscriptionID)
		}
		if snapshot.CurrentPeriodStart != testPeriodStart || snapshot.CurrentPeriodEnd != testPeriodEnd {
			t.Errorf("Expected billing period from first item")
		}
		if plan, ok := PlanFromPrices(snapshot.PriceKeys); !ok || plan != PlanBusinessPro {
			t.Errorf("Expected snapshot to resolve to business_pro, got '%s'", plan)
		}
	})

	t.Run("FallsBackToPriceID", func(t *testing.T) {
		fx := newServiceFixture(t, PlanBasic)
		subscription := testSubscription("sub_9", PlanBasic)
		subscription.Items.Data[0].Price.LookupKey = ""
		fx.client.listResult = []*stripe.Subscription{subscription}

		snapshot, err := fx.service.SyncCustomer(ctx, "cus_test")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if snapshot.PriceKeys[0] != "price_parcel_basic_base" {
			t.Errorf("Expected price id fallback, got '%s'", snapshot.PriceKeys[0])
		}
	})
}
