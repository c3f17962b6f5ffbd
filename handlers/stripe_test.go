package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v82"

	"parcelpoint.app/cloud/billing"
	"parcelpoint.app/cloud/internal/testutil"
	"parcelpoint.app/cloud/models"
)

func TestStripeWebhook(t *testing.T) {
	t.Run("SubscriptionUpdatedTriggersSync", func(t *testing.T) {
		t.Setenv("TEST_MODE", "true")
		env := newTestEnv(t)

		// Stripe now reports premium; the cached snapshot still says basic.
		env.client.list = []*stripe.Subscription{stubSubscription("sub_1", billing.PlanPremium)}

		payload := testutil.CreateStripeWebhookPayload("customer.subscription.updated",
			testutil.CreateMockSubscriptionEvent("sub_1", "cus_user1", "active"))

		w := testutil.MakeStripeWebhookRequest(t, env.server.Router, payload)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		snapshot, err := env.snapshots.GetSnapshot(context.Background(), "cus_user1")
		if err != nil || snapshot == nil {
			t.Fatalf("Expected refreshed snapshot, got %v, %v", snapshot, err)
		}
		if plan, _ := billing.PlanFromPrices(snapshot.PriceKeys); plan != billing.PlanPremium {
			t.Errorf("Expected snapshot resynced to premium, got '%s'", plan)
		}
	})

	t.Run("SubscriptionDeletedClearsSnapshot", func(t *testing.T) {
		t.Setenv("TEST_MODE", "true")
		env := newTestEnv(t)
		env.client.list = nil

		payload := testutil.CreateStripeWebhookPayload("customer.subscription.deleted",
			testutil.CreateMockSubscriptionEvent("sub_1", "cus_user1", "canceled"))

		w := testutil.MakeStripeWebhookRequest(t, env.server.Router, payload)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		snapshot, _ := env.snapshots.GetSnapshot(context.Background(), "cus_user1")
		if snapshot == nil || snapshot.Status != models.SubscriptionNone {
			t.Errorf("Expected 'none' snapshot after deletion, got %+v", snapshot)
		}
	})

	t.Run("CheckoutCompletedTriggersSync", func(t *testing.T) {
		t.Setenv("TEST_MODE", "true")
		env := newTestEnv(t)
		env.client.list = []*stripe.Subscription{stubSubscription("sub_1", billing.PlanBasicPlus)}

		payload := testutil.CreateStripeWebhookPayload("checkout.session.completed", map[string]any{
			"id": "cs_test",
			"customer": map[string]any{
				"id": "cus_user1",
			},
		})

		w := testutil.MakeStripeWebhookRequest(t, env.server.Router, payload)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		snapshot, _ := env.snapshots.GetSnapshot(context.Background(), "cus_user1")
		if plan, _ := billing.PlanFromPrices(snapshot.PriceKeys); plan != billing.PlanBasicPlus {
			t.Errorf("Expected snapshot on basic_plus, got '%s'", plan)
		}
	})

	t.Run("UnhandledEventAcknowledged", func(t *testing.T) {
		t.Setenv("TEST_MODE", "true")
		env := newTestEnv(t)

		payload := testutil.CreateStripeWebhookPayload("invoice.finalized", map[string]any{"id": "in_1"})

		w := testutil.MakeStripeWebhookRequest(t, env.server.Router, payload)
		if w.Code != http.StatusOK {
			t.Errorf("Expected unhandled events acknowledged with 200, got %d", w.Code)
		}

		// The cached snapshot must be untouched.
		snapshot, _ := env.snapshots.GetSnapshot(context.Background(), "cus_user1")
		if plan, _ := billing.PlanFromPrices(snapshot.PriceKeys); plan != billing.PlanBasic {
			t.Errorf("Expected snapshot untouched, got '%s'", plan)
		}
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		t.Setenv("TEST_MODE", "true")
		env := newTestEnv(t)

		w := testutil.MakeStripeWebhookRequest(t, env.server.Router, []byte("not json"))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for malformed payload, got %d", w.Code)
		}
	})

	t.Run("BadSignatureRejected", func(t *testing.T) {
		env := newTestEnv(t)

		payload := testutil.CreateStripeWebhookPayload("customer.subscription.updated",
			testutil.CreateMockSubscriptionEvent("sub_1", "cus_user1", "active"))

		w := testutil.MakeStripeWebhookRequest(t, env.server.Router, payload)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for bad signature, got %d", w.Code)
		}
	})
}
