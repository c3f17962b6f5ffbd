package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parcelpoint.app/cloud/models"
	"parcelpoint.app/cloud/storage"
)

// TestStorage creates an empty memory storage for tests.
func TestStorage() *storage.MemoryStorage {
	return storage.NewMemoryStorage()
}

// CreateTestUser creates a test user with the given parameters. An
// empty stripeCustomerID models a user who never started checkout.
func CreateTestUser(id, email, stripeCustomerID string) models.User {
	return models.User{
		ID:               id,
		Email:            email,
		Name:             "Test User",
		Role:             models.RoleCustomer,
		StripeCustomerID: stripeCustomerID,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

func CreateTestCustomer(id, email string) models.Customer {
	return models.Customer{
		ID:        id,
		Name:      "Test Customer",
		Email:     email,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func CreateTestLocation(id, name string) models.Location {
	return models.Location{
		ID:          id,
		Name:        name,
		Address:     "1 Test Street",
		City:        "Testville",
		LockerCount: 24,
		Active:      true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func CreateTestOrder(id, customerID, locationID, pickupCode, status string) models.Order {
	order := models.Order{
		ID:             id,
		CustomerID:     customerID,
		LocationID:     locationID,
		LockerNumber:   7,
		Carrier:        "dhl",
		TrackingNumber: "JD0123456789",
		PickupCode:     pickupCode,
		Status:         status,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if status == models.OrderInLocker || status == models.OrderPickedUp {
		delivered := time.Now().Add(-2 * time.Hour)
		order.DeliveredAt = &delivered
	}
	if status == models.OrderPickedUp {
		picked := time.Now().Add(-time.Hour)
		order.PickedUpAt = &picked
	}
	return order
}

// SetupTestData populates storage with a user, a customer, a location
// and an order waiting in a locker under code 111222.
func SetupTestData(store storage.Storage) error {
	ctx := context.Background()

	user := CreateTestUser("user1", "user1@example.com", "cus_user1")
	if err := store.SaveUser(ctx, &user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	customer := CreateTestCustomer("customer1", "customer1@example.com")
	if err := store.SaveCustomer(ctx, &customer); err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}

	location := CreateTestLocation("location1", "Central Station")
	if err := store.SaveLocation(ctx, &location); err != nil {
		return fmt.Errorf("failed to save location: %w", err)
	}

	order := CreateTestOrder("order1", "customer1", "location1", "111222", models.OrderInLocker)
	if err := store.SaveOrder(ctx, &order); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

// MakeRequest builds and serves an authenticated JSON request against
// the given router. Pass a nil body for bodyless requests and an empty
// userID to leave the request unauthenticated.
func MakeRequest(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Auth-User", userID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// DecodeResponse unmarshals a JSON response body into out.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// AssertErrorResponse checks status code and error message.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()

	if w.Code != expectedStatus {
		t.Errorf("Expected status %d, got %d", expectedStatus, w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}

	if expectedError != "" && response["error"] != expectedError {
		t.Errorf("Expected error '%s', got '%s'", expectedError, response["error"])
	}
}

// CreateStripeWebhookPayload builds a mock Stripe event envelope.
func CreateStripeWebhookPayload(eventType string, objectData map[string]any) []byte {
	event := map[string]any{
		"id":   "evt_test123",
		"type": eventType,
		"data": map[string]any{
			"object": objectData,
		},
	}

	payload, _ := json.Marshal(event)
	return payload
}

// CreateMockSubscriptionEvent builds the object payload for a
// customer.subscription.* event.
func CreateMockSubscriptionEvent(subscriptionID, customerID, status string) map[string]any {
	return map[string]any{
		"id":     subscriptionID,
		"status": status,
		"customer": map[string]any{
			"id": customerID,
		},
	}
}

// MakeStripeWebhookRequest posts a webhook payload with a dummy
// signature. Tests set TEST_MODE to skip verification.
func MakeStripeWebhookRequest(t *testing.T, router http.Handler, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", "test-signature")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
