package cache

import (
	"context"
	"fmt"
	"sync"

	"parcelpoint.app/cloud/models"
)

// SnapshotStore holds the cached billing state. Two writers exist:
// billing.Service after every mutation, and the Stripe webhook
// handler. Everything else only reads.
type SnapshotStore interface {
	// GetSnapshot returns the cached subscription snapshot for a
	// billing customer, or (nil, nil) when none is cached.
	GetSnapshot(ctx context.Context, billingCustomerID string) (*models.SubscriptionSnapshot, error)
	SetSnapshot(ctx context.Context, billingCustomerID string, snapshot *models.SubscriptionSnapshot) error

	// User-to-billing-customer mapping mirror. The durable copy lives
	// in storage; this one saves a datastore read on hot paths.
	GetUserCustomerID(ctx context.Context, userID string) (string, error)
	SetUserCustomerID(ctx context.Context, userID, billingCustomerID string) error

	Close() error
}

func customerKey(billingCustomerID string) string {
	return fmt.Sprintf("stripe:customer:%s", billingCustomerID)
}

func userKey(userID string) string {
	return fmt.Sprintf("stripe:user:%s", userID)
}

// MemoryStore backs tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) GetSnapshot(ctx context.Context, billingCustomerID string) (*models.SubscriptionSnapshot, error) {
	m.mu.RLock()
	payload, exists := m.values[customerKey(billingCustomerID)]
	m.mu.RUnlock()
	if !exists {
		return nil, nil
	}
	return decodeSnapshot([]byte(payload))
}

func (m *MemoryStore) SetSnapshot(ctx context.Context, billingCustomerID string, snapshot *models.SubscriptionSnapshot) error {
	payload, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.values[customerKey(billingCustomerID)] = string(payload)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetUserCustomerID(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[userKey(userID)], nil
}

func (m *MemoryStore) SetUserCustomerID(ctx context.Context, userID, billingCustomerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[userKey(userID)] = billingCustomerID
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
