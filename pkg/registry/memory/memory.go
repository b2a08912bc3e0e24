package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rehash-labs/erc7739-go/pkg/registry"
)

// MemoryStore is an in-memory implementation of registry.Store.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies records to prevent external mutation.
type MemoryStore struct {
	mu sync.RWMutex

	accounts map[string]*registry.AccountRecord

	closed bool
}

// NewMemoryStore creates a new in-memory registry.
// Prints a loud warning since this should only be used for testing.
func NewMemoryStore() *MemoryStore {
	fmt.Println("⚠️  WARNING: Using in-memory registry - ALL DATA WILL BE LOST ON RESTART")
	fmt.Println("⚠️  This should ONLY be used for testing. Set SIG_REGISTRY_BACKEND=badger for production")

	return &MemoryStore{
		accounts: make(map[string]*registry.AccountRecord),
	}
}

// SaveAccount persists an account record.
func (m *MemoryStore) SaveAccount(record *registry.AccountRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil AccountRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("registry is closed")
	}

	m.accounts[record.AccountID] = record.Clone()

	return nil
}

// GetAccount retrieves an account record by id.
func (m *MemoryStore) GetAccount(accountID string) (*registry.AccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("registry is closed")
	}

	record, exists := m.accounts[accountID]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return record.Clone(), nil
}

// ListAccounts returns all account records sorted by account id.
func (m *MemoryStore) ListAccounts() ([]*registry.AccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("registry is closed")
	}

	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]*registry.AccountRecord, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.accounts[id].Clone())
	}

	return result, nil
}

// DeleteAccount removes an account record.
func (m *MemoryStore) DeleteAccount(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("registry is closed")
	}

	delete(m.accounts, accountID)
	return nil
}

// Close shuts down the registry.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the registry is operational.
func (m *MemoryStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("registry is closed")
	}

	return nil
}
