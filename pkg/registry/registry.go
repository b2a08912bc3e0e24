package registry

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rehash-labs/erc7739-go/pkg/eip712"
)

// AccountRecord is the per-account verification material the service keeps:
// who may sign for the account, which EIP-712 domain the account rehashes
// under, and whether the account opted out of defensive rehashing.
type AccountRecord struct {
	AccountID  string         `json:"accountId"`
	Owner      common.Address `json:"owner"`
	Domain     eip712.Domain  `json:"domain"`
	SkipRehash bool           `json:"skipRehash"`
	CreatedAt  int64          `json:"createdAt"`
	UpdatedAt  int64          `json:"updatedAt"`
}

// Validate checks the fields a record needs before it can back verification.
func (r *AccountRecord) Validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("accountId cannot be empty")
	}
	if r.Owner == (common.Address{}) {
		return fmt.Errorf("owner cannot be the zero address")
	}
	return nil
}

// Clone returns a deep copy so stored records cannot be mutated through
// returned pointers.
func (r *AccountRecord) Clone() *AccountRecord {
	if r == nil {
		return nil
	}

	cp := *r
	if r.Domain.ChainId != nil {
		cp.Domain.ChainId = new(big.Int).Set(r.Domain.ChainId)
	}
	return &cp
}

// Store is the persistence contract shared by all registry backends.
//
// GetAccount returns (nil, nil) when the account is unknown; absence is not
// an error. DeleteAccount is idempotent. Close is idempotent and all other
// operations fail once the store is closed.
type Store interface {
	SaveAccount(record *AccountRecord) error
	GetAccount(accountID string) (*AccountRecord, error)
	ListAccounts() ([]*AccountRecord, error)
	DeleteAccount(accountID string) error
	HealthCheck() error
	Close() error
}

// MarshalAccountRecord serializes an AccountRecord to JSON bytes.
func MarshalAccountRecord(record *AccountRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil AccountRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal AccountRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalAccountRecord deserializes an AccountRecord from JSON bytes.
func UnmarshalAccountRecord(data []byte) (*AccountRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record AccountRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to AccountRecord: %w", err)
	}

	return &record, nil
}
