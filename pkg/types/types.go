// Package types holds the request and response bodies of the verification
// service API. Hashes and byte blobs travel as 0x-prefixed hex.
package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/rehash-labs/erc7739-go/pkg/eip712"
	"github.com/rehash-labs/erc7739-go/pkg/registry"
)

// InlineAccount carries the verification material for a single call, for
// callers that do not want the service to persist anything.
type InlineAccount struct {
	Owner      common.Address `json:"owner"`
	Domain     eip712.Domain  `json:"domain"`
	SkipRehash bool           `json:"skipRehash,omitempty"`
}

// VerifyRequest asks the service to verify a signature. Exactly one of
// AccountID (a stored record) or Account (inline material) must be set.
type VerifyRequest struct {
	AccountID string         `json:"accountId,omitempty"`
	Account   *InlineAccount `json:"account,omitempty"`
	Hash      common.Hash    `json:"hash"`
	Signature hexutil.Bytes  `json:"signature"`
}

// Validate checks that the request names exactly one account source.
func (r *VerifyRequest) Validate() error {
	if r.AccountID == "" && r.Account == nil {
		return fmt.Errorf("either accountId or account is required")
	}
	if r.AccountID != "" && r.Account != nil {
		return fmt.Errorf("accountId and account are mutually exclusive")
	}
	return nil
}

// VerifyResponse reports the outcome of a verification call.
type VerifyResponse struct {
	RequestID  string        `json:"requestId"`
	Verdict    string        `json:"verdict"`
	Workflow   string        `json:"workflow"`
	MagicValue hexutil.Bytes `json:"magicValue"`
	// Digest is the rebuilt account-bound digest the signature was checked
	// against; zero for probe calls.
	Digest common.Hash `json:"digest"`
}

// ProbeRequest runs the static support probe for an account.
type ProbeRequest struct {
	AccountID string         `json:"accountId,omitempty"`
	Account   *InlineAccount `json:"account,omitempty"`
}

// Validate checks that the request names exactly one account source.
func (r *ProbeRequest) Validate() error {
	if r.AccountID == "" && r.Account == nil {
		return fmt.Errorf("either accountId or account is required")
	}
	if r.AccountID != "" && r.Account != nil {
		return fmt.Errorf("accountId and account are mutually exclusive")
	}
	return nil
}

// ProbeResponse reports whether the account answers the rehashing support
// probe, along with the raw marker it returned.
type ProbeResponse struct {
	RequestID  string        `json:"requestId"`
	Supported  bool          `json:"supported"`
	MagicValue hexutil.Bytes `json:"magicValue"`
}

// AccountUpsertRequest creates or replaces a stored account record. The
// service owns the record timestamps.
type AccountUpsertRequest struct {
	AccountID  string         `json:"accountId"`
	Owner      common.Address `json:"owner"`
	Domain     eip712.Domain  `json:"domain"`
	SkipRehash bool           `json:"skipRehash,omitempty"`
}

// Record converts the request into a registry record, without timestamps.
func (r *AccountUpsertRequest) Record() *registry.AccountRecord {
	return &registry.AccountRecord{
		AccountID:  r.AccountID,
		Owner:      r.Owner,
		Domain:     r.Domain,
		SkipRehash: r.SkipRehash,
	}
}

// AccountResponse wraps a single stored record.
type AccountResponse struct {
	RequestID string                  `json:"requestId"`
	Account   *registry.AccountRecord `json:"account"`
}

// AccountListResponse wraps the full stored account set.
type AccountListResponse struct {
	RequestID string                    `json:"requestId"`
	Accounts  []*registry.AccountRecord `json:"accounts"`
}

// HealthResponse reports service liveness and the registry backend behind it.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error"`
}
