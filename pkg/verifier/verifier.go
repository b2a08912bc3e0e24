// Package verifier orchestrates defensive rehashing for smart-account
// signatures: it dispatches each call to the nested typed-data workflow or
// the plain-message workflow, rebuilds the account-bound digest for the
// selected arm, and maps the outcome onto the standard magic values.
package verifier

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rehash-labs/erc7739-go/pkg/account"
	"github.com/rehash-labs/erc7739-go/pkg/eip712"
	"github.com/rehash-labs/erc7739-go/pkg/envelope"
	"github.com/rehash-labs/erc7739-go/pkg/rehash"
)

// Verdict classifies a verification outcome. The zero value is Invalid so an
// uninitialized result can never read as accepted.
type Verdict uint8

const (
	Invalid Verdict = iota
	Valid
	Malformed
)

// String returns the lowercase verdict name.
func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Malformed:
		return "malformed"
	default:
		return "invalid"
	}
}

// Workflow identifies the verification arm selected for a call.
type Workflow uint8

const (
	// WorkflowNone marks calls that never reached dispatch, such as the
	// support probe.
	WorkflowNone Workflow = iota
	WorkflowTypedDataSign
	WorkflowPersonalSign
	// WorkflowDirect validates the raw blob against the raw hash when the
	// account has opted out of rehashing.
	WorkflowDirect
)

// String returns the workflow name.
func (w Workflow) String() string {
	switch w {
	case WorkflowTypedDataSign:
		return "typed_data_sign"
	case WorkflowPersonalSign:
		return "personal_sign"
	case WorkflowDirect:
		return "direct"
	default:
		return "none"
	}
}

// The ERC-1271 result codes, plus the marker answering the rehashing
// support probe.
var (
	MagicValueSuccess = [4]byte{0x16, 0x26, 0xba, 0x7e}
	MagicValueFailure = [4]byte{0xff, 0xff, 0xff, 0xff}
	MagicValueSupport = [4]byte{0x77, 0x39, 0x00, 0x01}
)

// SupportProbeHash is the sentinel digest of the capability probe.
var SupportProbeHash = common.HexToHash("0x7739773977397739773977397739773977397739773977397739773977397739")

// IsSupportProbe reports whether a call is the static capability probe: the
// sentinel digest with an empty signature.
func IsSupportProbe(hash common.Hash, signature []byte) bool {
	return len(signature) == 0 && hash == SupportProbeHash
}

// Result describes a completed verification.
type Result struct {
	Verdict  Verdict
	Workflow Workflow
	// Digest is the rebuilt digest the signature was checked against.
	Digest common.Hash
	// Probe is set when the call was the support probe; no verification ran
	// and the verdict is not meaningful as an acceptance.
	Probe bool
}

// MagicValue maps the result onto the ERC-1271 wire codes.
func (r Result) MagicValue() [4]byte {
	switch {
	case r.Probe:
		return MagicValueSupport
	case r.Verdict == Valid:
		return MagicValueSuccess
	default:
		return MagicValueFailure
	}
}

// Config assembles a verification engine for one account.
type Config struct {
	// Validator is the account's signature-recovery primitive.
	Validator account.Validator
	// Domain is the account's own EIP-712 domain.
	Domain eip712.Domain
	// SkipRehash opts the account out of defensive rehashing; signatures are
	// then validated directly against the supplied hash. Intended for
	// accounts that are themselves wrapped by another rehashing layer.
	SkipRehash bool
}

// Engine verifies extended signatures for one account. It holds no mutable
// state; every call is independent and deterministic.
type Engine struct {
	validator  account.Validator
	domain     eip712.Domain
	skipRehash bool
}

// New creates an engine from the config.
func New(cfg Config) (*Engine, error) {
	if cfg.Validator == nil {
		return nil, fmt.Errorf("verifier requires a signature validator")
	}
	return &Engine{
		validator:  cfg.Validator,
		domain:     cfg.Domain,
		skipRehash: cfg.SkipRehash,
	}, nil
}

// Verify classifies hash and signature into a verdict.
//
// The support probe short-circuits before any workflow. Otherwise the blob
// is decoded as an extended signature: a candidate digest rebuilt from the
// embedded app separator and contents hash selects the typed-data arm on
// match, and the plain-message arm on mismatch. Blobs that do not decode go
// through the plain-message arm unchanged, which keeps classic 65-byte
// signatures verifiable; their failures surface as Malformed.
func (e *Engine) Verify(hash common.Hash, signature []byte) Result {
	if IsSupportProbe(hash, signature) {
		return Result{Probe: true, Workflow: WorkflowNone}
	}

	if e.skipRehash {
		return e.finish(WorkflowDirect, hash, signature, Invalid)
	}

	env, err := envelope.Decode(signature)
	if err != nil {
		digest := rehash.PersonalSignHash(e.domain.Separator(), hash)
		return e.finish(WorkflowPersonalSign, digest, signature, Malformed)
	}

	if rehash.CandidateHash(env.AppDomainSeparator, env.ContentsHash) == hash {
		descriptor, err := env.Descriptor()
		if err != nil {
			// The arm is already committed; an unsafe type name is a
			// security rejection, not a reason to try the other arm.
			return Result{Verdict: Invalid, Workflow: WorkflowTypedDataSign}
		}
		digest := rehash.TypedDataSignHash(
			env.AppDomainSeparator,
			env.ContentsHash,
			e.domain,
			rehash.TypedDataSignTypeHash(descriptor),
		)
		return e.finish(WorkflowTypedDataSign, digest, env.OriginalSignature, Invalid)
	}

	digest := rehash.PersonalSignHash(e.domain.Separator(), hash)
	return e.finish(WorkflowPersonalSign, digest, signature, Invalid)
}

// IsValidSignature mirrors the ERC-1271 entry point: the support marker for
// the probe, the success magic for Valid, the failure magic otherwise.
func (e *Engine) IsValidSignature(hash common.Hash, signature []byte) [4]byte {
	return e.Verify(hash, signature).MagicValue()
}

func (e *Engine) finish(workflow Workflow, digest common.Hash, signature []byte, failVerdict Verdict) Result {
	ok, err := e.validator.ValidateSignature(digest, signature)
	if err != nil || !ok {
		return Result{Verdict: failVerdict, Workflow: workflow, Digest: digest}
	}
	return Result{Verdict: Valid, Workflow: workflow, Digest: digest}
}
