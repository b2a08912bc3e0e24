package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rehash-labs/erc7739-go/pkg/account"
	"github.com/rehash-labs/erc7739-go/pkg/types"
	"github.com/rehash-labs/erc7739-go/pkg/verifier"
)

var errUnknownAccount = errors.New("unknown account")

// handleVerify handles the /v1/verify endpoint.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := uuid.New().String()

	var req types.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, requestID, http.StatusBadRequest, fmt.Sprintf("failed to parse request: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, requestID, http.StatusBadRequest, err.Error())
		return
	}

	engine, err := s.engineFor(req.AccountID, req.Account)
	if err != nil {
		s.writeResolveError(w, requestID, req.AccountID, err)
		return
	}

	result := engine.Verify(req.Hash, req.Signature)
	magic := result.MagicValue()

	s.logger.Sugar().Infow("Verified signature",
		"request_id", requestID,
		"account_id", req.AccountID,
		"verdict", result.Verdict.String(),
		"workflow", result.Workflow.String(),
	)

	s.writeJSON(w, http.StatusOK, types.VerifyResponse{
		RequestID:  requestID,
		Verdict:    result.Verdict.String(),
		Workflow:   result.Workflow.String(),
		MagicValue: magic[:],
		Digest:     result.Digest,
	})
}

// handleProbe handles the /v1/probe endpoint.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := uuid.New().String()

	var req types.ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, requestID, http.StatusBadRequest, fmt.Sprintf("failed to parse request: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, requestID, http.StatusBadRequest, err.Error())
		return
	}

	engine, err := s.engineFor(req.AccountID, req.Account)
	if err != nil {
		s.writeResolveError(w, requestID, req.AccountID, err)
		return
	}

	magic := engine.IsValidSignature(verifier.SupportProbeHash, nil)

	s.writeJSON(w, http.StatusOK, types.ProbeResponse{
		RequestID:  requestID,
		Supported:  magic == verifier.MagicValueSupport,
		MagicValue: magic[:],
	})
}

// handleAccounts handles the /v1/accounts endpoint for all methods.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAccountUpsert(w, r)
	case http.MethodGet:
		s.handleAccountGet(w, r)
	case http.MethodDelete:
		s.handleAccountDelete(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAccountUpsert(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req types.AccountUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, requestID, http.StatusBadRequest, fmt.Sprintf("failed to parse request: %v", err))
		return
	}

	record := req.Record()
	if err := record.Validate(); err != nil {
		s.writeError(w, requestID, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := s.store.GetAccount(record.AccountID)
	if err != nil {
		s.writeError(w, requestID, http.StatusInternalServerError, fmt.Sprintf("registry lookup failed: %v", err))
		return
	}

	now := time.Now().Unix()
	record.CreatedAt = now
	record.UpdatedAt = now
	status := http.StatusCreated
	if existing != nil {
		record.CreatedAt = existing.CreatedAt
		status = http.StatusOK
	}

	if err := s.store.SaveAccount(record); err != nil {
		s.writeError(w, requestID, http.StatusInternalServerError, fmt.Sprintf("failed to save account: %v", err))
		return
	}

	s.logger.Sugar().Infow("Saved account record",
		"request_id", requestID,
		"account_id", record.AccountID,
		"owner", record.Owner.Hex(),
		"skip_rehash", record.SkipRehash,
	)

	s.writeJSON(w, status, types.AccountResponse{RequestID: requestID, Account: record})
}

func (s *Server) handleAccountGet(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		records, err := s.store.ListAccounts()
		if err != nil {
			s.writeError(w, requestID, http.StatusInternalServerError, fmt.Sprintf("failed to list accounts: %v", err))
			return
		}
		s.writeJSON(w, http.StatusOK, types.AccountListResponse{RequestID: requestID, Accounts: records})
		return
	}

	record, err := s.store.GetAccount(accountID)
	if err != nil {
		s.writeError(w, requestID, http.StatusInternalServerError, fmt.Sprintf("registry lookup failed: %v", err))
		return
	}
	if record == nil {
		s.writeError(w, requestID, http.StatusNotFound, fmt.Sprintf("account %s not found", accountID))
		return
	}

	s.writeJSON(w, http.StatusOK, types.AccountResponse{RequestID: requestID, Account: record})
}

func (s *Server) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		s.writeError(w, requestID, http.StatusBadRequest, "accountId is required")
		return
	}

	if err := s.store.DeleteAccount(accountID); err != nil {
		s.writeError(w, requestID, http.StatusInternalServerError, fmt.Sprintf("failed to delete account: %v", err))
		return
	}

	s.logger.Sugar().Infow("Deleted account record", "request_id", requestID, "account_id", accountID)
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles the /healthz endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.store.HealthCheck(); err != nil {
		s.logger.Sugar().Errorw("Registry health check failed", "backend", s.config.Backend, "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, types.HealthResponse{Status: "degraded", Backend: s.config.Backend})
		return
	}

	s.writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", Backend: s.config.Backend})
}

// engineFor assembles a verification engine from a stored record or inline
// account material.
func (s *Server) engineFor(accountID string, inline *types.InlineAccount) (*verifier.Engine, error) {
	cfg := verifier.Config{}
	if inline != nil {
		cfg.Validator = account.NewECDSAValidator(inline.Owner)
		cfg.Domain = inline.Domain
		cfg.SkipRehash = inline.SkipRehash
	} else {
		record, err := s.store.GetAccount(accountID)
		if err != nil {
			return nil, fmt.Errorf("registry lookup failed: %w", err)
		}
		if record == nil {
			return nil, fmt.Errorf("%w: %s", errUnknownAccount, accountID)
		}
		cfg.Validator = account.NewECDSAValidator(record.Owner)
		cfg.Domain = record.Domain
		cfg.SkipRehash = record.SkipRehash
	}
	return verifier.New(cfg)
}

func (s *Server) writeResolveError(w http.ResponseWriter, requestID, accountID string, err error) {
	if errors.Is(err, errUnknownAccount) {
		s.writeError(w, requestID, http.StatusNotFound, fmt.Sprintf("account %s not found", accountID))
		return
	}
	s.writeError(w, requestID, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, requestID string, status int, message string) {
	if status >= http.StatusInternalServerError {
		s.logger.Sugar().Errorw("Request failed", "request_id", requestID, "status", status, "error", message)
	}
	s.writeJSON(w, status, types.ErrorResponse{RequestID: requestID, Error: message})
}
