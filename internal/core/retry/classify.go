// Package retry classifies chain-facing failures and wraps operations
// with category-aware backoff. It is the single choke point every
// read-model fetch passes through.
package retry

import (
	"context"
	"errors"
	"strings"

	"github.com/gatewise-lab/project-gatewise/internal/chain"
	"github.com/gatewise-lab/project-gatewise/internal/core/record"
)

// Category is the machine classification of a failure.
type Category string

const (
	CategoryNetwork          Category = "network"
	CategoryContract         Category = "contract"
	CategoryChainUnsupported Category = "chain_unsupported"
	CategoryNotDeployed      Category = "contract_not_deployed"
	CategoryRateLimit        Category = "rate_limit"
	CategoryTimeout          Category = "timeout"
	CategoryValidation       Category = "validation"
	CategoryCache            Category = "cache"
	CategoryUnknown          Category = "unknown"
)

// ClassifiedError pairs a raw failure with its category, retryability and
// a user-facing message distinct from the raw error text.
type ClassifiedError struct {
	Category    Category
	Retryable   bool
	UserMessage string
	Cause       error
}

func (e *ClassifiedError) Error() string {
	return string(e.Category) + ": " + e.Cause.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

type categoryProfile struct {
	retryable   bool
	userMessage string
}

var profiles = map[Category]categoryProfile{
	CategoryNetwork:          {true, "Network problem while reaching the blockchain. Retrying."},
	CategoryContract:         {true, "The contract rejected the request. Retrying shortly."},
	CategoryChainUnsupported: {false, "This network is not supported. Please switch network."},
	CategoryNotDeployed:      {false, "The ticketing contract is not deployed on this network. Please switch network."},
	CategoryRateLimit:        {true, "The RPC provider is rate limiting requests. Retrying with backoff."},
	CategoryTimeout:          {true, "The blockchain request timed out. Retrying."},
	CategoryValidation:       {false, "The request or on-chain data is invalid and cannot be retried."},
	CategoryCache:            {true, "Local cache problem. Retrying."},
	CategoryUnknown:          {true, "Something went wrong. Retrying."},
}

// Classify maps an error to its ClassifiedError. Structured error types
// are checked first; string patterns are the fallback for unstructured
// RPC errors only.
func Classify(err error) *ClassifiedError {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}
	return newClassified(categoryOf(err), err)
}

func newClassified(cat Category, cause error) *ClassifiedError {
	profile := profiles[cat]
	return &ClassifiedError{
		Category:    cat,
		Retryable:   profile.retryable,
		UserMessage: profile.userMessage,
		Cause:       cause,
	}
}

func categoryOf(err error) Category {
	switch {
	case errors.Is(err, chain.ErrChainUnsupported):
		return CategoryChainUnsupported
	case errors.Is(err, chain.ErrContractNotDeployed):
		return CategoryNotDeployed
	case errors.Is(err, record.ErrMalformedRecord):
		return CategoryValidation
	case errors.Is(err, chain.ErrExecutionReverted):
		return CategoryContract
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	}
	return categoryFromMessage(err.Error())
}

// categoryFromMessage pattern-matches raw provider error text. Providers
// rarely return structured codes for transport failures, so this stays
// as the last resort.
func categoryFromMessage(msg string) Category {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "rate limit", "too many requests", "429"):
		return CategoryRateLimit
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return CategoryTimeout
	case containsAny(lower, "connection refused", "no such host", "connection reset",
		"network", "eof", "broken pipe", "dial tcp"):
		return CategoryNetwork
	case containsAny(lower, "user rejected", "user denied", "insufficient funds",
		"nonce too low", "nonce too high", "replacement transaction"):
		return CategoryValidation
	case containsAny(lower, "execution reverted", "revert", "contract not ready"):
		return CategoryContract
	}
	return CategoryUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
