package llm

import (
	"context"
	"errors"
	"strings"
)

// FailureKind classifies a generation failure so callers can decide
// between falling back and surfacing the error to the user.
type FailureKind int

const (
	// FailureOther covers failures with no more specific classification.
	FailureOther FailureKind = iota

	// FailureAuth indicates an invalid or missing API credential.
	FailureAuth

	// FailureRateLimit indicates the provider is throttling requests.
	FailureRateLimit

	// FailureTimeout indicates the call was cancelled or timed out.
	FailureTimeout
)

// Classify maps a generation error to a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureOther
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "401"):
		return FailureAuth
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "429"):
		return FailureRateLimit
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline"):
		return FailureTimeout
	default:
		return FailureOther
	}
}

// UserMessage returns a user-facing notice for a generation failure.
func UserMessage(err error) string {
	switch Classify(err) {
	case FailureAuth:
		return "Authentication with the language model failed. Check the configured API key."
	case FailureRateLimit:
		return "The language model is rate limiting requests. Try again shortly."
	case FailureTimeout:
		return "The language model took too long to respond. Try again."
	default:
		return "Something went wrong talking to the language model."
	}
}
