package serp

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Class is the retry classification of a remote-call failure.
type Class int

const (
	// Terminal failures are surfaced immediately.
	Terminal Class = iota
	// Recoverable failures signal rate limiting or quota exhaustion.
	Recoverable
)

func (c Class) String() string {
	if c == Recoverable {
		return "recoverable"
	}
	return "terminal"
}

const statusResourceExhausted = "RESOURCE_EXHAUSTED"

// Classify maps err onto a Class. Structured errors from the Gemini API and
// HTTP providers are inspected first. The message heuristic only looks at the
// innermost error, since wrapping layers add query text and URLs.
func Classify(err error) Class {
	if err == nil {
		return Terminal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Terminal
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyAPIError(*apiErrPtr)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.Challenge != "" {
			return Recoverable
		}
		return Terminal
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return Terminal
	}

	msg := innermost(err).Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, statusResourceExhausted) {
		return Recoverable
	}
	return Terminal
}

func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func classifyAPIError(e genai.APIError) Class {
	if e.Code == http.StatusTooManyRequests || e.Status == statusResourceExhausted {
		return Recoverable
	}
	return Terminal
}

// IsRecoverable reports whether err is worth retrying.
func IsRecoverable(err error) bool {
	return Classify(err) == Recoverable
}
