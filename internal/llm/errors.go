package llm

import "errors"

var (
	// ErrUnavailable indicates the provider could not be reached.
	ErrUnavailable = errors.New("llm provider unavailable")

	// ErrTimeout indicates the LLM request exceeded the configured timeout.
	ErrTimeout = errors.New("llm request timed out")

	// ErrEmptyResponse indicates the provider answered without a usable
	// first choice.
	ErrEmptyResponse = errors.New("llm returned no content")

	// ErrInvalidOutput indicates the LLM response could not be parsed
	// into the expected structured format.
	ErrInvalidOutput = errors.New("invalid llm output format")

	// ErrRetryExhausted indicates all retry attempts have been exhausted.
	ErrRetryExhausted = errors.New("llm retry attempts exhausted")

	// ErrNotConfigured indicates a missing credential or unknown provider.
	ErrNotConfigured = errors.New("llm provider not configured")
)
