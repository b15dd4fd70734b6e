package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"invoicedigest/internal/common"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		retryable     bool
		recordFailure bool
	}{
		{"context canceled", context.Canceled, false, false},
		{"deadline exceeded", context.DeadlineExceeded, false, false},
		{"wrapped cancel", fmt.Errorf("call: %w", context.Canceled), false, false},
		{"throttled", &HTTPStatusError{Operation: "chat", StatusCode: http.StatusTooManyRequests}, true, true},
		{"wrapped throttle", common.NewExtractionError("chat completion",
			&HTTPStatusError{Operation: "chat", StatusCode: http.StatusTooManyRequests}), true, true},
		{"server error", &HTTPStatusError{Operation: "chat", StatusCode: http.StatusBadGateway}, true, true},
		{"bad request", &HTTPStatusError{Operation: "chat", StatusCode: http.StatusBadRequest}, false, false},
		{"unauthorized", &HTTPStatusError{Operation: "chat", StatusCode: http.StatusUnauthorized}, false, false},
		{"network error", fakeNetError{}, true, true},
		{"terminal failure", errors.New("schema validation failed"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyError(tt.err)
			assert.Equal(t, tt.retryable, c.Retryable, "retryable")
			assert.Equal(t, tt.recordFailure, c.RecordFailure, "record failure")
		})
	}
}

func TestHTTPStatusErrorMessage(t *testing.T) {
	err := &HTTPStatusError{Operation: "chat completion", StatusCode: 429, Body: "rate limited"}
	assert.Equal(t, "chat completion status 429: rate limited", err.Error())

	bare := &HTTPStatusError{Operation: "chat completion", StatusCode: 500}
	assert.Equal(t, "chat completion status 500", bare.Error())
}
