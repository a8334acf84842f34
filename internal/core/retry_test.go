package core

import (
	"context"
	"errors"
	"testing"
)

func TestRetryPolicy_Do(t *testing.T) {
	serviceErr := &ServiceError{Cause: errors.New("http 500")}
	fatalErr := errors.New("fatal")

	tests := []struct {
		name          string
		attempts      int
		responses     []error
		expectedErr   error
		expectedCalls int
	}{
		{
			name:          "Success on first attempt",
			attempts:      3,
			responses:     []error{nil},
			expectedErr:   nil,
			expectedCalls: 1,
		},
		{
			name:          "Service error then success",
			attempts:      3,
			responses:     []error{serviceErr, nil},
			expectedErr:   nil,
			expectedCalls: 2,
		},
		{
			name:          "Service errors exhaust budget",
			attempts:      3,
			responses:     []error{serviceErr, serviceErr, serviceErr},
			expectedErr:   serviceErr,
			expectedCalls: 3,
		},
		{
			name:          "No match is not retried",
			attempts:      3,
			responses:     []error{ErrNoMatch},
			expectedErr:   ErrNoMatch,
			expectedCalls: 1,
		},
		{
			name:          "Fatal error is not retried",
			attempts:      3,
			responses:     []error{fatalErr},
			expectedErr:   fatalErr,
			expectedCalls: 1,
		},
		{
			name:          "Zero attempts clamp to one",
			attempts:      0,
			responses:     []error{serviceErr},
			expectedErr:   serviceErr,
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			policy := RetryPolicy{Attempts: tt.attempts}

			err := policy.Do(context.Background(), func(context.Context) error {
				resp := tt.responses[calls]
				calls++
				return resp
			})

			if !errors.Is(err, tt.expectedErr) {
				t.Errorf("Do() error = %v, want %v", err, tt.expectedErr)
			}
			if calls != tt.expectedCalls {
				t.Errorf("Do() made %d calls, want %d", calls, tt.expectedCalls)
			}
		})
	}
}

func TestRetryPolicy_OnRetryCallback(t *testing.T) {
	serviceErr := &ServiceError{Cause: errors.New("timeout")}

	var attempts []int
	policy := RetryPolicy{
		Attempts: 3,
		OnRetry: func(attempt int, err error) {
			if !errors.Is(err, serviceErr) {
				t.Errorf("OnRetry error = %v, want %v", err, serviceErr)
			}
			attempts = append(attempts, attempt)
		},
	}

	_ = policy.Do(context.Background(), func(context.Context) error {
		return serviceErr
	})

	// Two re-attempts after the first failure.
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	// A zero backoff must not let the timer outrun the cancelled
	// context; run repeatedly to catch any nondeterminism.
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())

		policy := RetryPolicy{Attempts: 3, Backoff: 0}

		calls := 0
		err := policy.Do(ctx, func(context.Context) error {
			calls++
			cancel()
			return &ServiceError{Cause: errors.New("unreachable")}
		})

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Do() error = %v, want context.Canceled", err)
		}
		if calls != 1 {
			t.Fatalf("Do() made %d calls after cancellation, want 1", calls)
		}
	}
}
