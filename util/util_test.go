// Package util_test verifies backoff timing and cancellation.
package util_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/qntx/gamelink/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// tolerance accounts for system timing variations and jitter.
	tolerance = 50 * time.Millisecond
)

// --------------------------------------------------------------------------------
// Tests

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		attempt uint
		base    time.Duration
		maxWait time.Duration
		want    time.Duration
	}{
		{name: "ZeroAttempt", attempt: 0, base: time.Second, maxWait: 30 * time.Second, want: time.Second},
		{name: "FirstRetry", attempt: 1, base: time.Second, maxWait: 30 * time.Second, want: 2 * time.Second},
		{name: "FourthRetry", attempt: 4, base: time.Second, maxWait: 30 * time.Second, want: 16 * time.Second},
		{name: "Capped", attempt: 5, base: time.Second, maxWait: 30 * time.Second, want: 30 * time.Second},
		{name: "HugeAttempt", attempt: 200, base: time.Second, maxWait: 30 * time.Second, want: 30 * time.Second},
		{name: "OverflowGuard", attempt: 40, base: time.Hour, maxWait: time.Duration(math.MaxInt64), want: time.Duration(math.MaxInt64)},
		{name: "ZeroBase", attempt: 1, base: 0, maxWait: 0, want: 2 * util.DefaultMinWait},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, util.Backoff(tt.attempt, tt.base, tt.maxWait))
		})
	}
}

// TestBackoffMonotonic checks each delay doubles the previous one until the cap.
func TestBackoffMonotonic(t *testing.T) {
	t.Parallel()

	base, maxWait := time.Second, 30*time.Second

	prev := util.Backoff(1, base, maxWait)
	for attempt := uint(2); attempt <= 10; attempt++ {
		d := util.Backoff(attempt, base, maxWait)
		assert.GreaterOrEqual(t, d, prev)
		assert.Equal(t, min(prev*2, maxWait), d)

		prev = d
	}
}

// TestWait verifies Wait's backoff, jitter, and cancellation behavior.
func TestWait(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ctx     context.Context
		attempt uint
		base    time.Duration
		maxWait time.Duration
		jitter  float64
		wantMin time.Duration
		wantMax time.Duration
		wantErr error
	}{
		{
			name:    "FirstAttempt",
			ctx:     testContext(t),
			attempt: 1,
			base:    50 * time.Millisecond,
			maxWait: 2 * time.Second,
			jitter:  0.5,
			wantMin: 100 * time.Millisecond,
			wantMax: 150*time.Millisecond + tolerance,
		},
		{
			name:    "MaxCapped",
			ctx:     testContext(t),
			attempt: 10,
			base:    10 * time.Millisecond,
			maxWait: 200 * time.Millisecond,
			jitter:  0,
			wantMin: 200 * time.Millisecond,
			wantMax: 200*time.Millisecond + tolerance,
		},
		{
			name:    "NoJitter",
			ctx:     testContext(t),
			attempt: 2,
			base:    25 * time.Millisecond,
			maxWait: time.Second,
			jitter:  0,
			wantMin: 100 * time.Millisecond,
			wantMax: 100*time.Millisecond + tolerance,
		},
		{
			name:    "ContextCancel",
			ctx:     canceledContext(),
			attempt: 1,
			base:    100 * time.Millisecond,
			maxWait: 2 * time.Second,
			jitter:  0.5,
			wantMax: 10 * time.Millisecond,
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start := time.Now()
			err := util.Wait(tt.ctx, tt.attempt, tt.base, tt.maxWait, tt.jitter)
			duration := time.Since(start)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.LessOrEqual(t, duration, tt.wantMax, "Canceled wait should be quick")

				return
			}

			require.NoError(t, err)
			assert.GreaterOrEqual(t, duration, tt.wantMin, "Wait duration too short")
			assert.LessOrEqual(t, duration, tt.wantMax, "Wait duration too long")
		})
	}
}

// --------------------------------------------------------------------------------
// Helpers

// canceledContext creates a pre-canceled context for testing.
func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	return ctx
}
