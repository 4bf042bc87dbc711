// Package util provides the retry timing helpers shared by the channel client
// and the REST client.
package util

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// DefaultMinWait is the minimum wait duration when invalid or zero.
	DefaultMinWait = time.Millisecond
	// DefaultMaxWait is the default maximum wait time if unspecified.
	DefaultMaxWait = 30 * time.Second
	// DefaultJitterFactor is the default fraction of wait time used for jitter.
	DefaultJitterFactor = 0.5
	// maxSafeShift prevents integer overflow in exponential backoff calculations.
	maxSafeShift = 62
)

// --------------------------------------------------------------------------------
// Utility Functions

// Backoff returns the delay before retry number attempt: min(base * 2^attempt, maxWait).
//
// The first retry (attempt 1) therefore waits twice the base. Attempt 0 yields base.
// Non-positive base and maxWait fall back to DefaultMinWait and DefaultMaxWait.
func Backoff(attempt uint, base, maxWait time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultMinWait
	}

	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	if attempt > maxSafeShift {
		return maxWait
	}

	// Check for potential overflow before shifting.
	if maxShifted := math.MaxInt64 / base; maxShifted < 1<<attempt {
		return maxWait
	}

	return min(base*(1<<attempt), maxWait)
}

// Wait blocks for Backoff(attempt, base, maxWait) plus optional random jitter.
//
// jitterFactor is the fraction of the delay added at random (0 disables jitter,
// values outside [0, 1] use DefaultJitterFactor). It returns ctx.Err() if the
// context is cancelled first.
//
// Example:
//
//	if err := util.Wait(ctx, 2, time.Second, 10*time.Second, 0); err != nil {
//	    return err
//	}
func Wait(ctx context.Context, attempt uint, base, maxWait time.Duration, jitterFactor float64) error {
	if jitterFactor < 0 || jitterFactor > 1 {
		jitterFactor = DefaultJitterFactor
	}

	wait := Backoff(attempt, base, maxWait)

	var jitter time.Duration

	if maxJitter := int64(float64(wait) * jitterFactor); maxJitter > 0 {
		j, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			return fmt.Errorf("failed to generate jitter: %w", err)
		}

		jitter = time.Duration(j.Int64())
	}

	t := time.NewTimer(wait + jitter)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
