package errors

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker tripping at 3 failures
	cb := NewCircuitBreaker("origin",
		WithMaxFailures(3),
		WithResetTimeout(1*time.Second),
	)

	// When: the origin fails 3 times in a row
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error {
			return errors.New("origin down")
		})
	}

	// Then: the circuit is open
	assert.Equal(t, StateOpen, cb.State())

	// And: fetches are rejected without reaching the origin
	err := cb.Execute(func() error {
		return nil // would succeed if called
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	// Given: an open breaker
	cb := NewCircuitBreaker("origin",
		WithMaxFailures(2),
		WithResetTimeout(50*time.Millisecond),
	)

	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error {
			return errors.New("origin down")
		})
	}
	require.Equal(t, StateOpen, cb.State())

	// When: the reset timeout passes
	time.Sleep(60 * time.Millisecond)

	// Then: the probe fetch is admitted and closes the circuit
	executed := false
	err := cb.Execute(func() error {
		executed = true
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReOpens(t *testing.T) {
	cb := NewCircuitBreaker("origin",
		WithMaxFailures(2),
		WithResetTimeout(50*time.Millisecond),
	)

	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("origin down") })
	}
	time.Sleep(60 * time.Millisecond)

	// When: the probe fetch also fails
	_ = cb.Execute(func() error {
		return errors.New("still down")
	})

	// Then: the circuit reopens
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsClosed(t *testing.T) {
	// Given: failures below the threshold
	cb := NewCircuitBreaker("origin",
		WithMaxFailures(5),
		WithResetTimeout(1*time.Second),
	)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("origin down") })
	}

	// When: a fetch succeeds
	err := cb.Execute(func() error { return nil })

	// Then: the failure streak resets
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker("origin",
		WithMaxFailures(10),
		WithResetTimeout(1*time.Second),
	)

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var failCount atomic.Int32

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := cb.Execute(func() error {
				if i%2 == 0 {
					return nil
				}
				return errors.New("origin down")
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(20), successCount.Load()+failCount.Load())
}

func TestCircuitBreaker_Allow_WhenClosed(t *testing.T) {
	cb := NewCircuitBreaker("origin")

	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_Allow_WhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("origin",
		WithMaxFailures(1),
		WithResetTimeout(1*time.Second),
	)

	_ = cb.Execute(func() error { return errors.New("origin down") })

	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_RecordSuccess(t *testing.T) {
	cb := NewCircuitBreaker("origin", WithMaxFailures(5))

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, 2, cb.Failures())

	cb.RecordSuccess()

	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_RecordFailure(t *testing.T) {
	cb := NewCircuitBreaker("origin", WithMaxFailures(3))

	cb.RecordFailure()
	cb.RecordFailure()

	assert.Equal(t, 2, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())

	// One more trips it.
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestNewCircuitBreaker_DefaultValues(t *testing.T) {
	cb := NewCircuitBreaker("fragment-fetch")

	assert.Equal(t, "fragment-fetch", cb.Name())
	assert.Equal(t, 5, cb.maxFailures)
	assert.Equal(t, 30*time.Second, cb.resetTimeout)
	assert.Equal(t, StateClosed, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
