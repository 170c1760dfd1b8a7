package breakers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtedge/internal/models"
)

func TestBreakerTripsOnConsecutiveTransientFailures(t *testing.T) {
	m := NewManager(Config{
		Name:                "markets",
		ConsecutiveFailures: 3,
		Window:              time.Minute,
		Cooldown:            time.Minute,
		HalfOpenProbes:      1,
	})

	transient := &models.TransientError{Err: errors.New("502")}
	for i := 0; i < 3; i++ {
		_, err := m.Execute("markets", func() ([]byte, error) { return nil, transient })
		require.Error(t, err)
	}

	// tripped: calls short-circuit without invoking the loader
	called := false
	_, err := m.Execute("markets", func() ([]byte, error) {
		called = true
		return []byte("ok"), nil
	})
	require.ErrorIs(t, err, models.ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, "open", m.State("markets"))
}

func TestBadPayloadsDoNotTripBreaker(t *testing.T) {
	m := NewManager(Config{
		Name:                "markets",
		ConsecutiveFailures: 2,
		Window:              time.Minute,
		Cooldown:            time.Minute,
		HalfOpenProbes:      1,
	})

	bad := &models.BadUpstreamError{Reason: "garbage"}
	for i := 0; i < 10; i++ {
		_, err := m.Execute("markets", func() ([]byte, error) { return nil, bad })
		require.ErrorIs(t, err, error(bad))
	}
	assert.Equal(t, "closed", m.State("markets"))
}

func TestUnknownUpstreamGetsDefaultBreaker(t *testing.T) {
	m := NewManager()
	payload, err := m.Execute("gamelog", func() ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), payload)
	assert.Equal(t, "closed", m.State("gamelog"))
}
