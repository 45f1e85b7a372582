package ratelimit

import (
	"facilitywatch/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet_BuildsIsolatedLimiters(t *testing.T) {
	cfg := models.RateLimitConfig{
		Enabled:       true,
		SweepInterval: time.Minute,
		Shards:        4,
		Policies: map[string]models.RateLimitPolicyConfig{
			models.PolicyRead:  {Window: time.Minute, MaxRequests: 60},
			models.PolicyWrite: {Window: time.Minute, MaxRequests: 1},
		},
	}

	set, err := NewSet(cfg)
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, []string{"read", "write"}, set.Names())

	write, ok := set.Get(models.PolicyWrite)
	require.True(t, ok)
	read, ok := set.Get(models.PolicyRead)
	require.True(t, ok)

	assert.Equal(t, "write", write.Name())
	assert.Len(t, write.store.shards, 4)

	// Same key, different policies: exhausting write does not touch read.
	assert.True(t, write.Allow("k").Allowed)
	assert.False(t, write.Allow("k").Allowed)
	d := read.Allow("k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 59, d.Remaining)

	_, ok = set.Get("missing")
	assert.False(t, ok)
}

func TestNewSet_InvalidPolicyFails(t *testing.T) {
	cfg := models.RateLimitConfig{
		Enabled:       true,
		SweepInterval: time.Minute,
		Policies: map[string]models.RateLimitPolicyConfig{
			"good": {Window: time.Minute, MaxRequests: 10},
			"bad":  {Window: time.Minute, MaxRequests: 0},
		},
	}

	set, err := NewSet(cfg)
	assert.Nil(t, set)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	assert.Contains(t, err.Error(), "bad")
}
