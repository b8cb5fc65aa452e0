package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageLimiter_Unlimited(t *testing.T) {
	sl := NewStageLimiter(0)

	for i := 0; i < 100; i++ {
		assert.NoError(t, sl.Increment())
	}
	assert.Equal(t, 100, sl.Count())
	assert.Equal(t, -1, sl.Remaining())
}

func TestStageLimiter_Exceeded(t *testing.T) {
	sl := NewStageLimiter(2)

	assert.NoError(t, sl.Increment())
	assert.NoError(t, sl.Increment())
	assert.Equal(t, 0, sl.Remaining())

	err := sl.Increment()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded max stage executions")
}
