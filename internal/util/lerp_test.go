package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampedLerpEndpoints(t *testing.T) {
	assert.InDelta(t, 45.0, ClampedLerp(-2, -2, 45, 15, 28), 0.001)
	assert.InDelta(t, 28.0, ClampedLerp(15, -2, 45, 15, 28), 0.001)
}

func TestClampedLerpInterpolates(t *testing.T) {
	assert.InDelta(t, 36.5, ClampedLerp(6.5, -2, 45, 15, 28), 0.001)
	assert.InDelta(t, 50.0, ClampedLerp(5, 0, 0, 10, 100), 0.001)
}

func TestClampedLerpClamps(t *testing.T) {
	assert.InDelta(t, 45.0, ClampedLerp(-20, -2, 45, 15, 28), 0.001)
	assert.InDelta(t, 28.0, ClampedLerp(40, -2, 45, 15, 28), 0.001)
}
