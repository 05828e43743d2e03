package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockOrder(t *testing.T) {
	first, second := lockOrder("ACC-A", "ACC-B")
	assert.Equal(t, "ACC-A", first)
	assert.Equal(t, "ACC-B", second)

	// The order is direction-independent: both sides of a transfer pair
	// compute the same acquisition sequence.
	first, second = lockOrder("ACC-B", "ACC-A")
	assert.Equal(t, "ACC-A", first)
	assert.Equal(t, "ACC-B", second)
}

func TestLockOrder_BytewiseComparison(t *testing.T) {
	// Ordering is over raw bytes, not numeric or locale-aware.
	first, second := lockOrder("ACC-10", "ACC-9")
	assert.Equal(t, "ACC-10", first)
	assert.Equal(t, "ACC-9", second)

	first, second = lockOrder("a", "Z")
	assert.Equal(t, "Z", first)
	assert.Equal(t, "a", second)
}
