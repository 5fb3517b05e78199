package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		require.Len(t, next, 26)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestClientPrefix(t *testing.T) {
	cid := Client("AAPL")
	assert.True(t, strings.HasPrefix(cid, "ALZ-AAPL-"))
	assert.Len(t, cid, len("ALZ-AAPL-")+26)
}
