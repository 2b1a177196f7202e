package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJoinLimiterAllowsUpToLimit(t *testing.T) {
	l := NewJoinLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("sid-a"), "attempt %d", i)
	}
	assert.False(t, l.Allow("sid-a"))

	// Other connections have their own window.
	assert.True(t, l.Allow("sid-b"))
}

func TestJoinLimiterWindowExpiry(t *testing.T) {
	l := NewJoinLimiter(1, 20*time.Millisecond)

	assert.True(t, l.Allow("sid-a"))
	assert.False(t, l.Allow("sid-a"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("sid-a"))
}
