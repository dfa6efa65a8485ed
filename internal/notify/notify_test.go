package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveKeepsPushOrder(t *testing.T) {
	c := NewCenter(time.Minute)
	c.Info("a")
	c.Error("b")
	c.Success("c")

	active := c.Active()
	require.Len(t, active, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{active[0].Text, active[1].Text, active[2].Text})
	assert.Equal(t, LevelError, active[1].Level)
}

func TestNotificationsExpire(t *testing.T) {
	c := NewCenter(30 * time.Millisecond)
	c.Error("上传失败")
	require.Len(t, c.Active(), 1)

	assert.Eventually(t, func() bool {
		return len(c.Active()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestDismissAndDrain(t *testing.T) {
	c := NewCenter(time.Minute)
	n := c.Info("x")
	c.Info("y")

	c.Dismiss(n.ID)
	drained := c.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "y", drained[0].Text)
	assert.Empty(t, c.Active())
}
