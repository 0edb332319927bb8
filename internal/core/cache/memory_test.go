package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_GetSetExpire(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var observed []bool

	c := NewMemoryCache("alert_stats", 5*time.Second, func(hit bool) { observed = append(observed, hit) })
	c.now = func() time.Time { return now }

	_, ok := c.Get("24")
	assert.False(t, ok)

	c.Set("24", 3)
	v, ok := c.Get("24")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	now = now.Add(5 * time.Second)
	_, ok = c.Get("24")
	assert.False(t, ok)

	assert.Equal(t, []bool{false, true, false}, observed)

	stats := c.Stats()
	assert.Equal(t, "alert_stats", stats.Name)
	assert.Equal(t, uint64(1), stats.HitCount)
	assert.Equal(t, uint64(2), stats.MissCount)
	assert.Equal(t, 0, stats.Size)
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache("alert_stats", time.Minute, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Clears)
}

func TestMemoryCache_GetStatus(t *testing.T) {
	c := NewMemoryCache("alert_stats", time.Minute, nil)
	assert.NotContains(t, c.GetStatus(), "hit_rate")

	c.Set("24", 1)
	c.Get("24")
	c.Get("48")
	c.Get("72")
	c.Get("96")

	status := c.GetStatus()
	assert.Equal(t, "alert_stats", status["name"])
	assert.Equal(t, 1, status["size"])
	assert.EqualValues(t, 1, status["hit_count"])
	assert.EqualValues(t, 3, status["miss_count"])
	assert.Equal(t, 25.0, status["hit_rate"])
}
