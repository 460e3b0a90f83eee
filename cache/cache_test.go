package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripweave/tripweave/cache"
	"github.com/tripweave/tripweave/itinerary"
)

func plan(destination string) *itinerary.Itinerary {
	return &itinerary.Itinerary{
		Destination: destination,
		Duration:    2,
		DailySchedules: []itinerary.DailySchedule{
			{Day: 1, Activities: []itinerary.Activity{{Time: "09:00", Name: "Walk"}}},
			{Day: 2, Activities: []itinerary.Activity{{Time: "10:00", Name: "Museum"}}},
		},
	}
}

func TestCache_KeyCanonicalization(t *testing.T) {
	c := cache.New(8, time.Hour)
	c.Put("  Kyoto ", 2, "en", plan("Kyoto"), "gemini-flash")

	got, model, ok := c.Get("kyoto", 2, "en")
	require.True(t, ok)
	assert.Equal(t, "Kyoto", got.Destination)
	assert.Equal(t, "gemini-flash", model)

	// Duration and language are part of the key.
	_, _, ok = c.Get("kyoto", 3, "en")
	assert.False(t, ok)
	_, _, ok = c.Get("kyoto", 2, "fr")
	assert.False(t, ok)
}

func TestCache_CopiesDoNotAlias(t *testing.T) {
	c := cache.New(8, time.Hour)
	src := plan("Kyoto")
	c.Put("kyoto", 2, "en", src, "gemini-flash")

	// Mutating the source after Put must not touch the cached copy.
	src.DailySchedules[0].Activities[0].Name = "changed source"

	got, _, ok := c.Get("kyoto", 2, "en")
	require.True(t, ok)
	assert.Equal(t, "Walk", got.DailySchedules[0].Activities[0].Name)

	// Mutating a hit must not touch the cached copy either.
	got.DailySchedules[0].Activities[0].Name = "changed hit"

	again, _, ok := c.Get("kyoto", 2, "en")
	require.True(t, ok)
	assert.Equal(t, "Walk", again.DailySchedules[0].Activities[0].Name)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := cache.New(8, 25*time.Millisecond)
	c.Put("kyoto", 2, "en", plan("Kyoto"), "gemini-flash")

	_, _, ok := c.Get("kyoto", 2, "en")
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)
	_, _, ok = c.Get("kyoto", 2, "en")
	assert.False(t, ok)
}

func TestCache_SizeEviction(t *testing.T) {
	c := cache.New(2, time.Hour)
	c.Put("a", 1, "en", plan("A"), "m")
	c.Put("b", 1, "en", plan("B"), "m")
	c.Put("c", 1, "en", plan("C"), "m")

	assert.Equal(t, 2, c.Len())
	_, _, ok := c.Get("a", 1, "en")
	assert.False(t, ok, "oldest entry is evicted at capacity")
	_, _, ok = c.Get("c", 1, "en")
	assert.True(t, ok)
}
