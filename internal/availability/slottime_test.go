package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	minutes, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*60+30, minutes)

	minutes, err = ParseTimeOfDay("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, minutes)

	minutes, err = ParseTimeOfDay("23:45")
	require.NoError(t, err)
	assert.Equal(t, 23*60+45, minutes)

	for _, bad := range []string{"", "9:00", "24:00", "10:60", "noon", "10:00:00"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestValidTimeOfDay(t *testing.T) {
	t.Run("hourly grid", func(t *testing.T) {
		assert.True(t, ValidTimeOfDay("09:00", time.Hour))
		assert.True(t, ValidTimeOfDay("17:00", time.Hour))
		assert.False(t, ValidTimeOfDay("09:30", time.Hour))
		assert.False(t, ValidTimeOfDay("09:15", time.Hour))
	})

	t.Run("quarter-hour grid", func(t *testing.T) {
		assert.True(t, ValidTimeOfDay("09:00", 15*time.Minute))
		assert.True(t, ValidTimeOfDay("09:15", 15*time.Minute))
		assert.True(t, ValidTimeOfDay("09:45", 15*time.Minute))
		assert.False(t, ValidTimeOfDay("09:10", 15*time.Minute))
	})

	t.Run("malformed input", func(t *testing.T) {
		assert.False(t, ValidTimeOfDay("not-a-time", time.Hour))
		assert.False(t, ValidTimeOfDay("", time.Hour))
	})

	t.Run("zero granularity", func(t *testing.T) {
		assert.False(t, ValidTimeOfDay("09:00", 0))
	})
}

func TestSlotStart(t *testing.T) {
	date := time.Date(2026, time.September, 14, 18, 42, 3, 0, time.UTC)

	start := SlotStart(date, "09:30")
	assert.Equal(t, time.Date(2026, time.September, 14, 9, 30, 0, 0, time.UTC), start)

	// The clock portion of the date input never leaks through.
	assert.Equal(t, SlotStart(DateOnly(date), "09:30"), start)
}

func TestTimesBetween(t *testing.T) {
	t.Run("hourly working day", func(t *testing.T) {
		times := TimesBetween(9, 17, time.Hour)
		require.Len(t, times, 8)
		assert.Equal(t, "09:00", times[0])
		assert.Equal(t, "16:00", times[len(times)-1])
	})

	t.Run("quarter-hour steps", func(t *testing.T) {
		times := TimesBetween(9, 10, 15*time.Minute)
		assert.Equal(t, []string{"09:00", "09:15", "09:30", "09:45"}, times)
	})

	t.Run("end hour is exclusive", func(t *testing.T) {
		assert.NotContains(t, TimesBetween(9, 17, time.Hour), "17:00")
	})

	t.Run("degenerate ranges", func(t *testing.T) {
		assert.Nil(t, TimesBetween(17, 9, time.Hour))
		assert.Nil(t, TimesBetween(9, 9, time.Hour))
		assert.Nil(t, TimesBetween(9, 17, 0))
	})
}

func TestDatesFrom(t *testing.T) {
	from := time.Date(2026, time.August, 30, 15, 0, 0, 0, time.UTC)

	dates := DatesFrom(from, 3)
	require.Len(t, dates, 3)
	assert.Equal(t, time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), dates[2])

	assert.Empty(t, DatesFrom(from, 0))
}

func TestSlotKeyString(t *testing.T) {
	id := uuid.MustParse("7b6b1a52-2f2e-4b7a-9c3d-1f5e6a7b8c9d")
	key := SlotKey{
		DoctorID: id,
		Date:     time.Date(2026, time.September, 14, 13, 30, 0, 0, time.UTC),
		Time:     "10:00",
	}
	assert.Equal(t, "7b6b1a52-2f2e-4b7a-9c3d-1f5e6a7b8c9d:2026-09-14:10:00", key.String())
}
