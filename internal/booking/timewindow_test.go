package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	cases := []struct {
		name   string
		window string
		start  int
		end    int
		ok     bool
	}{
		{"am window", "7:00 AM - 8:00 AM", 7 * 60, 8 * 60, true},
		{"pm window with dots", "6.00 PM - 7.00 PM", 18 * 60, 19 * 60, true},
		{"24 hour form", "06:00 - 07:00", 6 * 60, 7 * 60, true},
		{"noon boundary", "12:00 PM - 1:00 PM", 12 * 60, 13 * 60, true},
		{"midnight boundary", "12:00 AM - 1:00 AM", 0, 60, true},
		{"mixed spacing", " 9:30 am-11:30 AM ", 9*60 + 30, 11*60 + 30, true},
		{"missing separator", "7:00 AM", 0, 0, false},
		{"garbage", "morning session", 0, 0, false},
		{"hour out of range", "25:00 - 26:00", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := ParseWindow(tc.window)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, ClassShort, ClassOf(7*60, 8*60), "one hour is short")
	assert.Equal(t, ClassLong, ClassOf(7*60, 9*60), "exactly two hours is long")
	assert.Equal(t, ClassShort, ClassOf(7*60, 10*60), "three hours is short, not long")
	assert.Equal(t, ClassShort, ClassOf(0, 0), "zero span is short")
	assert.Equal(t, ClassShort, ClassOfWindow("not a window"))
	assert.Equal(t, ClassLong, ClassOfWindow("7:00 AM - 9:00 AM"))
}

func TestPriceTable(t *testing.T) {
	p := PriceTable{Short: 200, Long: 350}
	assert.Equal(t, int64(200), p.ForClass(ClassShort))
	assert.Equal(t, int64(350), p.ForClass(ClassLong))
}

func TestIsBookable(t *testing.T) {
	// Fixed "now": 10:00 on 2026-03-10.
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	t.Run("future date always bookable", func(t *testing.T) {
		assert.True(t, IsBookable("7:00 AM - 8:00 AM", "2026-03-11", now))
	})
	t.Run("past date never bookable", func(t *testing.T) {
		assert.False(t, IsBookable("7:00 AM - 8:00 AM", "2026-03-09", now))
	})
	t.Run("same day outside notice", func(t *testing.T) {
		// Starts at 11:00, less than two hours from 10:00.
		assert.False(t, IsBookable("11:00 AM - 12:00 PM", "2026-03-10", now))
	})
	t.Run("same day exactly at notice boundary", func(t *testing.T) {
		assert.True(t, IsBookable("12:00 PM - 1:00 PM", "2026-03-10", now))
	})
	t.Run("same day well ahead", func(t *testing.T) {
		assert.True(t, IsBookable("6:00 PM - 7:00 PM", "2026-03-10", now))
	})
	t.Run("unparseable window fails open", func(t *testing.T) {
		assert.True(t, IsBookable("late evening", "2026-03-10", now))
	})
	t.Run("unparseable date is not bookable", func(t *testing.T) {
		assert.False(t, IsBookable("7:00 AM - 8:00 AM", "next tuesday", now))
	})
}

func TestDateElapsed(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)
	assert.True(t, DateElapsed("2026-03-09", now))
	assert.False(t, DateElapsed("2026-03-10", now), "today has not elapsed")
	assert.False(t, DateElapsed("2026-03-11", now))
	assert.True(t, DateElapsed("not-a-date", now), "malformed dates age out")
}

func TestSlotStartAt(t *testing.T) {
	loc := time.UTC
	at, err := SlotStartAt("2026-03-10", "6:00 PM - 7:00 PM", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 18, 0, 0, 0, loc), at)

	_, err = SlotStartAt("2026-03-10", "whenever", loc)
	require.Error(t, err)
}
