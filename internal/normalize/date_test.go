package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGermanDate(t *testing.T) {
	got, err := ParseGermanDate("03.12.", 2025)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 3, 0, 0, 0, 0, time.Local), got)

	got, err = ParseGermanDate("7.1.2026", 2025)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 7, 0, 0, 0, 0, time.Local), got)

	got, err = ParseGermanDate("07.01.26", 2025)
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())

	got, err = ParseGermanDate("03.12", 2024)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 3, 0, 0, 0, 0, time.Local), got)
}

func TestParseGermanDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "ab.cd.", "12", "32.01.", "31.02.2025", "01.13."} {
		_, err := ParseGermanDate(in, 2025)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", in)
	}
}

func TestParseValidityRange(t *testing.T) {
	now := time.Date(2025, 12, 2, 10, 0, 0, 0, time.Local)

	start, end, ok := ParseValidityRange("Gültig vom 01.12. - 06.12.2025", now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.Local), start)
	assert.Equal(t, time.Date(2025, 12, 6, 0, 0, 0, 0, time.Local), end)

	start, end, ok = ParseValidityRange("29.12.–03.01.", now)
	require.True(t, ok)
	assert.Equal(t, 2025, start.Year())
	assert.Equal(t, time.Date(2026, 1, 3, 0, 0, 0, 0, time.Local), end)

	_, _, ok = ParseValidityRange("Diese Woche", now)
	assert.False(t, ok)
}

func TestCalendarWeek(t *testing.T) {
	assert.Equal(t, 49, CalendarWeek(time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, CalendarWeek(time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 53, CalendarWeek(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "KW49", FormatCalendarWeek(time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC)))
}

func TestWeekRange(t *testing.T) {
	wed := time.Date(2025, 12, 3, 15, 30, 0, 0, time.UTC)
	mon, sun := WeekRange(wed)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), mon)
	assert.Equal(t, time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC), sun)

	sunday := time.Date(2025, 12, 7, 8, 0, 0, 0, time.UTC)
	mon, sun = WeekRange(sunday)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), mon)
	assert.Equal(t, time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC), sun)
}

func TestIsDealActive(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsDealActive(start, end, time.Date(2025, 12, 6, 20, 0, 0, 0, time.UTC)))
	assert.False(t, IsDealActive(start, end, time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsDealActive(start, end, time.Date(2025, 11, 30, 23, 0, 0, 0, time.UTC)))

	assert.True(t, IsDealExpired(end, time.Date(2025, 12, 7, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsDealExpired(end, time.Date(2025, 12, 6, 12, 0, 0, 0, time.UTC)))
}

func TestIsDataStale(t *testing.T) {
	now := time.Date(2025, 12, 3, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Hour)
	old := now.Add(-30 * time.Hour)

	assert.True(t, IsDataStale(nil, 24*time.Hour, now))
	assert.False(t, IsDataStale(&recent, 24*time.Hour, now))
	assert.True(t, IsDataStale(&old, 24*time.Hour, now))
}
