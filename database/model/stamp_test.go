package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStampLayouts(t *testing.T) {
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, s := range []string{
		"2026-03-01T10:00:00Z",
		"2026-03-01T10:00:00+00:00",
		"2026-03-01T10:00:00",
		"2026-03-01 10:00:00",
	} {
		got, err := ParseStamp(s)
		require.NoError(t, err, "stamp %q", s)
		assert.True(t, got.Equal(want), "stamp %q parsed to %v", s, got)
	}
}

func TestParseStampFractionalSeconds(t *testing.T) {
	got, err := ParseStamp("2026-03-01T10:00:00.250000Z")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))

	got, err = ParseStamp("2026-03-01 10:00:00.250000")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))
}

func TestParseStampOffset(t *testing.T) {
	got, err := ParseStamp("2026-03-01T12:00:00+02:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestParseStampRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-date", "2026-13-45T99:00:00Z", "1718000000"} {
		_, err := ParseStamp(s)
		assert.ErrorIs(t, err, ErrBadStamp, "stamp %q", s)
	}
}

func TestNowStampRoundTrips(t *testing.T) {
	s := NowStamp()
	got, err := ParseStamp(s)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), got, 5*time.Second)
	assert.Equal(t, s, FormatStamp(got))
}
