package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRun(t *testing.T) {
	// Monday 2026-10-19 08:00 UTC
	from := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		expr     string
		expected time.Time
	}{
		{"later today", "0 9 * * 1", time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
		{"next week", "0 7 * * 1", time.Date(2026, 10, 26, 7, 0, 0, 0, time.UTC)},
		{"first of month", "0 0 1 * *", time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := NextRun(tt.expr, from)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestNextRun_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	from := time.Date(2026, 10, 19, 10, 30, 0, 0, loc) // 08:30 UTC

	next, err := NextRun("0 9 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), next)
}

func TestNextRun_RejectsMalformed(t *testing.T) {
	from := time.Now()
	for _, expr := range []string{"* * * *", "0 0 0 * * *", "not a schedule"} {
		_, err := NextRun(expr, from)
		assert.ErrorContains(t, err, "invalid cron expression", expr)
	}
}

func TestNextRunUnix(t *testing.T) {
	from := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	disabled, err := NextRunUnix("", from)
	require.NoError(t, err)
	assert.Zero(t, disabled)

	next, err := NextRunUnix("0 9 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, from.Add(time.Hour).Unix(), next)

	_, err = NextRunUnix("bogus", from)
	assert.Error(t, err)
}

func TestNextRun_Descriptors(t *testing.T) {
	from := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	monthly, err := NextRun("@monthly", from)
	require.NoError(t, err)
	explicit, err := NextRun("0 0 1 * *", from)
	require.NoError(t, err)
	assert.Equal(t, explicit, monthly)
}
