package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSince(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		expected time.Time
		wantErr  bool
	}{
		{"minutes", "30m", now.Add(-30 * time.Minute), false},
		{"compound duration", "1h30m", now.Add(-90 * time.Minute), false},
		{"days", "7d", now.Add(-7 * 24 * time.Hour), false},
		{"rfc3339", "2026-02-28T09:00:00Z", time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), false},
		{"future timestamp", "2026-03-02T00:00:00Z", time.Time{}, true},
		{"empty", "", time.Time{}, true},
		{"garbage", "yesterday", time.Time{}, true},
		{"negative", "-1h", time.Time{}, true},
		{"bad days", "xd", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Since(tt.spec, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "got %s", got)
		})
	}
}

func TestDeadline(t *testing.T) {
	got, err := Deadline("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(48*time.Hour), got)

	got, err = Deadline("2d", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(48*time.Hour), got)

	got, err = Deadline("2026-04-01T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = Deadline("2026-01-01T00:00:00Z", now)
	assert.Error(t, err)

	_, err = Deadline("0s", now)
	assert.Error(t, err)
}
