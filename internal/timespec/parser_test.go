package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    time.Time
		wantErr bool
	}{
		{name: "duration", spec: "1h30m", want: now.Add(-90 * time.Minute)},
		{name: "seconds", spec: "45s", want: now.Add(-45 * time.Second)},
		{name: "rfc3339", spec: "2026-03-14T12:00:00Z", want: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
		{name: "rfc3339 with offset", spec: "2026-03-14T13:00:00+01:00", want: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
		{name: "empty", spec: "", wantErr: true},
		{name: "negative", spec: "-1h", wantErr: true},
		{name: "garbage", spec: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.UnixMilli(), got)
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("2h", "1h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-2*time.Hour).UnixMilli(), r.SinceMs)
	assert.Equal(t, now.Add(-time.Hour).UnixMilli(), r.UntilMs)

	r, err = ParseRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, Range{}, r)

	_, err = ParseRange("1h", "2h", now)
	assert.EqualError(t, err, "--since must be before --until")

	_, err = ParseRange("soon", "", now)
	assert.ErrorContains(t, err, "invalid --since")
}

func TestRangeContains(t *testing.T) {
	r := Range{SinceMs: 100, UntilMs: 200}
	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(200))
	assert.False(t, r.Contains(99))
	assert.False(t, r.Contains(201))

	assert.True(t, Range{}.Contains(0))
	assert.True(t, Range{SinceMs: 100}.Contains(1<<40))
}
