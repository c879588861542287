package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 12, 10, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"刚刚":                  now.Add(-30 * time.Second),
		"5 分钟前":               now.Add(-5 * time.Minute),
		"3 小时前":               now.Add(-3 * time.Hour),
		"昨天 08:30":            time.Date(2024, 12, 9, 8, 30, 0, 0, time.UTC),
		"2024-12-01":          time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC),
		"2024-12-10 13:00:00": now.Add(time.Hour),
	}
	for want, in := range cases {
		assert.Equal(t, want, RelativeTime(in, now))
	}
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2024, 12, 1, 8, 9, 10, 0, time.UTC)
	assert.Equal(t, "2024-12-01 08:09:10", FormatDateTime(ts))
}
