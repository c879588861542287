package utils

import (
	"fmt"
	"time"
)

const (
	DateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04"
)

// FormatDateTime renders t as "yyyy-MM-dd HH:mm:ss".
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// RelativeTime describes t relative to now the way the feed shows it.
// Future times fall back to the absolute format.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return FormatDateTime(t)
	}
	switch {
	case d < time.Minute:
		return "刚刚"
	case d < time.Hour:
		return fmt.Sprintf("%d 分钟前", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d 小时前", int(d/time.Hour))
	}
	local := t.In(now.Location())
	ty, tm, td := local.Date()
	yy, ym, yd := now.AddDate(0, 0, -1).Date()
	if ty == yy && tm == ym && td == yd {
		return "昨天 " + local.Format(clockLayout)
	}
	return local.Format(dateLayout)
}
