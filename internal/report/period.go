package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Period 报表的时间粒度。
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// ErrUnknownPeriod 报表粒度不在 daily/weekly/monthly/yearly 之内。
var ErrUnknownPeriod = errors.New("unknown period")

// ParsePeriod 空字符串按 daily 处理。
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Daily, nil
	case Daily, Weekly, Monthly, Yearly:
		return p, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownPeriod, s)
	}
}

// Since 返回该粒度对应的回看窗口起点：30 天、12 周、12 个月、5 年。
func (p Period) Since(now time.Time) time.Time {
	now = now.UTC()
	switch p {
	case Weekly:
		return now.AddDate(0, 0, -12*7)
	case Monthly:
		return now.AddDate(0, -12, 0)
	case Yearly:
		return now.AddDate(-5, 0, 0)
	default:
		return now.AddDate(0, 0, -30)
	}
}

// BucketKey 把时间映射成可按字典序排序的分桶键（UTC）：
// daily 2006-01-02，weekly 为所在 ISO 周的周一日期，monthly 2006-01，yearly 2006。
func (p Period) BucketKey(t time.Time) string {
	t = t.UTC()
	switch p {
	case Weekly:
		return weekStart(t).Format(time.DateOnly)
	case Monthly:
		return t.Format("2006-01")
	case Yearly:
		return t.Format("2006")
	default:
		return t.Format(time.DateOnly)
	}
}

// Label 面向展示的名称。
func (p Period) Label() string {
	switch p {
	case Weekly:
		return "Weekly"
	case Monthly:
		return "Monthly"
	case Yearly:
		return "Yearly"
	default:
		return "Daily"
	}
}

func weekStart(t time.Time) time.Time {
	// time.Weekday: Sunday=0，ISO 周从周一开始
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
