package journal

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout 是记录键使用的 ISO 日期格式。
const DateLayout = "2006-01-02"

// Collection 以日期为键保存全部记录，缺失的键表示当天未记录。
type Collection map[string]Entry

// DatedEntry 把日期和记录放在一起，便于排序后输出。
type DatedEntry struct {
	Date string `json:"date"`
	Entry
}

// Clone 返回一份独立副本。
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for date, entry := range c {
		out[date] = entry
	}
	return out
}

// Dates 返回升序排列的日期。
func (c Collection) Dates() []string {
	dates := make([]string, 0, len(c))
	for date := range c {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Earliest 返回最早的日期，集合为空时第二个返回值为 false。
func (c Collection) Earliest() (string, bool) {
	earliest := ""
	for date := range c {
		if earliest == "" || date < earliest {
			earliest = date
		}
	}
	return earliest, earliest != ""
}

// Sorted 按日期升序返回全部记录。
func (c Collection) Sorted() []DatedEntry {
	dates := c.Dates()
	out := make([]DatedEntry, 0, len(dates))
	for _, date := range dates {
		out = append(out, DatedEntry{Date: date, Entry: c[date]})
	}
	return out
}

// ParseDate 解析 YYYY-MM-DD，结果固定为 UTC 零点，便于做整天运算。
func ParseDate(key string) (time.Time, error) {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, key)
	}
	return t, nil
}

// ValidateDate 只检查日期键格式。
func ValidateDate(key string) error {
	_, err := ParseDate(key)
	return err
}

// FormatDate 取 t 在其自身时区下的日历日期。
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays 在日期键上加减天数。
func AddDays(key string, days int) (string, error) {
	t, err := ParseDate(key)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, days)), nil
}

// DaysBetween 返回 to - from 的整天数，任一日期非法时返回错误。
func DaysBetween(from, to string) (int, error) {
	a, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	b, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a).Hours() / 24), nil
}

// MustAddDays 供已知合法的日期键使用。
func MustAddDays(key string, days int) string {
	out, err := AddDays(key, days)
	if err != nil {
		panic(err)
	}
	return out
}
