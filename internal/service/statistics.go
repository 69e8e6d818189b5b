package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/headachelog/internal/journal"
)

// RangeKind 区分统计区间的类型。
type RangeKind string

const (
	RangeAll      RangeKind = "all"
	RangeLastDays RangeKind = "last"
	RangeBetween  RangeKind = "between"
)

// Range 描述统计或导出使用的日期区间。
type Range struct {
	Kind RangeKind `json:"kind"`
	Days int       `json:"days,omitempty"`
	From string    `json:"from,omitempty"`
	To   string    `json:"to,omitempty"`
}

// AllTime 覆盖全部记录。
func AllTime() Range { return Range{Kind: RangeAll} }

// LastDays 覆盖最近 n 天。
func LastDays(n int) Range { return Range{Kind: RangeLastDays, Days: n} }

// Between 覆盖 [from, to] 闭区间。
func Between(from, to string) Range { return Range{Kind: RangeBetween, From: from, To: to} }

// ParseRange 解析查询参数：7、30、90、365 或 all，空值等同 30。
func ParseRange(raw string) (Range, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	switch raw {
	case "", "30":
		return LastDays(30), nil
	case "all":
		return AllTime(), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return Range{}, fmt.Errorf("%w: unsupported range %q", ErrValidation, raw)
	}
	return LastDays(n), nil
}

// Stats 是某个区间的汇总。平均值与百分比的分母都是日历天数而不是记录天数，
// 未记录的日子按 0 计入。
type Stats struct {
	HasData           bool    `json:"hasData"`
	CalendarDays      int     `json:"calendarDays"`
	DaysLogged        int     `json:"daysLogged"`
	DaysLoggedPct     float64 `json:"daysLoggedPct"`
	DaysWithPain      int     `json:"daysWithPain"`
	DaysWithPainPct   float64 `json:"daysWithPainPct"`
	TotalDoses        int     `json:"totalDoses"`
	PainkillerDays    int     `json:"painkillerDays"`
	PainkillerDaysPct float64 `json:"painkillerDaysPct"`
	PainReliefDays    int     `json:"painReliefDays"`
	PainReliefDaysPct float64 `json:"painReliefDaysPct"`
	AvgPain           float64 `json:"avgPain"`
	AvgPeakPain       float64 `json:"avgPeakPain"`
	MaxPeakPain       int     `json:"maxPeakPain"`
	AvgTinnitus       float64 `json:"avgTinnitus"`
	AvgOcular         float64 `json:"avgOcular"`
	AvgSleepIssues    float64 `json:"avgSleepIssues"`
}

// RangeFilter 返回区间内的记录，按日期升序。
// 最近 N 天保留日期不早于 today-N 的记录，不设上限。
func RangeFilter(c journal.Collection, r Range, today string) []journal.DatedEntry {
	var lower, upper string
	switch r.Kind {
	case RangeLastDays:
		cutoff, err := journal.AddDays(today, -r.Days)
		if err != nil {
			return nil
		}
		lower = cutoff
	case RangeBetween:
		lower, upper = r.From, r.To
	}

	out := make([]journal.DatedEntry, 0, len(c))
	for _, item := range c.Sorted() {
		if lower != "" && item.Date < lower {
			continue
		}
		if upper != "" && item.Date > upper {
			continue
		}
		out = append(out, item)
	}
	return out
}

// CalendarDays 返回区间的日历天数，作为平均值的分母。
func CalendarDays(c journal.Collection, r Range, today string) int {
	switch r.Kind {
	case RangeLastDays:
		if r.Days < 0 {
			return 0
		}
		return r.Days
	case RangeBetween:
		days, err := journal.DaysBetween(r.From, r.To)
		if err != nil || days < 0 {
			return 0
		}
		return days + 1
	}

	earliest, ok := c.Earliest()
	if !ok {
		return 0
	}
	days, err := journal.DaysBetween(earliest, today)
	if err != nil || days < 0 {
		return 1
	}
	return days + 1
}

// Compute 汇总记录。calendarDays 为 0 时返回 HasData=false 的零值。
func Compute(entries []journal.DatedEntry, calendarDays int) Stats {
	if calendarDays <= 0 {
		return Stats{}
	}

	stats := Stats{HasData: true, CalendarDays: calendarDays, DaysLogged: len(entries)}
	var sumPain, sumPeak, sumTinnitus, sumOcular, sumSleep int
	for _, item := range entries {
		e := item.Entry
		if e.PainLevel > 0 {
			stats.DaysWithPain++
		}
		if e.UsedPainkiller() {
			stats.PainkillerDays++
		}
		if e.UsedPainRelief() {
			stats.PainReliefDays++
		}
		if e.PeakPain > stats.MaxPeakPain {
			stats.MaxPeakPain = e.PeakPain
		}
		stats.TotalDoses += e.TotalDoses()
		sumPain += e.PainLevel
		sumPeak += e.PeakPain
		sumTinnitus += e.Tinnitus
		sumOcular += e.Ocular
		sumSleep += e.SleepIssues
	}

	days := float64(calendarDays)
	stats.DaysLoggedPct = pct(stats.DaysLogged, days)
	stats.DaysWithPainPct = pct(stats.DaysWithPain, days)
	stats.PainkillerDaysPct = pct(stats.PainkillerDays, days)
	stats.PainReliefDaysPct = pct(stats.PainReliefDays, days)
	stats.AvgPain = float64(sumPain) / days
	stats.AvgPeakPain = float64(sumPeak) / days
	stats.AvgTinnitus = float64(sumTinnitus) / days
	stats.AvgOcular = float64(sumOcular) / days
	stats.AvgSleepIssues = float64(sumSleep) / days
	return stats
}

func pct(n int, days float64) float64 {
	return float64(n) / days * 100
}

// StatsFor 组合 RangeFilter、CalendarDays 与 Compute。
func StatsFor(c journal.Collection, r Range, today string) Stats {
	return Compute(RangeFilter(c, r, today), CalendarDays(c, r, today))
}

// PeriodStats 统计 (today-endDaysAgo, today-startDaysAgo] 这个窗口。
// 窗口宽度为 0，或者最早的记录晚于窗口的第一天（历史不够）时返回 nil。
func PeriodStats(c journal.Collection, startDaysAgo, endDaysAgo int, today string) *Stats {
	width := endDaysAgo - startDaysAgo
	if width <= 0 {
		return nil
	}

	oldest, err := journal.AddDays(today, -endDaysAgo+1)
	if err != nil {
		return nil
	}
	earliest, ok := c.Earliest()
	if !ok || earliest > oldest {
		return nil
	}

	stats := WindowStats(c, startDaysAgo, endDaysAgo, today)
	return &stats
}

// WindowStats 与 PeriodStats 统计同一个窗口，但不要求历史覆盖整个窗口。
func WindowStats(c journal.Collection, startDaysAgo, endDaysAgo int, today string) Stats {
	width := endDaysAgo - startDaysAgo
	if width <= 0 {
		return Stats{}
	}
	newest, err := journal.AddDays(today, -startDaysAgo)
	if err != nil {
		return Stats{}
	}
	oldest := journal.MustAddDays(today, -endDaysAgo+1)
	return Compute(RangeFilter(c, Between(oldest, newest), today), width)
}

// Direction 表示指标变大是好是坏。
type Direction string

const (
	LowerIsBetter  Direction = "lower"
	HigherIsBetter Direction = "higher"
)

// Trend 是两个周期之间的变化。
type Trend struct {
	Percent  int  `json:"percent"`
	NoChange bool `json:"noChange"`
	Improved bool `json:"improved"`
}

// TrendDelta 计算 current 相对 previous 的百分比变化，取整方式与四舍五入一致（.5 向上）。
// 两者都为 0 视为无变化；previous 为 0 时 current>0 记为 +100%。
func TrendDelta(current, previous float64, direction Direction) Trend {
	if current == 0 && previous == 0 {
		return Trend{NoChange: true}
	}

	var change float64
	if previous == 0 {
		if current > 0 {
			change = 100
		}
	} else {
		change = (current - previous) / previous * 100
	}

	rounded := int(math.Floor(change + 0.5))
	if rounded == 0 {
		return Trend{NoChange: true}
	}

	improved := rounded > 0
	if direction == LowerIsBetter {
		improved = rounded < 0
	}
	return Trend{Percent: rounded, Improved: improved}
}

// TrendPeriodLabels 是三个 30 天周期的标题，从近到远。
var TrendPeriodLabels = [3]string{"Last 30 days", "31-60 days ago", "61-90 days ago"}

// TrendRow 是趋势表的一行。Changes[0] 比较第 1、2 周期，Changes[1] 比较第 2、3 周期。
type TrendRow struct {
	Metric    string     `json:"metric"`
	Direction Direction  `json:"direction"`
	Display   [3]string  `json:"display"`
	Values    [3]float64 `json:"values"`
	Changes   [2]Trend   `json:"changes"`
}

// TrendTable 是三个周期的对比结果。
type TrendTable struct {
	Insufficient bool       `json:"insufficient"`
	Labels       [3]string  `json:"labels"`
	Periods      [3]*Stats  `json:"periods"`
	Rows         []TrendRow `json:"rows"`
}

type trendMetric struct {
	label     string
	direction Direction
	value     func(*Stats) float64
	display   func(*Stats) string
}

func countPct(n int, p float64) string {
	return fmt.Sprintf("%d (%.0f%%)", n, p)
}

func scale(v float64) string {
	return fmt.Sprintf("%.1f/4", v)
}

var trendMetrics = []trendMetric{
	{"Days Logged", HigherIsBetter,
		func(s *Stats) float64 { return s.DaysLoggedPct },
		func(s *Stats) string { return countPct(s.DaysLogged, s.DaysLoggedPct) }},
	{"Days with Headache", LowerIsBetter,
		func(s *Stats) float64 { return s.DaysWithPainPct },
		func(s *Stats) string { return countPct(s.DaysWithPain, s.DaysWithPainPct) }},
	{"Total Medication Doses", LowerIsBetter,
		func(s *Stats) float64 { return float64(s.TotalDoses) },
		func(s *Stats) string { return strconv.Itoa(s.TotalDoses) }},
	{"Days of Painkillers", LowerIsBetter,
		func(s *Stats) float64 { return s.PainkillerDaysPct },
		func(s *Stats) string { return countPct(s.PainkillerDays, s.PainkillerDaysPct) }},
	{"Days of Pain Relief", LowerIsBetter,
		func(s *Stats) float64 { return s.PainReliefDaysPct },
		func(s *Stats) string { return countPct(s.PainReliefDays, s.PainReliefDaysPct) }},
	{"Average Pain Level", LowerIsBetter,
		func(s *Stats) float64 { return s.AvgPain },
		func(s *Stats) string { return scale(s.AvgPain) }},
	{"Average Peak Pain", LowerIsBetter,
		func(s *Stats) float64 { return s.AvgPeakPain },
		func(s *Stats) string { return scale(s.AvgPeakPain) }},
	{"Highest Pain Level", LowerIsBetter,
		func(s *Stats) float64 { return float64(s.MaxPeakPain) },
		func(s *Stats) string { return fmt.Sprintf("%d/4", s.MaxPeakPain) }},
	{"Average Tinnitus", LowerIsBetter,
		func(s *Stats) float64 { return s.AvgTinnitus },
		func(s *Stats) string { return scale(s.AvgTinnitus) }},
	{"Average Ocular", LowerIsBetter,
		func(s *Stats) float64 { return s.AvgOcular },
		func(s *Stats) string { return scale(s.AvgOcular) }},
	{"Average Sleep Issues", LowerIsBetter,
		func(s *Stats) float64 { return s.AvgSleepIssues },
		func(s *Stats) string { return scale(s.AvgSleepIssues) }},
}

// Trends 对比最近三个 30 天周期，任一周期缺少历史时只返回 Insufficient。
func Trends(c journal.Collection, today string) TrendTable {
	table := TrendTable{Labels: TrendPeriodLabels}
	for i := range table.Periods {
		table.Periods[i] = PeriodStats(c, i*30, (i+1)*30, today)
		if table.Periods[i] == nil {
			table.Insufficient = true
		}
	}
	if table.Insufficient {
		return table
	}

	table.Rows = make([]TrendRow, 0, len(trendMetrics))
	for _, metric := range trendMetrics {
		row := TrendRow{Metric: metric.label, Direction: metric.direction}
		for i, period := range table.Periods {
			row.Values[i] = metric.value(period)
			row.Display[i] = metric.display(period)
		}
		row.Changes[0] = TrendDelta(row.Values[0], row.Values[1], metric.direction)
		row.Changes[1] = TrendDelta(row.Values[1], row.Values[2], metric.direction)
		table.Rows = append(table.Rows, row)
	}
	return table
}

// HistoryMonth 返回 "YYYY-MM" 月份内的记录，按日期倒序；month 为空时返回全部。
func HistoryMonth(c journal.Collection, month string) ([]journal.DatedEntry, error) {
	month = strings.TrimSpace(month)
	if month != "" {
		if _, err := journal.ParseDate(month + "-01"); err != nil {
			return nil, fmt.Errorf("%w: invalid month %q", ErrValidation, month)
		}
	}

	sorted := c.Sorted()
	out := make([]journal.DatedEntry, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		if month == "" || strings.HasPrefix(sorted[i].Date, month+"-") {
			out = append(out, sorted[i])
		}
	}
	return out, nil
}
