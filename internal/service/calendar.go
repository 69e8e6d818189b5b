package service

import (
	"fmt"

	"github.com/headachelog/internal/journal"
)

const maxHeatmapDays = 366

// HeatmapDay 表示热力图中的一天，没有记录的日子 Logged 为 false。
type HeatmapDay struct {
	Date      string `json:"date"`
	Logged    bool   `json:"logged"`
	PainLevel int    `json:"painLevel"`
	PeakPain  int    `json:"peakPain"`
	Doses     int    `json:"doses"`
}

// Streaks 汇总连续天数。没有记录的日子按无头痛计算。
type Streaks struct {
	CurrentPainFree int `json:"currentPainFree"`
	LongestPainFree int `json:"longestPainFree"`
	CurrentHeadache int `json:"currentHeadache"`
	LongestHeadache int `json:"longestHeadache"`
}

// HeatmapRange 返回 [from, to] 内每一天的数据，按日期升序。
func HeatmapRange(c journal.Collection, from, to string) ([]HeatmapDay, error) {
	if err := journal.ValidateDate(from); err != nil {
		return nil, err
	}
	if err := journal.ValidateDate(to); err != nil {
		return nil, err
	}
	days, err := journal.DaysBetween(from, to)
	if err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: invalid range: end before start", ErrValidation)
	}
	if days >= maxHeatmapDays {
		return nil, fmt.Errorf("%w: range longer than %d days", ErrValidation, maxHeatmapDays)
	}

	out := make([]HeatmapDay, 0, days+1)
	for i := 0; i <= days; i++ {
		date := journal.MustAddDays(from, i)
		day := HeatmapDay{Date: date}
		if e, ok := c[date]; ok {
			day.Logged = true
			day.PainLevel = e.PainLevel
			day.PeakPain = e.PeakPain
			day.Doses = e.TotalDoses()
		}
		out = append(out, day)
	}
	return out, nil
}

// MonthHeatmap 返回 YYYY-MM 整月的热力图。
func MonthHeatmap(c journal.Collection, month string) ([]HeatmapDay, error) {
	first, err := journal.ParseDate(month + "-01")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid month %q", ErrValidation, month)
	}
	last := first.AddDate(0, 1, -1)
	return HeatmapRange(c, journal.FormatDate(first), journal.FormatDate(last))
}

// CalculateStreaks 从最早的记录数到 today，计算当前与最长的无头痛、头痛连续天数。
func CalculateStreaks(c journal.Collection, today string) Streaks {
	var s Streaks
	earliest, ok := c.Earliest()
	if !ok {
		return s
	}
	days, err := journal.DaysBetween(earliest, today)
	if err != nil || days < 0 {
		return s
	}

	painFree, headache := 0, 0
	for i := 0; i <= days; i++ {
		e, logged := c[journal.MustAddDays(earliest, i)]
		if logged && e.PainLevel > 0 {
			headache++
			painFree = 0
		} else {
			painFree++
			headache = 0
		}
		s.LongestPainFree = max(s.LongestPainFree, painFree)
		s.LongestHeadache = max(s.LongestHeadache, headache)
	}
	s.CurrentPainFree = painFree
	s.CurrentHeadache = headache
	return s
}
