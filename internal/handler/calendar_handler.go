package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/service"
)

type heatmapRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type heatmapSummary struct {
	LoggedDays   int `json:"loggedDays"`
	HeadacheDays int `json:"headacheDays"`
}

type calendarPayload struct {
	Range   heatmapRange         `json:"range"`
	Days    []service.HeatmapDay `json:"days"`
	Summary heatmapSummary       `json:"summary"`
	Streaks service.Streaks      `json:"streaks"`
}

// GetCalendar 返回热力图。view=year 时覆盖过去一年，否则返回 month 指定的月份，默认本月。
func (a *API) GetCalendar(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}

	today := s.Editor().Today()
	snapshot := s.Store().Snapshot()

	var (
		days []service.HeatmapDay
		err  error
	)
	if c.Query("view") == "year" {
		days, err = service.HeatmapRange(snapshot, journal.MustAddDays(today, -364), today)
	} else {
		month := strings.TrimSpace(c.Query("month"))
		if month == "" {
			month = today[:7]
		}
		days, err = service.MonthHeatmap(snapshot, month)
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, buildCalendarPayload(days, service.CalculateStreaks(snapshot, today)))
}

func buildCalendarPayload(days []service.HeatmapDay, streaks service.Streaks) calendarPayload {
	payload := calendarPayload{Days: days, Streaks: streaks}
	if len(days) > 0 {
		payload.Range = heatmapRange{Start: days[0].Date, End: days[len(days)-1].Date}
	}
	for _, day := range days {
		if !day.Logged {
			continue
		}
		payload.Summary.LoggedDays++
		if day.PainLevel > 0 {
			payload.Summary.HeadacheDays++
		}
	}
	return payload
}
