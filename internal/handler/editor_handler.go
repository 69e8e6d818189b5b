package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/service"
)

type openRequest struct {
	Date string `json:"date"`
}

type shiftRequest struct {
	Days int `json:"days"`
}

func (a *API) respondEditor(c *gin.Context, status service.EditorStatus, err error) {
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetEditor 返回编辑器当前状态。
func (a *API) GetEditor(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Editor().Status())
}

// OpenDate 先强制保存再打开指定日期。
func (a *API) OpenDate(c *gin.Context) {
	var req openRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	status, err := s.Editor().Open(ctx, strings.TrimSpace(req.Date))
	a.respondEditor(c, status, err)
}

// ShiftDate 前后翻日。
func (a *API) ShiftDate(c *gin.Context) {
	var req shiftRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	status, err := s.Editor().Shift(ctx, req.Days)
	a.respondEditor(c, status, err)
}

// OpenToday 回到今天。
func (a *API) OpenToday(c *gin.Context) {
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	status, err := s.Editor().OpenToday(ctx)
	a.respondEditor(c, status, err)
}

// EditFields 修改表单字段，保存由自动保存定时器完成。
func (a *API) EditFields(c *gin.Context) {
	var changes map[string]any
	if !bindJSON(c, &changes, "invalid payload") {
		return
	}
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	status, err := s.Editor().EditFields(ctx, changes)
	a.respondEditor(c, status, err)
}

// FlushEditor 立即保存待写修改。
func (a *API) FlushEditor(c *gin.Context) {
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	if err := s.Editor().Flush(ctx); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Editor().Status())
}

// ListEntries 返回历史记录，month 为空时返回全部，最新的在前。
func (a *API) ListEntries(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}

	snapshot := s.Store().Snapshot()
	month := strings.TrimSpace(c.Query("month"))
	var rows []journal.DatedEntry
	if month == "" {
		rows = snapshot.Sorted()
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	} else {
		var err error
		rows, err = service.HistoryMonth(snapshot, month)
		if err != nil {
			handleServiceError(c, err)
			return
		}
	}

	type historyItem struct {
		journal.DatedEntry
		Meds string `json:"meds"`
	}
	items := make([]historyItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, historyItem{DatedEntry: row, Meds: row.MedsSummary()})
	}
	c.JSON(http.StatusOK, gin.H{"entries": items, "total": len(items)})
}

// GetEntry 返回单日记录。
func (a *API) GetEntry(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	date := c.Param("date")
	if err := journal.ValidateDate(date); err != nil {
		handleServiceError(c, err)
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	entry, found := s.Store().Get(date)
	if !found {
		handleServiceError(c, service.ErrEntryNotFound)
		return
	}
	c.JSON(http.StatusOK, journal.DatedEntry{Date: date, Entry: entry})
}

// DeleteEntry 删除单日记录。
func (a *API) DeleteEntry(c *gin.Context) {
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	date := c.Param("date")
	if err := journal.ValidateDate(date); err != nil {
		handleServiceError(c, err)
		return
	}
	if err := s.DeleteEntry(ctx, date); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
