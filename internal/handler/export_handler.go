package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/logging"
	"github.com/headachelog/internal/service"
)

const maxImportBytes = 10 << 20

// exportRange 读取 from/to，缺省为最近 30 天。
func (a *API) exportRange(c *gin.Context, s *service.Session) (string, string, []journal.DatedEntry, bool) {
	today := s.Editor().Today()
	from := strings.TrimSpace(c.Query("from"))
	to := strings.TrimSpace(c.Query("to"))
	if to == "" {
		to = today
	}
	if from == "" {
		from = journal.MustAddDays(today, -30)
	}

	rows, err := service.SelectRange(s.Store().Snapshot(), from, to)
	if err != nil {
		handleServiceError(c, err)
		return "", "", nil, false
	}
	return from, to, rows, true
}

// ExportCSV 导出区间内的记录。
func (a *API) ExportCSV(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	from, to, rows, ok := a.exportRange(c, s)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := service.WriteCSV(&buf, rows); err != nil {
		handleServiceError(c, err)
		return
	}
	setAttachment(c, service.CSVFilename(from, to))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportReport 生成可打印的 HTML 报告。
func (a *API) ExportReport(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	from, to, rows, ok := a.exportRange(c, s)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := service.RenderHTMLReport(&buf, from, to, rows, a.clock.Now()); err != nil {
		handleServiceError(c, err)
		return
	}
	setAttachment(c, service.ReportFilename(from, to))
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// ExportJSON 导出全部记录的备份。
func (a *API) ExportJSON(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	now := a.clock.Now()
	setAttachment(c, service.BackupFilename(now))
	c.IndentedJSON(http.StatusOK, service.NewBackup(s.Store().Snapshot(), now))
}

// ImportJSON 合并导入备份文件，同一天的记录以文件为准。
func (a *API) ImportJSON(c *gin.Context) {
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}

	incoming, err := service.ParseBackup(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	imported, err := s.Import(ctx, incoming)
	if err != nil {
		logging.From(c).Warn("import stopped early", "imported", imported, "total", len(incoming), "error", err)
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported, "total": len(incoming)})
}
