package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/logging"
	"github.com/headachelog/internal/service"
)

type reportResponse struct {
	journal.AIReport
	HTML string `json:"html"`
}

func renderReport(report journal.AIReport) reportResponse {
	html, err := service.RenderMarkdown(report.Text)
	if err != nil {
		html = ""
	}
	return reportResponse{AIReport: report, HTML: html}
}

// GenerateAnalysis 请求叙述性分析并存档。
func (a *API) GenerateAnalysis(c *gin.Context) {
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	report, err := a.analysis.Generate(ctx, s.Backend(), s.Store().Snapshot())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, renderReport(report))
}

// ListReports 返回存档的分析报告，最新的在前。
func (a *API) ListReports(c *gin.Context) {
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	reports, err := a.analysis.ListReports(ctx, s.Backend())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	items := make([]reportResponse, 0, len(reports))
	for _, report := range reports {
		items = append(items, renderReport(report))
	}
	c.JSON(http.StatusOK, gin.H{"reports": items})
}

// DeleteReport 删除一份分析报告。
func (a *API) DeleteReport(c *gin.Context) {
	s, ctx, ok := withSession(c)
	if !ok {
		return
	}
	if err := a.analysis.DeleteReport(ctx, s.Backend(), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type analyzeRequest struct {
	APIKey string `json:"apiKey"`
	Prompt string `json:"prompt"`
}

func proxyError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": gin.H{"message": message}})
}

// AnalyzeProxy 把 {apiKey, prompt} 转发给 Anthropic，原样返回上游的状态码与 JSON。
func (a *API) AnalyzeProxy(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.APIKey) == "" || strings.TrimSpace(req.Prompt) == "" {
		proxyError(c, http.StatusBadRequest, "Missing apiKey or prompt")
		return
	}

	status, body, err := a.anthropic.Relay(c.Request.Context(), strings.TrimSpace(req.APIKey), req.Prompt)
	if err != nil {
		logging.From(c).Warn("anthropic relay failed", "error", err)
		message := err.Error()
		if errors.Is(err, service.ErrInvalidUpstream) {
			message = service.ErrInvalidUpstream.Error()
		}
		proxyError(c, http.StatusInternalServerError, message)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}
