package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/service"
)

// GetStats 返回区间统计。range 取 7/30/90/365/all，也可以用 from/to 指定绝对区间。
func (a *API) GetStats(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}

	var (
		r   service.Range
		err error
	)
	from, to := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to"))
	if from != "" || to != "" {
		if err = validateBounds(from, to); err != nil {
			handleServiceError(c, err)
			return
		}
		r = service.Between(from, to)
	} else {
		r, err = service.ParseRange(c.Query("range"))
		if err != nil {
			handleServiceError(c, err)
			return
		}
	}

	today := s.Editor().Today()
	stats := service.StatsFor(s.Store().Snapshot(), r, today)
	c.JSON(http.StatusOK, gin.H{"range": r, "today": today, "stats": stats})
}

func validateBounds(from, to string) error {
	if err := journal.ValidateDate(from); err != nil {
		return err
	}
	if err := journal.ValidateDate(to); err != nil {
		return err
	}
	if from > to {
		return fmt.Errorf("%w: from %s is after to %s", service.ErrValidation, from, to)
	}
	return nil
}

// GetTrends 返回三个 30 天分段的对比表。
func (a *API) GetTrends(c *gin.Context) {
	s, _, ok := withSession(c)
	if !ok {
		return
	}
	if s.Backend() == nil {
		handleServiceError(c, service.ErrNoBackend)
		return
	}
	c.JSON(http.StatusOK, service.Trends(s.Store().Snapshot(), s.Editor().Today()))
}
