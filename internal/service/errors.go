package service

import (
	"errors"
	"fmt"

	"github.com/headachelog/internal/journal"
)

var (
	// ErrValidation 与 journal.ErrValidation 相同，方便调用方只依赖 service 包。
	ErrValidation = journal.ErrValidation
	// ErrNotFound 与 journal.ErrNotFound 相同。
	ErrNotFound = journal.ErrNotFound
	// ErrPersistence 表示后端读写失败，本地状态已回滚。
	ErrPersistence = errors.New("persistence failed")
	// ErrNoBackend 表示当前会话没有登录身份，无法读写记录。
	ErrNoBackend = errors.New("no active identity")
	// ErrEntryNotFound 表示指定日期没有记录。
	ErrEntryNotFound = fmt.Errorf("entry %w", journal.ErrNotFound)
	// ErrNoActiveDate 表示编辑器还没有打开任何日期。
	ErrNoActiveDate = errors.New("no date open in editor")
	// ErrNoDataInRange 表示导出区间内没有记录。
	ErrNoDataInRange = errors.New("no entries in selected date range")
	// ErrAPIKeyMissing 表示偏好设置里没有 Anthropic API Key。
	ErrAPIKeyMissing = errors.New("api key is required")
	// ErrNotEnoughData 表示最近 90 天的记录不足以生成分析。
	ErrNotEnoughData = errors.New("not enough data for analysis")
	// ErrRemoteAnalysis 表示分析代理或上游模型返回失败。
	ErrRemoteAnalysis = errors.New("remote analysis failed")
	// ErrReportNotFound 表示分析报告不存在。
	ErrReportNotFound = fmt.Errorf("report %w", journal.ErrNotFound)
	// ErrEmailTaken 表示注册邮箱已被占用。
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials 表示邮箱或密码错误。
	ErrInvalidCredentials = errors.New("invalid email or password")
)
