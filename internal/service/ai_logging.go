package service

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

const maxAILogSnippetRunes = 1024

// logAIExchange 输出分析请求与响应的截断片段，方便排查模型行为。
func logAIExchange(logger *slog.Logger, kind, phase, content string) {
	if logger == nil {
		logger = slog.Default()
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		logger.Debug("ai exchange", "kind", kind, "phase", phase, "content", "<empty>")
		return
	}

	runeCount := utf8.RuneCountInString(trimmed)
	snippet := trimmed
	if runeCount > maxAILogSnippetRunes {
		snippet = string([]rune(trimmed)[:maxAILogSnippetRunes]) + "…(truncated)"
	}
	logger.Debug("ai exchange", "kind", kind, "phase", phase, "runes", runeCount, "content", snippet)
}
