package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/headachelog/internal/journal"
)

const (
	analysisWindowDays = 90
	analysisMinEntries = 5
)

type analysisRequest struct {
	APIKey string `json:"apiKey"`
	Prompt string `json:"prompt"`
}

type analysisResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AnalysisService 通过分析代理生成叙述性报告并存档。
type AnalysisService struct {
	proxyURL string
	http     httpDoer
	clock    Clock
	logger   *slog.Logger
}

// NewAnalysisService 构造 AnalysisService，proxyURL 指向 POST /api/analyze。
func NewAnalysisService(proxyURL string, clock Clock, logger *slog.Logger) *AnalysisService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		proxyURL: strings.TrimSpace(proxyURL),
		http:     &http.Client{Timeout: 200 * time.Second},
		clock:    clock,
		logger:   logger,
	}
}

func (s *AnalysisService) SetHTTPClient(client httpDoer) {
	if client == nil {
		client = &http.Client{Timeout: 200 * time.Second}
	}
	s.http = client
}

// Generate 读取 API Key，检查最近 90 天至少有 5 条记录，请求代理并保存报告。
// 远端失败时不保存任何内容。
func (s *AnalysisService) Generate(ctx context.Context, backend journal.Backend, entries journal.Collection) (journal.AIReport, error) {
	if backend == nil {
		return journal.AIReport{}, ErrNoBackend
	}
	prefs, err := backend.LoadPreferences(ctx)
	if err != nil {
		return journal.AIReport{}, fmt.Errorf("%w: load preferences: %v", ErrPersistence, err)
	}
	apiKey := strings.TrimSpace(prefs.APIKey)
	if apiKey == "" {
		return journal.AIReport{}, ErrAPIKeyMissing
	}

	today := journal.FormatDate(s.clock.Now())
	window := RangeFilter(entries, LastDays(analysisWindowDays), today)
	if len(window) < analysisMinEntries {
		return journal.AIReport{}, fmt.Errorf("%w: log at least %d entries in the past %d days", ErrNotEnoughData, analysisMinEntries, analysisWindowDays)
	}

	prompt := BuildAnalysisPrompt(entries, window, today)
	text, err := s.call(ctx, apiKey, prompt)
	if err != nil {
		s.logger.Warn("analysis request failed", "error", err)
		return journal.AIReport{}, err
	}

	report := journal.AIReport{
		ID:          uuid.NewString(),
		GeneratedAt: s.clock.Now().UTC(),
		Text:        text,
	}
	if err := backend.AppendReport(ctx, report); err != nil {
		// 报告已经生成，存档失败只记录日志。
		s.logger.Error("saving analysis report failed", "id", report.ID, "error", err)
	}
	return report, nil
}

func (s *AnalysisService) call(ctx context.Context, apiKey, prompt string) (string, error) {
	if s.proxyURL == "" {
		return "", fmt.Errorf("%w: analysis proxy is not configured", ErrRemoteAnalysis)
	}
	body, err := json.Marshal(analysisRequest{APIKey: apiKey, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteAnalysis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.proxyURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteAnalysis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteAnalysis, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrRemoteAnalysis, err)
	}

	var parsed analysisResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("API error %d", resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
			msg = strings.TrimSpace(parsed.Error.Message)
		}
		return "", fmt.Errorf("%w: %s", ErrRemoteAnalysis, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrRemoteAnalysis, decodeErr)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type != "" && block.Type != "text" {
			continue
		}
		text.WriteString(block.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("%w: response has no text content", ErrRemoteAnalysis)
	}
	return text.String(), nil
}

// ListReports 返回存档的分析报告，最新的在前。
func (s *AnalysisService) ListReports(ctx context.Context, backend journal.Backend) ([]journal.AIReport, error) {
	if backend == nil {
		return nil, ErrNoBackend
	}
	reports, err := backend.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return reports, nil
}

// DeleteReport 删除一份存档。
func (s *AnalysisService) DeleteReport(ctx context.Context, backend journal.Backend, id string) error {
	if backend == nil {
		return ErrNoBackend
	}
	if err := backend.DeleteReport(ctx, id); err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return ErrReportNotFound
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func roundPct(n, d int) int {
	if d <= 0 {
		return 0
	}
	return int(math.Floor(float64(n)/float64(d)*100 + 0.5))
}

// BuildAnalysisPrompt 生成发给模型的提示：90 天汇总、三个 30 天分段与逐日精简日志。
// window 是最近 90 天内按日期升序的记录。
func BuildAnalysisPrompt(all journal.Collection, window []journal.DatedEntry, today string) string {
	startDate := today
	if len(window) > 0 {
		startDate = window[0].Date
	}

	var (
		daysWithPain, totalMeds, daysWithMeds, daysWithTriptan int
		sumPain, sumPeak, sumTinnitus, sumOcular, sumSleep     int
	)
	for _, item := range window {
		e := item.Entry
		if e.PainLevel > 0 {
			daysWithPain++
		}
		if e.TotalDoses() > 0 {
			daysWithMeds++
		}
		if e.Triptan > 0 {
			daysWithTriptan++
		}
		totalMeds += e.TotalDoses()
		sumPain += e.PainLevel
		sumPeak += e.PeakPain
		sumTinnitus += e.Tinnitus
		sumOcular += e.Ocular
		sumSleep += e.SleepIssues
	}
	avg := func(sum int) string {
		return fmt.Sprintf("%.2f", float64(sum)/analysisWindowDays)
	}

	var b strings.Builder
	b.WriteString("You are analyzing 90 days of headache tracking data for a personal health journal.\n\n")
	b.WriteString("SCALE: 0=none, 1=mild, 2=moderate, 3=severe, 4=very severe\n\n")
	fmt.Fprintf(&b, "90-DAY SUMMARY (%s to %s):\n", startDate, today)
	fmt.Fprintf(&b, "- Days logged: %d/90 (%d%%)\n", len(window), roundPct(len(window), analysisWindowDays))
	fmt.Fprintf(&b, "- Days with headache (pain > 0): %d (%d%%)\n", daysWithPain, roundPct(daysWithPain, analysisWindowDays))
	fmt.Fprintf(&b, "- Average daily pain: %s/4, Average peak pain: %s/4\n", avg(sumPain), avg(sumPeak))
	fmt.Fprintf(&b, "- Average tinnitus: %s/4, Ocular issues: %s/4, Sleep issues: %s/4\n", avg(sumTinnitus), avg(sumOcular), avg(sumSleep))
	fmt.Fprintf(&b, "- Total medication doses: %d\n", totalMeds)
	fmt.Fprintf(&b, "- Days using any medication: %d (%d%%)\n", daysWithMeds, roundPct(daysWithMeds, analysisWindowDays))
	fmt.Fprintf(&b, "- Days using sumatriptan (triptan): %d\n\n", daysWithTriptan)

	b.WriteString("PERIOD BREAKDOWN (30-day segments):\n")
	periods := []struct {
		label      string
		start, end int
	}{
		{"Most recent (0-30 days)", 0, 30},
		{"31-60 days ago", 30, 60},
		{"61-90 days ago", 60, 90},
	}
	for _, p := range periods {
		stats := WindowStats(all, p.start, p.end, today)
		fmt.Fprintf(&b, "%s: headache days %d/%d, avg pain %.1f/4, avg peak %.1f/4, med days %d\n",
			p.label, stats.DaysWithPain, stats.CalendarDays, stats.AvgPain, stats.AvgPeakPain, stats.PainkillerDays)
	}

	b.WriteString("\nDAILY LOG (date: Pain/Peak[/Tinnitus/Ocular/Sleep] | medications | triggers | notes):\n")
	for _, item := range window {
		b.WriteString(dailyLogLine(item))
		b.WriteByte('\n')
	}

	b.WriteString(`
Please provide a structured analysis with these sections:

**Overview**
A narrative paragraph summarizing the 90-day trend and trajectory.

**Correlations & Patterns**
Bullet points identifying key correlations (e.g., trigger patterns, medication use relative to pain, symptom co-occurrence, any clustering, etc.)

**Notes for Medical Consultation**
Any flags worth raising with a neurologist (medication overuse trends, worsening periods, unusual clusters, etc.)

Be specific with numbers from the data. Avoid generic health advice.`)
	return b.String()
}

func dailyLogLine(item journal.DatedEntry) string {
	e := item.Entry
	line := fmt.Sprintf("%s: P%d/Pk%d", item.Date, e.PainLevel, e.PeakPain)
	if e.Tinnitus > 0 {
		line += fmt.Sprintf("/T%d", e.Tinnitus)
	}
	if e.Ocular > 0 {
		line += fmt.Sprintf("/O%d", e.Ocular)
	}
	if e.SleepIssues > 0 {
		line += fmt.Sprintf("/S%d", e.SleepIssues)
	}

	meds := make([]string, 0, 6)
	for _, m := range []struct {
		short string
		n     int
	}{
		{"para", e.Paracetamol},
		{"ibu", e.Ibuprofen},
		{"asp", e.Aspirin},
		{"trip", e.Triptan},
		{"ice", e.Codeine},
	} {
		if m.n > 0 {
			meds = append(meds, fmt.Sprintf("%s:%d", m.short, m.n))
		}
	}
	if e.OtherMeds != "" {
		meds = append(meds, "other:"+e.OtherMeds)
	}
	if len(meds) > 0 {
		line += " | " + strings.Join(meds, " ")
	}
	if e.Triggers != "" {
		line += " | triggers: " + e.Triggers
	}
	if e.Notes != "" {
		line += " | notes: " + e.Notes
	}
	return line
}
