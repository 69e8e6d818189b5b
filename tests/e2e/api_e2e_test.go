package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/headachelog/internal/db"
	"github.com/headachelog/internal/handler"
	"github.com/headachelog/internal/journal"
	"github.com/headachelog/internal/localstore"
	"github.com/headachelog/internal/router"
	"github.com/headachelog/internal/service"
)

const (
	e2eEmail    = "patient@example.com"
	e2ePassword = "e2e-secret"
	e2eAPIKey   = "sk-ant-e2e"
)

type e2eSuite struct {
	server         *httptest.Server
	anthropic      *httptest.Server
	anthropicCalls atomic.Int32
	browser        *http.Client
	today          string
}

func TestE2E_AllInterfaces(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("remote journal", suite.testRemoteJournal)
	t.Run("analysis through proxy", suite.testAnalysis)
	t.Run("exports", suite.testExports)
	t.Run("local mode", suite.testLocalMode)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file:e2e?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	if _, err := db.EnsureUser(gdb, e2eEmail, e2ePassword); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	s := &e2eSuite{today: journal.FormatDate(time.Now())}

	s.anthropic = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.anthropicCalls.Add(1)
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != e2eAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
			return
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.Model != "claude-e2e" || len(payload.Messages) != 1 || !strings.Contains(payload.Messages[0].Content, "DAILY LOG") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"unexpected payload"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"**Overview**\n\nPain is trending down."}]}`))
	}))
	t.Cleanup(s.anthropic.Close)

	// 分析服务通过本服务自己的 /api/analyze 转发，需要先拿到监听地址
	var engine http.Handler
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		engine.ServeHTTP(w, r)
	}))
	t.Cleanup(s.server.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := service.NewSessionManager(
		service.StoreBackendFactory{DB: gdb, Local: localstore.Open(t.TempDir())},
		service.AutoSaveOptions{Delay: 20 * time.Millisecond, TextDelay: 50 * time.Millisecond, Logger: log},
		time.Hour,
	)
	t.Cleanup(func() { sessions.CloseAll(context.Background()) })

	api := handler.NewAPI(handler.Deps{
		DB:        gdb,
		Sessions:  sessions,
		Analysis:  service.NewAnalysisService(s.server.URL+"/api/analyze", nil, log),
		Anthropic: service.NewAnthropicClient(s.anthropic.URL, "claude-e2e", log),
		Logger:    log,
	})
	engine = router.SetupRouter(api, "test-session-secret", log)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	s.browser = &http.Client{Jar: jar, Timeout: 10 * time.Second}
	return s
}

func (s *e2eSuite) request(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.browser.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, data
}

func (s *e2eSuite) mustStatus(t *testing.T, method, path string, body any, code int) []byte {
	t.Helper()
	resp, data := s.request(t, method, path, body)
	if resp.StatusCode != code {
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, code, resp.StatusCode, data)
	}
	return data
}

func (s *e2eSuite) testRemoteJournal(t *testing.T) {
	s.mustStatus(t, http.MethodGet, "/api/stats", nil, http.StatusUnauthorized)
	s.mustStatus(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": e2eEmail, "password": e2ePassword}, http.StatusOK)

	// 最近六天，每天打开、修改、再切到下一天，切换时强制保存
	for i := 5; i >= 0; i-- {
		date := journal.MustAddDays(s.today, -i)
		s.mustStatus(t, http.MethodPost, "/api/editor/open", map[string]string{"date": date}, http.StatusOK)
		s.mustStatus(t, http.MethodPatch, "/api/editor/fields", map[string]any{
			"painLevel":   i % 3,
			"peakPain":    i%3 + 1,
			"paracetamol": i % 2,
			"triggers":    "weather",
		}, http.StatusOK)
	}
	s.mustStatus(t, http.MethodPost, "/api/editor/today", nil, http.StatusOK)

	// 今天的修改交给自动保存定时器
	s.mustStatus(t, http.MethodPatch, "/api/editor/fields", map[string]any{"notes": "auto saved"}, http.StatusOK)
	deadline := time.Now().Add(3 * time.Second)
	for {
		data := s.mustStatus(t, http.MethodGet, "/api/entries/"+s.today, nil, http.StatusOK)
		if strings.Contains(string(data), "auto saved") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("autosave did not persist notes: %s", data)
		}
		time.Sleep(20 * time.Millisecond)
	}

	data := s.mustStatus(t, http.MethodGet, "/api/stats?range=7", nil, http.StatusOK)
	var stats struct {
		Stats service.Stats `json:"stats"`
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if !stats.Stats.HasData || stats.Stats.DaysLogged != 6 || stats.Stats.CalendarDays != 7 {
		t.Fatalf("unexpected stats %+v", stats.Stats)
	}

	// 重新登录后数据仍在远端
	s.mustStatus(t, http.MethodPost, "/api/auth/signout", nil, http.StatusOK)
	s.mustStatus(t, http.MethodPost, "/api/auth/signin", map[string]string{"email": e2eEmail, "password": e2ePassword}, http.StatusOK)
	data = s.mustStatus(t, http.MethodGet, "/api/entries", nil, http.StatusOK)
	if !strings.Contains(string(data), `"total":6`) {
		t.Fatalf("expected six entries after signing in again: %s", data)
	}
}

func (s *e2eSuite) testAnalysis(t *testing.T) {
	data := s.mustStatus(t, http.MethodPost, "/api/analysis", nil, http.StatusBadRequest)
	if !strings.Contains(string(data), "api key") {
		t.Fatalf("expected missing api key error: %s", data)
	}

	s.mustStatus(t, http.MethodPut, "/api/preferences", map[string]string{"apiKey": "sk-ant-wrong"}, http.StatusOK)
	data = s.mustStatus(t, http.MethodPost, "/api/analysis", nil, http.StatusBadGateway)
	if !strings.Contains(string(data), "invalid x-api-key") {
		t.Fatalf("expected upstream error to surface: %s", data)
	}

	s.mustStatus(t, http.MethodPut, "/api/preferences", map[string]string{"apiKey": e2eAPIKey}, http.StatusOK)
	data = s.mustStatus(t, http.MethodPost, "/api/analysis", nil, http.StatusCreated)
	var created struct {
		Text string `json:"text"`
		HTML string `json:"html"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if !strings.Contains(created.HTML, "<strong>Overview</strong>") || !strings.Contains(created.Text, "trending down") {
		t.Fatalf("expected rendered report: %+v", created)
	}

	data = s.mustStatus(t, http.MethodGet, "/api/analysis/reports", nil, http.StatusOK)
	var list struct {
		Reports []journal.AIReport `json:"reports"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("failed to decode reports: %v", err)
	}
	if len(list.Reports) != 1 {
		t.Fatalf("only the successful analysis should be stored, got %d", len(list.Reports))
	}
	if calls := s.anthropicCalls.Load(); calls != 2 {
		t.Fatalf("expected two upstream calls, got %d", calls)
	}
}

func (s *e2eSuite) testExports(t *testing.T) {
	resp, data := s.request(t, http.MethodGet, "/api/export/csv?from="+journal.MustAddDays(s.today, -6)+"&to="+s.today, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("csv export failed: %d %s", resp.StatusCode, data)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 7 {
		t.Fatalf("expected header and six rows, got %d", len(lines))
	}
	if !strings.HasPrefix(string(data), "Date,Pain Level,Peak Pain") {
		t.Fatalf("unexpected csv header: %s", data)
	}

	resp, data = s.request(t, http.MethodGet, "/api/export/report", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("report export failed: %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), "auto saved") {
		t.Fatalf("report should list notes")
	}

	s.mustStatus(t, http.MethodGet, "/api/export/csv?from=2001-01-01&to=2001-01-31", nil, http.StatusNotFound)
}

func (s *e2eSuite) testLocalMode(t *testing.T) {
	s.mustStatus(t, http.MethodPost, "/api/auth/signout", nil, http.StatusOK)
	data := s.mustStatus(t, http.MethodPost, "/api/auth/local", nil, http.StatusOK)
	if !strings.Contains(string(data), `"entries":0`) {
		t.Fatalf("local storage should start empty: %s", data)
	}

	backup := s.mustStatus(t, http.MethodPost, "/api/import/json", map[string]any{
		"entries": map[string]any{s.today: map[string]any{"painLevel": 4, "triptan": 1}},
	}, http.StatusOK)
	if !strings.Contains(string(backup), `"imported":1`) {
		t.Fatalf("unexpected import result: %s", backup)
	}

	data = s.mustStatus(t, http.MethodGet, "/api/trends", nil, http.StatusOK)
	if !strings.Contains(string(data), `"insufficient":true`) {
		t.Fatalf("one day of local data cannot fill the trend table: %s", data)
	}

	data = s.mustStatus(t, http.MethodGet, "/api/export/json", nil, http.StatusOK)
	var exported service.Backup
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatalf("failed to decode backup: %v", err)
	}
	if len(exported.Entries) != 1 || exported.Entries[s.today].Triptan != 1 {
		t.Fatalf("unexpected local backup %+v", exported.Entries)
	}
}
