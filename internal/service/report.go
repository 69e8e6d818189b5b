package service

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/headachelog/internal/journal"
)

// SelectRange 按日期升序返回 [from, to] 内的记录，区间内没有记录时返回 ErrNoDataInRange。
func SelectRange(c journal.Collection, from, to string) ([]journal.DatedEntry, error) {
	if err := journal.ValidateDate(from); err != nil {
		return nil, err
	}
	if err := journal.ValidateDate(to); err != nil {
		return nil, err
	}
	if from > to {
		return nil, fmt.Errorf("%w: from %s is after to %s", ErrValidation, from, to)
	}

	rows := RangeFilter(c, Between(from, to), to)
	if len(rows) == 0 {
		return nil, ErrNoDataInRange
	}
	return rows, nil
}

var csvHeader = []string{
	"Date", "Pain Level", "Peak Pain", "Tinnitus", "Ocular", "Sleep Issues",
	"Paracetamol", "Ibuprofen", "Aspirin", "Sumatriptan",
	"Ice", "Other Meds", "Triggers", "Notes",
}

// WriteCSV 输出固定 14 列的 CSV。
func WriteCSV(w io.Writer, rows []journal.DatedEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		e := row.Entry
		record := []string{
			row.Date,
			strconv.Itoa(e.PainLevel),
			strconv.Itoa(e.PeakPain),
			strconv.Itoa(e.Tinnitus),
			strconv.Itoa(e.Ocular),
			strconv.Itoa(e.SleepIssues),
			strconv.Itoa(e.Paracetamol),
			strconv.Itoa(e.Ibuprofen),
			strconv.Itoa(e.Aspirin),
			strconv.Itoa(e.Triptan),
			strconv.Itoa(e.Codeine),
			e.OtherMeds,
			e.Triggers,
			e.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFilename 返回导出文件名。
func CSVFilename(from, to string) string {
	return fmt.Sprintf("headache-log-%s-to-%s.csv", from, to)
}

// ReportFilename 返回 HTML 报告文件名。
func ReportFilename(from, to string) string {
	return fmt.Sprintf("headache-report-%s-to-%s.html", from, to)
}

type reportRow struct {
	Date     string
	Pain     int
	Peak     int
	Meds     string
	Triggers string
	Notes    string
}

type reportView struct {
	From      string
	To        string
	Generated string
	Summary   Stats
	AvgPain   string

	Labels      []string
	Pain        []int
	Peak        []int
	Tinnitus    []int
	Ocular      []int
	Sleep       []int
	Paracetamol []int
	Ibuprofen   []int
	Aspirin     []int
	Triptan     []int
	Ice         []int
	MedsAxisMax int

	Rows []reportRow
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newReportView(from, to string, rows []journal.DatedEntry, generated time.Time) reportView {
	// 报告摘要只统计区间内已记录的日期。
	summary := Compute(rows, len(rows))
	view := reportView{
		From:      from,
		To:        to,
		Generated: generated.Format("2006-01-02"),
		Summary:   summary,
		AvgPain:   strconv.FormatFloat(summary.AvgPain, 'f', 1, 64),
		Rows:      make([]reportRow, 0, len(rows)),
	}

	maxStacked := 1
	for _, row := range rows {
		e := row.Entry
		view.Labels = append(view.Labels, row.Date)
		view.Pain = append(view.Pain, e.PainLevel)
		view.Peak = append(view.Peak, e.PeakPain)
		view.Tinnitus = append(view.Tinnitus, e.Tinnitus)
		view.Ocular = append(view.Ocular, e.Ocular)
		view.Sleep = append(view.Sleep, e.SleepIssues)
		view.Paracetamol = append(view.Paracetamol, e.Paracetamol)
		view.Ibuprofen = append(view.Ibuprofen, e.Ibuprofen)
		view.Aspirin = append(view.Aspirin, e.Aspirin)
		view.Triptan = append(view.Triptan, e.Triptan)
		view.Ice = append(view.Ice, e.Codeine)
		if total := e.TotalDoses(); total > maxStacked {
			maxStacked = total
		}
		view.Rows = append(view.Rows, reportRow{
			Date:     row.Date,
			Pain:     e.PainLevel,
			Peak:     e.PeakPain,
			Meds:     e.MedsSummary(),
			Triggers: orDash(e.Triggers),
			Notes:    orDash(e.Notes),
		})
	}
	view.MedsAxisMax = int(math.Ceil(float64(maxStacked) * 1.2))
	return view
}

// RenderHTMLReport 生成可打印的独立 HTML 报告，图表数据以 JSON 数组内嵌。
func RenderHTMLReport(w io.Writer, from, to string, rows []journal.DatedEntry, generated time.Time) error {
	return reportTemplate.Execute(w, newReportView(from, to, rows, generated))
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Headache Report {{.From}} to {{.To}}</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        body { font-family: Arial, sans-serif; max-width: 900px; margin: 0 auto; padding: 20px; }
        h1 { color: #667eea; }
        h2 { color: #333; border-bottom: 2px solid #667eea; padding-bottom: 10px; margin-top: 30px; }
        .summary { background: #f8f9fa; padding: 20px; border-radius: 10px; margin: 20px 0; }
        .summary-grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 15px; }
        .stat { text-align: center; }
        .stat-value { font-size: 2rem; color: #667eea; font-weight: bold; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; font-size: 0.9rem; }
        th, td { padding: 8px; text-align: left; border-bottom: 1px solid #ddd; }
        th { background: #667eea; color: white; }
        tr:nth-child(even) { background: #f8f9fa; }
        .notes-cell { max-width: 200px; overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
        .chart-container { background: white; padding: 20px; border-radius: 10px; margin: 20px 0; }
        @media print { .chart-container { break-inside: avoid; } }
    </style>
</head>
<body>
    <h1>Headache Report</h1>
    <p><strong>Period:</strong> {{.From}} to {{.To}}</p>
    <p><strong>Generated:</strong> {{.Generated}}</p>

    <div class="summary">
        <h2 style="margin-top: 0; border: none;">Summary Statistics</h2>
        <div class="summary-grid">
            <div class="stat"><div class="stat-value">{{.Summary.DaysLogged}}</div><div>Total Days Logged</div></div>
            <div class="stat"><div class="stat-value">{{.Summary.DaysWithPain}}</div><div>Days with Headache</div></div>
            <div class="stat"><div class="stat-value">{{.AvgPain}}</div><div>Avg Pain Level (0-4)</div></div>
            <div class="stat"><div class="stat-value">{{.Summary.MaxPeakPain}}</div><div>Max Pain Level</div></div>
            <div class="stat"><div class="stat-value">{{.Summary.TotalDoses}}</div><div>Total Medication Doses</div></div>
            <div class="stat"><div class="stat-value">{{.Summary.PainkillerDays}}</div><div>Days with Painkillers</div></div>
        </div>
    </div>

    <h2>Pain &amp; Symptoms Trend</h2>
    <div class="chart-container"><canvas id="painSymptomsChart"></canvas></div>

    <h2>Medications (Stacked)</h2>
    <div class="chart-container"><canvas id="medicationsChart"></canvas></div>

    <h2>Daily Log</h2>
    <table>
        <tr><th>Date</th><th>Pain</th><th>Peak</th><th>Medications</th><th>Triggers</th><th>Notes</th></tr>
        {{- range .Rows}}
        <tr>
            <td>{{.Date}}</td>
            <td>{{.Pain}}/4</td>
            <td>{{.Peak}}/4</td>
            <td>{{.Meds}}</td>
            <td>{{.Triggers}}</td>
            <td class="notes-cell" title="{{.Notes}}">{{.Notes}}</td>
        </tr>
        {{- end}}
    </table>

    <script>
        const labels = {{.Labels}};
        new Chart(document.getElementById('painSymptomsChart'), {
            type: 'line',
            data: {
                labels: labels,
                datasets: [
                    { label: 'Overall Pain', data: {{.Pain}}, borderColor: '#667eea', fill: false, tension: 0.3 },
                    { label: 'Peak Pain', data: {{.Peak}}, borderColor: '#e74c3c', fill: false, tension: 0.3 },
                    { label: 'Tinnitus', data: {{.Tinnitus}}, borderColor: '#f39c12', tension: 0.3 },
                    { label: 'Ocular', data: {{.Ocular}}, borderColor: '#9b59b6', tension: 0.3 },
                    { label: 'Sleep Issues', data: {{.Sleep}}, borderColor: '#27ae60', tension: 0.3 }
                ]
            },
            options: {
                responsive: true,
                plugins: { legend: { position: 'top' } },
                scales: { y: { min: 0, max: 4, title: { display: true, text: 'Severity (0-4)' } } }
            }
        });
        new Chart(document.getElementById('medicationsChart'), {
            type: 'bar',
            data: {
                labels: labels,
                datasets: [
                    { label: 'Paracetamol', data: {{.Paracetamol}}, backgroundColor: 'rgba(52, 152, 219, 0.8)' },
                    { label: 'Ibuprofen', data: {{.Ibuprofen}}, backgroundColor: 'rgba(230, 126, 34, 0.8)' },
                    { label: 'Aspirin', data: {{.Aspirin}}, backgroundColor: 'rgba(26, 188, 156, 0.8)' },
                    { label: 'Sumatriptan', data: {{.Triptan}}, backgroundColor: 'rgba(231, 76, 60, 0.8)' },
                    { label: 'Ice', data: {{.Ice}}, backgroundColor: 'rgba(149, 165, 166, 0.8)' }
                ]
            },
            options: {
                responsive: true,
                plugins: { legend: { position: 'top' } },
                scales: {
                    x: { stacked: true },
                    y: { stacked: true, min: 0, max: {{.MedsAxisMax}}, title: { display: true, text: 'Doses' } }
                }
            }
        });
    </script>
</body>
</html>
`))

// Backup 是 JSON 备份文件的结构。
type Backup struct {
	ExportDate time.Time          `json:"exportDate"`
	Entries    journal.Collection `json:"entries"`
}

// NewBackup 构造备份。
func NewBackup(c journal.Collection, now time.Time) Backup {
	if c == nil {
		c = journal.Collection{}
	}
	return Backup{ExportDate: now.UTC(), Entries: c}
}

// BackupFilename 返回备份文件名。
func BackupFilename(now time.Time) string {
	return fmt.Sprintf("headache-backup-%s.json", journal.FormatDate(now))
}

// ParseBackup 解析备份文件。记录字段按表单规则宽松转换，未知字段忽略；
// 缺少 entries 或任一记录非法时返回 ErrValidation。
func ParseBackup(r io.Reader) (journal.Collection, error) {
	var raw struct {
		Entries map[string]map[string]any `json:"entries"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: invalid backup file: %v", ErrValidation, err)
	}
	if raw.Entries == nil {
		return nil, fmt.Errorf("%w: invalid backup file format", ErrValidation)
	}

	out := make(journal.Collection, len(raw.Entries))
	for date, fields := range raw.Entries {
		if err := journal.ValidateDate(date); err != nil {
			return nil, err
		}
		var entry journal.Entry
		for _, field := range journal.Fields {
			value, ok := fields[field]
			if !ok || value == nil {
				continue
			}
			if err := entry.Set(field, value); err != nil {
				return nil, fmt.Errorf("%s: %w", date, err)
			}
		}
		out[date] = entry
	}
	return out, nil
}
