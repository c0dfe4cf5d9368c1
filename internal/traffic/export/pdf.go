package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/odyssey-erp/traffic-dashboard/internal/traffic"
)

// DashboardPayload aggregates the dashboard state destined for PDF rendering.
type DashboardPayload struct {
	Source     string
	Window     string
	Indicators traffic.Indicators
	Categories []traffic.CategorySlice
	Records    []traffic.Record
	Charts     []template.HTML
}

// PDFExporter wraps Gotenberg interactions for dashboard exports.
type PDFExporter struct {
	Endpoint string
	Client   *http.Client
}

// RenderDashboard sends HTML content to Gotenberg and returns the PDF bytes.
func (p *PDFExporter) RenderDashboard(ctx context.Context, payload DashboardPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("pdf exporter not initialised")
	}
	endpoint := strings.TrimRight(p.Endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("gotenberg endpoint required")
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	html, err := buildHTML(payload)
	if err != nil {
		return nil, err
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(html); err != nil {
		return nil, err
	}
	if err := writer.WriteField("waitDelay", "500ms"); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("gotenberg response %d: %s", resp.StatusCode, string(data))
	}
	return io.ReadAll(resp.Body)
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"count": traffic.FormatCount,
	"rate":  traffic.FormatRate,
	"day":   func(r traffic.Record) string { return r.Date.Format(traffic.DateLayout) },
	"pct":   func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
}).Parse(`<html><head><meta charset="utf-8"><style>
body{font-family:sans-serif;margin:24px;}h1{font-size:20px;}table{width:100%;border-collapse:collapse;margin-bottom:16px;}
th,td{border:1px solid #ddd;padding:6px;text-align:right;}th{background:#f5f5f5;}td.label,th.label{text-align:left;}
section{margin-bottom:24px;}svg{width:100%;height:auto;}
</style></head><body>
<h1>Website Traffic{{if .Window}} ({{.Window}}){{end}}</h1>
{{if .Source}}<p>Source: {{.Source}}</p>{{end}}
<section><h2>Indicators</h2><table><tbody>
<tr><td class="label">Rows</td><td>{{.Indicators.Rows}}</td></tr>
<tr><td class="label">Visits</td><td>{{count .Indicators.Visits}}</td></tr>
<tr><td class="label">Unique visitors</td><td>{{count .Indicators.UniqueVisitors}}</td></tr>
<tr><td class="label">Page views</td><td>{{count .Indicators.PageViews}}</td></tr>
<tr><td class="label">Average bounce rate</td><td>{{rate .Indicators.MeanBounceRate}}%</td></tr>
</tbody></table></section>
{{range .Charts}}<section>{{.}}</section>{{end}}
{{if .Categories}}<section><h2>Visits by category</h2><table><thead><tr><th class="label">Category</th><th>Visits</th><th>Share</th></tr></thead><tbody>
{{range .Categories}}<tr><td class="label">{{.Category}}</td><td>{{count .Visits}}</td><td>{{pct .Share}}</td></tr>{{end}}
</tbody></table></section>{{end}}
{{if .Records}}<section><h2>Records</h2><table><thead><tr><th class="label">Date</th><th>Visits</th><th>Unique visitors</th><th>Page views</th><th>Bounce rate</th><th class="label">Category</th></tr></thead><tbody>
{{range .Records}}<tr><td class="label">{{day .}}</td><td>{{count .Visits}}</td><td>{{count .UniqueVisitors}}</td><td>{{count .PageViews}}</td><td>{{rate .BounceRate}}</td><td class="label">{{.Category}}</td></tr>{{end}}
</tbody></table></section>{{end}}
</body></html>`))

func buildHTML(payload DashboardPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
