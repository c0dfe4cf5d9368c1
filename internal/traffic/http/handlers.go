package traffichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/traffic-dashboard/internal/observability"
	"github.com/odyssey-erp/traffic-dashboard/internal/platform/httpx"
	"github.com/odyssey-erp/traffic-dashboard/internal/shared"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/export"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/svg"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/ui"
	"github.com/odyssey-erp/traffic-dashboard/internal/view"
)

const requestTimeout = 5 * time.Second

// DashboardService defines the data contract used by the handler.
type DashboardService interface {
	Upload(ctx context.Context, sessionID, name string, r io.Reader) (traffic.Dataset, error)
	Reset(ctx context.Context, sessionID string) error
	Dataset(ctx context.Context, sessionID string) (traffic.Dataset, traffic.State, error)
	Dashboard(ctx context.Context, sessionID string, q traffic.Query) (traffic.Dashboard, error)
}

// PDFService renders dashboard content to PDF bytes.
type PDFService interface {
	RenderDashboard(ctx context.Context, payload export.DashboardPayload) ([]byte, error)
}

// UploadObserver records upload outcomes.
type UploadObserver interface {
	ObserveUpload(result string, rows int)
}

// Renderers groups the chart renderers used by the dashboard.
type Renderers struct {
	Line      ui.LineRenderer
	Pie       ui.PieRenderer
	Histogram ui.HistogramRenderer
}

// Handler coordinates HTTP requests for the traffic dashboard. Every request
// recomputes all views from the session dataset.
type Handler struct {
	logger    *slog.Logger
	service   DashboardService
	templates *view.Engine
	charts    Renderers
	pdf       PDFService
	csrf      *shared.CSRFManager
	uploads   UploadObserver
	validate  *validator.Validate
	maxUpload int64
	csvPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the dashboard HTTP handler.
func NewHandler(logger *slog.Logger, service DashboardService, templates *view.Engine, charts Renderers, pdf PDFService, csrf *shared.CSRFManager, uploads UploadObserver, maxUpload int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		charts:    charts,
		pdf:       pdf,
		csrf:      csrf,
		uploads:   uploads,
		validate:  validator.New(),
		maxUpload: maxUpload,
		now:       time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	filters, query, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	sessionID := shared.SessionID(ctx)
	vm, err := buildDashboardOnce(ctx, buildKey(sessionID, filters), func(ctx context.Context) (ui.DashboardViewModel, error) {
		ds, state, err := h.service.Dataset(ctx, sessionID)
		if err != nil {
			return ui.DashboardViewModel{}, err
		}
		return h.buildViewModel(ctx, filters, traffic.Build(ds, state, query))
	})
	if err != nil {
		h.handleServerError(w, "build dashboard", err)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	var flash *shared.FlashMessage
	csrfToken := ""
	if sess != nil {
		flash = sess.PopFlash()
		if token, err := h.csrf.EnsureToken(r.Context(), sess); err == nil {
			csrfToken = token
		} else {
			h.logError("csrf token", err)
		}
	}

	viewData := view.TemplateData{
		Title:       "Website Traffic",
		Flash:       flash,
		CSRFToken:   csrfToken,
		CurrentPath: r.URL.Path,
		Data:        vm,
	}
	if err := h.templates.Render(w, "pages/dashboard.html", viewData); err != nil {
		h.handleServerError(w, "render template", err)
	}
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.handleServerError(w, "upload", errors.New("session missing"))
		return
	}
	target := returnURL(r.PostFormValue("return"))

	file, header, err := r.FormFile("file")
	if err != nil {
		h.rejectUpload(w, r, sess, target, "Choose a CSV file to upload.")
		return
	}
	defer func() { _ = file.Close() }()

	if !isCSV(header.Filename) {
		h.rejectUpload(w, r, sess, target, "Only .csv files are supported.")
		return
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		h.rejectUpload(w, r, sess, target, fmt.Sprintf("File is larger than %d MB.", h.maxUpload>>20))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ds, err := h.service.Upload(ctx, sess.ID, header.Filename, file)
	if err != nil {
		if msg, ok := uploadErrorMessage(err); ok {
			h.logger.Info("upload rejected", slog.String("file", header.Filename), slog.Any("error", err))
			h.rejectUpload(w, r, sess, target, msg)
			return
		}
		h.logError("upload", err)
		h.observe(observability.UploadFailed, 0)
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: "Upload failed, please try again."})
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	h.observe(observability.UploadAccepted, len(ds.Records))
	sess.AddFlash(shared.FlashMessage{
		Kind:    shared.FlashSuccess,
		Message: fmt.Sprintf("Loaded %s: %d rows.", ds.Source, len(ds.Records)),
	})
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) rejectUpload(w http.ResponseWriter, r *http.Request, sess *shared.Session, target, msg string) {
	h.observe(observability.UploadRejected, 0)
	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: "Upload rejected: " + msg})
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.handleServerError(w, "reset", errors.New("session missing"))
		return
	}
	if err := h.service.Reset(r.Context(), sess.ID); err != nil {
		h.handleServerError(w, "reset dataset", err)
		return
	}
	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashInfo, Message: "Uploaded data cleared."})
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	filters, query, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ds, state, err := h.service.Dataset(ctx, shared.SessionID(ctx))
	if err != nil {
		h.handleServerError(w, "load dataset", err)
		return
	}
	if state == traffic.StateEmpty {
		httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrNotFound, traffic.ErrNoData))
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WriteRecordsCSV(buf, sortedRows(ds.Records, query)); err != nil {
		h.handleServerError(w, "write records csv", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", exportName(filters, "csv")))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) handleIndicatorsCSV(w http.ResponseWriter, r *http.Request) {
	filters, query, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	dash, err := h.service.Dashboard(ctx, shared.SessionID(ctx), query)
	if err != nil {
		h.handleServerError(w, "build dashboard", err)
		return
	}
	window := dash.Window
	if window == "" {
		window = "all"
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", exportName(filters, "indicators.csv")))
	if err := export.WriteIndicatorsCSV(w, dash.Indicators, window); err != nil {
		h.logError("write indicators csv", err)
	}
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		h.handleServerError(w, "pdf exporter", errors.New("pdf exporter not configured"))
		return
	}
	filters, query, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ds, state, err := h.service.Dataset(ctx, shared.SessionID(ctx))
	if err != nil {
		h.handleServerError(w, "load dataset", err)
		return
	}
	if state == traffic.StateEmpty {
		httpx.RespondError(w, fmt.Errorf("%w: %w", httpx.ErrNotFound, traffic.ErrNoData))
		return
	}

	dash := traffic.Build(ds, state, query)
	vm, err := h.buildViewModel(ctx, filters, dash)
	if err != nil {
		h.handleServerError(w, "render charts", err)
		return
	}
	payload := export.DashboardPayload{
		Source:     dash.Source,
		Window:     dash.Window,
		Indicators: dash.Indicators,
		Categories: dash.Categories,
		Records:    sortedRows(ds.Records, query),
		Charts:     []template.HTML{vm.SeriesSVG, vm.PieSVG, vm.HistogramSVG},
	}
	pdfBytes, err := h.pdf.RenderDashboard(ctx, payload)
	if err != nil {
		h.handleServerError(w, "render pdf", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", exportName(filters, "pdf")))
	if _, err := w.Write(pdfBytes); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) handleSample(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"traffic-sample.csv\"")
	if err := export.WriteRecordsCSV(w, sampleRecords(h.now())); err != nil {
		h.logError("write sample csv", err)
	}
}

type filterForm struct {
	Start  string `validate:"omitempty,datetime=2006-01-02"`
	End    string `validate:"omitempty,datetime=2006-01-02"`
	Period string `validate:"omitempty,oneof=month quarter year"`
	Sort   string `validate:"omitempty,oneof=date visits unique_visitors page_views bounce_rate category"`
	Dir    string `validate:"omitempty,oneof=asc desc"`
	Page   int    `validate:"gte=0"`
}

func (h *Handler) parseFilters(r *http.Request) (ui.DashboardFilters, traffic.Query, error) {
	q := r.URL.Query()
	form := filterForm{
		Start:  strings.TrimSpace(q.Get("start")),
		End:    strings.TrimSpace(q.Get("end")),
		Period: strings.ToLower(strings.TrimSpace(q.Get("period"))),
		Sort:   strings.TrimSpace(q.Get("sort")),
		Dir:    strings.ToLower(strings.TrimSpace(q.Get("dir"))),
	}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return ui.DashboardFilters{}, traffic.Query{}, validationError{field: "page"}
		}
		form.Page = page
	}
	if err := h.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return ui.DashboardFilters{}, traffic.Query{}, validationError{field: strings.ToLower(fieldErrs[0].Field())}
		}
		return ui.DashboardFilters{}, traffic.Query{}, err
	}

	filters := ui.DashboardFilters{
		Start:  form.Start,
		End:    form.End,
		Period: form.Period,
		Sort:   form.Sort,
		Dir:    form.Dir,
		Page:   form.Page,
	}
	criteria := traffic.Criteria{Reference: h.now().UTC()}
	if form.Start != "" || form.End != "" {
		var rng traffic.DateRange
		rng.Start, _ = time.Parse(traffic.DateLayout, form.Start)
		rng.End, _ = time.Parse(traffic.DateLayout, form.End)
		criteria.Range = &rng
		filters.Period = ""
	} else {
		criteria.Period, _ = traffic.ParsePeriod(form.Period)
	}
	query := traffic.Query{
		Criteria: criteria,
		Table: traffic.TableQuery{
			Page:     form.Page,
			PageSize: traffic.TablePageSize,
			SortBy:   form.Sort,
			Dir:      traffic.SortDirection(form.Dir),
		},
	}
	return filters, query, nil
}

func (h *Handler) buildViewModel(ctx context.Context, filters ui.DashboardFilters, dash traffic.Dashboard) (ui.DashboardViewModel, error) {
	if h.charts.Line == nil || h.charts.Pie == nil || h.charts.Histogram == nil {
		return ui.DashboardViewModel{}, fmt.Errorf("svg renderer missing")
	}
	vm := ui.DashboardViewModel{
		Filters:        filters,
		Periods:        filters.PeriodOptions(),
		Dashboard:      dash,
		Loaded:         dash.State == traffic.StateLoaded,
		IndicatorLines: dash.Indicators.Lines(),
		Rows:           ui.ToTableRows(dash.Table.Rows),
		MaxUploadMB:    h.maxUpload >> 20,
	}

	emptyMsg := "No rows match the current filter"
	if !vm.Loaded {
		emptyMsg = "No data loaded"
	}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		if len(dash.Series) == 0 {
			vm.SeriesSVG = svg.Placeholder(svg.DefaultWidth, svg.DefaultHeight, "Visits over time", emptyMsg)
			return nil
		}
		labels := make([]string, 0, len(dash.Series))
		values := make([]float64, 0, len(dash.Series))
		for _, point := range dash.Series {
			labels = append(labels, point.Date)
			values = append(values, float64(point.Visits))
		}
		out, err := h.charts.Line.Line(svg.DefaultWidth, svg.DefaultHeight, values, labels, svg.LineOpts{
			Title:       "Visits over time",
			Description: "Daily visits for the selected window",
			ShowDots:    len(values) <= 60,
		})
		vm.SeriesSVG = out
		return err
	})

	g.Go(func() error {
		var total int64
		labels := make([]string, 0, len(dash.Categories))
		values := make([]float64, 0, len(dash.Categories))
		for _, slice := range dash.Categories {
			labels = append(labels, slice.Category)
			values = append(values, float64(slice.Visits))
			total += slice.Visits
		}
		if total == 0 {
			vm.PieSVG = svg.Placeholder(svg.DefaultWidth, svg.DefaultHeight, "Visits by category", emptyMsg)
			return nil
		}
		out, err := h.charts.Pie.Pie(svg.DefaultWidth, svg.DefaultHeight, values, labels, svg.PieOpts{
			Title:       "Visits by category",
			Description: "Share of visits per traffic category",
		})
		vm.PieSVG = out
		return err
	})

	g.Go(func() error {
		if len(dash.Histogram) == 0 {
			vm.HistogramSVG = svg.Placeholder(svg.DefaultWidth, svg.DefaultHeight, "Visits distribution", emptyMsg)
			return nil
		}
		labels := make([]string, 0, len(dash.Histogram))
		counts := make([]float64, 0, len(dash.Histogram))
		for _, bin := range dash.Histogram {
			labels = append(labels, strconv.FormatFloat(bin.Lower, 'f', 0, 64))
			counts = append(counts, float64(bin.Count))
		}
		out, err := h.charts.Histogram.Histogram(svg.DefaultWidth, svg.DefaultHeight, counts, labels, svg.HistogramOpts{
			Title:       "Visits distribution",
			Description: fmt.Sprintf("Visits per row in %d bins", len(counts)),
		})
		vm.HistogramSVG = out
		return err
	})

	if err := g.Wait(); err != nil {
		return ui.DashboardViewModel{}, err
	}
	return vm, nil
}

func (h *Handler) observe(result string, rows int) {
	if h.uploads != nil {
		h.uploads.ObserveUpload(result, rows)
	}
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var vErr validationError
	if errors.As(err, &vErr) {
		http.Error(w, "Invalid parameter: "+vErr.field, http.StatusBadRequest)
		return
	}
	h.handleServerError(w, "parse filters", err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) logError(context string, err error) {
	h.logger.Error(context, slog.Any("error", err))
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}

func uploadErrorMessage(err error) (string, bool) {
	var missing *traffic.MissingColumnsError
	var parseErr *traffic.ParseError
	switch {
	case errors.As(err, &missing):
		return "missing required column(s): " + strings.Join(missing.Columns, ", ") + ".", true
	case errors.As(err, &parseErr):
		return parseErr.Error() + ".", true
	case errors.Is(err, traffic.ErrEmptyUpload):
		return "the file is empty.", true
	case errors.Is(err, traffic.ErrInvalidRow):
		return "the file is not valid CSV.", true
	default:
		return "", false
	}
}

// returnURL rebuilds the dashboard URL from a submitted query string so the
// redirect can never leave the dashboard.
func returnURL(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil || len(values) == 0 {
		return "/dashboard"
	}
	keep := url.Values{}
	for _, key := range []string{"start", "end", "period", "sort", "dir"} {
		if v := values.Get(key); v != "" {
			keep.Set(key, v)
		}
	}
	if len(keep) == 0 {
		return "/dashboard"
	}
	return "/dashboard?" + keep.Encode()
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func sortedRows(records []traffic.Record, q traffic.Query) []traffic.Record {
	filtered := traffic.Filter(records, q.Criteria)
	table := traffic.BuildTable(filtered, traffic.TableQuery{
		Page:     1,
		PageSize: len(filtered) + 1,
		SortBy:   q.Table.SortBy,
		Dir:      q.Table.Dir,
	})
	return table.Rows
}

func exportName(filters ui.DashboardFilters, ext string) string {
	scope := "all"
	switch {
	case filters.Start != "" || filters.End != "":
		scope = strings.Trim(filters.Start+"_"+filters.End, "_")
	case filters.Period != "":
		scope = filters.Period
	}
	return fmt.Sprintf("traffic-%s.%s", scope, ext)
}

func sampleRecords(now time.Time) []traffic.Record {
	base := traffic.Day(now).AddDate(0, 0, -3)
	categories := []string{"ads", "organic", "referral"}
	records := make([]traffic.Record, 0, 6)
	for i := 0; i < 6; i++ {
		records = append(records, traffic.Record{
			Date:           base.AddDate(0, 0, i/2),
			Visits:         int64(100 + 40*i),
			UniqueVisitors: int64(80 + 30*i),
			PageViews:      int64(150 + 60*i),
			BounceRate:     30 + float64(i)*2.5,
			Category:       categories[i%len(categories)],
		})
	}
	return records
}
