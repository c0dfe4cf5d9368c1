package app

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/traffic-dashboard/internal/observability"
	"github.com/odyssey-erp/traffic-dashboard/internal/shared"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/export"
	traffichttp "github.com/odyssey-erp/traffic-dashboard/internal/traffic/http"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/svg"
	"github.com/odyssey-erp/traffic-dashboard/internal/view"
)

var csrfInput = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	templates, err := view.NewEngine()
	require.NoError(t, err)

	csrf := shared.NewCSRFManager("csrf-secret")
	metrics := observability.NewMetrics()
	service := traffic.NewService(traffic.NewStore(client, time.Hour), nil)
	handler := traffichttp.NewHandler(logger, service, templates, traffichttp.Renderers{
		Line:      svg.Renderer{},
		Pie:       svg.Renderer{},
		Histogram: svg.Renderer{},
	}, &export.PDFExporter{}, csrf, metrics, cfg.UploadMaxBytes)

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: shared.NewSessionManager(client, "traffic_session", "session-secret", time.Hour, false),
		CSRFManager:    csrf,
		TrafficHandler: handler,
		Metrics:        metrics,
	})
}

func testConfig() *Config {
	return &Config{AppEnv: "test", UploadMaxBytes: 1 << 20, AppRequestTimeout: 5 * time.Second}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `traffic_http_requests_total{code="200",route="/dashboard"}`)
}

func TestRouterSessionAndCSRF(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "traffic_session", cookies[0].Name)

	match := csrfInput.FindStringSubmatch(rr.Body.String())
	require.Len(t, match, 2)
	token := match[1]

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/dashboard/reset", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(cookies[0])
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, post(url.Values{}).Code)
	assert.Equal(t, http.StatusForbidden, post(url.Values{"csrf_token": {token + "x"}}).Code)

	ok := post(url.Values{"csrf_token": {token}})
	assert.Equal(t, http.StatusSeeOther, ok.Code)
	assert.Equal(t, "/dashboard", ok.Header().Get("Location"))
}

func TestRouterUploadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.UploadMaxBytes = 64
	router := newTestRouter(t, cfg)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "big.csv")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("2024-01-01,1,1,1,1,ads\n"), 100_000))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/dashboard/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestRouterCORSLimitedToAPI(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = []string{"https://app.example"}
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Origin", "https://app.example")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Origin", "https://app.example")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
