package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/linemodel/internal/config"
	"github.com/JonMunkholm/linemodel/internal/core"
	"github.com/JonMunkholm/linemodel/internal/metrics"
)

const rawCSV = `line,linkeff,linkop,id,shift,style,group,jobtitle,eff
L1,80,OP1,E001,A,S1,G1,sewer,40
L1,80,OP1,E001,A,S1,G1,sewer,90
L1,80,OP1,E001,A,S1,G1,sewer,20
`

const styleCSV = `group,style,line,customer
G1,S9,L9,ACME
`

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: 50 * time.Millisecond},
		Security: config.SecurityConfig{EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "info", Format: "text"},
		Pipeline: config.PipelineConfig{Preset: core.PresetGroup},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	m := metrics.New()
	svc, err := core.NewService(cfg, m)
	require.NoError(t, err)
	s := NewServer(cfg, svc, m)
	t.Cleanup(s.stopLimiters)
	return s
}

func multipartRequest(t *testing.T, path string, files map[string]string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile(name, name+".csv")
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestRawData_CSV(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, multipartRequest(t, "/api/rawdata",
		map[string]string{"rawdata": rawCSV, "stylelist": styleCSV},
		map[string]string{"rank_ceiling": "2"},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "RAWDATA_MODEL_ALL1.csv")
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))
	assert.Equal(t, "false", rec.Header().Get("X-Result-Empty"))
	assert.Equal(t,
		"linkeff,linkop,id,line,shift,style,group,jobtitle,AvgEff\n80,OP1,E001,L1,A,S1,G1,sewer,65.0\n",
		rec.Body.String())
}

func TestRawData_JSON(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, multipartRequest(t, "/api/rawdata",
		map[string]string{"rawdata": rawCSV, "stylelist": styleCSV},
		map[string]string{"format": "json", "eff_floor": "95"},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Empty)
	assert.Empty(t, resp.Rows)
	assert.Equal(t, core.OutputColumns(), resp.Columns)
	assert.NotEmpty(t, resp.Diagnostics)
}

func TestRawData_XLSX(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, multipartRequest(t, "/api/rawdata",
		map[string]string{"rawdata": rawCSV, "stylelist": styleCSV},
		map[string]string{"format": "xlsx"},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "RAWDATA_MODEL_ALL1.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(core.ProcedureRawData)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AvgEff", rows[0][len(rows[0])-1])
}

func TestRawData_Failures(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		fields map[string]string
		status int
		code   string
		column string
	}{
		{
			name:   "missing jobtitle",
			files:  map[string]string{"rawdata": "line,linkeff,linkop,id,shift,style,group,eff\nL1,1,O,E,A,S,G1,50\n", "stylelist": styleCSV},
			status: http.StatusUnprocessableEntity,
			code:   "PIPE002",
			column: "jobtitle",
		},
		{
			name:   "missing join key",
			files:  map[string]string{"rawdata": rawCSV, "stylelist": "style,customer\nS1,ACME\n"},
			status: http.StatusUnprocessableEntity,
			code:   "PIPE001",
			column: "group",
		},
		{
			name:   "missing file",
			files:  map[string]string{"rawdata": rawCSV},
			status: http.StatusBadRequest,
			code:   "FILE004",
		},
		{
			name:   "bad rank ceiling",
			files:  map[string]string{"rawdata": rawCSV, "stylelist": styleCSV},
			fields: map[string]string{"rank_ceiling": "three"},
			status: http.StatusBadRequest,
			code:   "PIPE003",
		},
		{
			name:   "unknown preset",
			files:  map[string]string{"rawdata": rawCSV, "stylelist": styleCSV},
			fields: map[string]string{"preset": "weekly"},
			status: http.StatusBadRequest,
			code:   "PIPE003",
		},
		{
			name:   "bad format",
			files:  map[string]string{"rawdata": rawCSV, "stylelist": styleCSV},
			fields: map[string]string{"format": "pdf"},
			status: http.StatusBadRequest,
			code:   "PIPE003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig())
			rec := serve(s, multipartRequest(t, "/api/rawdata", tt.files, tt.fields))

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.column, resp.Column)
		})
	}
}

func TestRawData_DropColumnsOverride(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, multipartRequest(t, "/api/rawdata",
		map[string]string{"rawdata": rawCSV, "stylelist": styleCSV},
		map[string]string{"drop_columns": ""},
	))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"column":"line"`)
}

func TestRawData_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 64
	s := newTestServer(t, cfg)

	rec := serve(s, multipartRequest(t, "/api/rawdata",
		map[string]string{"rawdata": strings.Repeat(rawCSV, 10), "stylelist": styleCSV}, nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE001")
}

func TestLayout(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, multipartRequest(t, "/api/layout",
		map[string]string{
			"layout":    "LINELAYOUT,Station\nLL-01,1\nLL-02,2\n",
			"stylelist": "LINELAYOUT,Style\nLL-01,ST100\n",
		}, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Layout_week18_22.csv")
	assert.Equal(t, "LINELAYOUT,Station,Style\nLL-01,1,ST100\n", rec.Body.String())
}

func TestRunLimiterSaturated(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxConcurrent = 1
	s := newTestServer(t, cfg)

	require.True(t, s.service.Limiter().TryAcquire())
	defer s.service.Limiter().Release()

	rec := serve(s, multipartRequest(t, "/api/layout",
		map[string]string{"layout": "LINELAYOUT\nx\n", "stylelist": "LINELAYOUT\nx\n"}, nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RUN002")
}

func TestListProcedures(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/procedures", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProceduresResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Procedures, 2)
	assert.Equal(t, core.ProcedureLayout, resp.Procedures[0].Key)
	assert.Equal(t, []string{"group", "style"}, resp.Presets)
	assert.Equal(t, 2, resp.RunLimiter.MaxConcurrent)
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="/api/rawdata"`)
	assert.Contains(t, body, `name="stylelist"`)
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	serve(s, multipartRequest(t, "/api/layout",
		map[string]string{"layout": "LINELAYOUT\nx\n", "stylelist": "LINELAYOUT\nx\n"}, nil))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `linemodel_runs_total{outcome="ok",procedure="layout"} 1`)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/procedures", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/procedures", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}
	s := newTestServer(t, cfg)

	first := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	second := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE001")
}
