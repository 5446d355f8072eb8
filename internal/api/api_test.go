package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowcarbon-viz/lowcarbon/internal/tables"
)

func writeTable(t *testing.T, outDir string, s tables.Schema, lines ...string) {
	t.Helper()
	path := s.Path(outDir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("\ufeff"+strings.Join(lines, "\n")+"\n"), 0o644))
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, string) {
	t.Helper()
	if opts.OutDir == "" {
		opts.OutDir = t.TempDir()
	}
	srv := httptest.NewServer(NewRouter(opts))
	t.Cleanup(srv.Close)
	return srv, opts.OutDir
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestTable_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/cluster", &body))
	assert.Equal(t, "file not found", body["error"])
}

func TestEmission_ProjectionAndFilters(t *testing.T) {
	srv, out := newTestServer(t, Options{})
	writeTable(t, out, tables.Emission,
		"province,year,emission_total,emission_per_gdp,per_capita_t,is_imputed",
		"北京,2021,100,0.5,4.5,0",
		"北京,2022,90,0.45,4.1,1",
		"天津,2022,150,0.9,,0",
	)

	var all []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/emission", &all))
	require.Len(t, all, 3)
	assert.NotContains(t, all[0], "per_capita_t", "projected away")
	assert.Equal(t, "北京", all[0]["province"])
	assert.EqualValues(t, 2021, all[0]["year"])
	assert.Equal(t, false, all[0]["is_imputed"])
	assert.Equal(t, true, all[1]["is_imputed"])

	var one []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/emission?province="+url.QueryEscape("北京")+"&year=2022", &one))
	require.Len(t, one, 1)
	assert.InDelta(t, 0.45, one[0]["emission_per_gdp"], 1e-12)

	var byYear []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/emission?year=2022", &byYear))
	assert.Len(t, byYear, 2)

	var none []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/emission?province="+url.QueryEscape("上海"), &none))
	assert.Empty(t, none)
}

func TestFilters_InvalidYearIgnored(t *testing.T) {
	srv, out := newTestServer(t, Options{})
	writeTable(t, out, tables.Green,
		"province,year,green_rate,forest_area",
		"北京,2021,0.45,10",
		"北京,2022,0.46,",
	)
	var rows []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/green?year=abc", &rows))
	assert.Len(t, rows, 2)
	assert.NotContains(t, rows[0], "forest_area")
}

func TestFilters_SkippedWithoutColumn(t *testing.T) {
	srv, out := newTestServer(t, Options{})
	writeTable(t, out, tables.ClusterSummary,
		"cluster_type,mean_energy,mean_eco,mean_efficiency,synergy_score",
		"0,1.1,0.9,1,1.02",
		"1,-1,-1,-1,-1",
	)
	var rows []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/cluster/summary?province="+url.QueryEscape("北京")+"&year=2022", &rows))
	require.Len(t, rows, 2)
	assert.EqualValues(t, 0, rows[0]["cluster_type"])
	assert.Len(t, rows[0], 5, "full table")
}

func TestRelation_NullCorrelation(t *testing.T) {
	srv, out := newTestServer(t, Options{})
	writeTable(t, out, tables.Relation,
		"year,variable_x,variable_y,correlation",
		"2020,clean_ratio,clean_ratio,1",
		"2020,clean_ratio,green_rate,",
	)
	var rows []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/relation?year=2020", &rows))
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "correlation")
	assert.Nil(t, rows[1]["correlation"])
}

func TestDelta_UnicodeHeaders(t *testing.T) {
	srv, out := newTestServer(t, Options{})
	writeTable(t, out, tables.Delta,
		"province,year,clean_ratio,green_rate,emission_per_gdp,Δenergy,Δgreen,Δemission",
		"北京,2020,0.4,0.45,0.5,,,",
		"北京,2021,0.42,0.46,0.48,0.02,0.01,-0.02",
	)
	var rows []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/temporal/delta?province="+url.QueryEscape("北京"), &rows))
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0]["Δenergy"])
	assert.InDelta(t, 0.02, rows[1]["Δenergy"], 1e-12)
}

func TestRoutes_CoverRegistry(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Routes {
		seen[r.Schema.Name] = true
		for _, c := range r.Columns {
			_, ok := r.Schema.Column(c)
			assert.True(t, ok, "%s projects unknown column %s", r.Path, c)
		}
	}
	for _, s := range tables.All {
		assert.True(t, seen[s.Name], "no route for %s", s.Name)
	}
}

func TestRateLimit(t *testing.T) {
	srv, out := newTestServer(t, Options{RateLimitRPS: 1})
	writeTable(t, out, tables.Policy,
		"province,year,policy_name,category,level",
		"北京,2021,碳达峰行动方案,低碳,省级",
	)
	var rows []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/policy", &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "碳达峰行动方案", rows[0]["policy_name"])

	var body map[string]string
	assert.Equal(t, http.StatusTooManyRequests, getJSON(t, srv.URL+"/api/policy", &body))
	assert.Equal(t, "rate limit exceeded", body["error"])

	// health is not rate limited
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", nil))
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, Options{CORSOrigins: []string{"*"}})
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	getJSON(t, srv.URL+"/health", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `lowcarbon_api_requests_total{route="/health",status="200"}`)
}
