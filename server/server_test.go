package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/ortelius/depchain/config"
	"github.com/ortelius/depchain/database"
	"github.com/ortelius/depchain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisBody = `{
	"project": "web",
	"version": "1.2.0",
	"tree": {
		"name": "web",
		"version": "1.2.0",
		"dependencies": {
			"axios": {"version": "0.21.0"},
			"express": {
				"version": "4.17.1",
				"dependencies": {"qs": {"version": "6.7.0"}}
			}
		}
	},
	"audit": {
		"auditReportVersion": 2,
		"vulnerabilities": {
			"axios": {"name": "axios", "severity": "high", "via": [{"source": 1, "name": "axios", "range": "<0.21.1", "severity": "high"}]},
			"qs": {"name": "qs", "severity": "moderate", "via": [{"source": 2, "name": "qs", "range": "<6.7.3", "severity": "moderate"}]},
			"orphan": {"name": "orphan", "severity": "low", "via": []}
		}
	}
}`

func newApp(t *testing.T, store database.Store) *fiber.App {
	t.Helper()
	app, err := New(config.Default(), store, nil, nil).App()
	require.NoError(t, err)
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	status, body := do(t, newApp(t, nil), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status": "healthy", "persistence": false}`, string(body))
}

func TestPostAnalysisWithoutStore(t *testing.T) {
	status, body := do(t, newApp(t, nil), http.MethodPost, "/api/v1/analyses", analysisBody)
	require.Equal(t, http.StatusOK, status)

	var resp model.AnalysisResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.AnalysisKey)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "web", resp.Analysis.Project)
	assert.Equal(t, 2, resp.Analysis.Summary.Total)
	assert.Equal(t, 1, resp.Analysis.Summary.Direct)
	assert.Equal(t, 1, resp.Analysis.Summary.Transitive)
	assert.Equal(t, []string{"orphan"}, resp.Analysis.Summary.Skipped)

	require.Len(t, resp.Analysis.Findings, 2)
	assert.Equal(t, "axios", resp.Analysis.Findings[0].Package)
	assert.Equal(t, model.StrategyDirectUpgrade, resp.Analysis.Findings[0].Strategy)
	assert.Equal(t, "qs", resp.Analysis.Findings[1].Package)
	assert.Equal(t, []model.DependencyPath{{"web", "express@4.17.1", "qs@6.7.0"}}, resp.Analysis.Findings[1].Paths)
}

func TestPostAnalysisStoresAndReads(t *testing.T) {
	app := newApp(t, database.NewMemoryStore())

	status, body := do(t, app, http.MethodPost, "/api/v1/analyses", analysisBody)
	require.Equal(t, http.StatusCreated, status)

	var resp model.AnalysisResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.AnalysisKey)

	status, body = do(t, app, http.MethodGet, "/api/v1/analyses", "")
	require.Equal(t, http.StatusOK, status)
	var items []model.AnalysisListItem
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 1)
	assert.Equal(t, resp.AnalysisKey, items[0].Key)
	assert.Equal(t, 2, items[0].Total)

	status, body = do(t, app, http.MethodGet, "/api/v1/analyses/"+resp.AnalysisKey, "")
	require.Equal(t, http.StatusOK, status)
	var analysis model.Analysis
	require.NoError(t, json.Unmarshal(body, &analysis))
	assert.Equal(t, "1.2.0", analysis.Version)
	assert.Len(t, analysis.Findings, 2)

	status, _ = do(t, app, http.MethodGet, "/api/v1/analyses/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPostAnalysisDefaultsProjectFromTree(t *testing.T) {
	body := `{"tree": {"name": "api", "version": "3.0.0"}, "audit": {"vulnerabilities": {}}}`

	status, data := do(t, newApp(t, nil), http.MethodPost, "/api/v1/analyses", body)
	require.Equal(t, http.StatusOK, status)

	var resp model.AnalysisResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "api", resp.Analysis.Project)
	assert.Equal(t, "3.0.0", resp.Analysis.Version)
	assert.Empty(t, resp.Analysis.Findings)
}

func TestPostAnalysisValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"tree": `},
		{"missing tree", `{"audit": {"vulnerabilities": {}}}`},
		{"missing audit", `{"tree": {"name": "api"}}`},
	}

	app := newApp(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := do(t, app, http.MethodPost, "/api/v1/analyses", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)

			var resp model.AnalysisResponse
			require.NoError(t, json.Unmarshal(data, &resp))
			assert.False(t, resp.Success)
		})
	}
}

func TestReadEndpointsWithoutStore(t *testing.T) {
	app := newApp(t, nil)

	status, _ := do(t, app, http.MethodGet, "/api/v1/analyses", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = do(t, app, http.MethodGet, "/api/v1/analyses/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = do(t, app, http.MethodPost, "/api/v1/graphql", `{"query": "{ analyses { key } }"}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestGraphQLEndpoint(t *testing.T) {
	app := newApp(t, database.NewMemoryStore())

	status, _ := do(t, app, http.MethodPost, "/api/v1/analyses", analysisBody)
	require.Equal(t, http.StatusCreated, status)

	status, data := do(t, app, http.MethodPost, "/api/v1/graphql",
		`{"query": "{ analyses(limit: 10) { project total } }"}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"data": {"analyses": [{"project": "web", "total": 2}]}}`, string(data))

	status, _ = do(t, app, http.MethodPost, "/api/v1/graphql", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}
