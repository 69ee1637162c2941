package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mcpguard/mcpguard/internal/data/db"
	"github.com/mcpguard/mcpguard/internal/log"
	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/insights"
	"github.com/mcpguard/mcpguard/pkg/normalize"
	"github.com/mcpguard/mcpguard/pkg/severity"
	"github.com/mcpguard/mcpguard/pkg/types"
)

var fixedNow = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

func setupServer(t *testing.T, insightsCfg insights.Config) *Server {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("failed to auto-migrate models: %v", err)
	}
	store, err := db.NewGormStore(conn)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := log.WithLogger(context.Background(), &types.MockLogger{})
	server, err := NewServer(ctx, Config{}, store, normalize.New(), insights.NewService(insightsCfg))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	server.now = func() time.Time { return fixedNow }
	return server
}

func allInsights() insights.Config {
	return insights.Config{AnomalyDetection: true, Correlation: true, Prioritization: true}
}

func doJSON(t *testing.T, handler http.Handler, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if tenant != "" {
		req.Header.Set(tenantHeader, tenant)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func mcpIngestBody(issues ...map[string]string) map[string]any {
	payload := map[string]any{"issues": issues}
	raw, _ := json.Marshal(payload) //nolint:errcheck
	return map[string]any{
		"scan_type": "mcp",
		"submissions": []map[string]any{
			{"scanner": "mcp", "schema_version": "1.2.0", "payload": json.RawMessage(raw)},
		},
	}
}

func TestIngestScan(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	body := mcpIngestBody(
		map[string]string{"rule_id": "MCP001", "severity": "high", "category": "auth", "server": "files", "path": "tools[0]", "message": "unauthenticated tool"},
		map[string]string{"rule_id": "MCP002", "severity": "info", "category": "hygiene", "server": "files", "path": "env", "message": "verbose logging"},
	)
	rr := doJSON(t, handler, http.MethodPost, "/scans", "tenant-a", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /scans = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ScanID == "" {
		t.Error("expected a scan id")
	}
	// One high against the default high_max of 10 passes; info never gates.
	if !resp.Gate.Passed {
		t.Errorf("gate = %+v, want passed", resp.Gate)
	}
	if resp.Gate.Counts.Total != 1 || resp.Gate.Counts.Info != 1 {
		t.Errorf("counts = %+v, want total 1 info 1", resp.Gate.Counts)
	}

	getRR := doJSON(t, handler, http.MethodGet, "/scans/"+resp.ScanID, "tenant-a", nil)
	if getRR.Code != http.StatusOK {
		t.Fatalf("GET /scans/{id} = %d: %s", getRR.Code, getRR.Body.String())
	}
}

func TestIngestScanGateFailure(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	body := mcpIngestBody(
		map[string]string{"rule_id": "MCP003", "severity": "critical", "category": "injection", "server": "shell", "path": "tools[1]", "message": "command injection"},
	)
	rr := doJSON(t, handler, http.MethodPost, "/scans", "tenant-a", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /scans = %d: %s", rr.Code, rr.Body.String())
	}
	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// Default policy has zero tolerance for critical.
	if resp.Gate.Passed {
		t.Errorf("gate = %+v, want failed", resp.Gate)
	}

	gateRR := doJSON(t, handler, http.MethodGet, "/scans/"+resp.ScanID+"/gate", "tenant-a", nil)
	if gateRR.Code != http.StatusOK {
		t.Fatalf("GET /scans/{id}/gate = %d: %s", gateRR.Code, gateRR.Body.String())
	}
}

func TestIngestScanValidation(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	t.Run("missing tenant header", func(t *testing.T) {
		rr := doJSON(t, handler, http.MethodPost, "/scans", "", mcpIngestBody())
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("no submissions", func(t *testing.T) {
		rr := doJSON(t, handler, http.MethodPost, "/scans", "tenant-a", map[string]any{"scan_type": "mcp"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("unknown scanner", func(t *testing.T) {
		body := map[string]any{
			"submissions": []map[string]any{
				{"scanner": "nmap", "schema_version": "1.0.0", "payload": json.RawMessage(`{}`)},
			},
		}
		rr := doJSON(t, handler, http.MethodPost, "/scans", "tenant-a", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("unsupported schema version", func(t *testing.T) {
		body := map[string]any{
			"submissions": []map[string]any{
				{"scanner": "mcp", "schema_version": "9.0.0", "payload": json.RawMessage(`{"issues":[]}`)},
			},
		}
		rr := doJSON(t, handler, http.MethodPost, "/scans", "tenant-a", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestPolicyEndpoints(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	rr := doJSON(t, handler, http.MethodGet, "/policy", "tenant-a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /policy = %d: %s", rr.Code, rr.Body.String())
	}

	update := map[string]any{
		"gate_thresholds": map[string]int{"critical_max": 0, "high_max": 2, "medium_max": 10, "low_max": 20},
		"pass_criteria":   map[string]bool{"require_all_scanners_pass": true},
	}
	rr = doJSON(t, handler, http.MethodPut, "/policy", "tenant-a", update)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT /policy = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodGet, "/policy", "tenant-a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /policy = %d", rr.Code)
	}
	var policy map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&policy); err != nil {
		t.Fatalf("failed to decode policy: %v", err)
	}
	thresholds, _ := policy["gate_thresholds"].(map[string]any)
	if thresholds["high_max"].(float64) != 2 {
		t.Errorf("high_max = %v, want 2", thresholds["high_max"])
	}

	bad := map[string]any{
		"gate_thresholds": map[string]int{"critical_max": -1},
	}
	rr = doJSON(t, handler, http.MethodPut, "/policy", "tenant-a", bad)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("PUT invalid policy = %d, want 400", rr.Code)
	}
}

func TestFindingsEndpoints(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	body := mcpIngestBody(
		map[string]string{"rule_id": "MCP001", "severity": "high", "category": "auth", "server": "files", "path": "a", "message": "m"},
		map[string]string{"rule_id": "MCP004", "severity": "low", "category": "config", "server": "files", "path": "b", "message": "m"},
	)
	if rr := doJSON(t, handler, http.MethodPost, "/scans", "tenant-a", body); rr.Code != http.StatusCreated {
		t.Fatalf("POST /scans = %d: %s", rr.Code, rr.Body.String())
	}

	rr := doJSON(t, handler, http.MethodGet, "/findings?severity=high", "tenant-a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /findings = %d: %s", rr.Code, rr.Body.String())
	}
	var listing struct {
		Count    int `json:"count"`
		Findings []struct {
			ID       string `json:"id"`
			Severity string `json:"severity"`
		} `json:"findings"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if listing.Count != 1 || listing.Findings[0].Severity != "high" {
		t.Fatalf("listing = %+v, want one high finding", listing)
	}

	rr = doJSON(t, handler, http.MethodPost, "/findings/"+listing.Findings[0].ID+"/resolve", "tenant-a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /findings/{id}/resolve = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodGet, "/findings?sort=package", "tenant-a", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("GET /findings unknown sort = %d, want 400", rr.Code)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	body := mcpIngestBody(
		map[string]string{"rule_id": "MCP001", "severity": "critical", "category": "injection", "server": "shell", "path": "a", "message": "m"},
	)
	if rr := doJSON(t, handler, http.MethodPost, "/scans", "tenant-a", body); rr.Code != http.StatusCreated {
		t.Fatalf("POST /scans = %d: %s", rr.Code, rr.Body.String())
	}

	routes := []string{
		"/analytics/trends?days=7",
		"/analytics/trends?days=7&group_by=week",
		"/analytics/severity-distribution",
		"/analytics/scanner-effectiveness",
		"/analytics/remediation-progress",
		"/analytics/risk-scores",
		"/analytics/dashboard",
	}
	for _, route := range routes {
		t.Run(route, func(t *testing.T) {
			rr := doJSON(t, handler, http.MethodGet, route, "tenant-a", nil)
			if rr.Code != http.StatusOK {
				t.Errorf("GET %s = %d: %s", route, rr.Code, rr.Body.String())
			}
		})
	}

	t.Run("trend buckets cover the window", func(t *testing.T) {
		rr := doJSON(t, handler, http.MethodGet, "/analytics/trends?days=7", "tenant-a", nil)
		var report struct {
			Periods []json.RawMessage `json:"periods"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
			t.Fatalf("failed to decode report: %v", err)
		}
		if len(report.Periods) != 7 {
			t.Errorf("periods = %d, want 7", len(report.Periods))
		}
	})

	t.Run("invalid days", func(t *testing.T) {
		rr := doJSON(t, handler, http.MethodGet, "/analytics/trends?days=-1", "tenant-a", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("invalid granularity", func(t *testing.T) {
		rr := doJSON(t, handler, http.MethodGet, "/analytics/trends?group_by=hour", "tenant-a", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})
}

func TestRiskScoresHonorWindow(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	// A stale open finding from well outside any window must not
	// contribute to a 7-day risk report.
	stale := fixedNow.AddDate(-2, 0, 0)
	scan := &finding.Scan{
		ID:        "scan-stale",
		TenantID:  "tenant-a",
		ScanType:  "mcp",
		CreatedAt: stale,
		Findings: []finding.Finding{{
			ID:        "f-stale",
			ScanID:    "scan-stale",
			Severity:  severity.Critical,
			Category:  "injection",
			Scanner:   "mcp",
			CreatedAt: stale,
		}},
	}
	if err := server.store.InsertScan(context.Background(), scan); err != nil {
		t.Fatalf("InsertScan() error = %v", err)
	}

	rr := doJSON(t, handler, http.MethodGet, "/analytics/risk-scores?days=7", "tenant-a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /analytics/risk-scores = %d: %s", rr.Code, rr.Body.String())
	}
	var report struct {
		TotalScore float64 `json:"total_score"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.TotalScore != 0 {
		t.Errorf("total_score = %v, want 0 for an empty window", report.TotalScore)
	}

	t.Run("invalid days", func(t *testing.T) {
		rr := doJSON(t, handler, http.MethodGet, "/analytics/risk-scores?days=banana", "tenant-a", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})
}

func TestInsightsEndpoints(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		server := setupServer(t, allInsights())
		handler := server.Handler()

		for _, route := range []string{"/ml-insights/anomalies", "/ml-insights/correlations", "/ml-insights/prioritization"} {
			rr := doJSON(t, handler, http.MethodGet, route, "tenant-a", nil)
			if rr.Code != http.StatusOK {
				t.Errorf("GET %s = %d: %s", route, rr.Code, rr.Body.String())
			}
			var resp struct {
				Enabled bool `json:"enabled"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if !resp.Enabled {
				t.Errorf("GET %s enabled = false, want true", route)
			}
		}
	})

	t.Run("disabled reports reason with 200", func(t *testing.T) {
		server := setupServer(t, insights.Config{DisabledReason: "ml insights disabled by configuration"})
		handler := server.Handler()

		rr := doJSON(t, handler, http.MethodGet, "/ml-insights/anomalies", "tenant-a", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("GET /ml-insights/anomalies = %d: %s", rr.Code, rr.Body.String())
		}
		var resp disabledResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Enabled {
			t.Error("enabled = true, want false")
		}
		if resp.Message == "" {
			t.Error("expected a message explaining why the insight is off")
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	if rr := doJSON(t, handler, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d", rr.Code)
	}
	if rr := doJSON(t, handler, http.MethodGet, "/metrics", "", nil); rr.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("failed to auto-migrate models: %v", err)
	}
	store, err := db.NewGormStore(conn)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := log.WithLogger(context.Background(), &types.MockLogger{})
	server, err := NewServer(ctx, Config{RateLimit: 1, RateBurst: 1}, store, normalize.New(), insights.NewService(allInsights()))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	handler := server.Handler()

	if rr := doJSON(t, handler, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", rr.Code)
	}
	if rr := doJSON(t, handler, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", rr.Code)
	}
}

func TestGzipCompression(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	server := setupServer(t, allInsights())
	handler := server.Handler()

	body := mcpIngestBody(
		map[string]string{"rule_id": "MCP001", "severity": "high", "category": "auth", "server": "files", "path": "a", "message": "m"},
	)
	rr := doJSON(t, handler, http.MethodPost, "/scans", "tenant-a", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /scans = %d: %s", rr.Code, rr.Body.String())
	}
	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if rr := doJSON(t, handler, http.MethodGet, "/scans/"+resp.ScanID, "tenant-b", nil); rr.Code != http.StatusNotFound {
		t.Errorf("cross-tenant GET /scans/{id} = %d, want 404", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodGet, "/findings", "tenant-b", nil)
	var listing struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if listing.Count != 0 {
		t.Errorf("tenant-b sees %d findings, want 0", listing.Count)
	}
}
