package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"forgewatch/internal/config"
	"forgewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func f(v float64) *float64 {
	return &v
}

func testSnapshot() *models.ChannelSnapshot {
	return &models.ChannelSnapshot{
		Temperature: f(850),
		GasIndex:    f(380),
		DeviceName:  "Furnace Sensor 1",
		MachineName: "Blast Furnace A",
	}
}

func newTestClient(baseURL string) *Client {
	cfg := &config.AIConfig{BaseURL: baseURL, TimeoutSeconds: 5}
	return NewClient(cfg, zap.NewNop())
}

func TestAnalyzeAnomaly_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)

		var snapshot models.ChannelSnapshot
		require.NoError(t, json.NewDecoder(r.Body).Decode(&snapshot))
		assert.Equal(t, "Furnace Sensor 1", snapshot.DeviceName)

		json.NewEncoder(w).Encode(models.AIAnalysis{
			AnomalyDetected: true,
			Severity:        "warning",
			Issue:           "Unusual gas accumulation pattern",
			Recommendation:  "Inspect seals on line 2",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	analysis, err := client.AnalyzeAnomaly(context.Background(), testSnapshot())

	require.NoError(t, err)
	assert.True(t, analysis.AnomalyDetected)
	assert.Equal(t, "warning", analysis.Severity)
	assert.Equal(t, "Unusual gas accumulation pattern", analysis.Issue)
}

func TestAnalyzeAnomaly_NotConfigured(t *testing.T) {
	client := NewClient(&config.AIConfig{}, zap.NewNop())

	assert.False(t, client.Enabled())

	_, err := client.AnalyzeAnomaly(context.Background(), testSnapshot())
	assert.ErrorIs(t, err, models.ErrCollaboratorUnavailable)
}

func TestAnalyzeAnomaly_Unreachable(t *testing.T) {
	// 指向已关闭的端口
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	_, err := client.AnalyzeAnomaly(context.Background(), testSnapshot())

	assert.ErrorIs(t, err, models.ErrCollaboratorUnavailable)
}

func TestAnalyzeAnomaly_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.AnalyzeAnomaly(context.Background(), testSnapshot())

	assert.ErrorIs(t, err, models.ErrCollaboratorUnavailable)
}

func TestAnalyzeAnomaly_MalformedResponseDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("The sensor data looks mostly fine, maybe check the gas line."))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	analysis, err := client.AnalyzeAnomaly(context.Background(), testSnapshot())

	// 不可解析的响应不是错误，退化为非异常结果
	require.NoError(t, err)
	assert.False(t, analysis.AnomalyDetected)
	assert.Equal(t, "info", analysis.Severity)
	assert.Equal(t, "Unable to parse AI response", analysis.Issue)
	assert.Contains(t, analysis.Recommendation, "check the gas line")
}

func TestAnalyzeAnomaly_InvalidSeverityDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"anomaly_detected": true,
			"severity":         "catastrophic",
			"issue":            "something",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	analysis, err := client.AnalyzeAnomaly(context.Background(), testSnapshot())

	require.NoError(t, err)
	assert.False(t, analysis.AnomalyDetected)
	assert.Equal(t, "Unable to parse AI response", analysis.Issue)
}
