package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/lastemote/internal/emote"
	"github.com/john/lastemote/internal/overlay"
	"github.com/john/lastemote/internal/telemetry"
)

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(&overlay.Latest{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestState(t *testing.T) {
	latest := &overlay.Latest{}
	ref := emote.Ref{Name: "EZ", URL: "https://cdn.7tv.app/emote/1/4x.webp", Source: emote.GlobalCustom}
	latest.Render(overlay.Snapshot{Emote: &ref, Phase: overlay.Active, Count: 6, ComboVisible: true, ComboText: "x6", Intensity: 1.09})

	rec := httptest.NewRecorder()
	NewHandler(latest).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "active", got["phase"])
	assert.Equal(t, "x6", got["combo_text"])
	assert.Equal(t, float64(6), got["count"])
	assert.Equal(t, "EZ", got["emote"].(map[string]any)["name"])
}

func TestStateRejectsPost(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(&overlay.Latest{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/state", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetrics(t *testing.T) {
	telemetry.NewMetricsSink().Render(overlay.Snapshot{Count: 3})

	rec := httptest.NewRecorder()
	NewHandler(&overlay.Latest{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "lastemote_combo_count 3"))
}
