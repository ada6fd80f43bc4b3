package toolserver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharkivmetro.dev/metro/testutil"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	router, _ := testutil.BuildRouter(t)
	srv := httptest.NewServer(New(router, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, tool string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/tools/"+tool, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestGetRouteTool(t *testing.T) {
	srv := testServer(t)

	status, out := call(t, srv, "get_route", map[string]string{
		"from_station":   "Холодна гора",
		"to_station":     "Академіка Барабашова",
		"departure_time": "10:00",
		"day_type":       "weekday",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", out["status"])
	assert.NotEmpty(t, out["text"])

	data, ok := out["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["num_transfers"])
	segments, ok := data["segments"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, segments)
}

func TestGetRouteToolMetroClosed(t *testing.T) {
	srv := testServer(t)

	status, out := call(t, srv, "get_route", map[string]string{
		"from_station":   "Холодна гора",
		"to_station":     "Левада",
		"departure_time": "23:55",
		"day_type":       "weekday",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "error", out["status"])
	assert.NotEmpty(t, out["message"])
}

func TestGetScheduleTool(t *testing.T) {
	srv := testServer(t)

	status, out := call(t, srv, "get_schedule", map[string]string{
		"station":  "Університет",
		"day_type": "weekend",
	})
	require.Equal(t, http.StatusOK, status)

	data, ok := out["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestListStationsTool(t *testing.T) {
	srv := testServer(t)

	status, out := call(t, srv, "list_stations", map[string]string{"line": "saltivska", "language": "en"})
	require.Equal(t, http.StatusOK, status)

	data, ok := out["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 8)

	first, ok := data[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "istorychnyi_muzei", first["id"])
}

func TestFindStationToolResolvesAlias(t *testing.T) {
	srv := testServer(t)

	status, out := call(t, srv, "find_station", map[string]string{"name": "хтз"})
	require.Equal(t, http.StatusOK, status)

	data, ok := out["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "traktornyi_zavod", data["id"])
}

func TestFindStationToolUnknown(t *testing.T) {
	srv := testServer(t)

	status, out := call(t, srv, "find_station", map[string]string{"name": "нема такої станції ніде"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", out["status"])
}
