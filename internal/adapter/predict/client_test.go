package predict

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testSelection() domain.Selection {
	return domain.Selection{
		Lat:            43.5212,
		Lon:            -96.7311,
		Date:           "2024-01-10T06:00:00.000Z",
		Initialization: "12Z",
		ForecastHour:   3,
	}
}

func TestClient_FetchProfile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/getCSV", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))

		var req selectionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 43.5, req.Lat, 1e-9)
		assert.InDelta(t, -96.75, req.Lon, 1e-9)
		assert.Equal(t, "2024-01-10T00:00:00.000Z", req.Date)
		assert.Equal(t, "12Z", req.Initialization)
		assert.Equal(t, 3, req.ForecastHour)

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{
			"message": "Data received",
			"temperature": [1.5, 2.0, -3.0],
			"dewpoint": [0.5, -1.0, -6.0],
			"pressure": [1000, 925, 850],
			"uwind": [1, 2, 3],
			"vwind": [4, 5, 6],
			"rain": 0.1, "snow": 0.6, "icep": 0.2, "frzr": 0.1,
			"uncertainty": 0.31,
			"metrics": {"warm_nose_area": "N/A"},
			"agl": [0, 250, 500]
		}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	profile, pred, err := c.FetchProfile(context.Background(), testSelection())
	require.NoError(t, err)

	assert.Equal(t, []float64{1000, 925, 850}, profile.Pressure)
	assert.Equal(t, []float64{1.5, 2.0, -3.0}, profile.Temperature)
	assert.Equal(t, []float64{0.5, -1.0, -6.0}, profile.Dewpoint)
	assert.Equal(t, []float64{1, 2, 3}, profile.UWind)
	assert.Equal(t, []float64{4, 5, 6}, profile.VWind)
	assert.InDelta(t, 0.6, pred.Snow, 0)
	assert.InDelta(t, 0.31, pred.Uncertainty, 0)
	assert.Equal(t, "N/A", pred.Metrics["warm_nose_area"])

	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.PredictRequests.WithLabelValues(EndpointProfile, "success")), 0)
}

func TestClient_FetchProfile_InvalidSelection(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	sel := testSelection()
	sel.Initialization = "06Z"
	_, _, err := testClient(srv.URL).FetchProfile(context.Background(), sel)
	require.ErrorIs(t, err, domain.ErrInvalidSelection)
	assert.False(t, called, "invalid selections never reach the service")
}

func TestClient_Predict_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/modSounding", r.URL.Path)

		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `[10,12,14]`, string(req["temperature"]))
		assert.JSONEq(t, `[4,6,8]`, string(req["dewpoint"]))
		assert.JSONEq(t, `[]`, string(req["uwind"]), "missing wind is sent as an empty array")
		assert.JSONEq(t, `[]`, string(req["vwind"]))
		assert.NotContains(t, req, "pressure")

		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(predictionResponse{
			Rain: 0.7, Snow: 0.1, IceP: 0.1, FrzR: 0.1, Uncertainty: 0.2,
			Metrics: domain.Metrics{"warm_nose_depth_m": "500"},
		}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	pred, err := c.Predict(context.Background(), domain.Profile{
		Pressure:    []float64{1000, 850, 700},
		Temperature: []float64{10, 12, 14},
		Dewpoint:    []float64{4, 6, 8},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, pred.Rain, 0)
	assert.Equal(t, "500", pred.Metrics["warm_nose_depth_m"])
}

func TestClient_Predict_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"No data received"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Predict(context.Background(), domain.Profile{})
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "No data received")
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.PredictRequests.WithLabelValues(EndpointPredict, "error")), 0)
}

func TestClient_Predict_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Predict(context.Background(), domain.Profile{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode modSounding response")
}

func TestClient_Predict_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(srv.URL).Predict(ctx, domain.Profile{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_Sample_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/retrieveValue", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"message":"Data received","rain":0.25,"snow":0.5,"icep":0.125,"frzr":0.125,"uncertainty":0.4}`)
	}))
	defer srv.Close()

	s, err := testClient(srv.URL).Sample(context.Background(), testSelection())
	require.NoError(t, err)
	assert.Equal(t, domain.Sample{Rain: 0.25, Snow: 0.5, IceP: 0.125, FrzR: 0.125, Uncertainty: 0.4}, s)
	assert.Equal(t, domain.Percentages{Rain: 25, Snow: 50, IceP: 12.5, FrzR: 12.5}, s.Percentages())
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://ptype:5000/", time.Second, observability.NewMetricsForTesting(), slog.Default())
	assert.Equal(t, "http://ptype:5000", c.baseURL)
}
