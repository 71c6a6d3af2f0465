//go:build predict

package predict

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/observability"
)

// These tests hit a running prediction service and require PREDICT_BASE_URL
// and PREDICT_SMOKE_DATE (a run date the service has data for).
// Run with: go test -tags=predict ./internal/adapter/predict/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	base := os.Getenv("PREDICT_BASE_URL")
	if base == "" {
		t.Fatal("PREDICT_BASE_URL must be set to run smoke tests")
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    base,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func smokeSelection(t *testing.T) domain.Selection {
	t.Helper()
	date := os.Getenv("PREDICT_SMOKE_DATE")
	if date == "" {
		t.Fatal("PREDICT_SMOKE_DATE must be set to run smoke tests")
	}
	return domain.Selection{Lat: 40.0, Lon: -105.25, Date: date, Initialization: "00Z", ForecastHour: 1}
}

func TestSmoke_FetchAndPredict(t *testing.T) {
	c := smokeClient(t)

	profile, base, err := c.FetchProfile(context.Background(), smokeSelection(t))
	require.NoError(t, err)
	require.NoError(t, profile.Validate())

	total := base.Rain + base.Snow + base.IceP + base.FrzR
	assert.InDelta(t, 1.0, total, 0.01, "class probabilities sum to one")

	// An unmodified profile predicts close to the stored baseline.
	pred, err := c.Predict(context.Background(), profile)
	require.NoError(t, err)
	assert.InDelta(t, base.Snow, pred.Snow, 0.05)
}

func TestSmoke_CachedSampler(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedSampler(c, 10, observability.NewMetricsForTesting())

	s1, err := cached.Sample(context.Background(), smokeSelection(t))
	require.NoError(t, err)

	s2, err := cached.Sample(context.Background(), smokeSelection(t))
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
}
