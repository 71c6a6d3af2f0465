// Package predict talks to the p-type prediction service: profile lookup for
// a forecast point, prediction for an edited profile, and hover sampling.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
	"github.com/couchcryptid/sounding-edit-service/internal/observability"
)

// Endpoint names, also used as metric labels.
const (
	EndpointProfile = "getCSV"
	EndpointPredict = "modSounding"
	EndpointSample  = "retrieveValue"
)

// wireDateLayout is the run-date format the service parses.
const wireDateLayout = "2006-01-02T15:04:05.000Z"

// ErrUpstream reports a non-200 response from the prediction service.
var ErrUpstream = errors.New("prediction service error")

// Client is an HTTP client for the prediction service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a prediction service client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// FetchProfile loads the forecast sounding and its baseline prediction at a
// selection. The selection is snapped to the lookup grid first.
func (c *Client) FetchProfile(ctx context.Context, sel domain.Selection) (domain.Profile, domain.Prediction, error) {
	body, err := newSelectionRequest(sel)
	if err != nil {
		return domain.Profile{}, domain.Prediction{}, err
	}

	var resp profileResponse
	if err := c.doRequest(ctx, EndpointProfile, body, &resp); err != nil {
		return domain.Profile{}, domain.Prediction{}, err
	}

	profile := domain.Profile{
		Pressure:    resp.Pressure,
		Temperature: resp.Temperature,
		Dewpoint:    resp.Dewpoint,
		UWind:       resp.UWind,
		VWind:       resp.VWind,
	}
	pred := domain.Prediction{
		Rain:        resp.Rain,
		Snow:        resp.Snow,
		IceP:        resp.IceP,
		FrzR:        resp.FrzR,
		Uncertainty: resp.Uncertainty,
		Metrics:     resp.Metrics,
	}
	return profile, pred, nil
}

// Predict submits an edited profile and returns fresh probabilities.
func (c *Client) Predict(ctx context.Context, profile domain.Profile) (domain.Prediction, error) {
	body := predictRequest{
		Temperature: nonNil(profile.Temperature),
		Dewpoint:    nonNil(profile.Dewpoint),
		UWind:       nonNil(profile.UWind),
		VWind:       nonNil(profile.VWind),
	}

	var resp predictionResponse
	if err := c.doRequest(ctx, EndpointPredict, body, &resp); err != nil {
		return domain.Prediction{}, err
	}
	return domain.Prediction{
		Rain:        resp.Rain,
		Snow:        resp.Snow,
		IceP:        resp.IceP,
		FrzR:        resp.FrzR,
		Uncertainty: resp.Uncertainty,
		Metrics:     resp.Metrics,
	}, nil
}

// Sample reads the stored probabilities at a map location.
func (c *Client) Sample(ctx context.Context, sel domain.Selection) (domain.Sample, error) {
	body, err := newSelectionRequest(sel)
	if err != nil {
		return domain.Sample{}, err
	}

	var resp predictionResponse
	if err := c.doRequest(ctx, EndpointSample, body, &resp); err != nil {
		return domain.Sample{}, err
	}
	return domain.Sample{
		Rain:        resp.Rain,
		Snow:        resp.Snow,
		IceP:        resp.IceP,
		FrzR:        resp.FrzR,
		Uncertainty: resp.Uncertainty,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.PredictDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		c.metrics.PredictRequests.WithLabelValues(endpoint, outcome).Inc()
	}()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s: status %d: %s", ErrUpstream, endpoint, resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	c.logger.Debug("prediction service call", "endpoint", endpoint, "duration", time.Since(start))
	return nil
}

func newSelectionRequest(sel domain.Selection) (selectionRequest, error) {
	sel = sel.Snap()
	if err := sel.Validate(); err != nil {
		return selectionRequest{}, err
	}
	day, err := sel.RunDate()
	if err != nil {
		return selectionRequest{}, err
	}
	return selectionRequest{
		Lat:            sel.Lat,
		Lon:            sel.Lon,
		Date:           day.Format(wireDateLayout),
		Initialization: sel.Initialization,
		ForecastHour:   sel.ForecastHour,
	}, nil
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

// Prediction service wire types.

type selectionRequest struct {
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Date           string  `json:"date"`
	Initialization string  `json:"initialization"`
	ForecastHour   int     `json:"forecastHour"`
}

type predictRequest struct {
	Temperature []float64 `json:"temperature"`
	Dewpoint    []float64 `json:"dewpoint"`
	UWind       []float64 `json:"uwind"`
	VWind       []float64 `json:"vwind"`
}

type predictionResponse struct {
	Rain        float64        `json:"rain"`
	Snow        float64        `json:"snow"`
	IceP        float64        `json:"icep"`
	FrzR        float64        `json:"frzr"`
	Uncertainty float64        `json:"uncertainty"`
	Metrics     domain.Metrics `json:"metrics"`
}

type profileResponse struct {
	predictionResponse
	Pressure    []float64 `json:"pressure"`
	Temperature []float64 `json:"temperature"`
	Dewpoint    []float64 `json:"dewpoint"`
	UWind       []float64 `json:"uwind"`
	VWind       []float64 `json:"vwind"`
}
