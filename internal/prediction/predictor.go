package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ms-darshan/internal/apperrors"
	"ms-darshan/internal/config"
	"ms-darshan/internal/models"
)

// Predictor is the external crowd model.
type Predictor interface {
	PredictNextDay(ctx context.Context, templeID string, features map[string]interface{}) (*models.NextDayPrediction, error)
	PredictHourly(ctx context.Context, templeID string) (json.RawMessage, error)
	Analyze(ctx context.Context, templeID, cameraID string) (*models.CrowdAnalysis, error)
}

// HTTPPredictor calls the model service over HTTP. Every failure, including
// timeouts and non-2xx answers, is an UpstreamUnavailable error.
type HTTPPredictor struct {
	BaseURL string
	Client  *http.Client
	cfg     config.PredictionConfig
}

func NewHTTPPredictor(cfg config.PredictionConfig) *HTTPPredictor {
	return &HTTPPredictor{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Client:  &http.Client{},
		cfg:     cfg,
	}
}

func (p *HTTPPredictor) PredictNextDay(ctx context.Context, templeID string, features map[string]interface{}) (*models.NextDayPrediction, error) {
	body := make(map[string]interface{}, len(features)+1)
	for k, v := range features {
		body[k] = v
	}
	body["templeId"] = templeID

	var out models.NextDayPrediction
	if err := p.do(ctx, http.MethodPost, "/predict/", body, p.cfg.NextDayTimeout, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *HTTPPredictor) PredictHourly(ctx context.Context, templeID string) (json.RawMessage, error) {
	var out json.RawMessage
	path := "/api/predict/crowd/" + url.PathEscape(templeID)
	if err := p.do(ctx, http.MethodGet, path, nil, p.cfg.HourlyTimeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *HTTPPredictor) Analyze(ctx context.Context, templeID, cameraID string) (*models.CrowdAnalysis, error) {
	q := url.Values{}
	q.Set("templeId", templeID)
	if cameraID != "" {
		q.Set("cameraId", cameraID)
	}
	var out models.CrowdAnalysis
	if err := p.do(ctx, http.MethodGet, "/api/crowd/analyze?"+q.Encode(), nil, p.cfg.AnalyzeTimeout, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *HTTPPredictor) do(ctx context.Context, method, path string, body interface{}, timeout time.Duration, out interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode prediction request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, reader)
	if err != nil {
		return apperrors.Upstream("prediction service unavailable", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return apperrors.Upstream("prediction service unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.Upstream("prediction service unavailable",
			fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Upstream("prediction service unavailable", fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}
