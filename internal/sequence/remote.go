package sequence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	httpClient "github.com/Alias1177/RegimeForecast/internal/platform/http"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// RemoteModel calls a TensorFlow Serving REST endpoint hosting the exported model
type RemoteModel struct {
	endpoint   string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// RemoteOptions holds options for creating a RemoteModel
type RemoteOptions struct {
	BaseURL        string
	ModelName      string
	RequestTimeout time.Duration
	RequestsPerSec int
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
	Error       string            `json:"error,omitempty"`
}

// NewRemoteModel creates a client for {BaseURL}/v1/models/{ModelName}:predict
func NewRemoteModel(opts RemoteOptions) *RemoteModel {
	rps := opts.RequestsPerSec
	if rps == 0 {
		// walk-forward issues one call per day in the window
		rps = 50
	}
	return &RemoteModel{
		endpoint: fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimRight(opts.BaseURL, "/"), opts.ModelName),
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:        opts.RequestTimeout,
			RequestsPerSec: rps,
		}),
		logger: log.With().Str("component", "remote_model").Logger(),
	}
}

// Predict sends a single-instance batch and returns its scalar prediction
func (m *RemoteModel) Predict(ctx context.Context, window mat.Matrix) (float64, error) {
	r, c := window.Dims()
	instance := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = window.At(i, j)
		}
		instance[i] = row
	}

	payload, err := json.Marshal(predictRequest{Instances: [][][]float64{instance}})
	if err != nil {
		return 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.DoRequest(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response body: %w", err)
	}

	var out predictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		m.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}
	if out.Error != "" {
		return 0, fmt.Errorf("model server error: %s", out.Error)
	}
	if len(out.Predictions) != 1 {
		return 0, fmt.Errorf("expected 1 prediction, got %d", len(out.Predictions))
	}
	y, err := scalar(out.Predictions[0])
	if err != nil {
		return 0, err
	}
	return finite(y)
}

// scalar accepts both 7.5 and [7.5] depending on how the output was exported
func scalar(raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, nil
	}
	var vs []float64
	if err := json.Unmarshal(raw, &vs); err != nil {
		return 0, fmt.Errorf("prediction %s is not numeric: %w", string(raw), err)
	}
	if len(vs) != 1 {
		return 0, errors.New("prediction must be a single value")
	}
	return vs[0], nil
}

func finite(y float64) (float64, error) {
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, errors.New("model server returned a non-finite prediction")
	}
	return y, nil
}
