package emotion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/timmy/moodtune/internal/domain"
	"github.com/timmy/moodtune/internal/logger"
	"github.com/timmy/moodtune/internal/metrics"
)

const (
	defaultTFServingTimeout = 10 * time.Second
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

// TFServingConfig holds configuration for the TensorFlow Serving backend.
type TFServingConfig struct {
	BaseURL          string
	ModelName        string
	APIKey           string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// TFServingLoader loads the emotion model from a TensorFlow Serving REST
// endpoint. Calls go through a circuit breaker that fails fast while the
// server is down; it never retries.
type TFServingLoader struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	name    string
}

// NewTFServingLoader creates a loader for cfg.ModelName on cfg.BaseURL.
func NewTFServingLoader(cfg *TFServingConfig) *TFServingLoader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTFServingTimeout
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "tfserving:" + cfg.ModelName,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.ModelBreakerState.Set(float64(to))
			logger.Default().WithFields(logger.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Model server circuit breaker changed state")
		},
	})

	return &TFServingLoader{
		client:  client,
		breaker: breaker,
		name:    cfg.ModelName,
	}
}

// TF Serving REST request/response structures
type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
		Status  struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	} `json:"model_version_status"`
	Error string `json:"error,omitempty"`
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// Load checks that the model has an AVAILABLE version and returns a Model
// bound to it.
func (l *TFServingLoader) Load(ctx context.Context) (Model, error) {
	var status modelStatusResponse
	resp, err := l.do(ctx, "status", func() (*resty.Response, error) {
		return l.client.R().
			SetContext(ctx).
			SetResult(&status).
			SetError(&status).
			Get("/v1/models/" + l.name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query model status: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		if status.Error != "" {
			return nil, fmt.Errorf("model server error: %s", status.Error)
		}
		return nil, fmt.Errorf("model server error: status %d", resp.StatusCode())
	}

	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			logger.With(logger.Fields{"model": l.name, "version": v.Version}).Info(ctx, "Emotion model available")
			return &tfServingModel{loader: l, version: v.Version}, nil
		}
	}
	return nil, fmt.Errorf("model %q has no AVAILABLE version", l.name)
}

type tfServingModel struct {
	loader  *TFServingLoader
	version string
}

// Predict implements Model.
func (m *tfServingModel) Predict(ctx context.Context, input Tensor) ([]float32, error) {
	l := m.loader
	req := predictRequest{Instances: [][][][]float32{input.Instances()}}

	var result predictResponse
	resp, err := l.do(ctx, "predict", func() (*resty.Response, error) {
		return l.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&result).
			SetError(&result).
			Post("/v1/models/" + l.name + ":predict")
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call model server: %v", domain.ErrInference, err)
	}
	if resp.StatusCode() != http.StatusOK {
		if result.Error != "" {
			return nil, fmt.Errorf("%w: model server error: %s", domain.ErrInference, result.Error)
		}
		return nil, fmt.Errorf("%w: model server error: status %d", domain.ErrInference, resp.StatusCode())
	}
	if len(result.Predictions) != 1 {
		return nil, fmt.Errorf("%w: got %d predictions, want 1", domain.ErrInference, len(result.Predictions))
	}

	return result.Predictions[0], nil
}

// do runs call through the breaker. Transport errors and 5xx responses count
// as breaker failures; 4xx responses are returned to the caller as-is.
func (l *TFServingLoader) do(ctx context.Context, endpoint string, call func() (*resty.Response, error)) (*resty.Response, error) {
	resp, err := l.breaker.Execute(func() (*resty.Response, error) {
		resp, err := call()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, fmt.Errorf("status %d", resp.StatusCode())
		}
		return resp, nil
	})

	status := "error"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "rejected"
	case resp != nil:
		status = strconv.Itoa(resp.StatusCode())
	}
	metrics.ModelRequests.WithLabelValues(endpoint, status).Inc()

	if err != nil {
		logger.FromContext(ctx).WithField("endpoint", endpoint).WithError(err).Warn("Model server call failed")
		return nil, err
	}
	return resp, nil
}
