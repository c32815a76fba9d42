// Package comet is a tracking.Sink writing to the Comet REST API (v2). Every
// session becomes one Comet experiment.
package comet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thalesfsp/hotune/internal/tracking"
)

// Defaults.
const (
	DefaultBaseURL   = "https://www.comet.com/api/rest/v2/"
	DefaultAPIKeyEnv = "COMET_API_KEY"
	DefaultTimeout   = 30 * time.Second
)

// ErrMissingAPIKey is returned by New when no API key can be resolved.
var ErrMissingAPIKey = errors.New("comet: missing API key")

// Config enumerates the recognized client options.
type Config struct {
	// BaseURL of the REST API. Defaults to DefaultBaseURL.
	BaseURL string

	// APIKey takes precedence over APIKeyEnv.
	APIKey string

	// APIKeyEnv names the environment variable holding the API key. Defaults
	// to COMET_API_KEY.
	APIKeyEnv string

	// Workspace and ProjectName apply to sessions opened without their own.
	Workspace   string
	ProjectName string

	// Timeout bounds every request. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("comet: %s: status %d: %s", e.Endpoint, e.Code, e.Body)
}

// Sink implements tracking.Sink.
type Sink struct {
	config Config
	apiKey string
	client *http.Client
	logger logrus.FieldLogger
}

// Option configures a Sink.
type Option func(*Sink)

// WithHTTPClient replaces the HTTP client. Its timeout is left untouched.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sink) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New resolves the API key and returns a Sink.
func New(config Config, opts ...Option) (*Sink, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	if !strings.HasSuffix(config.BaseURL, "/") {
		config.BaseURL += "/"
	}

	if config.APIKeyEnv == "" {
		config.APIKeyEnv = DefaultAPIKeyEnv
	}

	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(config.APIKeyEnv)
	}

	if apiKey == "" {
		return nil, fmt.Errorf("%w: set %s", ErrMissingAPIKey, config.APIKeyEnv)
	}

	s := &Sink{
		config: config,
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Timeout},
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

type createRequest struct {
	ProjectName   string `json:"projectName,omitempty"`
	WorkspaceName string `json:"workspaceName,omitempty"`
}

type createResponse struct {
	ExperimentKey string `json:"experimentKey"`
	Link          string `json:"link,omitempty"`
}

// OpenSession creates a new experiment.
func (s *Sink) OpenSession(ctx context.Context, config tracking.SessionConfig) (tracking.Session, error) {
	req := createRequest{
		ProjectName:   firstNonEmpty(config.ProjectName, s.config.ProjectName),
		WorkspaceName: firstNonEmpty(config.Workspace, s.config.Workspace),
	}

	var resp createResponse
	if err := s.post(ctx, "write/experiment/create", req, &resp); err != nil {
		return nil, err
	}

	if resp.ExperimentKey == "" {
		return nil, errors.New("comet: create experiment: empty experiment key")
	}

	s.logger.WithFields(logrus.Fields{
		"sink":       "comet",
		"experiment": resp.ExperimentKey,
		"link":       resp.Link,
	}).Debug("experiment created")

	return &session{sink: s, key: resp.ExperimentKey}, nil
}

func (s *Sink) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("comet: %s: encode: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("comet: %s: %w", endpoint, err)
	}

	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("comet: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("comet: %s: read response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("comet: %s: decode: %w", endpoint, err)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
