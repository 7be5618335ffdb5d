// Package registry is the outbound HTTP adapter for the flight reference
// registry, the authoritative source the cache fetches through on a miss.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/reference"
	"github.com/flightdeck/backend/internal/domain/shared"
)

// maxResponseBytes caps how much of an upstream body we will buffer. Reference
// entities are small; anything past this is a misbehaving upstream.
const maxResponseBytes = 1 << 20 // 1 MiB

// TokenSource supplies a bearer token for outbound requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client fetches reference entities from the registry's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

// ClientOption is a functional option for Client
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for registry requests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a registry client.
func NewClient(baseURL string, tokens TokenSource, timeout time.Duration, logger *zap.Logger, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchEntity retrieves one entity from the registry.
//
// Error mapping follows the cache's contract: a 404 becomes
// shared.ErrNotFound so the caller can report absence without caching it, a
// credential problem becomes shared.ErrAuthFailure, and everything else
// (timeouts, 5xx, connection refusals) becomes shared.ErrUpstreamUnavailable.
func (c *Client) FetchEntity(ctx context.Context, entityType reference.EntityType, id string) (json.RawMessage, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		// Token already wraps shared.ErrAuthFailure.
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, entityType.Collection(), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.logger.Warn("registry request failed",
			zap.String("url", url),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
		if err != nil {
			return nil, fmt.Errorf("%w: reading registry response: %v", shared.ErrUpstreamUnavailable, err)
		}
		if len(body) > maxResponseBytes {
			return nil, fmt.Errorf("%w: registry response exceeded %d bytes", shared.ErrUpstreamUnavailable, maxResponseBytes)
		}
		return json.RawMessage(body), nil

	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s %s", shared.ErrNotFound, entityType, id)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		// The cached token was rejected; drop it so the next call re-logs-in.
		c.tokens.Invalidate()
		c.logger.Warn("registry rejected credential",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: registry rejected credential with status %d", shared.ErrAuthFailure, resp.StatusCode)

	default:
		io.Copy(io.Discard, resp.Body)
		c.logger.Warn("registry returned unexpected status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: registry returned status %d", shared.ErrUpstreamUnavailable, resp.StatusCode)
	}
}
