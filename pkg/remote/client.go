package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bft-labs/envpool/pkg/env"
	"github.com/bft-labs/envpool/pkg/log"
)

const environmentsEndpoint = "/v1/environments"

// Client forwards lifecycle operations for one remote identity.
// It implements the Environment contract, so remote environments register
// into a local pool like any other factory product.
type Client struct {
	client  HTTPClient
	baseURL string
	authKey string
	id      env.Identity
	logger  log.Logger
}

// Compile-time safety: *Client implements env.Environment.
var _ env.Environment = (*Client)(nil)

// NewClient creates a forwarding client for the identity id served at baseURL.
// authKey may be empty when the server is unauthenticated.
func NewClient(client HTTPClient, baseURL, authKey string, id env.Identity, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	// Trailing slash would double up in the endpoint path.
	if len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		client:  client,
		baseURL: baseURL,
		authKey: authKey,
		id:      id,
		logger:  logger,
	}
}

// Start forwards the start operation.
func (c *Client) Start(ctx context.Context) error { return c.invoke(ctx, "start") }

// Stop forwards the stop operation.
func (c *Client) Stop(ctx context.Context) error { return c.invoke(ctx, "stop") }

// Reload forwards the reload operation.
func (c *Client) Reload(ctx context.Context) error { return c.invoke(ctx, "reload") }

// operationReply is the body returned by the server for lifecycle operations.
type operationReply struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c *Client) invoke(ctx context.Context, op string) error {
	endpoint := fmt.Sprintf("%s%s/%s/%s", c.baseURL, environmentsEndpoint, url.PathEscape(c.id.String()), op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.authKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.authKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, c.id, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		var reply operationReply
		if json.Unmarshal(body, &reply) == nil && reply.Error != "" {
			return fmt.Errorf("%s %s: server returned %d: %s", op, c.id, resp.StatusCode, reply.Error)
		}
		return fmt.Errorf("%s %s: server returned %d: %s", op, c.id, resp.StatusCode, string(body))
	}

	c.logger.Debug("forwarded operation",
		log.Stringer("environment", c.id),
		log.String("op", op),
	)
	return nil
}

// Statuses fetches the remote pool's identity snapshot. It is used by status
// tooling, not by the Environment contract.
func (c *Client) Statuses(ctx context.Context) ([]env.EnvStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+environmentsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.authKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.authKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list environments: server returned %d: %s", resp.StatusCode, string(body))
	}

	var statuses []env.EnvStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("decode statuses: %w", err)
	}
	return statuses, nil
}
