package multisig

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

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
	libHTTP "github.com/LerianStudio/lib-stablecoin/stablecoin/net/http"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/opentelemetry"
)

// Client talks to a remote multisig backend.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Store = (*Client)(nil)

// NewClient returns a Client rooted at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Create implements Store.
func (c *Client) Create(ctx context.Context, in CreateInput) (Transaction, error) {
	var created Created
	if err := c.do(ctx, http.MethodPost, "/v1/transactions", in, &created); err != nil {
		return Transaction{}, err
	}

	return c.Get(ctx, created.TransactionID)
}

// Get implements Store.
func (c *Client) Get(ctx context.Context, id string) (Transaction, error) {
	var t Transaction
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(id), nil, &t); err != nil {
		return Transaction{}, err
	}

	return t, nil
}

// Sign posts a signature for transaction id.
func (c *Client) Sign(ctx context.Context, id string, in SignInput) error {
	return c.do(ctx, http.MethodPut, "/v1/transactions/"+url.PathEscape(id), in, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set(constant.HeaderContentType, "application/json")
	opentelemetry.InjectHTTPContext(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("multisig backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("multisig backend %s: %w", path, constant.ErrNotFound)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e libHTTP.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			return fmt.Errorf("multisig backend %s %s: %s: %s", method, path, e.Title, e.Message)
		}

		return fmt.Errorf("multisig backend %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	return json.Unmarshal(raw, out)
}
