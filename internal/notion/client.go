// Package notion implements a minimal client for the remote collaborative
// record store backing the stockroom: record fetch and mutation through
// transactions, collection listing, session login, and file uploads.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the remote store's RPC endpoint root.
	DefaultBaseURL = "https://www.notion.so/api/v3"

	// DefaultTimeout is the default timeout for store requests
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is the user agent string for store requests
	UserAgent = "stockroom/1.0"

	// tokenCookie is the session cookie carrying the auth token.
	tokenCookie = "token_v2"

	// maxAttempts bounds retries of transient store failures per call.
	maxAttempts = 3
)

// Client talks to the remote record store.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the session token used for authentication.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a client for the store at baseURL. An empty baseURL
// selects the production endpoint.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the session token currently in use.
func (c *Client) Token() string {
	return c.token
}

// SetToken replaces the session token, e.g. after a password login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// do performs a single RPC POST and returns the raw response. Responses
// with non-2xx status codes are turned into HTTPError without retry.
func (c *Client) do(ctx context.Context, endpoint string, payload any) (*http.Response, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s request: %w", endpoint, err)
	}

	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: tokenCookie, Value: c.token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil, NewHTTPError(resp.StatusCode, url, resp.Status)
	}

	return resp, respBody, nil
}

// post performs an RPC POST, retrying transport failures and transient
// server errors with exponential backoff. Client errors (auth failures
// included) are permanent and surface immediately.
func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	operation := func() ([]byte, error) {
		_, body, err := c.do(ctx, endpoint, payload)
		if err == nil {
			return body, nil
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
}

// VerifyToken checks that the configured session token is still accepted
// by the remote store.
func (c *Client) VerifyToken(ctx context.Context) error {
	if _, err := c.post(ctx, "loadUserContent", map[string]any{}); err != nil {
		return fmt.Errorf("token verification failed: %w", err)
	}
	return nil
}

// LoginWithEmail performs a password login and returns the fresh session
// token issued by the store. The client adopts the token for subsequent
// calls.
func (c *Client) LoginWithEmail(ctx context.Context, email, password string) (string, error) {
	resp, _, err := c.do(ctx, "loginWithEmail", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("password login failed: %w", err)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == tokenCookie && cookie.Value != "" {
			c.token = cookie.Value
			return cookie.Value, nil
		}
	}
	return "", fmt.Errorf("password login succeeded but no %s cookie was issued", tokenCookie)
}

// GetRecord fetches a single record by identifier.
func (c *Client) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	payload := map[string]any{
		"requests": []map[string]string{
			{"table": "block", "id": id.String()},
		},
	}
	body, err := c.post(ctx, "getRecordValues", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record %s: %w", id, err)
	}

	var parsed struct {
		Results []struct {
			Value *wireRecord `json:"value"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse record response: %w", err)
	}
	if len(parsed.Results) == 0 || parsed.Results[0].Value == nil {
		return nil, fmt.Errorf("record %s: %w", id, ErrRecordNotFound)
	}
	return parsed.Results[0].Value.toRecord()
}

// RefreshRecord re-fetches a record's remote state in place.
func (c *Client) RefreshRecord(ctx context.Context, record *Record) error {
	fresh, err := c.GetRecord(ctx, record.ID)
	if err != nil {
		return err
	}
	record.replaceFrom(fresh)
	return nil
}

// QueryCollection lists all records in a collection.
func (c *Client) QueryCollection(ctx context.Context, collectionID uuid.UUID) ([]*Record, error) {
	payload := map[string]string{"collectionId": collectionID.String()}
	body, err := c.post(ctx, "queryCollection", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collectionID, err)
	}

	var parsed struct {
		Results []*wireRecord `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse collection response: %w", err)
	}

	records := make([]*Record, 0, len(parsed.Results))
	for _, wire := range parsed.Results {
		record, err := wire.toRecord()
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", collectionID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// SubmitTransaction applies a batch of operations atomically.
func (c *Client) SubmitTransaction(ctx context.Context, operations []Operation) error {
	payload := map[string]any{"operations": operations}
	if _, err := c.post(ctx, "submitTransaction", payload); err != nil {
		return fmt.Errorf("failed to submit transaction: %w", err)
	}
	return nil
}

// SetStock writes the record's stock count and updates the local view.
func (c *Client) SetStock(ctx context.Context, record *Record, stock int) error {
	propertyID, err := record.PropertyID(StockProperty)
	if err != nil {
		return err
	}
	value := [][]any{{strconv.Itoa(stock)}}
	op := SetOperation(record.ID, []string{"properties", propertyID}, value)
	if err := c.SubmitTransaction(ctx, []Operation{op}); err != nil {
		return fmt.Errorf("failed to set stock on record %s: %w", record.ID, err)
	}
	record.setProperty(propertyID, value)
	return nil
}

// SetTitle writes the record's title and updates the local view.
func (c *Client) SetTitle(ctx context.Context, record *Record, title string) error {
	value := [][]any{{title}}
	op := SetOperation(record.ID, []string{"properties", TitleProperty}, value)
	if err := c.SubmitTransaction(ctx, []Operation{op}); err != nil {
		return fmt.Errorf("failed to set title on record %s: %w", record.ID, err)
	}
	record.setProperty(TitleProperty, value)
	return nil
}
