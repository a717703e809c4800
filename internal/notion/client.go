// Package notion implements sink.Database over the Notion REST API.
package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// APIError is the error object returned by the API for non-2xx responses.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unauthorized reports whether the integration token was rejected.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Version string
	Timeout time.Duration
}

// Client talks to the Notion API. It never retries.
type Client struct {
	http *resty.Client
}

var _ sink.Database = (*Client)(nil)

// NewClient builds a client authenticating with the integration token as a static bearer token.
func NewClient(cfg Config) *Client {
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), tokens)

	r := resty.NewWithClient(httpClient).
		SetBaseURL(cfg.BaseURL).
		SetHeader("Notion-Version", cfg.Version).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	}
	return &Client{http: r}
}

// Me returns the name of the integration's bot user. It is used as the startup credential check.
func (c *Client) Me(ctx context.Context) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

// QueryRows implements sink.Database.
func (c *Client) QueryRows(ctx context.Context, databaseID string, q sink.Query) (*sink.Result, error) {
	body := map[string]any{}
	if q.Filter != nil {
		filter, err := encodeFilter(*q.Filter)
		if err != nil {
			return nil, err
		}
		body["filter"] = filter
	}
	if len(q.Sorts) > 0 {
		body["sorts"] = encodeSorts(q.Sorts)
	}
	if q.Cursor != "" {
		body["start_cursor"] = q.Cursor
	}
	if q.PageSize > 0 {
		body["page_size"] = q.PageSize
	}

	var page queryResponse
	if err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", body, &page); err != nil {
		return nil, fmt.Errorf("query database %s: %w", databaseID, err)
	}

	result := &sink.Result{Rows: make([]sink.Row, 0, len(page.Results)), HasMore: page.HasMore}
	if page.NextCursor != nil {
		result.NextCursor = *page.NextCursor
	}
	for _, p := range page.Results {
		result.Rows = append(result.Rows, decodePage(p))
	}
	return result, nil
}

// CreateRow implements sink.Database.
func (c *Client) CreateRow(ctx context.Context, databaseID string, props sink.Properties) (string, error) {
	encoded, err := encodeProperties(props)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"parent":     map[string]any{"database_id": databaseID},
		"properties": encoded,
	}
	var out pageObject
	if err := c.do(ctx, http.MethodPost, "/pages", body, &out); err != nil {
		return "", fmt.Errorf("create row in %s: %w", databaseID, err)
	}
	return out.ID, nil
}

// UpdateRow implements sink.Database. Only the given properties are changed.
func (c *Client) UpdateRow(ctx context.Context, rowID string, props sink.Properties) error {
	encoded, err := encodeProperties(props)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+rowID, map[string]any{"properties": encoded}, nil); err != nil {
		return fmt.Errorf("update row %s: %w", rowID, err)
	}
	return nil
}

// AppendBlocks implements sink.Database.
func (c *Client) AppendBlocks(ctx context.Context, rowID string, blocks []sink.Block) error {
	children, err := encodeBlocks(blocks)
	if err != nil {
		return err
	}
	if err := c.do(ctx, http.MethodPatch, "/blocks/"+rowID+"/children", map[string]any{"children": children}, nil); err != nil {
		return fmt.Errorf("append blocks to %s: %w", rowID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx).SetError(&APIError{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr.StatusCode == 0 {
			apiErr = &APIError{StatusCode: resp.StatusCode(), Code: http.StatusText(resp.StatusCode()), Message: resp.String()}
		}
		return apiErr
	}
	return nil
}

// IsUnauthorized reports whether err carries a rejected-credentials response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}
