// Package garmin is a read-only client for the Garmin Connect endpoints the mirror consumes.
package garmin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/record"
)

var (
	// ErrLogin wraps every credential exchange failure.
	ErrLogin = errors.New("garmin login failed")
	// ErrNotLoggedIn is returned by data calls made before Login.
	ErrNotLoggedIn = errors.New("garmin client is not logged in")
)

// APIError describes a non-2xx response.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("garmin api: %s returned %d: %s", e.Path, e.StatusCode, strings.TrimSpace(e.Body))
}

// Config configures a Client.
type Config struct {
	BaseURL  string
	TokenURL string
	ClientID string
	Email    string
	Password string
	Timeout  time.Duration
}

// Client reads activities and daily summaries for the logged-in user.
type Client struct {
	cfg         Config
	http        *resty.Client
	displayName string
}

// NewClient returns a client that must Login before use.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Login exchanges the account credentials for a token and resolves the user's display name,
// which the summary endpoints are keyed on.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.Email == "" || c.cfg.Password == "" {
		return fmt.Errorf("%w: email and password are required", ErrLogin)
	}

	oauthCfg := &oauth2.Config{
		ClientID: c.cfg.ClientID,
		Endpoint: oauth2.Endpoint{TokenURL: c.cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: c.cfg.Timeout})
	token, err := oauthCfg.PasswordCredentialsToken(exchangeCtx, c.cfg.Email, c.cfg.Password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLogin, err)
	}

	// Refreshes outlive the login call, so they must not inherit its context.
	refreshCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: c.cfg.Timeout})
	r := resty.NewWithClient(oauthCfg.Client(refreshCtx, token)).
		SetBaseURL(c.cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if c.cfg.Timeout > 0 {
		r.SetTimeout(c.cfg.Timeout)
	}
	c.http = r

	var profile struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.getJSON(ctx, "/userprofile-service/socialProfile", nil, &profile); err != nil {
		c.http = nil
		return fmt.Errorf("%w: resolve profile: %w", ErrLogin, err)
	}
	if profile.DisplayName == "" {
		c.http = nil
		return fmt.Errorf("%w: profile has no display name", ErrLogin)
	}
	c.displayName = profile.DisplayName
	return nil
}

// ListRecentActivities returns up to count activities, newest first, skipping offset.
func (c *Client) ListRecentActivities(ctx context.Context, offset, count int) ([]record.Record, error) {
	body, err := c.get(ctx, "/activitylist-service/activities/search/activities", map[string]string{
		"start": strconv.Itoa(offset),
		"limit": strconv.Itoa(count),
	})
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	records, err := record.DecodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return records, nil
}

// GetDailySummary returns the user summary for a calendar date (YYYY-MM-DD).
func (c *Client) GetDailySummary(ctx context.Context, date string) (record.Record, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("summary date %q: %w", date, err)
	}
	if c.http == nil {
		return nil, ErrNotLoggedIn
	}
	body, err := c.get(ctx, "/usersummary-service/usersummary/daily/"+c.displayName, map[string]string{
		"calendarDate": date,
	})
	if err != nil {
		return nil, fmt.Errorf("daily summary for %s: %w", date, err)
	}
	summary, err := record.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode daily summary: %w", err)
	}
	return summary, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	if c.http == nil {
		return nil, ErrNotLoggedIn
	}
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(query).Get(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Path: path, Body: resp.String()}
	}
	return resp.Body(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query map[string]string, out any) error {
	if c.http == nil {
		return ErrNotLoggedIn
	}
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(query).SetResult(out).ForceContentType("application/json").Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Path: path, Body: resp.String()}
	}
	return nil
}
