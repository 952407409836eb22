// Package platform is the REST client for the hosted sensor platform.
//
// The platform exposes two endpoints:
//
//	GET    {base}/sensors?searchKey=...  -> {"sensors":[...],"defaultPageSize":N}
//	DELETE {base}/sensors/{id}
//
// Any status below 400 is success. Failures are returned as *StatusError.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ParkingTable/internal/config"
	"github.com/JonMunkholm/ParkingTable/internal/core"
	"github.com/go-resty/resty/v2"
)

// maxErrorBody caps how much of an error response is kept in a StatusError.
const maxErrorBody = 512

// Client talks to the sensor platform. Safe for concurrent use.
type Client struct {
	http *resty.Client
}

// New creates a client from cfg.
func New(cfg config.PlatformConfig) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		})

	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}

	return &Client{http: rc}
}

// FetchRecords returns every sensor the platform matches to searchKey.
func (c *Client) FetchRecords(ctx context.Context, searchKey string) (core.FetchResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("searchKey", searchKey).
		Get("/sensors")
	if err != nil {
		return core.FetchResult{}, fmt.Errorf("platform fetch: %w", err)
	}
	if resp.IsError() {
		return core.FetchResult{}, newStatusError("fetch", resp)
	}

	var result core.FetchResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return core.FetchResult{}, fmt.Errorf("platform fetch: decode response: %w", err)
	}
	if result.Sensors == nil {
		result.Sensors = []core.Record{}
	}
	return result, nil
}

// DeleteRecord deletes the sensor with id on the platform.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Delete("/sensors/{id}")
	if err != nil {
		return fmt.Errorf("platform delete: %w", err)
	}
	if resp.IsError() {
		return newStatusError("delete", resp)
	}
	return nil
}

// StatusError is a platform response with status 400 or above.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func newStatusError(op string, resp *resty.Response) *StatusError {
	body := strings.TrimSpace(string(resp.Body()))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Op: op, StatusCode: resp.StatusCode(), Body: body}
}

// Error uses wording core.MapError recognises.
func (e *StatusError) Error() string {
	var kind string
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		kind = "platform unauthorized"
	case e.StatusCode == http.StatusNotFound:
		kind = "platform " + core.ErrRecordNotFound.Error()
	case e.StatusCode >= http.StatusInternalServerError:
		kind = "platform unavailable"
	default:
		kind = "platform rejected request"
	}

	msg := fmt.Sprintf("%s: %s status %d", kind, e.Op, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps a 404 to core.ErrRecordNotFound.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return core.ErrRecordNotFound
	}
	return nil
}

// IsNotFound reports whether err is a platform 404.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrRecordNotFound)
}
