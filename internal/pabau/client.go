package pabau

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/apperrors"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// Client talks to the Pabau REST API. The API key is a path segment, there is
// no working server-side filtering or ordering, and the hard page-size cap is
// 50, so callers page through everything and filter locally.
type Client struct {
	baseURL  string
	apiKey   string
	pageSize int
	http     *http.Client
}

type clientsResponse struct {
	Clients []model.PabauClientPayload `json:"clients"`
}

type leadsResponse struct {
	Leads []model.PabauLeadPayload `json:"leads"`
}

// NewClient creates a Pabau API client.
func NewClient(baseURL, apiKey string, pageSize int) *Client {
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 50
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		pageSize: pageSize,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// PageSize reports the effective page size, used by callers for short-page
// termination.
func (c *Client) PageSize() int {
	return c.pageSize
}

// ListClients fetches one page of the clients listing. Pages are 1-based. An
// empty slice means the listing is exhausted.
func (c *Client) ListClients(ctx context.Context, page int) ([]model.PabauClientPayload, error) {
	var out clientsResponse
	if err := c.getPage(ctx, "clients", page, &out); err != nil {
		return nil, err
	}
	return out.Clients, nil
}

// ListLeads fetches one page of the leads listing. Pages are 1-based. An
// empty slice means the listing is exhausted.
func (c *Client) ListLeads(ctx context.Context, page int) ([]model.PabauLeadPayload, error) {
	var out leadsResponse
	if err := c.getPage(ctx, "leads", page, &out); err != nil {
		return nil, err
	}
	return out.Leads, nil
}

func (c *Client) getPage(ctx context.Context, resource string, page int, out interface{}) error {
	u, err := url.Parse(fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiKey, resource))
	if err != nil {
		return apperrors.NewFatal(err, "invalid pabau api url")
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.pageSize))
	u.RawQuery = q.Encode()

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return apperrors.NewRetryable(err, "pabau request failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return apperrors.NewRetryable(
				fmt.Errorf("%w: status=%d", apperrors.ErrUpstream, resp.StatusCode),
				"pabau returned transient status")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(apperrors.NewFatal(
				fmt.Errorf("%w: status=%d body=%s", apperrors.ErrUpstream, resp.StatusCode, string(b)),
				"pabau returned error status"))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(apperrors.NewFatal(err, "failed to decode pabau response"))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newRequestBackoff(), 2), ctx)
	start := utils.Now()
	err = backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logger.FromContext(ctx).Warn("Retrying Pabau request",
			zap.String("resource", resource),
			zap.Int("page", page),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	observer.ObserveUpstreamRequestDuration("pabau", resource, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("fetch pabau %s page %d: %w", resource, page, err)
	}
	return nil
}

func newRequestBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 1 * time.Minute
	return b
}
