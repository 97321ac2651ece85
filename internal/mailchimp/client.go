package mailchimp

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/apperrors"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// Member statuses as Mailchimp reports them.
const (
	StatusSubscribed   = "subscribed"
	StatusUnsubscribed = "unsubscribed"
)

// listPageSize is the Mailchimp maximum for the members listing.
const listPageSize = 1000

// Member is the wire shape for subscribing or updating one audience member.
type Member struct {
	EmailAddress string                 `json:"email_address"`
	Status       string                 `json:"status,omitempty"`
	StatusIfNew  string                 `json:"status_if_new,omitempty"`
	MergeFields  map[string]interface{} `json:"merge_fields,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
}

// MemberInfo is the subset of a member record the sync reads back.
type MemberInfo struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Status       string `json:"status"`
}

// BatchResult summarises one batch subscribe call.
type BatchResult struct {
	TotalCreated int          `json:"total_created"`
	TotalUpdated int          `json:"total_updated"`
	ErrorCount   int          `json:"error_count"`
	Errors       []BatchError `json:"errors"`
}

// BatchError is one per-member failure inside a batch.
type BatchError struct {
	EmailAddress string `json:"email_address"`
	Error        string `json:"error"`
}

// Client talks to the Mailchimp Marketing API for a single audience list.
// Auth is basic with the API key as password.
type Client struct {
	baseURL string
	apiKey  string
	listID  string
	http    *http.Client
}

// NewClient creates a Mailchimp API client bound to one list.
func NewClient(baseURL, apiKey, listID string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		listID:  listID,
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

// SubscriberHash returns the MD5 of the lowercased email, the member id
// Mailchimp keys its endpoints on.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}

// UpsertMember creates or updates one member via PUT. status_if_new is sent
// instead of status so an existing member's subscription state is never
// touched; tags are applied in a follow-up call because the member endpoint
// ignores them.
func (c *Client) UpsertMember(ctx context.Context, m *Member) (*MemberInfo, error) {
	body := map[string]interface{}{
		"email_address": m.EmailAddress,
		"status_if_new": m.StatusIfNew,
		"merge_fields":  m.MergeFields,
	}

	var info MemberInfo
	path := fmt.Sprintf("lists/%s/members/%s", c.listID, SubscriberHash(m.EmailAddress))
	if err := c.do(ctx, http.MethodPut, path, nil, body, &info); err != nil {
		return nil, err
	}

	if len(m.Tags) > 0 {
		if err := c.AddTags(ctx, m.EmailAddress, m.Tags); err != nil {
			return nil, err
		}
	}
	return &info, nil
}

// GetMember fetches one member by email. Returns apperrors.ErrNotFound if the
// email has never been on the list.
func (c *Client) GetMember(ctx context.Context, email string) (*MemberInfo, error) {
	var info MemberInfo
	path := fmt.Sprintf("lists/%s/members/%s", c.listID, SubscriberHash(email))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// UpdateMemberStatus patches one member's subscription status.
func (c *Client) UpdateMemberStatus(ctx context.Context, email, status string) error {
	path := fmt.Sprintf("lists/%s/members/%s", c.listID, SubscriberHash(email))
	return c.do(ctx, http.MethodPatch, path, nil, map[string]string{"status": status}, nil)
}

// AddTags marks the given tags active on a member.
func (c *Client) AddTags(ctx context.Context, email string, tags []string) error {
	type tagEntry struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	entries := make([]tagEntry, 0, len(tags))
	for _, t := range tags {
		entries = append(entries, tagEntry{Name: t, Status: "active"})
	}
	path := fmt.Sprintf("lists/%s/members/%s/tags", c.listID, SubscriberHash(email))
	return c.do(ctx, http.MethodPost, path, nil, map[string]interface{}{"tags": entries}, nil)
}

// ListMembers pages through the full members listing, optionally filtered by
// status. Termination is by short page only: the reported total_items is not
// trusted because it drifts while the list is being mutated.
func (c *Client) ListMembers(ctx context.Context, status string) ([]MemberInfo, error) {
	var all []MemberInfo
	offset := 0

	for {
		params := url.Values{}
		params.Set("count", strconv.Itoa(listPageSize))
		params.Set("offset", strconv.Itoa(offset))
		if status != "" {
			params.Set("status", status)
		}

		var page struct {
			Members []MemberInfo `json:"members"`
		}
		path := fmt.Sprintf("lists/%s/members", c.listID)
		if err := c.do(ctx, http.MethodGet, path, params, nil, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Members...)
		if len(page.Members) < listPageSize {
			return all, nil
		}
		offset += listPageSize
	}
}

// BatchSubscribe posts up to 500 members in one list-level call with
// update_existing set, so re-pushing the same member is a no-op update
// rather than an error.
func (c *Client) BatchSubscribe(ctx context.Context, members []Member) (*BatchResult, error) {
	body := map[string]interface{}{
		"members":         members,
		"update_existing": true,
	}
	var result BatchResult
	if err := c.do(ctx, http.MethodPost, "lists/"+c.listID, nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	u := fmt.Sprintf("%s/%s", c.baseURL, path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apperrors.NewFatal(err, "failed to encode mailchimp request")
		}
	}

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth("anystring", c.apiKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return apperrors.NewRetryable(err, "mailchimp request failed")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("%w: %s %s", apperrors.ErrNotFound, method, path))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return apperrors.NewRetryable(
				fmt.Errorf("%w: status=%d", apperrors.ErrUpstream, resp.StatusCode),
				"mailchimp returned transient status")
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(apperrors.NewFatal(
				fmt.Errorf("%w: status=%d body=%s", apperrors.ErrUpstream, resp.StatusCode, string(b)),
				"mailchimp returned error status"))
		}

		if out == nil || resp.StatusCode == http.StatusNoContent {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(apperrors.NewFatal(err, "failed to decode mailchimp response"))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newRequestBackoff(), 2), ctx)
	start := utils.Now()
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logger.FromContext(ctx).Warn("Retrying Mailchimp request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	observer.ObserveUpstreamRequestDuration("mailchimp", method+" "+path, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("mailchimp %s %s: %w", method, path, err)
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
