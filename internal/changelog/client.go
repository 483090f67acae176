// Package changelog fetches member activity events from the LinkedIn
// changelog API and maps them onto activity records.
package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/agenthands/actigraph/internal/config"
	"github.com/agenthands/actigraph/internal/logger"
)

// ErrAuth indicates the access token was rejected. Not retryable.
var ErrAuth = errors.New("changelog authentication failed")

// PageError reports a page that could not be fetched after retries. Events
// from earlier pages are still returned alongside it.
type PageError struct {
	Start int
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("failed to fetch changelog page at start=%d: %v", e.Start, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

const maxPageAttempts = 4

// Client pages through the member changelog endpoint.
type Client struct {
	baseURL   string
	token     string
	pageSize  int
	resources []string
	http      *http.Client

	// retryInitial overrides the first backoff interval, for tests.
	retryInitial time.Duration
}

func NewClient(cfg config.ChangelogConfig) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		pageSize:  pageSize,
		resources: cfg.Resources,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

type page struct {
	Elements []Event `json:"elements"`
	Paging   struct {
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	} `json:"paging"`
}

func (p page) hasNext() bool {
	for _, l := range p.Paging.Links {
		if l.Rel == "next" {
			return true
		}
	}
	return false
}

// Fetch pages through all changelog events processed after since (epoch ms,
// zero for everything), filtered to the configured resources. Transient page
// failures are retried with exponential backoff; if a page still fails, the
// events gathered so far are returned together with a PageError so a partial
// fetch is never silently lost.
func (c *Client) Fetch(ctx context.Context, since int64) ([]Event, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%w: no access token configured", ErrAuth)
	}

	log := logger.Get()
	var all []Event
	start := 0

	for {
		p, err := c.fetchPage(ctx, start, since)
		if err != nil {
			if errors.Is(err, ErrAuth) || errors.Is(err, context.Canceled) {
				return all, err
			}
			return all, &PageError{Start: start, Err: err}
		}
		if len(p.Elements) == 0 {
			break
		}

		kept := c.filterResources(p.Elements)
		all = append(all, kept...)
		log.Debug("fetched changelog page",
			zap.Int("start", start),
			zap.Int("events", len(p.Elements)),
			zap.Int("kept", len(kept)))

		if !p.hasNext() {
			break
		}
		start += c.pageSize
	}

	log.Info("changelog fetch complete", zap.Int("events", len(all)), zap.Int64("since", since))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, start int, since int64) (page, error) {
	bo := backoff.NewExponentialBackOff()
	if c.retryInitial > 0 {
		bo.InitialInterval = c.retryInitial
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxPageAttempts-1), ctx)

	return backoff.RetryWithData(func() (page, error) {
		p, err := c.doRequest(ctx, start, since)
		if err != nil {
			if errors.Is(err, ErrAuth) {
				return page{}, backoff.Permanent(err)
			}
			return page{}, err
		}
		return p, nil
	}, policy)
}

func (c *Client) doRequest(ctx context.Context, start int, since int64) (page, error) {
	q := url.Values{}
	q.Set("q", "memberAndApplication")
	q.Set("start", strconv.Itoa(start))
	q.Set("count", strconv.Itoa(c.pageSize))
	if since > 0 {
		q.Set("startTime", strconv.FormatInt(since, 10))
	}

	endpoint := c.baseURL + "/memberChangeLogs?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return page{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("LinkedIn-Version", "202312")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return page{}, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return page{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return page{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return p, nil
}

// filterResources keeps events whose resourceName contains any configured
// resource, case-insensitively. No filter configured means keep everything.
func (c *Client) filterResources(events []Event) []Event {
	if len(c.resources) == 0 {
		return events
	}
	kept := events[:0:0]
	for _, e := range events {
		name := strings.ToLower(e.ResourceName)
		for _, r := range c.resources {
			if strings.Contains(name, strings.ToLower(r)) {
				kept = append(kept, e)
				break
			}
		}
	}
	return kept
}
