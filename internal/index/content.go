package index

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/agenthands/actigraph/internal/driver"
)

// Item is one indexable entity: a post or comment with its text.
type Item struct {
	Key       string
	Label     string
	Text      string
	URL       string
	Timestamp int64
}

// ContentSource supplies the entities to index.
type ContentSource interface {
	Items(ctx context.Context, limit int, reindex, includeEmpty bool) ([]Item, error)
}

// GraphSource reads index candidates from the graph.
type GraphSource struct {
	Driver driver.GraphDriver
}

func (s *GraphSource) Items(ctx context.Context, limit int, reindex, includeEmpty bool) ([]Item, error) {
	if limit <= 0 {
		limit = 1_000_000
	}
	result, err := s.Driver.ExecuteQuery(ctx, driver.IndexCandidatesQuery, map[string]any{
		"reindex":       reindex,
		"include_empty": includeEmpty,
		"limit":         limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index candidates: %w", err)
	}

	items := make([]Item, 0, len(result.Records))
	for _, rec := range result.Records {
		item := Item{}
		if v, ok := rec.Get("key"); ok {
			item.Key, _ = v.(string)
		}
		if v, ok := rec.Get("labels"); ok {
			if labels, ok := v.([]any); ok && len(labels) > 0 {
				item.Label, _ = labels[0].(string)
			}
		}
		if v, ok := rec.Get("text"); ok {
			item.Text, _ = v.(string)
		}
		if v, ok := rec.Get("url"); ok {
			item.URL, _ = v.(string)
		}
		if v, ok := rec.Get("timestamp"); ok {
			item.Timestamp, _ = v.(int64)
		}
		if item.Key != "" {
			items = append(items, item)
		}
	}
	return items, nil
}

// WebFetcher recovers text for entities whose content is missing from the
// record store by scraping the public page.
type WebFetcher struct {
	http *http.Client
}

func NewWebFetcher() *WebFetcher {
	return &WebFetcher{http: &http.Client{Timeout: 15 * time.Second}}
}

// Fetch pulls a page and extracts the best available description text:
// og:description, then meta description, then og:title, then <title>.
// Returns the empty string when nothing usable is found.
func (f *WebFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; actigraph/1.0)")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	for _, selector := range []string{
		`meta[property="og:description"]`,
		`meta[name="description"]`,
		`meta[property="og:title"]`,
	} {
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if text := strings.TrimSpace(content); text != "" {
				return text, nil
			}
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}
